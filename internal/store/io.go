package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"portseal/internal/util/memzero"
)

// readSealed reads and opens the sealed file name under ks into out; a
// missing file is not an error and leaves out untouched.
func readSealed(ks *Keystore, name string, out any) error {
	b, err := readFile(filepath.Join(ks.dir, name))
	if err != nil {
		return err
	}
	if b == nil { // file didn’t exist
		return nil
	}
	pt, err := ks.open(name, b)
	if err != nil {
		return err
	}
	defer memzero.Zero(pt)
	return json.Unmarshal(pt, out)
}

// writeSealed marshals v, seals it under ks and writes it atomically.
func writeSealed(ks *Keystore, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)
	b, err := ks.seal(name, raw)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(ks.dir, name), b, 0o600)
}

// readFile reads the file at path into b; a missing file is not an error.
func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// writeFile writes bytes via a temp file, then atomically replaces the target.
func writeFile(path string, b []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	f, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	// Best-effort cleanup if anything fails before rename.
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	// Sealed session state must survive a crash between write and rename.
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
