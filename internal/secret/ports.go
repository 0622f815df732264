package secret

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	errBadHandle     = errors.New("secret: bad port handle")
	errPortNotFound  = errors.New("secret: input has no such port")
	errPortEncrypted = errors.New("secret: port is already encrypted")
)

// document is a workflow input: vertex name -> port name -> value.
type document map[string]map[string]json.RawMessage

// port is one resolved "vertex.port" handle.
type port struct {
	handle string
	vertex string
	name   string
	value  json.RawMessage
}

// EncryptPorts replaces each "vertex.port" value in doc with a SecretValue.
// With no handles doc is returned as is and s is never called. Every handle is
// resolved before the first Encrypt, so a bad handle list leaves s untouched.
func EncryptPorts(s Sealer, doc json.RawMessage, handles []string) (json.RawMessage, error) {
	if len(handles) == 0 {
		return doc, nil
	}
	d, err := parseDocument(doc)
	if err != nil {
		return nil, err
	}
	ports, err := d.resolve(handles)
	if err != nil {
		return nil, err
	}
	for _, p := range ports {
		if IsSecret(p.value) {
			return nil, fmt.Errorf("%w: %s", errPortEncrypted, p.handle)
		}
	}
	for _, p := range ports {
		sv, err := Encrypt(s, p.value)
		if err != nil {
			return nil, fmt.Errorf("encrypt %s: %w", p.handle, err)
		}
		if d[p.vertex][p.name], err = json.Marshal(sv); err != nil {
			return nil, err
		}
	}
	return json.Marshal(d)
}

// DecryptPorts reverses EncryptPorts for the named handles. All handles are
// resolved and parsed before the first Decrypt.
func DecryptPorts(o Opener, doc json.RawMessage, handles []string) (json.RawMessage, error) {
	if len(handles) == 0 {
		return doc, nil
	}
	d, err := parseDocument(doc)
	if err != nil {
		return nil, err
	}
	ports, err := d.resolve(handles)
	if err != nil {
		return nil, err
	}
	values := make([]SecretValue[json.RawMessage], len(ports))
	for i, p := range ports {
		if err := json.Unmarshal(p.value, &values[i]); err != nil {
			return nil, fmt.Errorf("%s: %w", p.handle, err)
		}
	}
	for i, p := range ports {
		pt, err := Decrypt(o, values[i])
		if err != nil {
			return nil, fmt.Errorf("decrypt %s: %w", p.handle, err)
		}
		d[p.vertex][p.name] = pt
	}
	return json.Marshal(d)
}

// resolve splits and looks up every handle. A handle named twice is an error.
func (d document) resolve(handles []string) ([]port, error) {
	ports := make([]port, 0, len(handles))
	seen := make(map[string]bool, len(handles))
	for _, h := range handles {
		vertex, name, err := splitHandle(h)
		if err != nil {
			return nil, err
		}
		key := vertex + "." + name
		if seen[key] {
			return nil, fmt.Errorf("%w: %q named twice", errBadHandle, h)
		}
		seen[key] = true
		v, err := d.lookup(vertex, name)
		if err != nil {
			return nil, err
		}
		ports = append(ports, port{handle: h, vertex: vertex, name: name, value: v})
	}
	return ports, nil
}

func parseDocument(doc json.RawMessage) (document, error) {
	var d document
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("secret: input document: %w", err)
	}
	return d, nil
}

func (d document) lookup(vertex, port string) (json.RawMessage, error) {
	v, ok := d[vertex][port]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", errPortNotFound, vertex, port)
	}
	return v, nil
}

func splitHandle(h string) (vertex, port string, err error) {
	vertex, port, ok := strings.Cut(h, ".")
	if !ok || vertex == "" || port == "" {
		return "", "", fmt.Errorf("%w: %q", errBadHandle, h)
	}
	return vertex, port, nil
}
