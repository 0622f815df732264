package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"portseal/internal/domain"
)

// readInput reads the named file, or stdin for "" and "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}

// writeOutput writes to the named file, or stdout for "" and "-".
func writeOutput(cmd *cobra.Command, name string, b []byte) error {
	if name == "" || name == "-" {
		_, err := cmd.OutOrStdout().Write(b)
		return err
	}
	return os.WriteFile(name, b, 0o600)
}

// encodeMessage renders msg as indented JSON, or CBOR when binary is set.
func encodeMessage(msg domain.Message, binary bool) ([]byte, error) {
	if binary {
		return msg.MarshalBinary()
	}
	b, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// decodeMessage accepts either form produced by encodeMessage.
func decodeMessage(b []byte) (domain.Message, error) {
	var msg domain.Message
	if t := bytes.TrimSpace(b); len(t) > 0 && t[0] == '{' {
		return msg, json.Unmarshal(t, &msg)
	}
	return msg, msg.UnmarshalBinary(b)
}
