package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"portseal/internal/domain"
)

var errNoSession = errors.New("--session required")

type portsFlags struct {
	session string
	ports   []string
	out     string
}

func (f *portsFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.session, "session", "", "session id, as listed by portseal sessions")
	cmd.Flags().StringSliceVar(&f.ports, "port", nil, "vertex.port handle; repeat or comma-separate")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write the result here (default stdout)")
}

func (f *portsFlags) sessionID() (domain.SessionID, error) {
	if f.session == "" {
		return domain.SessionID{}, errNoSession
	}
	id, err := domain.ParseSessionID(f.session)
	if err != nil {
		return domain.SessionID{}, fmt.Errorf("session id: %w", err)
	}
	return id, nil
}

// encryptCmd seals ports of a JSON input document for the session's peer.
func encryptCmd() *cobra.Command {
	var f portsFlags
	cmd := &cobra.Command{
		Use:   "encrypt [file]",
		Short: "Encrypt ports of a workflow input document (stdin if no file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := f.sessionID()
			if err != nil {
				return err
			}
			doc, err := readInput(cmd, firstArg(args))
			if err != nil {
				return err
			}
			out, err := appCtx.Payload.EncryptPorts(cmd.Context(), id, doc, f.ports)
			if err != nil {
				return err
			}
			return writeOutput(cmd, f.out, append(out, '\n'))
		},
	}
	f.bind(cmd)
	return cmd
}

// decryptCmd opens ports sealed by the peer.
func decryptCmd() *cobra.Command {
	var f portsFlags
	cmd := &cobra.Command{
		Use:   "decrypt [file]",
		Short: "Decrypt ports of a workflow input document (stdin if no file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := f.sessionID()
			if err != nil {
				return err
			}
			doc, err := readInput(cmd, firstArg(args))
			if err != nil {
				return err
			}
			out, err := appCtx.Payload.DecryptPorts(cmd.Context(), id, doc, f.ports)
			if err != nil {
				return err
			}
			return writeOutput(cmd, f.out, append(out, '\n'))
		},
	}
	f.bind(cmd)
	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
