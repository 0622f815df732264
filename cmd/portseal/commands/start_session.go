package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"portseal/internal/domain"
)

// startSessionCmd claims the peer's bundle, runs X3DH and writes the initial
// message the peer must accept.
func startSessionCmd() *cobra.Command {
	var (
		out     string
		payload string
		binary  bool
	)
	cmd := &cobra.Command{
		Use:   "start-session <peer>",
		Short: "Establish a session with a peer and write the initial message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := domain.PrincipalID(args[0])

			var first []byte
			if payload != "" {
				first = []byte(payload)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), registryTimeout)
			defer cancel()
			rec, msg, err := appCtx.Sessions.InitiateSession(ctx, peer, first)
			if err != nil {
				return fmt.Errorf("starting session with %q: %w", peer, err)
			}

			b, err := encodeMessage(msg, binary)
			if err != nil {
				return err
			}
			if err := writeOutput(cmd, out, b); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Session %s created with %s.\n", rec.ID, peer)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the initial message here (default stdout)")
	cmd.Flags().StringVar(&payload, "payload", "", "first message to carry inside the initial message")
	cmd.Flags().BoolVar(&binary, "binary", false, "write CBOR instead of JSON")
	return cmd
}
