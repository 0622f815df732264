package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"portseal/internal/domain"
)

func acceptCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "accept <file>",
		Short: "Accept an initial message (JSON or CBOR, - for stdin) and store the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			msg, err := decodeMessage(b)
			if err != nil {
				return fmt.Errorf("decode initial message: %w", err)
			}

			rec, pt, err := appCtx.Sessions.AcceptSession(cmd.Context(), msg)
			if err != nil {
				return err
			}
			if from != "" {
				if err := appCtx.Sessions.SetPeer(rec.ID, domain.PrincipalID(from)); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Session: %s\n", rec.ID)
			if pt != nil {
				fmt.Fprintf(w, "Payload: %s\n", pt)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "name of the initiating principal")
	return cmd
}
