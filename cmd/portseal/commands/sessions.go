package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"portseal/internal/domain"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := appCtx.Sessions.ListSessions()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPEER\tROLE\tCREATED\tSKIPPED\tSTATE")
			for _, r := range recs {
				role := "responder"
				if r.Initiator {
					role = "initiator"
				}
				state := "active"
				if r.Terminated {
					state = "terminated"
				}
				peer := r.Peer.String()
				if peer == "" {
					peer = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					r.ID, peer, role,
					time.Unix(r.CreatedUTC, 0).UTC().Format(time.RFC3339),
					len(r.Ratchet.SkippedKeys), state)
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rm <session-id>",
		Short: "Delete a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseSessionID(args[0])
			if err != nil {
				return fmt.Errorf("session id: %w", err)
			}
			return appCtx.Sessions.DeleteSession(id)
		},
	})
	return cmd
}
