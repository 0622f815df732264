package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"portseal/internal/domain"
)

const (
	defaultOneTimeKeys = 10
	registryTimeout    = 30 * time.Second
)

var errNoPrincipal = errors.New("--principal required")

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish [count]",
		Short: "Rotate the signed pre-key, mint one-time pre-keys and publish the bundle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Principal == "" {
				return errNoPrincipal
			}
			count := defaultOneTimeKeys
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("count: %w", err)
				}
				count = n
			}

			spk, opks, err := appCtx.Identity.GeneratePreKeys(count)
			if err != nil {
				return err
			}
			bundle, err := appCtx.Identity.PublicBundle(domain.PrincipalID(cfg.Principal))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), registryTimeout)
			defer cancel()
			if err := appCtx.Registry.Publish(ctx, bundle); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s with signed pre-key %s and %d new one-time pre-keys (%d available)\n",
				cfg.Principal, spk.ID, len(opks), len(bundle.OneTimePreKeys))
			return nil
		},
	}
}
