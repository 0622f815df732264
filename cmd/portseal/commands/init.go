package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"portseal/internal/app"
	"portseal/internal/store"
)

func initCmd() *cobra.Command {
	var kdf string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the keystore and generate identity keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return errNoPassphrase
			}
			if kdf != "" {
				cfg.KDF = store.KDF(strings.ToLower(kdf))
			}
			w, err := app.Create(cfg, passphrase)
			if err != nil {
				return err
			}
			defer w.Close()

			_, fp, err := w.Identity.GenerateIdentity()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Identity created in %s.\nFingerprint: %s\n", cfg.Home, fp)
			return nil
		},
	}
	cmd.Flags().StringVar(&kdf, "kdf", "", "passphrase KDF: scrypt or argon2id (PORTSEAL_KDF)")
	return cmd
}
