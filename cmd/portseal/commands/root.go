package commands

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"portseal/internal/app"
)

var (
	cfg        app.Config
	passphrase string
	appCtx     *app.Wire
)

var errNoPassphrase = errors.New("passphrase required (-p or PORTSEAL_PASSPHRASE)")

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	env := app.LoadConfig()
	cfg = env

	root := &cobra.Command{
		Use:          "portseal",
		Short:        "End-to-end encrypted workflow inputs over X3DH and the Double Ratchet",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				passphrase = os.Getenv("PORTSEAL_PASSPHRASE")
			}
			if !needsKeystore(cmd) {
				return nil
			}
			if passphrase == "" {
				return errNoPassphrase
			}
			w, err := app.Open(cfg, passphrase)
			if err != nil {
				return err
			}
			appCtx = w
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if appCtx != nil {
				appCtx.Close()
				appCtx = nil
			}
		},
	}

	root.PersistentFlags().StringVar(&cfg.Home, "home", env.Home, "keystore dir (PORTSEAL_HOME)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the keystore")
	root.PersistentFlags().StringVar(&cfg.RegistryURL, "registry", env.RegistryURL, "registry base URL or database DSN (PORTSEAL_REGISTRY)")
	root.PersistentFlags().StringVar(&cfg.Principal, "principal", env.Principal, "our name in the registry (PORTSEAL_PRINCIPAL)")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", env.LogLevel, "debug, info, warn or error (PORTSEAL_LOG_LEVEL)")

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		publishCmd(),
		startSessionCmd(),
		acceptCmd(),
		sessionsCmd(),
		encryptCmd(),
		decryptCmd(),
	)
	return root
}

// needsKeystore is false for commands that open (or create) the keystore
// themselves, and for cobra's built-ins.
func needsKeystore(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "init", "help", "completion", "__complete":
		return false
	}
	return cmd.Runnable()
}
