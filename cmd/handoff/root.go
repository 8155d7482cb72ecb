package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/handoff/internal/config"
	"github.com/aretw0/handoff/internal/logging"
	"github.com/spf13/cobra"
)

// app carries what every command needs once the configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "handoff",
		Short: "handoff routes a conversation between specialist assistants",
		Long: `handoff runs a primary assistant that delegates to specialist assistants
(flights, hotels, cars, excursions). Sensitive actions wait for a human to
approve them, and every thread is checkpointed so it survives restarts.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			level, _ := logging.ParseLevel(cfg.Log.Level)
			a.cfg = cfg
			a.logger = logging.NewWriter(cmd.ErrOrStderr(), level, cfg.Log.Format)
			slog.SetDefault(a.logger)
			return nil
		},
	}

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "YAML configuration file (HANDOFF_* variables override it)")

	rootCmd.AddCommand(
		newServeCmd(a),
		newChatCmd(a),
		newMCPCmd(a),
		newSessionCmd(a),
		newApprovalsCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
