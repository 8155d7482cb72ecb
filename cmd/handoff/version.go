package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/handoff"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of handoff",
		// Skips the configuration load of the root command.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "handoff version %s\n", strings.TrimSpace(handoff.Version))
		},
	}
}
