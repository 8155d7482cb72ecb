package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/ports"
	"github.com/spf13/cobra"
)

func newSessionCmd(a *app) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage persisted threads",
		Long:  `List, inspect, and remove the threads held by the configured checkpoint store.`,
	}

	sessionLsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List all threads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store ports.CheckpointStore) error {
				ids, err := store.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("error listing threads: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(ids) == 0 {
					fmt.Fprintln(out, "No threads found.")
					return nil
				}
				fmt.Fprintln(out, "Threads:")
				for _, id := range ids {
					fmt.Fprintln(out, "- "+id)
				}
				return nil
			})
		},
	}

	sessionInspectCmd := &cobra.Command{
		Use:   "inspect <thread-id>",
		Short: "Print the checkpoint of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store ports.CheckpointStore) error {
				cp, err := store.Load(cmd.Context(), args[0])
				switch {
				case errors.Is(err, domain.ErrThreadNotFound):
					return fmt.Errorf("thread '%s' does not exist: %w", args[0], err)
				case errors.Is(err, domain.ErrCheckpointCorrupt):
					return fmt.Errorf("thread '%s' exists but its checkpoint is unreadable: %w", args[0], err)
				case err != nil:
					return fmt.Errorf("error loading thread '%s': %w", args[0], err)
				}
				data, err := json.MarshalIndent(cp, "", "  ")
				if err != nil {
					return fmt.Errorf("error marshaling checkpoint: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			})
		},
	}

	sessionRmCmd := &cobra.Command{
		Use:   "rm <thread-id>...",
		Short: "Remove one or more threads",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store ports.CheckpointStore) error {
				var errs []error
				for _, id := range args {
					if err := store.Delete(cmd.Context(), id); err != nil {
						errs = append(errs, fmt.Errorf("error removing '%s': %w", id, err))
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed thread '%s'\n", id)
				}
				return errors.Join(errs...)
			})
		},
	}

	sessionCmd.AddCommand(sessionLsCmd, sessionInspectCmd, sessionRmCmd)
	return sessionCmd
}

// withStore opens the configured store for the duration of fn.
func (a *app) withStore(fn func(ports.CheckpointStore) error) error {
	s := &stack{}
	defer s.Close()
	store, _, err := a.openStore(s, nil)
	if err != nil {
		return err
	}
	return fn(store)
}
