package main

import (
	"fmt"
	"io"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/spf13/cobra"
)

func newApprovalsCmd(a *app) *cobra.Command {
	approvalsCmd := &cobra.Command{
		Use:   "approvals",
		Short: "List and settle actions waiting for approval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.buildStack(cmd.Context(), engineSetup{})
			if err != nil {
				return err
			}
			defer s.Close()

			pending, err := s.engine.Pending(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "No actions are waiting for approval.")
				return nil
			}
			for _, cp := range pending {
				printPending(out, cp)
			}
			return nil
		},
	}

	approveCmd := &cobra.Command{
		Use:   "approve <thread-id>",
		Short: "Approve the pending actions of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.decide(cmd, args[0], domain.Approve())
		},
	}

	denyCmd := &cobra.Command{
		Use:   "deny <thread-id>",
		Short: "Deny the pending actions of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			return a.decide(cmd, args[0], domain.Deny(reason))
		},
	}
	denyCmd.Flags().String("reason", "", "Reason passed back to the assistant")

	approvalsCmd.AddCommand(approveCmd, denyCmd)
	return approvalsCmd
}

func (a *app) decide(cmd *cobra.Command, threadID string, decision domain.Decision) error {
	s, err := a.buildStack(cmd.Context(), engineSetup{})
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.engine.Resume(cmd.Context(), threadID, decision)
	if err != nil {
		return fmt.Errorf("error settling thread '%s': %w", threadID, err)
	}
	out := cmd.OutOrStdout()
	if res.Reply != "" {
		fmt.Fprintln(out, res.Reply)
	}
	if res.Pending != nil {
		fmt.Fprintln(out, "The thread is waiting for approval again:")
		printProposals(out, res.Pending)
	}
	return nil
}

func printPending(w io.Writer, cp *domain.Checkpoint) {
	if cp.State != nil && cp.State.UserID != "" {
		fmt.Fprintf(w, "%s (user %s)\n", cp.ThreadID, cp.State.UserID)
	} else {
		fmt.Fprintln(w, cp.ThreadID)
	}
	if cp.Pending != nil {
		printProposals(w, cp.Pending)
	}
}

func printProposals(w io.Writer, batch *domain.PendingBatch) {
	handler := string(batch.Handler)
	if handler == "" {
		handler = "main"
	}
	fmt.Fprintf(w, "  %s assistant:\n", handler)
	for _, p := range batch.Proposals {
		fmt.Fprintf(w, "    - %s %v\n", p.Name, p.Args)
	}
}
