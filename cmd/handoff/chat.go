package main

import (
	"github.com/aretw0/handoff/internal/presentation/tui"
	"github.com/aretw0/handoff/pkg/runner"
	"github.com/aretw0/handoff/pkg/travel"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newChatCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the travel assistant in the terminal",
		Long: `Starts an interactive chat on one thread. When an assistant wants to run a
sensitive action you are asked to approve it; any answer other than yes is
sent back as the reason for the denial.

Resume an earlier conversation with --thread.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			threadID, _ := cmd.Flags().GetString("thread")
			userID, _ := cmd.Flags().GetString("user")
			headless, _ := cmd.Flags().GetBool("headless")
			jsonMode, _ := cmd.Flags().GetBool("json")

			s, err := a.buildStack(cmd.Context(), engineSetup{})
			if err != nil {
				return err
			}
			defer s.Close()

			if threadID == "" {
				threadID = uuid.NewString()
			}

			in, out := cmd.InOrStdin(), cmd.OutOrStdout()
			var handler runner.IOHandler
			if jsonMode {
				handler = runner.NewJSONHandler(in, out)
			} else {
				var opts []runner.TextHandlerOption
				if runner.IsTerminal(in) {
					tui.PrintBanner(out, "thread "+threadID)
					opts = append(opts, runner.WithTextHandlerRenderer(tui.NewRenderer()))
				}
				handler = runner.NewTextHandler(in, out, opts...)
			}

			r := runner.NewRunner(s.engine,
				runner.WithThreadID(threadID),
				runner.WithUserID(userID),
				runner.WithHeadless(headless),
				runner.WithInputHandler(handler),
				runner.WithLogger(a.logger),
			)
			return r.Run(cmd.Context())
		},
	}

	cmd.Flags().StringP("thread", "t", "", "Thread to open or resume (default: a new thread)")
	cmd.Flags().StringP("user", "u", travel.DemoPassenger, "Passenger ID the assistant acts for")
	cmd.Flags().Bool("headless", false, "Deny every sensitive action instead of asking")
	cmd.Flags().Bool("json", false, "Exchange JSON lines on stdin and stdout")
	return cmd
}
