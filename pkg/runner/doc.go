/*
Package runner implements the interactive chat loop and I/O orchestration for handoff.

It acts as the bridge between the engine and a human at a terminal (or a program
on the other end of a pipe). The runner reads messages, sends them to the engine,
and whenever a turn suspends at the approval gate it asks an Approver for the
decision before resuming.

# Key Components

  - Runner: The read-send-approve loop.
  - IOHandler: Decouples how the runner talks to the user (text, JSON lines).
  - Approver: The policy that decides a suspended batch (prompt, auto-deny).
  - SanitizeInput: Size, UTF-8 and control character checks shared with the HTTP surface.

# Usage

	r := runner.NewRunner(engine,
		runner.WithThreadID("demo"),
		runner.WithUserID(travel.DemoPassenger),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)

	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner
