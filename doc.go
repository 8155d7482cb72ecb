/*
Package handoff is a multi-handler conversation orchestrator.

A Dispatcher answers general questions and delegates to specialized handlers
(flights, hotels, car rentals, excursions). The active handler is tracked on a
delegation stack. Every action the language model proposes is classified as safe
or sensitive: safe actions run immediately, sensitive ones suspend the thread at
an approval gate until a human approves or denies them.

# Concept

The core is a deterministic state machine. The model only proposes; the engine
decides who speaks, what runs and when to stop. Every transition is saved as a
versioned checkpoint so a suspended thread resumes exactly where it stopped, in
this process or another one.

# Key Features

  - Delegation Stack: handlers are entered by delegation and left by escalation.
  - Approval Gate: sensitive batches wait for an explicit Decision. Sensitivity is sticky per batch.
  - Durable Threads: memory, file, SQLite and Redis checkpoint stores, with optional AES-GCM encryption.
  - Tool Fallback: tool errors and panics are folded back into the conversation.

# Usage

	svc := travel.NewService(db, policies)
	eng, err := handoff.New(model, svc.Dispatcher(), svc.Handlers(),
		handoff.WithStore(store),
		handoff.WithContextFetcher(svc),
	)
	if err != nil {
		log.Fatal(err)
	}

	res, err := eng.Send(ctx, "thread-1", "3442 587242", "I need to move my flight")
	if err != nil {
		log.Fatal(err)
	}
	if res.Suspended() {
		res, err = eng.Deny(ctx, res.ThreadID, "too expensive")
	}
	fmt.Println(res.Reply)

The cmd/handoff binary wires the same engine behind an HTTP API, an MCP server,
a terminal chat and a Kafka approval channel.
*/
package handoff
