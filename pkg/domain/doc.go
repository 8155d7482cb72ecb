/*
Package domain contains the core domain models of the handoff orchestrator.

It defines the entities the conversation state machine operates on: the
message log, the delegation stack, action proposals and their results, and the
thread checkpoint that makes a conversation resumable. This package is kept
pure and free of external dependencies like I/O or persistence, following
Hexagonal Architecture principles.

# Key Entities

  - State: The durable record of one thread (Messages, Context, Stack).
  - DelegationStack: LIFO record of which handler currently speaks for the system.
  - Proposal: A candidate operation suggested by the model, with a name and arguments.
  - Result: The answer to exactly one Proposal, appended to the message log.
  - Checkpoint: A persisted snapshot of State plus the approval gate status.
  - HandlerSpec: The static description of one domain handler and its toolset.
*/
package domain
