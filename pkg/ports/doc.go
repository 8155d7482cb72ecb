/*
Package ports defines the driven ports (interfaces) of the handoff orchestrator.

These interfaces decouple the conversation state machine from external
implementations, allowing the engine to work with various model providers,
checkpoint backends, context sources, and approval channels.

# Key Interfaces

  - Model: Proposes the next action for the active handler.
  - CheckpointStore: Persists and loads thread Checkpoints.
  - DistributedLocker: Provides distributed locking for concurrent thread access.
  - ContextFetcher: Loads the user/account context once at thread start.
  - ApprovalNotifier: Announces batches suspended at the approval gate.
*/
package ports
