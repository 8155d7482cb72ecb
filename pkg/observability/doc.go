/*
Package observability provides tools for monitoring the handoff engine.

It includes lifecycle hooks that write an audit trail of transitions, tool
calls, approvals and delegations to a structured logger, and a Redactor that
masks sensitive tool arguments before they reach any log line.

# Usage

	redactor := observability.MustRedactor(observability.DefaultSensitiveKeys...)
	hooks := domain.MergeHooks(
		observability.LoggingHooks(logger, redactor),
		metrics.Hooks(),
	)
	eng, err := handoff.New(model, dispatcher, handlers, handoff.WithLifecycleHooks(hooks))
*/
package observability
