package domain

// EscalateToolName is the action every handler can propose to hand control back
// to the Dispatcher.
const EscalateToolName = "complete_or_escalate"

// EscalateSpec describes the escalate action offered to every handler.
func EscalateSpec() ToolSpec {
	return ToolSpec{
		Name: EscalateToolName,
		Description: "Mark the current task as completed and/or escalate control of the dialog " +
			"to the main assistant, who can re-route the dialog based on the user's needs.",
		Params: []Param{
			{Name: "cancel", Type: ParamBoolean, Description: "True when the task was abandoned instead of completed."},
			{Name: "reason", Type: ParamString, Description: "The reason for completing or escalating the dialog.", Required: true},
		},
		Risk: RiskSafe,
	}
}

// HandlerSpec is the static description of one domain handler.
type HandlerSpec struct {
	ID HandlerID

	// Name is the human readable role, e.g. "Flight Updates & Booking Assistant".
	Name string

	// Instructions are given to the model whenever this handler acts.
	Instructions string

	// Delegation is the tool the Dispatcher proposes to hand work to this handler.
	// It must carry a "request" parameter briefing the handler.
	Delegation ToolSpec

	Tools []Tool
}

// Lookup finds a tool by name in the handler's toolset.
func (h HandlerSpec) Lookup(name string) (Tool, bool) {
	return lookup(h.Tools, name)
}

// Classify returns the risk class of an action for this handler.
// Unknown actions classify as safe: executing them only yields an error result.
func (h HandlerSpec) Classify(name string) RiskClass {
	if t, ok := h.Lookup(name); ok && t.Risk == RiskSensitive {
		return RiskSensitive
	}
	return RiskSafe
}

// DispatcherSpec is the static description of the top-level handler.
type DispatcherSpec struct {
	Instructions string
	Tools        []Tool
}

// Lookup finds a tool by name in the Dispatcher's toolset.
func (d DispatcherSpec) Lookup(name string) (Tool, bool) {
	return lookup(d.Tools, name)
}

func lookup(tools []Tool, name string) (Tool, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
