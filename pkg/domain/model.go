package domain

// ProposeRequest is everything the model capability sees when asked for the next action.
type ProposeRequest struct {
	// Handler is the speaker. Empty means the Dispatcher.
	Handler      HandlerID
	Instructions string
	Tools        []ToolSpec
	State        *State

	// Corrective is set when the previous attempt came back empty.
	Corrective string
}

// ModelResponse is the model's answer: text, proposals, or both.
type ModelResponse struct {
	Text      string
	Proposals []Proposal
}

// Empty reports whether the response carries neither content nor proposals.
func (r *ModelResponse) Empty() bool {
	return r == nil || (r.Text == "" && len(r.Proposals) == 0)
}
