package domain

import "context"

// RiskClass determines whether an action needs human approval before it runs.
type RiskClass string

const (
	RiskSafe      RiskClass = "safe"      // Executes immediately
	RiskSensitive RiskClass = "sensitive" // Suspends at the approval gate
)

// ParamType is the JSON type of a tool parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
)

// Param describes one argument of a tool.
type Param struct {
	Name        string    `json:"name" yaml:"name"`
	Type        ParamType `json:"type" yaml:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
}

// ToolSpec defines metadata about a tool available to a handler.
// This is used for generating model schemas and for risk classification.
type ToolSpec struct {
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Params      []Param   `json:"params,omitempty" yaml:"params,omitempty"`
	Risk        RiskClass `json:"risk" yaml:"risk"`
}

// MissingArgs lists required parameters absent from args.
func (t ToolSpec) MissingArgs(args map[string]any) []string {
	var missing []string
	for _, p := range t.Params {
		if !p.Required {
			continue
		}
		if v, ok := args[p.Name]; !ok || v == nil {
			missing = append(missing, p.Name)
		}
	}
	return missing
}

// ToolCall is the input of a domain operation.
type ToolCall struct {
	ThreadID string
	UserID   string
	Handler  HandlerID
	Proposal Proposal
}

// ToolFunc performs a domain operation. A returned error is folded back into the
// conversation as an error result; it never aborts the turn.
type ToolFunc func(ctx context.Context, call ToolCall) (any, error)

// Tool binds a ToolSpec to its implementation.
type Tool struct {
	ToolSpec
	Run ToolFunc `json:"-" yaml:"-"`
}

// Specs returns the metadata of tools, in order.
func Specs(tools []Tool) []ToolSpec {
	out := make([]ToolSpec, len(tools))
	for i, t := range tools {
		out[i] = t.ToolSpec
	}
	return out
}
