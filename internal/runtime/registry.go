package runtime

import (
	"fmt"

	"github.com/aretw0/handoff/pkg/domain"
)

// Registry holds the Dispatcher and the domain handlers of one deployment.
// It is immutable after construction.
type Registry struct {
	dispatcher  domain.DispatcherSpec
	handlers    map[domain.HandlerID]domain.HandlerSpec
	order       []domain.HandlerID
	delegations map[string]domain.HandlerID
}

// NewRegistry validates and indexes the handler specs.
// Dispatcher tools never pass the approval gate, so they must all be safe.
func NewRegistry(dispatcher domain.DispatcherSpec, handlers ...domain.HandlerSpec) (*Registry, error) {
	r := &Registry{
		dispatcher:  dispatcher,
		handlers:    make(map[domain.HandlerID]domain.HandlerSpec, len(handlers)),
		delegations: make(map[string]domain.HandlerID, len(handlers)),
	}

	dispatcherTools := make(map[string]bool, len(dispatcher.Tools))
	for _, t := range dispatcher.Tools {
		if dispatcherTools[t.Name] {
			return nil, fmt.Errorf("dispatcher tool %q registered twice", t.Name)
		}
		if t.Run == nil {
			return nil, fmt.Errorf("dispatcher tool %q has no implementation", t.Name)
		}
		if t.Risk == domain.RiskSensitive {
			return nil, fmt.Errorf("dispatcher tool %q is sensitive; only handlers may run sensitive actions", t.Name)
		}
		dispatcherTools[t.Name] = true
	}

	for _, h := range handlers {
		if h.ID == "" {
			return nil, fmt.Errorf("handler %q has no id", h.Name)
		}
		if _, dup := r.handlers[h.ID]; dup {
			return nil, fmt.Errorf("handler %q registered twice", h.ID)
		}
		name := h.Delegation.Name
		if name == "" {
			return nil, fmt.Errorf("handler %q has no delegation tool", h.ID)
		}
		if _, dup := r.delegations[name]; dup || dispatcherTools[name] {
			return nil, fmt.Errorf("delegation tool %q of handler %q clashes with another tool", name, h.ID)
		}

		seen := make(map[string]bool, len(h.Tools))
		for _, t := range h.Tools {
			if t.Name == domain.EscalateToolName {
				return nil, fmt.Errorf("handler %q redefines %s", h.ID, domain.EscalateToolName)
			}
			if seen[t.Name] {
				return nil, fmt.Errorf("handler %q registers tool %q twice", h.ID, t.Name)
			}
			if t.Run == nil {
				return nil, fmt.Errorf("tool %q of handler %q has no implementation", t.Name, h.ID)
			}
			seen[t.Name] = true
		}

		r.handlers[h.ID] = h
		r.order = append(r.order, h.ID)
		r.delegations[name] = h.ID
	}
	return r, nil
}

// Dispatcher returns the top-level handler spec.
func (r *Registry) Dispatcher() domain.DispatcherSpec {
	return r.dispatcher
}

// Handler returns the spec registered under id.
func (r *Registry) Handler(id domain.HandlerID) (domain.HandlerSpec, bool) {
	h, ok := r.handlers[id]
	return h, ok
}

// Handlers returns all handler specs in registration order.
func (r *Registry) Handlers() []domain.HandlerSpec {
	out := make([]domain.HandlerSpec, len(r.order))
	for i, id := range r.order {
		out[i] = r.handlers[id]
	}
	return out
}

// Delegate resolves a delegation tool name to its handler.
func (r *Registry) Delegate(toolName string) (domain.HandlerID, bool) {
	id, ok := r.delegations[toolName]
	return id, ok
}

// Delegation returns the delegation tool spec named toolName.
func (r *Registry) Delegation(toolName string) (domain.ToolSpec, bool) {
	id, ok := r.delegations[toolName]
	if !ok {
		return domain.ToolSpec{}, false
	}
	return r.handlers[id].Delegation, true
}

// DispatcherTools is the toolset offered to the model at Dispatcher level:
// the Dispatcher's own tools followed by one delegation tool per handler.
func (r *Registry) DispatcherTools() []domain.ToolSpec {
	specs := domain.Specs(r.dispatcher.Tools)
	for _, id := range r.order {
		specs = append(specs, r.handlers[id].Delegation)
	}
	return specs
}

// HandlerTools is the toolset offered to the model when h is active.
func HandlerTools(h domain.HandlerSpec) []domain.ToolSpec {
	return append(domain.Specs(h.Tools), domain.EscalateSpec())
}
