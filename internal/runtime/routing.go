package runtime

import "github.com/aretw0/handoff/pkg/domain"

// RouteDelegation decides where the Dispatcher's proposals lead.
// A delegation is only honored as the first proposal of the batch and
// only when it carries every required argument.
func RouteDelegation(proposals []domain.Proposal, reg *Registry) Node {
	if len(proposals) == 0 {
		return Node{Kind: NodeEnd}
	}
	if id, ok := reg.Delegate(proposals[0].Name); ok {
		spec, _ := reg.Delegation(proposals[0].Name)
		if len(spec.MissingArgs(proposals[0].Args)) == 0 {
			return Node{Kind: NodeEntry, Handler: id, Proposals: proposals}
		}
	}
	return Node{Kind: NodeDispatcherTools, Proposals: proposals}
}

// RouteContinuation picks the node a new user message resumes at.
// It depends only on the delegation stack.
func RouteContinuation(stack domain.DelegationStack, reg *Registry) Node {
	top, ok := stack.Top()
	if !ok {
		return Node{Kind: NodeDispatcherAct}
	}
	if _, known := reg.Handler(top); !known {
		return Node{Kind: NodeDispatcherAct}
	}
	return Node{Kind: NodeAct, Handler: top}
}

// RouteAct applies the batch tie-break for a handler's proposals:
// escalate wins, then any sensitive action makes the whole batch sensitive.
func RouteAct(h domain.HandlerSpec, proposals []domain.Proposal) Node {
	if len(proposals) == 0 {
		return Node{Kind: NodeEnd}
	}
	for _, p := range proposals {
		if p.Name == domain.EscalateToolName {
			return Node{Kind: NodeLeave, Handler: h.ID, Proposals: proposals}
		}
	}
	for _, p := range proposals {
		if h.Classify(p.Name) == domain.RiskSensitive {
			return Node{Kind: NodeSensitiveExecute, Handler: h.ID, Proposals: proposals}
		}
	}
	return Node{Kind: NodeSafeExecute, Handler: h.ID, Proposals: proposals}
}
