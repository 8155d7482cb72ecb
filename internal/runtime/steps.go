package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/handoff/pkg/domain"
)

// dispatcherAct asks the model for the Dispatcher's next move.
func (e *Engine) dispatcherAct(ctx context.Context, cp *domain.Checkpoint, _ Node) (Node, error) {
	d := e.registry.Dispatcher()
	resp, err := e.propose(ctx, cp, domain.ProposeRequest{
		Instructions: d.Instructions,
		Tools:        e.registry.DispatcherTools(),
	})
	if err != nil {
		return Node{}, err
	}
	proposals := e.appendAssistant(cp, "", resp)
	return RouteDelegation(proposals, e.registry), nil
}

// dispatcherTools runs the Dispatcher's safe, non-mutating tools.
func (e *Engine) dispatcherTools(ctx context.Context, cp *domain.Checkpoint, node Node) (Node, error) {
	d := e.registry.Dispatcher()
	for _, p := range node.Proposals {
		tool, ok := d.Lookup(p.Name)
		if !ok {
			err := fmt.Errorf("unknown tool %q", p.Name)
			if spec, isDelegation := e.registry.Delegation(p.Name); isDelegation {
				err = fmt.Errorf("%s must be proposed on its own, before any other tool", p.Name)
				if missing := spec.MissingArgs(p.Args); len(missing) > 0 {
					err = missingArgsError(missing)
				}
			}
			e.appendResult(cp, "", errorResult(p, err))
			continue
		}
		e.appendResult(cp, "", e.execute(ctx, cp, "", tool, p))
	}
	return Node{Kind: NodeDispatcherAct}, nil
}

// entry pushes the handler and answers the delegation proposal with its brief.
func (e *Engine) entry(ctx context.Context, cp *domain.Checkpoint, node Node) (Node, error) {
	h, ok := e.registry.Handler(node.Handler)
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", domain.ErrUnknownHandler, node.Handler)
	}

	cp.State.Stack.Push(h.ID)
	delegation := node.Proposals[0]
	e.appendResult(cp, h.ID, domain.Result{
		ProposalID: delegation.ID,
		Name:       delegation.Name,
		Content:    entryMessage(h),
	})
	for _, p := range node.Proposals[1:] {
		e.appendResult(cp, h.ID, domain.Result{
			ProposalID: p.ID,
			Name:       p.Name,
			Content:    notExecutedMessage(p.Name, "Control was delegated to the "+h.Name+"."),
			IsError:    true,
		})
	}

	reason, _ := delegation.Args["request"].(string)
	e.logger.Info("Delegated", "thread_id", cp.ThreadID, "handler", h.ID, "depth", cp.State.Stack.Depth())
	if e.hooks.OnDelegate != nil {
		e.hooks.OnDelegate(ctx, &domain.DelegationEvent{
			EventBase: e.event(domain.EventDelegate, cp.ThreadID),
			Handler:   h.ID,
			Depth:     cp.State.Stack.Depth(),
			Reason:    reason,
		})
	}
	return Node{Kind: NodeAct, Handler: h.ID}, nil
}

// act asks the model for the active handler's next move.
func (e *Engine) act(ctx context.Context, cp *domain.Checkpoint, node Node) (Node, error) {
	h, ok := e.registry.Handler(node.Handler)
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", domain.ErrUnknownHandler, node.Handler)
	}
	resp, err := e.propose(ctx, cp, domain.ProposeRequest{
		Handler:      h.ID,
		Instructions: h.Instructions,
		Tools:        HandlerTools(h),
	})
	if err != nil {
		return Node{}, err
	}
	proposals := e.appendAssistant(cp, h.ID, resp)
	return RouteAct(h, proposals), nil
}

// safeExecute runs a batch with no sensitive action and loops back to Act.
func (e *Engine) safeExecute(ctx context.Context, cp *domain.Checkpoint, node Node) (Node, error) {
	h, ok := e.registry.Handler(node.Handler)
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", domain.ErrUnknownHandler, node.Handler)
	}
	e.executeBatch(ctx, cp, h, node.Proposals)
	return Node{Kind: NodeAct, Handler: h.ID}, nil
}

// sensitiveExecute is the approval gate. Without a decision it suspends the
// thread; with one it executes or denies the whole batch.
func (e *Engine) sensitiveExecute(ctx context.Context, cp *domain.Checkpoint, node Node) (Node, error) {
	h, ok := e.registry.Handler(node.Handler)
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", domain.ErrUnknownHandler, node.Handler)
	}

	if node.decision == nil {
		last, _ := cp.State.Last()
		cp.Status = domain.StatusAwaitingApproval
		cp.Pending = &domain.PendingBatch{
			Handler:     h.ID,
			MessageID:   last.ID,
			Proposals:   node.Proposals,
			RequestedAt: e.now(),
		}
		return Node{Kind: NodeSensitiveExecute, Handler: h.ID, Proposals: node.Proposals}, nil
	}

	if node.decision.Approved {
		e.executeBatch(ctx, cp, h, node.Proposals)
	} else {
		for _, p := range node.Proposals {
			e.appendResult(cp, h.ID, domain.Result{
				ProposalID: p.ID,
				Name:       p.Name,
				Content:    denialMessage(node.decision.Reason),
				IsDenied:   true,
			})
		}
	}
	return Node{Kind: NodeAct, Handler: h.ID}, nil
}

// leave pops the stack and hands control back to the Dispatcher.
func (e *Engine) leave(ctx context.Context, cp *domain.Checkpoint, node Node) (Node, error) {
	popped, err := cp.State.Stack.Pop()
	if err != nil {
		return Node{}, err
	}

	var reason string
	for _, p := range node.Proposals {
		if p.Name == domain.EscalateToolName {
			if r, ok := p.Args["reason"].(string); ok && reason == "" {
				reason = r
			}
			e.appendResult(cp, popped, domain.Result{
				ProposalID: p.ID,
				Name:       p.Name,
				Content:    LeaveMessage,
			})
			continue
		}
		e.appendResult(cp, popped, domain.Result{
			ProposalID: p.ID,
			Name:       p.Name,
			Content:    notExecutedMessage(p.Name, "Control was returned to the primary assistant."),
			IsError:    true,
		})
	}

	e.logger.Info("Escalated", "thread_id", cp.ThreadID, "handler", popped, "depth", cp.State.Stack.Depth())
	if e.hooks.OnEscalate != nil {
		e.hooks.OnEscalate(ctx, &domain.DelegationEvent{
			EventBase: e.event(domain.EventEscalate, cp.ThreadID),
			Handler:   popped,
			Depth:     cp.State.Stack.Depth(),
			Reason:    reason,
		})
	}
	return Node{Kind: NodeDispatcherAct}, nil
}

// propose calls the model, re-invoking it with a corrective instruction while it
// returns neither text nor proposals.
func (e *Engine) propose(ctx context.Context, cp *domain.Checkpoint, req domain.ProposeRequest) (*domain.ModelResponse, error) {
	req.State = cp.State.Snapshot()
	for attempt := 0; ; attempt++ {
		resp, err := e.model.Propose(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("model failed: %w", err)
		}
		if !resp.Empty() {
			return resp, nil
		}
		if attempt >= e.maxEmptyRetries {
			return nil, domain.ErrEmptyResponse
		}
		e.logger.Debug("Empty model response, retrying", "thread_id", cp.ThreadID, "attempt", attempt+1)
		req.Corrective = CorrectiveInstruction
	}
}

// appendAssistant records the model's answer and returns its proposals with
// IDs that are unique within the thread.
func (e *Engine) appendAssistant(cp *domain.Checkpoint, handler domain.HandlerID, resp *domain.ModelResponse) []domain.Proposal {
	seen := make(map[string]bool)
	for _, m := range cp.State.Messages {
		for _, p := range m.Proposals {
			seen[p.ID] = true
		}
	}

	var proposals []domain.Proposal
	for _, p := range resp.Proposals {
		p = p.Clone()
		if p.ID == "" || seen[p.ID] {
			p.ID = e.newID()
		}
		if p.Args == nil {
			p.Args = map[string]any{}
		}
		seen[p.ID] = true
		proposals = append(proposals, p)
	}

	cp.State.Append(domain.Message{
		ID:        e.newID(),
		Role:      domain.RoleAssistant,
		Content:   resp.Text,
		Handler:   handler,
		Proposals: proposals,
		CreatedAt: e.now(),
	})
	return proposals
}
