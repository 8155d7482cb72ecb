package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/handoff/pkg/domain"
)

// executeBatch runs every proposal of a handler batch in order.
// Unknown names yield an error result and never reach a domain operation.
func (e *Engine) executeBatch(ctx context.Context, cp *domain.Checkpoint, h domain.HandlerSpec, proposals []domain.Proposal) {
	for _, p := range proposals {
		tool, ok := h.Lookup(p.Name)
		if !ok {
			e.appendResult(cp, h.ID, errorResult(p, fmt.Errorf("unknown tool %q for the %s", p.Name, h.Name)))
			continue
		}
		e.appendResult(cp, h.ID, e.execute(ctx, cp, h.ID, tool, p))
	}
}

// execute runs one tool and folds any failure into the result.
func (e *Engine) execute(ctx context.Context, cp *domain.Checkpoint, handler domain.HandlerID, tool domain.Tool, p domain.Proposal) domain.Result {
	if missing := tool.MissingArgs(p.Args); len(missing) > 0 {
		return errorResult(p, missingArgsError(missing))
	}

	if e.hooks.OnToolCall != nil {
		e.hooks.OnToolCall(ctx, &domain.ToolEvent{
			EventBase: e.event(domain.EventToolCall, cp.ThreadID),
			Handler:   handler,
			ToolName:  tool.Name,
			Risk:      tool.Risk,
			Input:     p.Args,
		})
	}

	start := e.now()
	out, err := runTool(ctx, tool, domain.ToolCall{
		ThreadID: cp.ThreadID,
		UserID:   cp.State.UserID,
		Handler:  handler,
		Proposal: p.Clone(),
	})

	var res domain.Result
	if err != nil {
		e.logger.Warn("Tool failed", "thread_id", cp.ThreadID, "tool", tool.Name, "err", err)
		res = errorResult(p, err)
	} else {
		res = domain.Result{ProposalID: p.ID, Name: p.Name, Content: out}
	}

	if e.hooks.OnToolReturn != nil {
		e.hooks.OnToolReturn(ctx, &domain.ToolEvent{
			EventBase: e.event(domain.EventToolReturn, cp.ThreadID),
			Handler:   handler,
			ToolName:  tool.Name,
			Risk:      tool.Risk,
			Output:    res.Content,
			IsError:   res.IsError,
			Duration:  e.now().Sub(start),
		})
	}
	return res
}

// runTool invokes the tool, converting panics into errors.
func runTool(ctx context.Context, tool domain.Tool, call domain.ToolCall) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", tool.Name, r)
		}
	}()

	out, err := tool.Run(ctx, call)
	if err != nil {
		return "", err
	}
	return formatOutput(out)
}

func formatOutput(out any) (string, error) {
	switch v := out.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool output: %w", err)
	}
	return string(data), nil
}

func errorResult(p domain.Proposal, err error) domain.Result {
	return domain.Result{
		ProposalID: p.ID,
		Name:       p.Name,
		Content:    toolErrorMessage(err),
		IsError:    true,
	}
}
