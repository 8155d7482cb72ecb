package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/handoff/pkg/domain"
	"golang.org/x/term"
)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer

	interactive bool

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader:      bufio.NewReader(r),
		Writer:      w,
		interactive: IsTerminal(r),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// IsTerminal reports whether r is an interactive terminal.
func IsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can honor cancellation.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err == io.EOF {
				close(h.inputChan)
				return
			}
			h.inputChan <- inputResult{err: err}
			close(h.inputChan)
			return
		}
	}
}

// readLine prints prompt and waits for a line or cancellation.
func (h *TextHandler) readLine(ctx context.Context, prompt string) (string, error) {
	h.initPump()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		fmt.Fprint(h.Writer, prompt)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-h.inputChan:
		if !ok {
			return "", io.EOF
		}
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimSpace(res.text), nil
	}
}

func (h *TextHandler) Input(ctx context.Context) (string, error) {
	for {
		text, err := h.readLine(ctx, "> ")
		if err != nil {
			return "", err
		}
		clean, err := SanitizeInput(text)
		if err != nil {
			fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
			continue
		}
		return clean, nil
	}
}

func (h *TextHandler) Reply(ctx context.Context, res *domain.TurnResult) error {
	if res.Reply == "" {
		return nil
	}
	output := res.Reply
	if h.Renderer != nil {
		if rendered, err := h.Renderer(output); err == nil {
			output = rendered
		}
	}
	_, err := fmt.Fprintln(h.Writer, strings.TrimSpace(output))
	return err
}

// Approve lists the batch and asks once. "y" or "yes" approves; a bare
// "n", "no" or empty answer denies; anything else is the denial reason.
func (h *TextHandler) Approve(ctx context.Context, batch *domain.PendingBatch) (domain.Decision, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "The %s assistant wants to run:\n", handlerLabel(batch.Handler))
	for i, p := range batch.Proposals {
		fmt.Fprintf(&b, "  %d. %s %s\n", i+1, p.Name, formatArgs(p.Args))
	}
	if err := h.SystemOutput(ctx, strings.TrimRight(b.String(), "\n")); err != nil {
		return domain.Decision{}, err
	}

	answer, err := h.readLine(ctx, "Approve? [y/N] ")
	if err != nil {
		return domain.Decision{}, err
	}
	answer, err = SanitizeInput(answer)
	if err != nil {
		return domain.Decision{}, err
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return domain.Approve(), nil
	case "", "n", "no":
		return domain.Deny(""), nil
	default:
		return domain.Deny(answer), nil
	}
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "\n[System] %s\n", msg)
	return err
}

func handlerLabel(id domain.HandlerID) string {
	if id == "" {
		return "main"
	}
	return string(id)
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(data)
}
