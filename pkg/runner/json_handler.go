package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/handoff/pkg/domain"
)

// JSONEvent is one line written by the JSONHandler.
type JSONEvent struct {
	Type    string               `json:"type"` // reply, approval or system
	Result  *domain.TurnResult   `json:"result,omitempty"`
	Pending *domain.PendingBatch `json:"pending,omitempty"`
	Message string               `json:"message,omitempty"`
}

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
type JSONHandler struct {
	Reader  *bufio.Reader
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) line() (string, error) {
	text, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Input accepts a JSON string, an object with a "text" field, or raw text.
func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	text, err := h.line()
	if err != nil {
		return "", err
	}

	var val string
	if err := json.Unmarshal([]byte(text), &val); err == nil {
		text = val
	} else {
		var msg struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(text), &msg); err == nil {
			text = msg.Text
		}
	}
	return SanitizeInput(text)
}

func (h *JSONHandler) Reply(ctx context.Context, res *domain.TurnResult) error {
	return h.Encoder.Encode(JSONEvent{Type: "reply", Result: res})
}

// Approve emits the batch and reads a decision object such as
// {"approve": false, "reason": "too expensive"}.
func (h *JSONHandler) Approve(ctx context.Context, batch *domain.PendingBatch) (domain.Decision, error) {
	if err := h.Encoder.Encode(JSONEvent{Type: "approval", Pending: batch}); err != nil {
		return domain.Decision{}, err
	}
	text, err := h.line()
	if err != nil {
		return domain.Decision{}, err
	}
	var d domain.Decision
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return domain.Decision{}, fmt.Errorf("failed to decode decision: %w", err)
	}
	if d.Reason, err = SanitizeInput(d.Reason); err != nil {
		return domain.Decision{}, err
	}
	return d, nil
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(JSONEvent{Type: "system", Message: msg})
}
