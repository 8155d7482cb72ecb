package runner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/handoff"
	"github.com/aretw0/handoff/pkg/adapters/scripted"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, steps ...scripted.Step) *handoff.Engine {
	t.Helper()
	hotel := domain.HandlerSpec{
		ID:   "hotel",
		Name: "Hotel Booking Assistant",
		Delegation: domain.ToolSpec{
			Name:   "transfer_to_hotel_assistant",
			Params: []domain.Param{{Name: "request", Type: domain.ParamString, Required: true}},
		},
		Tools: []domain.Tool{{
			ToolSpec: domain.ToolSpec{Name: "book_hotel", Risk: domain.RiskSensitive},
			Run: func(context.Context, domain.ToolCall) (any, error) {
				return "Hotel 1 successfully booked.", nil
			},
		}},
	}
	eng, err := handoff.New(scripted.New(steps, scripted.WithFallback(scripted.Echo)),
		domain.DispatcherSpec{Instructions: "Route travel requests."}, []domain.HandlerSpec{hotel})
	require.NoError(t, err)
	return eng
}

var bookingScript = []scripted.Step{
	scripted.Propose(scripted.Call("d1", "transfer_to_hotel_assistant", map[string]any{"request": "Hilton"})),
	scripted.Propose(scripted.Call("b1", "book_hotel", map[string]any{"hotel_id": 1})),
	scripted.Say("Done."),
}

func run(t *testing.T, eng Engine, input string, opts ...Option) string {
	t.Helper()
	out := &bytes.Buffer{}
	opts = append([]Option{
		WithThreadID("t1"),
		WithUserID("u1"),
		WithSignals(false),
		WithInputHandler(NewTextHandler(strings.NewReader(input), out)),
	}, opts...)
	r := NewRunner(eng, opts...)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Runner timed out")
	}
	return out.String()
}

func lastResult(t *testing.T, eng *handoff.Engine) domain.Result {
	t.Helper()
	cp, err := eng.Inspect(context.Background(), "t1")
	require.NoError(t, err)
	for i := len(cp.State.Messages) - 1; i >= 0; i-- {
		if r := cp.State.Messages[i].Result; r != nil {
			return *r
		}
	}
	t.Fatal("no tool result in thread")
	return domain.Result{}
}

func TestRunner_BasicFlow(t *testing.T) {
	eng := newEngine(t)
	out := run(t, eng, "hello\n\nexit\nnever read\n")

	assert.Contains(t, out, "You said: hello")
	assert.NotContains(t, out, "never read")
}

func TestRunner_StopsAtEOF(t *testing.T) {
	eng := newEngine(t)
	out := run(t, eng, "first\nsecond")

	assert.Contains(t, out, "You said: first")
	assert.Contains(t, out, "You said: second")
}

func TestRunner_Approval(t *testing.T) {
	tests := []struct {
		name       string
		answer     string
		wantDenied bool
		wantReason string
	}{
		{"Yes", "y", false, ""},
		{"Yes Word", "YES", false, ""},
		{"Bare No", "n", true, "''"},
		{"Empty", "", true, "''"},
		{"Reason", "too pricey", true, "'too pricey'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newEngine(t, bookingScript...)
			out := run(t, eng, "book the Hilton\n"+tt.answer+"\n")

			assert.Contains(t, out, "The hotel assistant wants to run:")
			assert.Contains(t, out, `1. book_hotel {"hotel_id":1}`)
			assert.Contains(t, out, "Approve? [y/N]")
			assert.Contains(t, out, "Done.")

			res := lastResult(t, eng)
			assert.Equal(t, tt.wantDenied, res.IsDenied)
			if tt.wantDenied {
				assert.Contains(t, res.Content, tt.wantReason)
			} else {
				assert.Equal(t, "Hotel 1 successfully booked.", res.Content)
			}
		})
	}
}

func TestRunner_HeadlessDenies(t *testing.T) {
	eng := newEngine(t, bookingScript...)
	out := run(t, eng, "book the Hilton\n", WithHeadless(true))

	assert.NotContains(t, out, "Approve?")
	res := lastResult(t, eng)
	assert.True(t, res.IsDenied)
	assert.Contains(t, res.Content, DefaultDenyReason)
}

func TestRunner_ExplicitApprover(t *testing.T) {
	eng := newEngine(t, bookingScript...)
	run(t, eng, "book the Hilton\n", WithHeadless(true), WithApprover(AutoApprove()))

	assert.False(t, lastResult(t, eng).IsDenied)
}

func TestRunner_SettlesPendingThreadFirst(t *testing.T) {
	eng := newEngine(t, bookingScript...)
	res, err := eng.Send(context.Background(), "t1", "u1", "book the Hilton")
	require.NoError(t, err)
	require.True(t, res.Suspended())

	out := run(t, eng, "yes\n")
	assert.Contains(t, out, "Approve? [y/N]")
	assert.Contains(t, out, "Done.")

	cp, err := eng.Inspect(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, cp.Status)
}

func TestRunner_TurnErrorKeepsChatting(t *testing.T) {
	eng := newEngine(t, scripted.Fail(errors.New("model unavailable")))
	out := run(t, eng, "first\nsecond\n")

	assert.Contains(t, out, "[System] Error:")
	assert.Contains(t, out, "model unavailable")
	assert.Contains(t, out, "You said: second")
}

func TestRunner_Interrupted(t *testing.T) {
	eng := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pr := &blockingReader{}
	r := NewRunner(eng, WithThreadID("t1"), WithSignals(false),
		WithInputHandler(NewTextHandler(pr, &bytes.Buffer{})))
	assert.NoError(t, r.Run(ctx))
}

func TestRunner_RequiresThread(t *testing.T) {
	r := NewRunner(newEngine(t), WithSignals(false))
	assert.Error(t, r.Run(context.Background()))
}

// blockingReader never yields a line.
type blockingReader struct{}

func (blockingReader) Read(p []byte) (int, error) {
	select {}
}
