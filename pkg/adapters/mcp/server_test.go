package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/aretw0/handoff"
	"github.com/aretw0/handoff/pkg/adapters/scripted"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, steps ...scripted.Step) *Server {
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
	return NewServer(eng)
}

// call runs a registered tool the way the MCP transport would.
func call(t *testing.T, s *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	for _, tool := range s.tools() {
		if tool.Tool.Name != name {
			continue
		}
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args
		res, err := tool.Handler(context.Background(), req)
		require.NoError(t, err)
		return res
	}
	t.Fatalf("tool %s not registered", name)
	return nil
}

func TestTools_Registered(t *testing.T) {
	s := newServer(t)
	var names []string
	for _, tool := range s.tools() {
		names = append(names, tool.Tool.Name)
	}
	assert.Equal(t, []string{"send_message", "decide_approval", "get_thread", "list_threads"}, names)
}

func TestSendAndDecide(t *testing.T) {
	s := newServer(t,
		scripted.Propose(scripted.Call("d1", "transfer_to_hotel_assistant", map[string]any{"request": "Hilton"})),
		scripted.Propose(scripted.Call("b1", "book_hotel", nil)),
		scripted.Say("Booked."),
	)

	res := call(t, s, "send_message", map[string]any{"thread_id": "t1", "user_id": "u1", "text": "book the Hilton"})
	require.False(t, res.IsError)
	turn, ok := res.StructuredContent.(domain.TurnResult)
	require.True(t, ok)
	assert.True(t, turn.Suspended())
	require.NotNil(t, turn.Pending)
	assert.Equal(t, "book_hotel", turn.Pending.Proposals[0].Name)

	res = call(t, s, "send_message", map[string]any{"thread_id": "t1", "text": "still there?"})
	assert.True(t, res.IsError, "the gate blocks new messages")

	res = call(t, s, "list_threads", map[string]any{"status": "awaiting_approval"})
	require.False(t, res.IsError)
	list := res.StructuredContent.(ThreadList)
	require.Len(t, list.Threads, 1)
	assert.Equal(t, domain.HandlerID("hotel"), list.Threads[0].Active)

	res = call(t, s, "decide_approval", map[string]any{"thread_id": "t1", "approve": true})
	require.False(t, res.IsError)
	turn = res.StructuredContent.(domain.TurnResult)
	assert.Equal(t, domain.StatusIdle, turn.Status)
	assert.Equal(t, "Booked.", turn.Reply)

	res = call(t, s, "decide_approval", map[string]any{"thread_id": "t1", "approve": false, "reason": "late"})
	assert.True(t, res.IsError, "nothing is pending any more")
}

func TestGetThread(t *testing.T) {
	s := newServer(t)

	res := call(t, s, "get_thread", map[string]any{"thread_id": "missing"})
	assert.True(t, res.IsError)

	call(t, s, "send_message", map[string]any{"thread_id": "t1", "user_id": "u1", "text": "hi"})
	res = call(t, s, "get_thread", map[string]any{"thread_id": "t1"})
	require.False(t, res.IsError)
	cp := res.StructuredContent.(domain.Checkpoint)
	assert.Equal(t, "u1", cp.State.UserID)
	assert.Equal(t, "You said: hi", cp.State.LastReply())
}

func TestSendRejectsBlankInput(t *testing.T) {
	s := newServer(t)

	res := call(t, s, "send_message", map[string]any{"thread_id": "t1", "text": "  "})
	assert.True(t, res.IsError)
}

func TestSendCoercesInvalidUTF8(t *testing.T) {
	s := newServer(t)

	// Argument binding goes through JSON, so invalid bytes arrive as U+FFFD.
	res := call(t, s, "send_message", map[string]any{"thread_id": "t1", "text": "\xff\xfe"})
	require.False(t, res.IsError)

	res = call(t, s, "get_thread", map[string]any{"thread_id": "t1"})
	require.False(t, res.IsError)
	cp := res.StructuredContent.(domain.Checkpoint)
	reply := cp.State.LastReply()
	assert.True(t, strings.HasPrefix(reply, "You said: \uFFFD"), reply)
	assert.True(t, utf8.ValidString(reply))
}

func TestListThreads(t *testing.T) {
	s := newServer(t)
	call(t, s, "send_message", map[string]any{"thread_id": "b", "text": "hi"})
	call(t, s, "send_message", map[string]any{"thread_id": "a", "text": "hi"})

	res := call(t, s, "list_threads", map[string]any{})
	require.False(t, res.IsError)
	list := res.StructuredContent.(ThreadList)
	require.Len(t, list.Threads, 2)
	assert.Equal(t, "a", list.Threads[0].ThreadID)
	assert.Equal(t, domain.StatusIdle, list.Threads[0].Status)

	res = call(t, s, "list_threads", map[string]any{"status": "weird"})
	assert.True(t, res.IsError)
}

func TestHandlersResource(t *testing.T) {
	s := newServer(t)
	data, err := s.handlersJSON()
	require.NoError(t, err)

	var views []handlerView
	require.NoError(t, json.Unmarshal(data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "transfer_to_hotel_assistant", views[0].Delegation)

	var names []string
	for _, tool := range views[0].Tools {
		names = append(names, tool.Name)
	}
	assert.Contains(t, names, "book_hotel")
}
