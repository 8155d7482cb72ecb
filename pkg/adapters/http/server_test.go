package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/handoff"
	"github.com/aretw0/handoff/pkg/adapters/memory"
	"github.com/aretw0/handoff/pkg/adapters/scripted"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hotelDomain() (domain.DispatcherSpec, []domain.HandlerSpec) {
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
	return domain.DispatcherSpec{Instructions: "Route travel requests."}, []domain.HandlerSpec{hotel}
}

type fixture struct {
	handler http.Handler
	streams *StreamManager
}

func newFixture(t *testing.T, steps ...scripted.Step) fixture {
	t.Helper()
	streams := NewStreamManager(nil)
	store := memory.NewStore()
	dispatcher, handlers := hotelDomain()

	eng, err := handoff.New(scripted.New(steps, scripted.WithFallback(scripted.Echo)), dispatcher, handlers,
		handoff.WithStore(middleware.Chain(store, middleware.NewDiffMiddleware(streams.Publish))))
	require.NoError(t, err)

	return fixture{
		handler: NewHandler(eng, WithStreams(streams)),
		streams: streams,
	}
}

func (f fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndInfo(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = f.do(t, "GET", "/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[map[string]string](t, w)
	assert.Equal(t, "handoff-http", info["app"])
	assert.Equal(t, "1.0.0", info["api_version"])
	assert.Equal(t, strings.TrimSpace(handoff.Version), info["version"])

	w = f.do(t, "GET", "/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")
}

func TestGetSwagger(t *testing.T) {
	doc, err := GetSwagger()
	require.NoError(t, err)
	assert.NotNil(t, doc.Paths.Find("/threads/{threadId}/approval"))
}

func TestMessageApprovalFlow(t *testing.T) {
	f := newFixture(t,
		scripted.Propose(scripted.Call("d1", "transfer_to_hotel_assistant", map[string]any{"request": "Hilton"})),
		scripted.Propose(scripted.Call("b1", "book_hotel", nil)),
		scripted.Say("Booked."),
	)

	w := f.do(t, "POST", "/threads/t1/messages", MessageRequest{UserID: "u1", Text: "book the Hilton\x1b[31m"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[domain.TurnResult](t, w)
	assert.True(t, res.Suspended())
	assert.Equal(t, domain.HandlerID("hotel"), res.Active)

	// A new message cannot jump the gate
	w = f.do(t, "POST", "/threads/t1/messages", MessageRequest{UserID: "u1", Text: "hello?"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, "GET", "/threads?status=awaiting_approval", nil)
	require.Equal(t, http.StatusOK, w.Code)
	pending := decode[[]ThreadSummary](t, w)
	require.Len(t, pending, 1)
	assert.Equal(t, "t1", pending[0].ThreadID)

	w = f.do(t, "POST", "/threads/t1/approval", domain.Approve())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res = decode[domain.TurnResult](t, w)
	assert.Equal(t, domain.StatusIdle, res.Status)
	assert.Equal(t, "Booked.", res.Reply)

	w = f.do(t, "POST", "/threads/t1/approval", domain.Approve())
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, "GET", "/threads/t1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cp := decode[domain.Checkpoint](t, w)
	assert.Equal(t, "book the Hilton[31m", cp.State.Messages[0].Content, "control characters are stripped")
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/threads/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "thread not found")

	w = f.do(t, "POST", "/threads/missing/approval", domain.Deny("no"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, "POST", "/threads/t1/messages", MessageRequest{Text: strings.Repeat("a", 5000)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "exceeds maximum")

	req := httptest.NewRequest("POST", "/threads/t1/messages", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	w = f.do(t, "POST", "/threads/t1/messages", MessageRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, "GET", "/threads?status=weird", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// corruptEngine fails every read the way a store with a damaged record does.
type corruptEngine struct {
	Engine
}

func (corruptEngine) Inspect(_ context.Context, threadID string) (*domain.Checkpoint, error) {
	return nil, domain.NewCorruptCheckpointError(threadID, errors.New("unexpected end of JSON input"))
}

func (corruptEngine) Resume(_ context.Context, threadID string, _ domain.Decision) (*domain.TurnResult, error) {
	return nil, domain.NewCorruptCheckpointError(threadID, errors.New("unexpected end of JSON input"))
}

func TestCorruptThread(t *testing.T) {
	h := NewHandler(corruptEngine{})

	req := httptest.NewRequest("GET", "/threads/broken", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	req = httptest.NewRequest("POST", "/threads/broken/approval", strings.NewReader(`{"approve":true}`))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestStartListDelete(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "POST", "/threads", MessageRequest{UserID: "u1", Text: "hi"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[domain.TurnResult](t, w)
	require.NotEmpty(t, res.ThreadID)
	assert.Equal(t, "You said: hi", res.Reply)

	w = f.do(t, "GET", "/threads", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[[]ThreadSummary](t, w)
	require.Len(t, all, 1)
	assert.Equal(t, res.ThreadID, all[0].ThreadID)
	assert.Equal(t, domain.StatusIdle, all[0].Status)

	w = f.do(t, "DELETE", "/threads/"+res.ThreadID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, "GET", "/threads", nil)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "OPTIONS", "/threads/t1/messages", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSubscribeEvents(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/threads/t1/events?watch=status", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		for lines.Scan() {
			if line := lines.Text(); line != "" {
				return line
			}
		}
		return ""
	}
	require.Equal(t, "event: ping", next())
	require.Equal(t, "data: connected", next())
	require.Eventually(t, func() bool { return f.streams.Subscribers("t1") == 1 }, time.Second, 10*time.Millisecond)

	// The first save of a turn carries the status; later saves only append
	w := f.do(t, "POST", "/threads/t1/messages", MessageRequest{UserID: "u1", Text: "hi"})
	require.Equal(t, http.StatusOK, w.Code)

	var diff domain.CheckpointDiff
	line := next()
	require.True(t, strings.HasPrefix(line, "data: "), line)
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &diff))
	assert.Equal(t, "t1", diff.ThreadID)
	require.NotNil(t, diff.Status)
}

func TestMatchesWatch(t *testing.T) {
	status := domain.StatusIdle
	withStatus, _ := json.Marshal(domain.CheckpointDiff{ThreadID: "t1", Status: &status})
	withStack, _ := json.Marshal(domain.CheckpointDiff{ThreadID: "t1", Stack: []domain.HandlerID{}})
	withMessages, _ := json.Marshal(domain.CheckpointDiff{ThreadID: "t1", Appended: []domain.Message{{ID: "m1"}}})

	assert.True(t, matchesWatch(string(withStatus), nil))
	assert.True(t, matchesWatch(string(withStatus), []string{"status"}))
	assert.False(t, matchesWatch(string(withStatus), []string{"stack", "messages"}))
	assert.True(t, matchesWatch(string(withStack), []string{" stack"}), "an emptied stack is a change")
	assert.True(t, matchesWatch(string(withMessages), []string{"messages"}))
	assert.False(t, matchesWatch(string(withMessages), []string{"pending"}))
}
