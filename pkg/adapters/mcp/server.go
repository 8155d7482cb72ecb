package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/handoff"
	"github.com/aretw0/handoff/internal/logging"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// HandlersURI is the resource describing the registered handlers.
const HandlersURI = "handoff://handlers"

// Engine defines the interface required by the MCP server to interact with handoff.
type Engine interface {
	Send(ctx context.Context, threadID, userID, text string) (*domain.TurnResult, error)
	Resume(ctx context.Context, threadID string, decision domain.Decision) (*domain.TurnResult, error)
	Inspect(ctx context.Context, threadID string) (*domain.Checkpoint, error)
	List(ctx context.Context) ([]string, error)
	Pending(ctx context.Context) ([]*domain.Checkpoint, error)
	Handlers() []domain.HandlerSpec
}

var _ Engine = (*handoff.Engine)(nil)

// SendArgs are the arguments of send_message.
type SendArgs struct {
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`
	Text     string `json:"text"`
}

// DecisionArgs are the arguments of decide_approval.
type DecisionArgs struct {
	ThreadID string `json:"thread_id"`
	Approve  bool   `json:"approve"`
	Reason   string `json:"reason"`
}

// ThreadArgs are the arguments of get_thread.
type ThreadArgs struct {
	ThreadID string `json:"thread_id"`
}

// ListArgs are the arguments of list_threads.
type ListArgs struct {
	Status string `json:"status"`
}

// ThreadSummary is one entry of list_threads.
type ThreadSummary struct {
	ThreadID string           `json:"thread_id" jsonschema_description:"The thread ID"`
	Status   domain.Status    `json:"status" jsonschema_description:"idle, running or awaiting_approval"`
	Active   domain.HandlerID `json:"active,omitempty" jsonschema_description:"The handler on top of the delegation stack"`
	Version  int64            `json:"version"`
}

// ThreadList is the result of list_threads.
type ThreadList struct {
	Threads []ThreadSummary `json:"threads"`
}

// Server wraps the handoff Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("handoff-mcp", strings.TrimSpace(handoff.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer.AddTools(s.tools()...)
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://" + addr
	if strings.HasPrefix(addr, ":") {
		baseURL = "http://localhost" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("send_message",
				mcp.WithDescription("Send a user message to a conversation thread. Returns the reply, or the pending batch when the turn stops for approval."),
				mcp.WithString("text", mcp.Required(), mcp.Description("The user message")),
				mcp.WithString("thread_id", mcp.Description("Thread to continue. Omit to start a new thread.")),
				mcp.WithString("user_id", mcp.Description("The signed-in user (used when the thread starts)")),
				mcp.WithOutputSchema[domain.TurnResult](),
			),
			Handler: mcp.NewStructuredToolHandler(s.handleSend),
		},
		{
			Tool: mcp.NewTool("decide_approval",
				mcp.WithDescription("Approve or deny the actions a thread is waiting on."),
				mcp.WithString("thread_id", mcp.Required(), mcp.Description("The suspended thread")),
				mcp.WithBoolean("approve", mcp.Required(), mcp.Description("True to run the pending actions")),
				mcp.WithString("reason", mcp.Description("Why the actions were denied, passed on to the assistant")),
				mcp.WithOutputSchema[domain.TurnResult](),
			),
			Handler: mcp.NewStructuredToolHandler(s.handleDecision),
		},
		{
			Tool: mcp.NewTool("get_thread",
				mcp.WithDescription("Get the stored checkpoint of a thread: messages, delegation stack and pending batch."),
				mcp.WithString("thread_id", mcp.Required(), mcp.Description("The thread ID")),
			),
			Handler: mcp.NewStructuredToolHandler(s.handleGetThread),
		},
		{
			Tool: mcp.NewTool("list_threads",
				mcp.WithDescription("List stored threads, optionally only those awaiting approval."),
				mcp.WithString("status", mcp.Description("Filter by status"), mcp.Enum(string(domain.StatusAwaitingApproval))),
				mcp.WithOutputSchema[ThreadList](),
			),
			Handler: mcp.NewStructuredToolHandler(s.handleList),
		},
	}
}

func (s *Server) handleSend(ctx context.Context, request mcp.CallToolRequest, args SendArgs) (domain.TurnResult, error) {
	clean, err := runner.SanitizeInput(args.Text)
	if err != nil {
		s.logger.Warn("MCP send_message: Input rejected", "err", err, "size", len(args.Text))
		return domain.TurnResult{}, fmt.Errorf("input rejected: %w", err)
	}
	if strings.TrimSpace(clean) == "" {
		return domain.TurnResult{}, errors.New("text is required")
	}

	res, err := s.engine.Send(ctx, args.ThreadID, args.UserID, clean)
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("send failed: %w", err)
	}
	return *res, nil
}

func (s *Server) handleDecision(ctx context.Context, request mcp.CallToolRequest, args DecisionArgs) (domain.TurnResult, error) {
	if args.ThreadID == "" {
		return domain.TurnResult{}, errors.New("thread_id is required")
	}
	reason, err := runner.SanitizeInput(args.Reason)
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("reason rejected: %w", err)
	}

	res, err := s.engine.Resume(ctx, args.ThreadID, domain.Decision{Approved: args.Approve, Reason: reason})
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("decision failed: %w", err)
	}
	return *res, nil
}

func (s *Server) handleGetThread(ctx context.Context, request mcp.CallToolRequest, args ThreadArgs) (domain.Checkpoint, error) {
	cp, err := s.engine.Inspect(ctx, args.ThreadID)
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("inspect failed: %w", err)
	}
	return *cp, nil
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest, args ListArgs) (ThreadList, error) {
	var checkpoints []*domain.Checkpoint
	switch args.Status {
	case "":
		ids, err := s.engine.List(ctx)
		if err != nil {
			return ThreadList{}, fmt.Errorf("list failed: %w", err)
		}
		for _, id := range ids {
			cp, err := s.engine.Inspect(ctx, id)
			if err != nil {
				s.logger.Warn("Skipping unreadable thread", "thread_id", id, "err", err)
				continue
			}
			checkpoints = append(checkpoints, cp)
		}
	case string(domain.StatusAwaitingApproval):
		pending, err := s.engine.Pending(ctx)
		if err != nil {
			return ThreadList{}, fmt.Errorf("list failed: %w", err)
		}
		checkpoints = pending
	default:
		return ThreadList{}, fmt.Errorf("unsupported status filter %q", args.Status)
	}

	out := ThreadList{Threads: make([]ThreadSummary, 0, len(checkpoints))}
	for _, cp := range checkpoints {
		out.Threads = append(out.Threads, ThreadSummary{
			ThreadID: cp.ThreadID,
			Status:   cp.Status,
			Active:   cp.State.Active(),
			Version:  cp.Version,
		})
	}
	sort.Slice(out.Threads, func(i, j int) bool { return out.Threads[i].ThreadID < out.Threads[j].ThreadID })
	return out, nil
}

// handlerView is the resource form of a handler: its role and actions.
type handlerView struct {
	ID         domain.HandlerID  `json:"id"`
	Name       string            `json:"name"`
	Delegation string            `json:"delegation"`
	Tools      []domain.ToolSpec `json:"tools"`
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(HandlersURI, "Registered Handlers",
		mcp.WithResourceDescription("The domain handlers, their delegation tools and their risk-classified actions."),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := s.handlersJSON()
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      HandlersURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func (s *Server) handlersJSON() ([]byte, error) {
	var views []handlerView
	for _, h := range s.engine.Handlers() {
		views = append(views, handlerView{
			ID:         h.ID,
			Name:       h.Name,
			Delegation: h.Delegation.Name,
			Tools:      domain.Specs(h.Tools),
		})
	}
	data, err := json.Marshal(views)
	if err != nil {
		return nil, fmt.Errorf("failed to encode handlers: %w", err)
	}
	return data, nil
}
