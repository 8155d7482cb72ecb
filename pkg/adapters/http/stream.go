package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/handoff/internal/logging"
	"github.com/aretw0/handoff/pkg/domain"
)

// StreamManager fans checkpoint diffs out to the SSE subscribers of each thread.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // ThreadID -> set of channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a listener for a thread. The returned function
// unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(threadID string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[threadID]; !ok {
		sm.subscribers[threadID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[threadID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[threadID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(sm.subscribers, threadID)
				}
			}
			close(ch)
		})
	}
}

// Broadcast sends msg to every subscriber of the thread.
// Slow subscribers drop messages instead of blocking the turn.
func (sm *StreamManager) Broadcast(threadID, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[threadID] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE client buffer full, dropping message", "thread_id", threadID)
		}
	}
}

// Publish serializes a diff and broadcasts it. It has the shape of
// middleware.DiffPublisher so the store can feed it directly.
func (sm *StreamManager) Publish(_ context.Context, diff *domain.CheckpointDiff) {
	if diff == nil {
		return
	}
	data, err := json.Marshal(diff)
	if err != nil {
		sm.logger.Error("Failed to encode diff", "thread_id", diff.ThreadID, "err", err)
		return
	}
	sm.Broadcast(diff.ThreadID, string(data))
}

// Subscribers returns how many listeners a thread has.
func (sm *StreamManager) Subscribers(threadID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[threadID])
}

// matchesWatch reports whether a diff touches any of the watched fields.
// An empty watch list matches everything.
func matchesWatch(msg string, watch []string) bool {
	if len(watch) == 0 {
		return true
	}
	var diff domain.CheckpointDiff
	if err := json.Unmarshal([]byte(msg), &diff); err != nil {
		return true
	}
	for _, field := range watch {
		switch strings.TrimSpace(field) {
		case "status":
			if diff.Status != nil {
				return true
			}
		case "stack":
			if diff.Stack != nil {
				return true
			}
		case "messages":
			if len(diff.Appended) > 0 {
				return true
			}
		case "pending":
			if diff.Pending != nil || diff.PendingCleared {
				return true
			}
		}
	}
	return false
}
