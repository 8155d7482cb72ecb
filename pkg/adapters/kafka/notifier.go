package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/handoff/internal/logging"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/ports"
	"github.com/segmentio/kafka-go"
)

// ApprovalRequest is published for every suspended batch.
type ApprovalRequest struct {
	ThreadID    string            `json:"thread_id"`
	Handler     domain.HandlerID  `json:"handler"`
	Proposals   []domain.Proposal `json:"proposals"`
	RequestedAt time.Time         `json:"requested_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Notifier implements ports.ApprovalNotifier with a Kafka writer.
type Notifier struct {
	writer messageWriter
	logger *slog.Logger
}

var _ ports.ApprovalNotifier = (*Notifier)(nil)

// Option configures the Notifier and the Consumer.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewNotifier publishes approval requests to topic.
func NewNotifier(brokers []string, topic string, opts ...Option) *Notifier {
	return newNotifier(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}, opts...)
}

func newNotifier(w messageWriter, opts ...Option) *Notifier {
	o := buildOptions(opts)
	return &Notifier{writer: w, logger: o.logger}
}

// NotifyPending publishes the batch.
func (n *Notifier) NotifyPending(ctx context.Context, threadID string, batch *domain.PendingBatch) error {
	value, err := json.Marshal(ApprovalRequest{
		ThreadID:    threadID,
		Handler:     batch.Handler,
		Proposals:   batch.Proposals,
		RequestedAt: batch.RequestedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode approval request: %w", err)
	}

	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(threadID),
		Value: value,
		Time:  batch.RequestedAt,
	}); err != nil {
		return fmt.Errorf("failed to publish approval request: %w", err)
	}
	n.logger.Debug("Approval request published", "thread_id", threadID, "handler", batch.Handler)
	return nil
}

// Close flushes and closes the writer.
func (n *Notifier) Close() error {
	return n.writer.Close()
}
