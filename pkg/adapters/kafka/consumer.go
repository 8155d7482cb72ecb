package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/runner"
	"github.com/segmentio/kafka-go"
)

// ApprovalDecision is read from the decisions topic.
type ApprovalDecision struct {
	ThreadID string `json:"thread_id"`
	Approve  bool   `json:"approve"`
	Reason   string `json:"reason,omitempty"`
}

// Resumer applies decisions. *handoff.Engine satisfies it.
type Resumer interface {
	Resume(ctx context.Context, threadID string, decision domain.Decision) (*domain.TurnResult, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer applies decisions from the decisions topic.
type Consumer struct {
	reader  messageReader
	engine  Resumer
	logger  *slog.Logger
	backoff time.Duration
}

// NewConsumer reads decisions from topic as part of groupID.
func NewConsumer(brokers []string, topic, groupID string, engine Resumer, opts ...Option) *Consumer {
	return newConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	}), engine, opts...)
}

func newConsumer(r messageReader, engine Resumer, opts ...Option) *Consumer {
	o := buildOptions(opts)
	return &Consumer{reader: r, engine: engine, logger: o.logger, backoff: time.Second}
}

// Run consumes until ctx is done or the reader is closed.
// A decision that cannot be applied is logged and committed; it is never retried.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Approval consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Warn("Approval consumer: read error", "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			c.logger.Error("Skipping approval decision",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"err", err,
			)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("Approval consumer: commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	var d ApprovalDecision
	if err := json.Unmarshal(msg.Value, &d); err != nil {
		return fmt.Errorf("malformed decision: %w", err)
	}
	if d.ThreadID == "" {
		return errors.New("decision without thread_id")
	}
	reason, err := runner.SanitizeInput(d.Reason)
	if err != nil {
		return fmt.Errorf("decision for thread %s: %w", d.ThreadID, err)
	}

	res, err := c.engine.Resume(ctx, d.ThreadID, domain.Decision{Approved: d.Approve, Reason: reason})
	if err != nil {
		return fmt.Errorf("failed to resume thread %s: %w", d.ThreadID, err)
	}
	c.logger.Info("Approval decision applied",
		"thread_id", d.ThreadID,
		"approve", d.Approve,
		"status", res.Status,
	)
	return nil
}

// Close closes the reader, which also ends Run.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
