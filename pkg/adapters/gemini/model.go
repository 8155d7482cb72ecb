package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/handoff/internal/logging"
	"github.com/aretw0/handoff/pkg/domain"
	"google.golang.org/genai"
)

const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultAttempts    = 3
	DefaultBackoffBase = 500 * time.Millisecond
)

// generator is the part of genai.Models the adapter uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Model implements ports.Model on the Gemini API with function calling.
type Model struct {
	gen         generator
	name        string
	attempts    int
	backoff     time.Duration
	temperature *float32
	logger      *slog.Logger
}

// Option configures a Model.
type Option func(*Model)

// WithModelName selects the Gemini model.
func WithModelName(name string) Option {
	return func(m *Model) {
		if name != "" {
			m.name = name
		}
	}
}

// WithRetry sets the number of attempts per request and the first backoff
// delay, which doubles after every failure.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(m *Model) {
		if attempts > 0 {
			m.attempts = attempts
		}
		m.backoff = backoff
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(m *Model) {
		m.temperature = &t
	}
}

// WithLogger sets the logger for retried requests.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

// New connects to the Gemini API.
func New(ctx context.Context, apiKey string, opts ...Option) (*Model, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newModel(client.Models, opts...), nil
}

func newModel(gen generator, opts ...Option) *Model {
	m := &Model{
		gen:      gen,
		name:     DefaultModel,
		attempts: DefaultAttempts,
		backoff:  DefaultBackoffBase,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Propose asks the model for the next action of the speaker.
func (m *Model) Propose(ctx context.Context, req domain.ProposeRequest) (*domain.ModelResponse, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction(req),
		Temperature:       m.temperature,
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: declarations(req.Tools)}}
	}

	resp, err := m.generate(ctx, contents(req), config)
	if err != nil {
		return nil, err
	}
	return response(resp), nil
}

func (m *Model) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	delay := m.backoff
	var lastErr error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		resp, err := m.gen.GenerateContent(ctx, m.name, contents, config)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == m.attempts {
			break
		}

		m.logger.Warn("gemini request failed, retrying", "attempt", attempt, "delay", delay, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, fmt.Errorf("gemini: %w", lastErr)
}
