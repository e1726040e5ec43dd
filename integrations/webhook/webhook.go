package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"arenakit/core"
)

// Sink posts domain events to configured HTTP endpoints.
// It is synchronous; subscribe it on an async bus or keep endpoints fast.
type Sink struct {
	client    *http.Client
	endpoints []string
	topics    []core.EventType
	log       *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTopics limits delivery to the given event types.
func WithTopics(topics ...core.EventType) Option {
	return func(s *Sink) { s.topics = append([]core.EventType{}, topics...) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 2 * time.Second},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	s.log = s.log.With("component", "webhook")
	return s
}

// Handle posts the event JSON to every endpoint. Failures are logged and do
// not stop delivery to the remaining endpoints.
func (s *Sink) Handle(ctx context.Context, e core.Event) {
	if len(s.endpoints) == 0 {
		return
	}
	if len(s.topics) > 0 && !slices.Contains(s.topics, e.Type) {
		return
	}
	body, err := json.Marshal(e)
	if err != nil {
		s.log.Warn("encode event", "type", e.Type, "error", err)
		return
	}
	for _, ep := range s.endpoints {
		if err := s.post(ctx, ep, body); err != nil {
			s.log.Warn("webhook delivery failed", "endpoint", ep, "type", e.Type, "error", err)
		}
	}
}

func (s *Sink) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
