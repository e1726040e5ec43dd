package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Exporter ships snapshots somewhere outside the process.
type Exporter interface {
	Export(ctx context.Context, s Snapshot) error
	Flush(ctx context.Context) error
	Close() error
}

// HTTPExporter posts batches of snapshots to an endpoint.
type HTTPExporter struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	batchSize  int

	mu     sync.Mutex
	buffer []Snapshot
}

func NewHTTPExporter(endpoint, apiKey string, batchSize int) *HTTPExporter {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &HTTPExporter{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		buffer:    make([]Snapshot, 0, batchSize),
		batchSize: batchSize,
	}
}

func (e *HTTPExporter) Export(ctx context.Context, s Snapshot) error {
	e.mu.Lock()
	e.buffer = append(e.buffer, s)
	full := len(e.buffer) >= e.batchSize
	e.mu.Unlock()
	if full {
		return e.Flush(ctx)
	}
	return nil
}

func (e *HTTPExporter) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.buffer) == 0 {
		return nil
	}

	payload, err := json.Marshal(e.buffer)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics data: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send analytics data: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("analytics export failed with status %d: %s", resp.StatusCode, string(body))
	}

	// Clear buffer on successful export
	e.buffer = e.buffer[:0]
	return nil
}

func (e *HTTPExporter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Flush(ctx)
}

// LogExporter writes snapshots as structured log records.
type LogExporter struct {
	log *slog.Logger
}

func NewLogExporter(l *slog.Logger) *LogExporter {
	if l == nil {
		l = slog.Default()
	}
	return &LogExporter{log: l.With("component", "analytics")}
}

func (e *LogExporter) Export(ctx context.Context, s Snapshot) error {
	e.log.InfoContext(ctx, "analytics snapshot",
		"day", s.Day,
		"active_players", s.ActivePlayers,
		"matches", s.Matches,
		"rating_updates", s.RatingUpdates,
		"sessions_finished", s.SessionsFinished,
		"unlocks", s.Unlocks,
	)
	return nil
}

func (e *LogExporter) Flush(context.Context) error { return nil }
func (e *LogExporter) Close() error                { return nil }

// MultiExporter fans one snapshot out to several exporters.
type MultiExporter struct {
	exporters []Exporter
}

func NewMultiExporter(exporters ...Exporter) *MultiExporter {
	return &MultiExporter{exporters: exporters}
}

func (e *MultiExporter) Export(ctx context.Context, s Snapshot) error {
	var errs []error
	for _, exporter := range e.exporters {
		if err := exporter.Export(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", exporter, err))
		}
	}
	return errors.Join(errs...)
}

func (e *MultiExporter) Flush(ctx context.Context) error {
	var errs []error
	for _, exporter := range e.exporters {
		if err := exporter.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *MultiExporter) Close() error {
	var errs []error
	for _, exporter := range e.exporters {
		if err := exporter.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ExportDay snapshots the day t falls in and hands it to exp.
func (c *Collector) ExportDay(ctx context.Context, exp Exporter, t time.Time) error {
	return exp.Export(ctx, c.Snapshot(dayKey(t)))
}
