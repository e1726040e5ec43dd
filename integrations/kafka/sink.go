// Package kafka publishes arena events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"arenakit/core"
)

// Config describes the producer connection.
type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
	Timeout  time.Duration
}

// Sink writes each event as one JSON message keyed by its subject id, so
// updates about one player, session or game stay on one partition.
type Sink struct {
	producer sarama.SyncProducer
	topic    string
	log      *slog.Logger
}

// NewSaramaConfig returns the producer settings the sink relies on.
func NewSaramaConfig(cfg Config) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	if cfg.Timeout > 0 {
		sc.Producer.Timeout = cfg.Timeout
	}
	return sc
}

// New dials the brokers and returns a sink over a sync producer.
func New(cfg Config, log *slog.Logger) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("kafka: topic is required")
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("kafka: create producer: %w", err)
	}
	return NewWithProducer(producer, cfg.Topic, log), nil
}

// NewWithProducer wraps an existing producer.
func NewWithProducer(p sarama.SyncProducer, topic string, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{producer: p, topic: topic, log: log.With("component", "kafka", "topic", topic)}
}

// Handle sends the event; delivery errors are logged.
func (s *Sink) Handle(_ context.Context, e core.Event) {
	if err := s.Send(e); err != nil {
		s.log.Warn("kafka delivery failed", "type", e.Type, "error", err)
	}
}

// Send publishes one event and waits for the broker ack.
func (s *Sink) Send(e core.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(messageKey(e)),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(e.Type)},
		},
		Timestamp: e.Time,
	}
	partition, offset, err := s.producer.SendMessage(msg)
	if err != nil {
		return err
	}
	s.log.Debug("event published", "type", e.Type, "partition", partition, "offset", offset)
	return nil
}

func (s *Sink) Close() error { return s.producer.Close() }

func messageKey(e core.Event) string {
	switch {
	case e.PlayerID != "":
		return string(e.PlayerID)
	case e.SessionID != "":
		return string(e.SessionID)
	case e.GameID != "":
		return string(e.GameID)
	}
	return string(e.Type)
}
