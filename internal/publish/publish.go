// Package publish delivers finished report payloads to downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"orderstats/internal/report"
)

type Sink interface {
	Publish(ctx context.Context, p report.Payload) error
}

// MultiSink fans out to multiple sinks and stops at the first failure.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(ss ...Sink) *MultiSink {
	return &MultiSink{sinks: ss}
}

func (m *MultiSink) Publish(ctx context.Context, p report.Payload) error {
	for _, s := range m.sinks {
		if err := s.Publish(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Len is the number of wrapped sinks.
func (m *MultiSink) Len() int { return len(m.sinks) }

// FileSink appends one JSON document per line.
type FileSink struct {
	mu   sync.Mutex
	path string
}

func NewFileSink(dir string, filename string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileSink{path: filepath.Join(dir, filename)}, nil
}

func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Publish(_ context.Context, p report.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(&p); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// KafkaSink publishes payloads to a topic keyed by report id. Pure-Go
// client (segmentio/kafka-go).
type KafkaSink struct {
	writer kafkaMessageWriter
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// SplitBrokers parses a comma-separated host:port list.
func SplitBrokers(bootstrap string) []string {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		if a = strings.TrimSpace(a); a != "" {
			brokers = append(brokers, a)
		}
	}
	return brokers
}

// NewKafkaSink creates a synchronous writer requiring all in-sync acks.
func NewKafkaSink(bootstrap string, topic string) *KafkaSink {
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(SplitBrokers(bootstrap)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}}
}

func (k *KafkaSink) Publish(ctx context.Context, p report.Payload) error {
	b, err := json.Marshal(&p)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(p.ID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "dialect", Value: []byte(p.Dialect)},
		},
	})
}

// Close flushes and closes the underlying writer when it supports it.
func (k *KafkaSink) Close() error {
	if c, ok := k.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// NewKafkaSinkWith is only for tests to inject a fake writer.
func NewKafkaSinkWith(w kafkaMessageWriter) *KafkaSink {
	return &KafkaSink{writer: w}
}
