package event

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// --- テスト用モック ---

type mockWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	writeFn  func(ctx context.Context, msgs ...kafka.Message) error
	closed   bool
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFn != nil {
		if err := m.writeFn(ctx, msgs...); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

type readResult struct {
	msg kafka.Message
	err error
}

// mockReader は積まれた結果を順に返し、尽きたらio.EOFを返す。
type mockReader struct {
	mu      sync.Mutex
	results []readResult
	closed  bool
}

func (m *mockReader) ReadMessage(_ context.Context) (kafka.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.results) == 0 {
		return kafka.Message{}, io.EOF
	}
	r := m.results[0]
	m.results = m.results[1:]
	return r.msg, r.err
}

func (m *mockReader) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// blockingReader はコンテキストがキャンセルされるまでブロックする。
type blockingReader struct {
	closed bool
}

func (b *blockingReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (b *blockingReader) Close() error {
	b.closed = true
	return nil
}

type droppedCall struct {
	topic  string
	reason string
}

type failureCall struct {
	topic  string
	reason string
}

type mockMetrics struct {
	mu        sync.Mutex
	published []string
	dropped   []droppedCall
	consumed  []string
	failures  []failureCall
}

func (m *mockMetrics) RecordEventPublished(topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, topic)
}

func (m *mockMetrics) RecordEventDropped(topic, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped = append(m.dropped, droppedCall{topic, reason})
}

func (m *mockMetrics) RecordEventPublishLatency(time.Duration) {}

func (m *mockMetrics) RecordEventConsumed(_ string, eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumed = append(m.consumed, eventType)
}

func (m *mockMetrics) RecordEventProcessingFailure(topic, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, failureCall{topic, reason})
}

func (m *mockMetrics) RecordLogin(string) {}

func (m *mockMetrics) RecordHTTPStatus(int) {}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

var errBroker = errors.New("leader not available")
