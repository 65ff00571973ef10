// Package event はドメインイベントのKafka送受信を提供する。
// 送信はベストエフォートで、失敗しても呼び出し元の処理は成功扱いのまま続行する。
package event

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/coursecrm/internal/metrics"
	"github.com/segmentio/kafka-go"
)

// 送信失敗理由（coursecrm_events_dropped_total の reason ラベル）。
const (
	DropReasonMarshal  = "marshal"
	DropReasonTimeout  = "timeout"
	DropReasonBroker   = "broker_error"
	DropReasonDisabled = "disabled"
)

// Publisher はドメインイベントの送信インターフェース。
// ブローカーが受理した場合のみtrueを返し、失敗はエラーとして返さない。
type Publisher interface {
	Publish(ctx context.Context, topic string, ev any, key string) bool
}

// MessageWriter はKafkaへの書き込みを抽象化するインターフェース。
// *kafka.Writer が満たす。
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// WriterConfig はKafkaプロデューサの設定。
type WriterConfig struct {
	Brokers      []string
	MaxAttempts  int
	WriteTimeout time.Duration
}

// NewKafkaWriter はプロセス全体で共有するKafkaプロデューサを生成する。
// 全レプリカの受理を待ち、1メッセージずつ同期送信することで送信順序を保つ。
func NewKafkaWriter(cfg WriterConfig) *kafka.Writer {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            maxAttempts,
		BatchSize:              1,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
}

// KafkaPublisher はKafkaへイベントをJSONで送信するPublisher。
type KafkaPublisher struct {
	writer  MessageWriter
	timeout time.Duration
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewKafkaPublisher はKafkaPublisherを生成する。
// timeoutは1回の送信（リトライ含む）に許容する最大時間。
func NewKafkaPublisher(writer MessageWriter, timeout time.Duration, mc metrics.MetricsCollector, logger *slog.Logger) *KafkaPublisher {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		writer:  writer,
		timeout: timeout,
		metrics: mc,
		logger:  logger,
	}
}

// Publish はイベントをJSONにエンコードして送信し、受理を待つ。
// リクエストのキャンセルに巻き込まれないよう、送信は呼び出し元から切り離したコンテキストで行う。
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, ev any, key string) bool {
	value, err := json.Marshal(ev)
	if err != nil {
		p.drop(topic, DropReasonMarshal, err)
		return false
	}

	msg := kafka.Message{Topic: topic, Value: value}
	if key != "" {
		msg.Key = []byte(key)
	}

	sendCtx := context.WithoutCancel(ctx)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(sendCtx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	err = p.writer.WriteMessages(sendCtx, msg)
	p.metrics.RecordEventPublishLatency(time.Since(start))
	if err != nil {
		reason := DropReasonBroker
		if errors.Is(err, context.DeadlineExceeded) {
			reason = DropReasonTimeout
		}
		p.drop(topic, reason, err)
		return false
	}

	p.metrics.RecordEventPublished(topic)
	p.logger.Debug("イベントを送信しました",
		slog.String("topic", topic),
		slog.String("key", key),
	)
	return true
}

// Close はプロデューサを閉じ、未送信のメッセージをフラッシュする。
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) drop(topic, reason string, err error) {
	p.metrics.RecordEventDropped(topic, reason)
	p.logger.Error("イベントの送信に失敗したため破棄しました",
		slog.String("topic", topic),
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
}

// NopPublisher はKAFKA_ENABLED=false のときに使うPublisher。
// イベントは送信せず、破棄として計数する。
type NopPublisher struct {
	Metrics metrics.MetricsCollector
}

// Publish は常にfalseを返す。
func (p NopPublisher) Publish(_ context.Context, topic string, _ any, _ string) bool {
	if p.Metrics != nil {
		p.Metrics.RecordEventDropped(topic, DropReasonDisabled)
	}
	slog.Debug("イベント送信は無効化されています", slog.String("topic", topic))
	return false
}

var (
	_ Publisher     = (*KafkaPublisher)(nil)
	_ Publisher     = NopPublisher{}
	_ MessageWriter = (*kafka.Writer)(nil)
)
