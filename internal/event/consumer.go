package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hitoshi/coursecrm/internal/metrics"
	"github.com/hitoshi/coursecrm/internal/model"
	"github.com/segmentio/kafka-go"
)

// 処理失敗理由（coursecrm_event_processing_failures_total の reason ラベル）。
const (
	FailureReasonDecode  = "decode"
	FailureReasonHandler = "handler"
	FailureReasonPanic   = "panic"
)

const (
	// initialReadBackoff は読み取りエラー後の初回待機時間。
	initialReadBackoff = 500 * time.Millisecond
	// maxReadBackoff は読み取りエラー後の最大待機時間。
	maxReadBackoff = 30 * time.Second
)

// MessageReader はKafkaからの読み取りを抽象化するインターフェース。
// *kafka.Reader が満たす。
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ReaderConfig はKafkaコンシューマの設定。
type ReaderConfig struct {
	Brokers        []string
	Topic          string
	GroupID        string
	CommitInterval time.Duration
}

// NewKafkaReader はコンシューマグループに参加するReaderを生成する。
// 初回参加時は最新オフセットから読み始め、オフセットは一定間隔で自動コミットする。
func NewKafkaReader(cfg ReaderConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		StartOffset:    kafka.LastOffset,
		CommitInterval: cfg.CommitInterval,
		MinBytes:       1,
		MaxBytes:       10e6,
	})
}

// Consumer は1トピックを購読し、受信したイベントをDispatcherへ渡す。
type Consumer struct {
	topic      string
	reader     MessageReader
	dispatcher *Dispatcher
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
}

// NewConsumer はConsumerを生成する。
func NewConsumer(topic string, reader MessageReader, dispatcher *Dispatcher, mc metrics.MetricsCollector, logger *slog.Logger) *Consumer {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		topic:      topic,
		reader:     reader,
		dispatcher: dispatcher,
		metrics:    mc,
		logger:     logger.With(slog.String("topic", topic)),
	}
}

// Run はコンテキストがキャンセルされるかReaderが閉じられるまで受信を続ける。
// 1件の処理失敗でループは止まらない。終了時にReaderを閉じる。
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("コンシューマのクローズに失敗しました", slog.String("error", err.Error()))
		}
	}()

	c.logger.Info("イベントコンシューマを開始しました")

	consecutiveErrors := 0
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.Info("イベントコンシューマを停止しました")
				return nil
			}

			delay := readBackoff(consecutiveErrors)
			consecutiveErrors++
			c.logger.Error("メッセージの読み取りに失敗しました",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", delay),
			)
			select {
			case <-ctx.Done():
				c.logger.Info("イベントコンシューマを停止しました")
				return nil
			case <-time.After(delay):
			}
			continue
		}

		consecutiveErrors = 0
		c.handle(ctx, msg)
	}
}

// handle は1件のメッセージを処理する。デコード失敗・ハンドラーエラー・panicはここで吸収する。
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.RecordEventProcessingFailure(c.topic, FailureReasonPanic)
			c.logger.Error("イベント処理中にpanicが発生しました",
				slog.String("panic", fmt.Sprint(r)),
				slog.Int64("offset", msg.Offset),
			)
		}
	}()

	var env model.EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		c.metrics.RecordEventProcessingFailure(c.topic, FailureReasonDecode)
		c.logger.Error("イベントのデコードに失敗しました",
			slog.String("error", err.Error()),
			slog.Int64("offset", msg.Offset),
		)
		return
	}

	h, ok := c.dispatcher.Lookup(env.EventType)
	if !ok {
		c.logger.Debug("未対応のイベント種別を無視しました",
			slog.String("event_type", string(env.EventType)),
		)
		return
	}

	if err := h(ctx, msg.Value); err != nil {
		c.metrics.RecordEventProcessingFailure(c.topic, FailureReasonHandler)
		c.logger.Error("イベントの処理に失敗しました",
			slog.String("event_type", string(env.EventType)),
			slog.String("error", err.Error()),
			slog.Int64("offset", msg.Offset),
		)
		return
	}

	c.metrics.RecordEventConsumed(c.topic, string(env.EventType))
}

// readBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回500ms、2倍ずつ増加、最大30秒。
func readBackoff(consecutiveErrors int) time.Duration {
	delay := initialReadBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxReadBackoff {
			return maxReadBackoff
		}
	}
	return delay
}

var _ MessageReader = (*kafka.Reader)(nil)
