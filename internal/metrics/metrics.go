// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// イベント送受信、認証、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordEventPublished(topic string)
	RecordEventDropped(topic, reason string)
	RecordEventPublishLatency(duration time.Duration)
	RecordEventConsumed(topic, eventType string)
	RecordEventProcessingFailure(topic, reason string)
	RecordLogin(result string)
	RecordHTTPStatus(statusCode int)
}

// ログイン結果のラベル値。
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	eventsPublished  *prometheus.CounterVec
	eventsDropped    *prometheus.CounterVec
	publishLatency   prometheus.Histogram
	eventsConsumed   *prometheus.CounterVec
	processingFailed *prometheus.CounterVec
	logins           *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursecrm_events_published_total",
			Help: "ブローカーが受理したイベントの合計数",
		}, []string{"topic"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursecrm_events_dropped_total",
			Help: "送信できずに破棄したイベントの合計数",
		}, []string{"topic", "reason"}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coursecrm_event_publish_latency_seconds",
			Help:    "イベント送信のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		eventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursecrm_events_consumed_total",
			Help: "コンシューマが処理したイベントの合計数",
		}, []string{"topic", "event_type"}),
		processingFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursecrm_event_processing_failures_total",
			Help: "コンシューマでの処理失敗の合計数",
		}, []string{"topic", "reason"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursecrm_logins_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursecrm_http_responses_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.eventsPublished,
		c.eventsDropped,
		c.publishLatency,
		c.eventsConsumed,
		c.processingFailed,
		c.logins,
		c.httpStatus,
	)

	return c
}

// RecordEventPublished はイベント送信成功を記録する。
func (c *Collector) RecordEventPublished(topic string) {
	c.eventsPublished.WithLabelValues(topic).Inc()
}

// RecordEventDropped は破棄したイベントを記録する。
func (c *Collector) RecordEventDropped(topic, reason string) {
	c.eventsDropped.WithLabelValues(topic, reason).Inc()
}

// RecordEventPublishLatency は送信のレイテンシを記録する。
func (c *Collector) RecordEventPublishLatency(duration time.Duration) {
	c.publishLatency.Observe(duration.Seconds())
}

// RecordEventConsumed は受信したイベントを記録する。
func (c *Collector) RecordEventConsumed(topic, eventType string) {
	c.eventsConsumed.WithLabelValues(topic, eventType).Inc()
}

// RecordEventProcessingFailure は受信イベントの処理失敗を記録する。
func (c *Collector) RecordEventProcessingFailure(topic, reason string) {
	c.processingFailed.WithLabelValues(topic, reason).Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordEventPublished(string) {}
func (Nop) RecordEventDropped(string, string) {}
func (Nop) RecordEventPublishLatency(time.Duration) {}
func (Nop) RecordEventConsumed(string, string) {}
func (Nop) RecordEventProcessingFailure(string, string) {}
func (Nop) RecordLogin(string) {}
func (Nop) RecordHTTPStatus(int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 収集中のエラーは500にせず、取得できたメトリクスだけを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
