package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/coursecrm/internal/config"
	"github.com/hitoshi/coursecrm/internal/database"
	"github.com/hitoshi/coursecrm/internal/event"
	"github.com/hitoshi/coursecrm/internal/metrics"
	"github.com/hitoshi/coursecrm/internal/repository"
	"github.com/hitoshi/coursecrm/internal/session"
	"github.com/hitoshi/coursecrm/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var _ session.Store = (*repository.PostgresSessionRepo)(nil)

// openDatabase はDB接続を開き、疎通するまで待つ。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	pool := database.DefaultPoolConfig()
	if cfg.DBMaxOpenConns > 0 {
		pool.MaxOpenConns = cfg.DBMaxOpenConns
	}
	db, err := database.Connect(ctx, cfg.DatabaseURL, pool, cfg.DBConnectAttempts, cfg.DBConnectRetryDelay)
	if err != nil {
		return nil, err
	}
	slog.Info("database connection established",
		slog.Int("max_open_conns", pool.MaxOpenConns),
	)
	return db, nil
}

// newMetrics はプロセス用のPrometheusレジストリとコレクターを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newSessionStore はSESSION_BACKENDに応じたセッションストアを生成する。
// 返り値のcloseはストアが保持する接続を閉じる。
// sweepはストア側で期限切れを消せない場合にtrueとなり、定期削除ジョブが必要なことを示す。
func newSessionStore(cfg *config.Config, db *sql.DB) (session.Store, func(), bool, error) {
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		client, err := session.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, false, err
		}
		rs := session.NewRedisStore(client)
		if err := rs.Ping(context.Background()); err != nil {
			client.Close()
			return nil, nil, false, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("session store initialized", slog.String("backend", cfg.SessionBackend))
		return rs, func() { client.Close() }, false, nil
	case config.SessionBackendPostgres:
		if db == nil {
			return nil, nil, false, fmt.Errorf("session backend %q requires a database", cfg.SessionBackend)
		}
		slog.Info("session store initialized", slog.String("backend", cfg.SessionBackend))
		return repository.NewPostgresSessionRepo(db), func() {}, true, nil
	default:
		slog.Info("session store initialized", slog.String("backend", config.SessionBackendMemory))
		return session.NewMemoryStore(), func() {}, true, nil
	}
}

// newPublisher はKafkaプロデューサを1つだけ生成し、Publisherとして返す。
// KAFKA_ENABLED=false の場合は送信しないPublisherを返す。
func newPublisher(cfg *config.Config, mc metrics.MetricsCollector) (event.Publisher, func()) {
	if !cfg.KafkaEnabled {
		slog.Warn("kafka publishing is disabled")
		return event.NopPublisher{Metrics: mc}, func() {}
	}

	writer := event.NewKafkaWriter(event.WriterConfig{
		Brokers:      cfg.KafkaBootstrapServers,
		MaxAttempts:  cfg.KafkaProducerRetries,
		WriteTimeout: cfg.KafkaPublishTimeout,
	})
	pub := event.NewKafkaPublisher(writer, cfg.KafkaPublishTimeout, mc, slog.Default())

	slog.Info("kafka producer initialized",
		slog.Any("brokers", cfg.KafkaBootstrapServers),
	)
	return pub, func() {
		if err := pub.Close(); err != nil {
			slog.Error("failed to close kafka producer", slog.String("error", err.Error()))
		}
	}
}

// newConsumers は user-events と course-events の購読者を生成する。
func newConsumers(cfg *config.Config, mc metrics.MetricsCollector) []*event.Consumer {
	logger := slog.Default()
	userTopic := cfg.KafkaTopicUserEvents
	courseTopic := cfg.KafkaTopicCourseEvents

	return []*event.Consumer{
		event.NewConsumer(userTopic, event.NewKafkaReader(readerConfig(cfg, userTopic)),
			event.NewUserEventsDispatcher(logger), mc, logger),
		event.NewConsumer(courseTopic, event.NewKafkaReader(readerConfig(cfg, courseTopic)),
			event.NewCourseEventsDispatcher(logger), mc, logger),
	}
}

func readerConfig(cfg *config.Config, topic string) event.ReaderConfig {
	return event.ReaderConfig{
		Brokers:        cfg.KafkaBootstrapServers,
		Topic:          topic,
		GroupID:        cfg.KafkaConsumerGroup,
		CommitInterval: cfg.KafkaCommitInterval,
	}
}

// startBackground はイベント購読者とセッション削除ジョブをゴルーチンで起動する。
// ctxのキャンセルで全て停止し、wgで終了を待てる。
func startBackground(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, store session.Store, sweep bool, mc metrics.MetricsCollector) {
	if cfg.KafkaEnabled && cfg.KafkaConsumersEnabled {
		for _, c := range newConsumers(cfg, mc) {
			wg.Add(1)
			go func(c *event.Consumer) {
				defer wg.Done()
				if err := c.Run(ctx); err != nil {
					slog.Error("event consumer stopped with error", slog.String("error", err.Error()))
				}
			}(c)
		}
	}

	if sweep && store != nil {
		sweeper := cleanup.NewSessionSweeper(store, slog.Default())
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweeper.Start(ctx, cfg.SessionSweepInterval)
		}()
	}
}
