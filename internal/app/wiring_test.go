package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hitoshi/coursecrm/internal/config"
	"github.com/hitoshi/coursecrm/internal/event"
	"github.com/hitoshi/coursecrm/internal/metrics"
	"github.com/hitoshi/coursecrm/internal/session"
)

func testConfig() *config.Config {
	return &config.Config{
		SessionBackend:         config.SessionBackendMemory,
		SessionSweepInterval:   time.Hour,
		KafkaEnabled:           false,
		KafkaBootstrapServers:  []string{"localhost:9092"},
		KafkaTopicUserEvents:   "user-events",
		KafkaTopicCourseEvents: "course-events",
		KafkaConsumerGroup:     "crm-consumer-group",
		KafkaPublishTimeout:    time.Second,
		KafkaProducerRetries:   3,
		KafkaCommitInterval:    time.Second,
	}
}

func TestNewSessionStore_Memory(t *testing.T) {
	store, closeFn, sweep, err := newSessionStore(testConfig(), nil)
	if err != nil {
		t.Fatalf("newSessionStore() error = %v", err)
	}
	defer closeFn()

	if _, ok := store.(*session.MemoryStore); !ok {
		t.Errorf("store = %T, want *session.MemoryStore", store)
	}
	if !sweep {
		t.Error("memory store should be swept")
	}
}

func TestNewSessionStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.SessionBackend = config.SessionBackendRedis
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"

	store, closeFn, sweep, err := newSessionStore(cfg, nil)
	if err != nil {
		t.Fatalf("newSessionStore() error = %v", err)
	}
	defer closeFn()

	if _, ok := store.(*session.RedisStore); !ok {
		t.Errorf("store = %T, want *session.RedisStore", store)
	}
	if sweep {
		t.Error("redis store expires by TTL and should not be swept")
	}
}

func TestNewSessionStore_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig()
	cfg.SessionBackend = config.SessionBackendRedis
	cfg.RedisURL = "redis://" + addr + "/0"

	if _, _, _, err := newSessionStore(cfg, nil); err == nil {
		t.Error("expected error for unreachable redis")
	}
}

func TestNewSessionStore_PostgresRequiresDB(t *testing.T) {
	cfg := testConfig()
	cfg.SessionBackend = config.SessionBackendPostgres

	if _, _, _, err := newSessionStore(cfg, nil); err == nil {
		t.Error("expected error when database is nil")
	}
}

func TestNewPublisher_Disabled(t *testing.T) {
	pub, closeFn := newPublisher(testConfig(), metrics.Nop{})
	defer closeFn()

	if _, ok := pub.(event.NopPublisher); !ok {
		t.Fatalf("publisher = %T, want event.NopPublisher", pub)
	}
	if pub.Publish(context.Background(), "user-events", struct{}{}, "") {
		t.Error("disabled publisher must report the event as dropped")
	}
}

func TestNewPublisher_Enabled(t *testing.T) {
	cfg := testConfig()
	cfg.KafkaEnabled = true

	pub, closeFn := newPublisher(cfg, metrics.Nop{})
	defer closeFn()

	if _, ok := pub.(*event.KafkaPublisher); !ok {
		t.Errorf("publisher = %T, want *event.KafkaPublisher", pub)
	}
}

func TestReaderConfig(t *testing.T) {
	rc := readerConfig(testConfig(), "course-events")

	if rc.Topic != "course-events" || rc.GroupID != "crm-consumer-group" {
		t.Errorf("readerConfig = %+v", rc)
	}
	if rc.CommitInterval != time.Second {
		t.Errorf("CommitInterval = %v, want 1s", rc.CommitInterval)
	}
}

func TestNewConsumers_OnePerTopic(t *testing.T) {
	if got := len(newConsumers(testConfig(), metrics.Nop{})); got != 2 {
		t.Errorf("consumers = %d, want 2", got)
	}
}

func TestStartBackground_StopsOnCancel(t *testing.T) {
	cfg := testConfig()
	store := session.NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	startBackground(ctx, &wg, cfg, store, true, metrics.Nop{})

	cancel()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("background goroutines did not stop after cancel")
	}
}

func TestNewMetrics_RegistersRuntimeCollectors(t *testing.T) {
	reg, mc := newMetrics()
	mc.RecordLogin(metrics.LoginSuccess)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"go_goroutines", "coursecrm_logins_total"} {
		if !names[want] {
			t.Errorf("metric %q not registered", want)
		}
	}
}
