package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// セッションストアのバックエンド種別。
const (
	SessionBackendMemory   = "memory"
	SessionBackendRedis    = "redis"
	SessionBackendPostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL         string
	DBMaxOpenConns      int
	DBConnectAttempts   int
	DBConnectRetryDelay time.Duration

	// Session
	SessionBackend       string
	SessionMaxAge        int // 秒
	SessionSweepInterval time.Duration
	RedisURL             string

	// Password
	PasswordHashCost int

	// Kafka
	KafkaEnabled           bool
	KafkaBootstrapServers  []string
	KafkaTopicUserEvents   string
	KafkaTopicCourseEvents string
	KafkaConsumerGroup     string
	KafkaPublishTimeout    time.Duration
	KafkaProducerRetries   int
	KafkaCommitInterval    time.Duration
	KafkaConsumersEnabled  bool

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitLogin   int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigins []string
}

// LoadDotEnv は.envファイルを読み込み、未設定の環境変数のみを補完する。
// ファイルが存在しない場合はエラーにしない。
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 20)
	cfg.DBConnectAttempts = getEnvInt("DB_CONNECT_ATTEMPTS", 5)
	cfg.DBConnectRetryDelay = getEnvDuration("DB_CONNECT_RETRY_DELAY", time.Second)

	cfg.SessionBackend = strings.ToLower(getEnvString("SESSION_BACKEND", SessionBackendMemory))
	switch cfg.SessionBackend {
	case SessionBackendMemory, SessionBackendRedis, SessionBackendPostgres:
	default:
		return nil, fmt.Errorf("unsupported SESSION_BACKEND: %q", cfg.SessionBackend)
	}
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 7*24*60*60)
	if cfg.SessionMaxAge <= 0 {
		return nil, fmt.Errorf("SESSION_MAX_AGE must be positive: %d", cfg.SessionMaxAge)
	}
	cfg.SessionSweepInterval = getEnvDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute)
	cfg.RedisURL = getEnvString("REDIS_URL", "redis://localhost:6379/0")
	cfg.PasswordHashCost = getEnvInt("PASSWORD_HASH_COST", 10)

	cfg.KafkaEnabled = getEnvBool("KAFKA_ENABLED", true)
	cfg.KafkaBootstrapServers = splitList(getEnvString("KAFKA_BOOTSTRAP_SERVERS", "localhost:9092"))
	cfg.KafkaTopicUserEvents = getEnvString("KAFKA_TOPIC_USER_EVENTS", "user-events")
	cfg.KafkaTopicCourseEvents = getEnvString("KAFKA_TOPIC_COURSE_EVENTS", "course-events")
	cfg.KafkaConsumerGroup = getEnvString("KAFKA_CONSUMER_GROUP", "crm-consumer-group")
	cfg.KafkaPublishTimeout = getEnvDuration("KAFKA_PUBLISH_TIMEOUT", 10*time.Second)
	cfg.KafkaProducerRetries = getEnvInt("KAFKA_PRODUCER_RETRIES", 3)
	cfg.KafkaCommitInterval = getEnvDuration("KAFKA_COMMIT_INTERVAL", time.Second)
	cfg.KafkaConsumersEnabled = getEnvBool("KAFKA_CONSUMERS_ENABLED", true)

	cfg.RateLimitGeneral = getEnvPositiveInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvPositiveInt("RATE_LIMIT_LOGIN", 10)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigins = splitList(getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000"))

	return cfg, nil
}

// splitList はカンマ区切りの文字列を空要素を除いたスライスに変換する。
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// getEnvPositiveInt は0以下の値もデフォルト値として扱う。
func getEnvPositiveInt(key string, defaultVal int) int {
	if i := getEnvInt(key, defaultVal); i > 0 {
		return i
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
