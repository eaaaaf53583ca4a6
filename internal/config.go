package internal

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

type Config struct {
	Host string `env:"HOST,default=0.0.0.0"`
	Port int    `env:"PORT,default=5000"`

	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	BusChannel    string `env:"BUS_CHANNEL,default=talkify:messages"`

	NatsURL          string        `env:"NATS_URL,default=nats://localhost:4222"`
	QueueAckWait     time.Duration `env:"QUEUE_ACK_WAIT,default=30s"`
	QueueMaxDeliver  int           `env:"QUEUE_MAX_DELIVER,default=5"`
	WriteBackoff     time.Duration `env:"WRITE_BACKOFF,default=10s"`
	EnqueueRetryWait time.Duration `env:"ENQUEUE_RETRY_WAIT,default=1s"`
	EnqueueRetryMax  int           `env:"ENQUEUE_RETRY_MAX,default=5"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	// Fixed system identity attributed to join/leave notifications.
	SystemUserID string `env:"SYSTEM_USER_ID,default=system"`
	SystemName   string `env:"SYSTEM_NAME,default=System"`
	SystemEmail  string `env:"SYSTEM_EMAIL,default=system@talkify.local"`

	HistoryLimit    int           `env:"HISTORY_LIMIT,default=50"`
	HistoryLimitMax int           `env:"HISTORY_LIMIT_MAX,default=200"`
	DedupTTL        time.Duration `env:"DEDUP_TTL,default=5m"`
	DedupMaxEntries int64         `env:"DEDUP_MAX_ENTRIES,default=100000"`

	SinkTimeout      time.Duration `env:"SINK_TIMEOUT,default=2s"`
	MaxContentLength int           `env:"MAX_CONTENT_LENGTH,default=2000"`

	ReadLimit    int64         `env:"WS_READ_LIMIT,default=4096"`
	PongWait     time.Duration `env:"WS_PONG_WAIT,default=60s"`
	WriteWait    time.Duration `env:"WS_WRITE_WAIT,default=10s"`
	SendBuffer   int           `env:"WS_SEND_BUFFER,default=64"`
	ShutdownWait time.Duration `env:"SHUTDOWN_WAIT,default=10s"`
}

// LoggerFromLevel builds the process-wide slog logger from the
// configured level string. Unknown levels fall back to INFO.
func LoggerFromLevel(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		l = slog.LevelDebug
	case "WARN":
		l = slog.LevelWarn
	case "ERROR":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
