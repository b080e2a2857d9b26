package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	rq := require.New(t)

	cfg, err := Load()
	rq.NoError(err)

	rq.Equal(":8081", cfg.HTTPAddr)
	rq.Equal("bid-api", cfg.ServiceName)
	rq.Equal(5*time.Second, cfg.RequestTimeout)
	rq.Equal([]string{"kafka:9092"}, cfg.Kafka.Brokers)
	rq.Equal(int32(8), cfg.Postgres.MaxConns)
	rq.True(cfg.Postgres.MigrateOnStart)
	rq.Equal(slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadFromEnv(t *testing.T) {
	rq := require.New(t)

	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("NOTIFIER_WORKERS", "0")
	t.Setenv("LISTING_CACHE_TTL", "1m")

	cfg, err := Load()
	rq.NoError(err)

	rq.Equal([]string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	rq.Equal(slog.LevelDebug, cfg.SlogLevel())
	rq.Equal(1, cfg.Notifier.Workers)
	rq.Equal(time.Minute, cfg.ListingCacheTTL)
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")

	_, err := Load()
	require.ErrorContains(t, err, "env.Parse")
}
