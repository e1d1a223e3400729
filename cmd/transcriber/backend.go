package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/memory"
	"github.com/voxflow/go-transcribe/backend/mysql"
	redisbackend "github.com/voxflow/go-transcribe/backend/redis"
	"github.com/voxflow/go-transcribe/backend/sqlite"
	"github.com/voxflow/go-transcribe/config"
	"github.com/voxflow/go-transcribe/diag"
	"github.com/voxflow/go-transcribe/transcription"
	"github.com/voxflow/go-transcribe/transcription/fake"
	"github.com/voxflow/go-transcribe/transcription/sink"
	"github.com/voxflow/go-transcribe/transcription/speech"
)

func newRedisClient(cfg config.RedisConfig) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Addr},
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func newBackend(cfg *config.Config, logger *slog.Logger, tp trace.TracerProvider) (diag.Backend, error) {
	opts := []backend.BackendOption{
		backend.WithLogger(logger),
		backend.WithTracerProvider(tp),
		backend.WithWorkflowLockTimeout(cfg.Backend.WorkflowLockTimeout),
		backend.WithActivityLockTimeout(cfg.Backend.ActivityLockTimeout),
	}

	switch cfg.Backend.Type {
	case "memory":
		return memory.NewMemoryBackend(opts...), nil

	case "sqlite":
		if cfg.Backend.SQLite.Path == "" {
			return sqlite.NewInMemoryBackend(sqlite.WithBackendOptions(opts...)), nil
		}

		return sqlite.NewSqliteBackend(cfg.Backend.SQLite.Path, sqlite.WithBackendOptions(opts...)), nil

	case "mysql":
		m := cfg.Backend.MySQL
		return mysql.NewMysqlBackend(m.Host, m.Port, m.User, m.Password, m.Database, mysql.WithBackendOptions(opts...)), nil

	case "redis":
		b, err := redisbackend.NewRedisBackend(
			newRedisClient(cfg.Backend.Redis),
			redisbackend.WithKeyPrefix(cfg.Backend.Redis.KeyPrefix),
			redisbackend.WithBackendOptions(opts...),
		)
		if err != nil {
			return nil, fmt.Errorf("creating redis backend: %w", err)
		}

		return b, nil

	default:
		return nil, fmt.Errorf("unknown backend type %q", cfg.Backend.Type)
	}
}

func newProvider(cfg config.SpeechConfig) (transcription.Provider, error) {
	switch cfg.Provider {
	case "fake":
		return fake.NewProvider(fake.WithPollsUntilDone(cfg.FakePolls)), nil

	case "speech":
		return speech.New(speech.Options{
			Endpoint:    cfg.Endpoint,
			Key:         cfg.Key,
			Locale:      cfg.Locale,
			DisplayName: cfg.DisplayName,
			HTTPClient:  &http.Client{Timeout: cfg.Timeout},
		})

	default:
		return nil, fmt.Errorf("unknown speech provider %q", cfg.Provider)
	}
}

func newSink(cfg *config.Config, logger *slog.Logger) (transcription.Sink, func(), error) {
	switch cfg.Sink.Type {
	case "log":
		return sink.NewLog(logger), func() {}, nil

	case "memory":
		return sink.NewMemory(), func() {}, nil

	case "redis":
		rdb := newRedisClient(cfg.Backend.Redis)
		return sink.NewRedis(rdb, cfg.Backend.Redis.KeyPrefix, cfg.Sink.Channel), func() { _ = rdb.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown sink type %q", cfg.Sink.Type)
	}
}
