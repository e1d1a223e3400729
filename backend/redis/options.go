package redis

import (
	"github.com/voxflow/go-transcribe/backend"
)

type RedisOptions struct {
	*backend.Options

	// KeyPrefix is prepended to every key written by the backend. Defaults to "transcribe:".
	KeyPrefix string

	// MaxTxRetries is the number of times an optimistic transaction is retried when watched
	// keys were modified concurrently. Defaults to 10.
	MaxTxRetries uint64
}

type RedisBackendOption func(*RedisOptions)

func WithKeyPrefix(keyPrefix string) RedisBackendOption {
	return func(o *RedisOptions) {
		o.KeyPrefix = keyPrefix
	}
}

func WithMaxTxRetries(retries uint64) RedisBackendOption {
	return func(o *RedisOptions) {
		o.MaxTxRetries = retries
	}
}

func WithBackendOptions(opts ...backend.BackendOption) RedisBackendOption {
	return func(o *RedisOptions) {
		for _, opt := range opts {
			opt(o.Options)
		}
	}
}
