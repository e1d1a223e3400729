package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/voxflow/go-transcribe/transcription"
)

const DefaultChannel = "transcriptions"

// Redis stores every record under <prefix>transcription:<instance id> and publishes it to a
// channel, so subscribers learn about new transcriptions as they arrive.
type Redis struct {
	rdb     redis.UniversalClient
	prefix  string
	channel string
}

var _ transcription.Sink = (*Redis)(nil)

func NewRedis(rdb redis.UniversalClient, prefix, channel string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}

	return &Redis{
		rdb:     rdb,
		prefix:  prefix,
		channel: prefix + channel,
	}
}

func (r *Redis) key(instanceID string) string {
	return fmt.Sprintf("%stranscription:%s", r.prefix, instanceID)
}

// Channel returns the channel records are published on
func (r *Redis) Channel() string {
	return r.channel
}

func (r *Redis) Save(ctx context.Context, record transcription.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	if _, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.key(record.InstanceID), data, 0)
		p.Publish(ctx, r.channel, data)
		return nil
	}); err != nil {
		return fmt.Errorf("storing record: %w", err)
	}

	return nil
}

// Get returns the stored record for the given instance
func (r *Redis) Get(ctx context.Context, instanceID string) (*transcription.Record, error) {
	data, err := r.rdb.Get(ctx, r.key(instanceID)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("reading record: %w", err)
	}

	var record transcription.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshaling record: %w", err)
	}

	return &record, nil
}

// Subscribe returns a subscription receiving every record saved after it was created.
func (r *Redis) Subscribe(ctx context.Context) *redis.PubSub {
	return r.rdb.Subscribe(ctx, r.channel)
}
