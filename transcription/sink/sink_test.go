package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/voxflow/go-transcribe/transcription"
)

func record(id string) transcription.Record {
	return transcription.Record{
		InstanceID:  id,
		AudioURL:    "https://audio/" + id + ".wav",
		JobHandle:   "job-" + id,
		Text:        "hello " + id,
		CompletedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func Test_Memory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, record("b")))
	require.NoError(t, m.Save(ctx, record("a")))
	require.NoError(t, m.Save(ctx, record("a")))

	r, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, "hello a", r.Text)

	_, ok = m.Get("c")
	require.False(t, ok)

	records := m.Records()
	require.Len(t, records, 2)
	require.Equal(t, "a", records[0].InstanceID)
	require.Equal(t, "b", records[1].InstanceID)
	require.Equal(t, 3, m.Saves())
}

func Test_Log(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewLog(slog.New(slog.NewJSONHandler(buf, nil)))

	require.NoError(t, l.Save(context.Background(), record("a")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "Transcription finished", entry["msg"])
	require.Equal(t, "hello a", entry["text"])
	require.Equal(t, "a", entry["transcribe.instance.id"])
}

func Test_Redis(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}

	ctx := context.Background()

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{"localhost:6379"},
		Password: "RedisPassw0rd",
	})
	t.Cleanup(func() { rdb.Close() })

	prefix := "test-" + uuid.NewString() + ":"
	s := NewRedis(rdb, prefix, "")
	require.Equal(t, prefix+DefaultChannel, s.Channel())

	sub := s.Subscribe(ctx)
	defer sub.Close()

	// Wait for the subscription to be established
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, record("a")))

	stored, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, record("a"), *stored)

	select {
	case msg := <-sub.Channel():
		var published transcription.Record
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &published))
		require.Equal(t, "a", published.InstanceID)
	case <-time.After(5 * time.Second):
		t.Fatal("record was not published")
	}

	rdb.Del(ctx, s.key("a"))
}
