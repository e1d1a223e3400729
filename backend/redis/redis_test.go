package redis

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/history"
	"github.com/voxflow/go-transcribe/backend/test"
	"github.com/voxflow/go-transcribe/core"
)

const (
	address  = "localhost:6379"
	user     = ""
	password = "RedisPassw0rd"
)

func Test_RedisBackend(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}

	client := getClient()
	t.Cleanup(func() { client.Close() })

	test.BackendTest(t, func(options ...backend.BackendOption) test.TestBackend {
		return getBackend(t, client, options...)
	}, cleanup(client))
}

func Test_EndToEndRedisBackend(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}

	client := getClient()
	t.Cleanup(func() { client.Close() })

	test.EndToEndBackendTest(t, func(options ...backend.BackendOption) test.TestBackend {
		return getBackend(t, client, options...)
	}, cleanup(client))
}

func Test_GetWorkflowTask_EventAddedWhileLocking(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}

	ctx := context.Background()

	client := getClient()
	t.Cleanup(func() { client.Close() })

	// The backend gets its own connection so only its commands are intercepted
	backendClient := getClient()
	t.Cleanup(func() { backendClient.Close() })

	b := getBackend(t, backendClient)
	t.Cleanup(func() { cleanup(client)(b) })

	instance := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString())
	started := history.NewPendingEvent(time.Now(), history.EventType_WorkflowExecutionStarted,
		&history.ExecutionStartedAttributes{Name: "Transcribe"}, history.VisibleAt(time.Now().Add(time.Hour)))
	require.NoError(t, b.CreateWorkflowInstance(ctx, instance, started))

	completed, err := json.Marshal(history.NewPendingEvent(time.Now(), history.EventType_ActivityCompleted,
		&history.ActivityCompletedAttributes{}, history.ScheduleEventID(1)))
	require.NoError(t, err)

	pendingKey := b.keys.pendingEventsKey(instance.InstanceID)

	// Another writer delivers an event after the pending events were read but before the instance is
	// moved to its next wake-up time.
	backendClient.AddHook(&afterCommand{name: "lrange", key: pendingKey, fn: func() {
		require.NoError(t, client.RPush(ctx, pendingKey, string(completed)).Err())
		require.NoError(t, client.ZAddLT(ctx, b.keys.readyInstances(),
			redis.Z{Score: score(time.Now()), Member: instance.InstanceID}).Err())
	}})

	task, err := b.GetWorkflowTask(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Len(t, task.NewEvents, 1)
	require.Equal(t, history.EventType_ActivityCompleted, task.NewEvents[0].Type)
}

// afterCommand runs fn once, after the first command with the given name on the given key completed
type afterCommand struct {
	name string
	key  string
	fn   func()
	once sync.Once
}

func (h *afterCommand) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *afterCommand) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)

		args := cmd.Args()
		if cmd.Name() == h.name && len(args) > 1 && args[1] == h.key {
			h.once.Do(h.fn)
		}

		return err
	}
}

func (h *afterCommand) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func Test_Score(t *testing.T) {
	at := time.Unix(1700000000, 1500)

	// Rounds up so an event is never considered visible before it is
	require.Equal(t, float64(1700000000000002), score(at))
	require.Equal(t, float64(1700000000000000), score(time.Unix(1700000000, 0)))
}

func getClient() redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{address},
		Username: user,
		Password: password,
		DB:       0,
	})
}

func getBackend(t *testing.T, client redis.UniversalClient, options ...backend.BackendOption) *redisBackend {
	// Every backend gets its own key space
	b, err := NewRedisBackend(client,
		WithKeyPrefix("test-"+uuid.NewString()+":"),
		WithBackendOptions(options...),
	)
	require.NoError(t, err)

	return b
}

func cleanup(client redis.UniversalClient) func(b test.TestBackend) {
	return func(b test.TestBackend) {
		ctx := context.Background()
		prefix := b.(*redisBackend).keys.prefix

		iter := client.Scan(ctx, 0, prefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
	}
}
