package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/campaign-dispatcher/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr := miniredis.RunT(t)

	// unique connection name per test, adapters are cached globally
	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func TestStream_PublishAndRead(t *testing.T) {
	_, adapter := setupTestRedis(t)
	ctx := context.Background()

	stream, err := NewStream(adapter, StreamConfig{Name: "dispatch:events"})
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		_, err := stream.PublishJSON(ctx, map[string]int{"inProgress": i}, map[string]string{"type": "SMessage"})
		require.NoError(t, err)
	}

	msgs, err := stream.Read(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	var payload map[string]int
	require.NoError(t, json.Unmarshal(msgs[0].Data, &payload))
	assert.Equal(t, 1, payload["inProgress"])
	assert.Equal(t, "SMessage", msgs[0].Metadata["type"])
	assert.False(t, msgs[0].Timestamp.IsZero())

	rest, err := stream.Read(ctx, msgs[0].ID, 10)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	none, err := stream.Read(ctx, msgs[2].ID, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStream_ReadEmpty(t *testing.T) {
	_, adapter := setupTestRedis(t)

	stream, err := NewStream(adapter, StreamConfig{Name: "nothing:here"})
	require.NoError(t, err)

	msgs, err := stream.Read(context.Background(), "0", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestStream_MaxLen(t *testing.T) {
	_, adapter := setupTestRedis(t)
	ctx := context.Background()

	stream, err := NewStream(adapter, StreamConfig{Name: "capped", MaxLen: 5})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		_, err := stream.Publish(ctx, []byte(fmt.Sprint(i)), nil)
		require.NoError(t, err)
	}

	n, err := stream.Len()
	require.NoError(t, err)
	assert.LessOrEqual(t, n, int64(20))
	assert.GreaterOrEqual(t, n, int64(5))
}

func TestStream_PublishFailsWhenRedisIsDown(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	stream, err := NewStream(adapter, StreamConfig{Name: "down"})
	require.NoError(t, err)

	mr.Close()
	_, err = stream.Publish(context.Background(), []byte("x"), nil)
	assert.Error(t, err)
}

func TestNewStream_Validation(t *testing.T) {
	_, adapter := setupTestRedis(t)

	_, err := NewStream(nil, StreamConfig{Name: "x"})
	assert.Error(t, err)
	_, err = NewStream(adapter, StreamConfig{})
	assert.Error(t, err)
}
