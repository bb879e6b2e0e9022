package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/config"
)

func dialTest(t *testing.T, opts ...Option) (*miniredis.Miniredis, *Client) {
	t.Helper()
	mr := miniredis.RunT(t)

	opts = append([]Option{WithDefaultTTL(time.Minute), WithHealthCheck(0)}, opts...)
	c, err := Dial(context.Background(), config.RedisConfig{Addr: mr.Addr()}, zap.NewNop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

type statusDoc struct {
	Type  string `json:"type"`
	Round int    `json:"round"`
}

func TestDial(t *testing.T) {
	_, c := dialTest(t)
	assert.Equal(t, time.Minute, c.defaultTTL)
	assert.NoError(t, c.Ping(context.Background()))
}

func TestDial_Unreachable(t *testing.T) {
	c, err := Dial(context.Background(), config.RedisConfig{Addr: "127.0.0.1:1"}, nil)
	assert.Nil(t, c)
	assert.ErrorContains(t, err, "dial redis 127.0.0.1:1")
}

func TestClient_PutGet(t *testing.T) {
	_, c := dialTest(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "conv:status", statusDoc{Type: "conversation_completed", Round: 4}, time.Minute))

	var got statusDoc
	require.NoError(t, c.Get(ctx, "conv:status", &got))
	assert.Equal(t, statusDoc{Type: "conversation_completed", Round: 4}, got)
}

func TestClient_GetErrors(t *testing.T) {
	mr, c := dialTest(t)
	ctx := context.Background()
	var got statusDoc

	assert.True(t, IsCacheMiss(c.Get(ctx, "missing", &got)))

	require.NoError(t, mr.Set("broken", "not json"))
	err := c.Get(ctx, "broken", &got)
	require.Error(t, err)
	assert.False(t, IsCacheMiss(err))
}

func TestClient_PutUnencodable(t *testing.T) {
	_, c := dialTest(t)
	assert.ErrorContains(t, c.Put(context.Background(), "bad", make(chan int), 0), "encode bad")
}

func TestClient_PutTTL(t *testing.T) {
	mr, c := dialTest(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "short", statusDoc{Round: 1}, 100*time.Millisecond))
	require.NoError(t, c.Put(ctx, "default", statusDoc{Round: 1}, 0))
	assert.Equal(t, time.Minute, mr.TTL("default"))

	mr.FastForward(200 * time.Millisecond)
	var got statusDoc
	assert.True(t, IsCacheMiss(c.Get(ctx, "short", &got)))
	assert.NoError(t, c.Get(ctx, "default", &got))
}

func TestClient_ConcurrentPuts(t *testing.T) {
	_, c := dialTest(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(round int) {
			defer wg.Done()
			assert.NoError(t, c.Put(ctx, fmt.Sprintf("conv-%d", round), statusDoc{Round: round}, 0))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		var got statusDoc
		require.NoError(t, c.Get(ctx, fmt.Sprintf("conv-%d", i), &got))
		assert.Equal(t, i, got.Round)
	}
}

func TestClient_PublishSubscribe(t *testing.T) {
	_, c := dialTest(t)
	ctx := context.Background()

	sub := c.Subscribe(ctx, "agentforum:events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n, err := c.Publish(ctx, "agentforum:events", []byte(`{"type":"message_appended"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	select {
	case msg := <-sub.Channel():
		assert.JSONEq(t, `{"type":"message_appended"}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}
}

func TestClient_HealthCheckSurvivesOutage(t *testing.T) {
	mr, c := dialTest(t, WithHealthCheck(10*time.Millisecond))
	mr.Close()
	time.Sleep(50 * time.Millisecond)
	assert.Error(t, c.Ping(context.Background()))
	assert.NoError(t, c.Close())
}

func TestClient_Closed(t *testing.T) {
	_, c := dialTest(t)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	ctx := context.Background()
	assert.ErrorIs(t, c.Put(ctx, "k", statusDoc{}, 0), ErrClosed)
	assert.ErrorIs(t, c.Get(ctx, "k", &statusDoc{}), ErrClosed)
	_, err := c.Publish(ctx, "c", []byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Ping(ctx), ErrClosed)
}
