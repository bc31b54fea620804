//go:build integration

package socialcache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisSharedBetweenInstances(t *testing.T) {
	ctx := context.Background()

	ctr, err := testcontainers.Run(ctx, "redis:7-alpine",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	endpoint, err := ctr.Endpoint(ctx, "")
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { rdb.Close() })

	loader := &fakeLoader{joined: map[string]time.Time{"1001": joined}}
	first := New(WithRedis(rdb), WithLoader("x.com", loader), WithTTL(time.Hour))
	_, found, err := first.JoinDate(ctx, "x.com", "1001")
	require.NoError(t, err)
	assert.True(t, found)
	_, found, err = first.JoinDate(ctx, "x.com", "nobody")
	require.NoError(t, err)
	assert.False(t, found)

	ttl, err := rdb.TTL(ctx, key("x.com", "1001")).Result()
	require.NoError(t, err)
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 5)

	// a second process sees both the hit and the negative entry without loading
	second := New(WithRedis(rdb), WithLoader("x.com", loader))
	got, found, err := second.JoinDate(ctx, "x.com", "1001")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, joined, got)
	_, found, err = second.JoinDate(ctx, "x.com", "nobody")
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, int32(2), loader.calls.Load())
}
