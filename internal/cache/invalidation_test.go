package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/finflow/internal/model"
)

const testChannel = "test:cache:transactions"

func TestSubscribeDropsPublishedTeams(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := newCache(t)
	f := model.TransactionFilter{PageSize: 50}
	c.Set("team-1", f, page("a"))
	c.Set("team-2", f, page("a"))

	require.NoError(t, c.Subscribe(ctx, client, testChannel))

	// A worker stored two more rows for team-1; until told, the API keeps serving one.
	cached, ok := c.Get("team-1", f)
	require.True(t, ok)
	assert.Len(t, cached.Data, 1)

	require.NoError(t, NewPublisher(client, testChannel).Invalidate(ctx, "team-1"))

	assert.Eventually(t, func() bool {
		_, ok := c.Get("team-1", f)
		return !ok
	}, time.Second, 10*time.Millisecond)

	_, ok = c.Get("team-2", f)
	assert.True(t, ok)
}

func TestSubscribeFailsWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	err := newCache(t).Subscribe(context.Background(), client, testChannel)
	assert.Error(t, err)
}
