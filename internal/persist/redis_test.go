package persist

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedis(client, "luckydraw"), mr
}

func TestRedis_RoundTrip(t *testing.T) {
	ctx := context.Background()
	r, _ := newRedisStore(t)

	_, ok, err := r.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	want := sampleSnapshot()
	require.NoError(t, r.Save(ctx, want))

	got, ok, err := r.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.Roster, got.Roster)
	assert.Equal(t, want.Config, got.Config)
	assert.Equal(t, want.History, got.History)
}

func TestRedis_RosterAloneStillCounts(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedisStore(t)

	require.NoError(t, mr.Set("luckydraw:participants", `[{"id":1,"name":"张伟","weight":1}]`))

	got, ok, err := r.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got.Roster, 1)
}

func TestRedis_LegacyHistoryIsDiscarded(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedisStore(t)

	require.NoError(t, r.Save(ctx, sampleSnapshot()))
	require.NoError(t, mr.Set("luckydraw:history", `[{"winners":["张伟"]}]`))

	got, ok, err := r.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, got.History)
	assert.Len(t, got.Roster, 3)
}
