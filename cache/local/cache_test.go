package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/mathmon/server/cache/kv"
)

func newTestCache(t *testing.T) *LocalCache {
	c, err := NewCache(Config{GCInterval: time.Minute})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestGetSet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "save:p1", `{"version":1}`, 0))

	v, err := c.Get(ctx, "save:p1")
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, v)
}

func TestGetMissing(t *testing.T) {
	c := newTestCache(t)
	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "session:tok", "p1", 10*time.Millisecond))
	ok, err := c.Exists(ctx, "session:tok")
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	ok, err = c.Exists(ctx, "session:tok")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelRemovesEveryKind(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	_ = c.Set(ctx, "k", "v", 0)
	_ = c.HSet(ctx, "h", "f", "v")
	_ = c.LPush(ctx, "l", "x")
	require.NoError(t, c.Del(ctx, "k", "h", "l"))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	all, _ := c.HGetAll(ctx, "h")
	assert.Empty(t, all)
	items, _ := c.LRange(ctx, "l", 0, -1)
	assert.Empty(t, items)
}

func TestHash(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.HSet(ctx, "ability:p1", "add", "1"))
	require.NoError(t, c.HSet(ctx, "ability:p1", "mul", "2"))
	require.NoError(t, c.HSet(ctx, "ability:p1", "add", "3"))

	all, err := c.HGetAll(ctx, "ability:p1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"add": "3", "mul": "2"}, all)
}

func TestSet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SAdd(ctx, "ach:p1", "first_win", "combo_5"))
	require.NoError(t, c.SAdd(ctx, "ach:p1", "first_win"))
	members, err := c.SMembers(ctx, "ach:p1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"first_win", "combo_5"}, members)

	members, err = c.SMembers(ctx, "ach:nobody")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestZAddMaxKeepsBest(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	changed, err := c.ZAddMax(ctx, "board:tower", 5, "alice")
	require.NoError(t, err)
	assert.True(t, changed)
	_, _ = c.ZAddMax(ctx, "board:tower", 9, "bob")
	_, _ = c.ZAddMax(ctx, "board:tower", 5, "carol")

	changed, err = c.ZAddMax(ctx, "board:tower", 3, "alice")
	require.NoError(t, err)
	assert.False(t, changed)

	top, err := c.ZRevRangeWithScores(ctx, "board:tower", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []kv.ScoredMember{
		{Member: "bob", Score: 9},
		{Member: "alice", Score: 5},
		{Member: "carol", Score: 5},
	}, top)

	changed, _ = c.ZAddMax(ctx, "board:tower", 12, "alice")
	assert.True(t, changed)
	top, _ = c.ZRevRangeWithScores(ctx, "board:tower", 0, 0)
	assert.Equal(t, []kv.ScoredMember{{Member: "alice", Score: 12}}, top)
}

func TestList(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.LPush(ctx, "l", "c", "b", "a"))
	items, err := c.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	// LPush "c" then "b" then "a" → head = a, b, c
	assert.Equal(t, []string{"a", "b", "c"}, items)

	require.NoError(t, c.LPush(ctx, "l", "z"))
	require.NoError(t, c.LTrim(ctx, "l", 0, 1))
	items, _ = c.LRange(ctx, "l", 0, -1)
	assert.Equal(t, []string{"z", "a"}, items)

	items, _ = c.LRange(ctx, "l", -1, -1)
	assert.Equal(t, []string{"a"}, items)
	items, _ = c.LRange(ctx, "l", 5, 9)
	assert.Empty(t, items)
}

func TestSpan(t *testing.T) {
	cases := []struct {
		n, start, stop int64
		lo, hi         int64
		ok             bool
	}{
		{5, 0, -1, 0, 5, true},
		{5, 1, 2, 1, 3, true},
		{5, -2, -1, 3, 5, true},
		{5, 0, 99, 0, 5, true},
		{5, 6, 9, 0, 0, false},
		{0, 0, -1, 0, 0, false},
		{5, 3, 1, 0, 0, false},
	}
	for _, tc := range cases {
		lo, hi, ok := span(tc.n, tc.start, tc.stop)
		assert.Equal(t, tc.ok, ok, "%+v", tc)
		if ok {
			assert.Equal(t, tc.lo, lo, "%+v", tc)
			assert.Equal(t, tc.hi, hi, "%+v", tc)
		}
	}
}
