package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenchat/internal/model"
)

func setupTestCache(t *testing.T) (*MessageCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewMessageCache(client, time.Minute, 5*time.Second), mr
}

func TestMessageCache_HistoryRoundTrip(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	_, ok, err := c.GetHistory(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	messages := []model.Message{
		{ID: 1, ConversationID: 7, Role: model.RoleUser, Content: "hello"},
		{ID: 2, ConversationID: 7, Role: model.RoleAssistant, Content: "hi there"},
	}
	require.NoError(t, c.SetHistory(ctx, 7, messages))
	assert.True(t, mr.Exists("tokenchat:conversation:7:messages"))
	assert.Equal(t, time.Minute, mr.TTL("tokenchat:conversation:7:messages"))

	cached, ok, err := c.GetHistory(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cached, 2)
	assert.Equal(t, "hi there", cached[1].Content)

	require.NoError(t, c.DeleteHistory(ctx, 7))
	_, ok, err = c.GetHistory(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMessageCache_EmptyListingIsAHit(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetHistory(ctx, 3, []model.Message{}))
	cached, ok, err := c.GetHistory(ctx, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, cached)
	assert.Empty(t, cached)
}

func TestMessageCache_DirtyMarkerExpires(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	dirty, err := c.IsDirty(ctx, 9)
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, c.MarkDirty(ctx, 9))
	assert.Equal(t, 5*time.Second, mr.TTL("tokenchat:conversation:9:dirty"))
	dirty, err = c.IsDirty(ctx, 9)
	require.NoError(t, err)
	assert.True(t, dirty)

	other, err := c.IsDirty(ctx, 10)
	require.NoError(t, err)
	assert.False(t, other)

	mr.FastForward(6 * time.Second)
	dirty, err = c.IsDirty(ctx, 9)
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestMessageCache_CorruptListingIsAnError(t *testing.T) {
	c, mr := setupTestCache(t)

	require.NoError(t, mr.Set("tokenchat:conversation:4:messages", "not json"))
	_, ok, err := c.GetHistory(context.Background(), 4)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestMessageCache_DefaultTTLs(t *testing.T) {
	c := NewMessageCache(nil, 0, 0)
	assert.Equal(t, 60*time.Second, c.listingTTL)
	assert.Equal(t, 5*time.Second, c.dirtyMarkerTTL)
}

func TestMessageCache_UnreachableServer(t *testing.T) {
	c, mr := setupTestCache(t)
	mr.Close()

	_, err := c.IsDirty(context.Background(), 1)
	assert.Error(t, err)
}
