package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tokenchat/internal/config"
	"tokenchat/internal/model"
	"tokenchat/internal/platform/database"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := &config.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "test.db")

	db, err := database.New(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewStore(db)
}

func TestTokenUsage_GetOrCreateIsIdempotent(t *testing.T) {
	store := setupTestStore(t)

	first, err := store.Usage.GetOrCreate("alice", 200)
	require.NoError(t, err)
	assert.Equal(t, 200, first.RemainingTokens)

	second, err := store.Usage.GetOrCreate("alice", 999)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 200, second.RemainingTokens)

	var n int64
	require.NoError(t, store.DB().Model(&model.TokenUsage{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestTokenUsage_GetOrCreateRereadsWithLock(t *testing.T) {
	store := setupTestStore(t)

	var locked []bool
	require.NoError(t, store.DB().Callback().Query().Before("gorm:query").
		Register("test:record_locking", func(tx *gorm.DB) {
			_, ok := tx.Statement.Clauses[clause.Locking{}.Name()]
			locked = append(locked, ok)
		}))

	usage, err := store.Usage.GetOrCreate("carol", 200)
	require.NoError(t, err)
	assert.Equal(t, 200, usage.RemainingTokens)
	assert.Equal(t, []bool{false, true}, locked)

	err = store.Transaction(context.Background(), func(tx *Store) error {
		inTx, err := tx.Usage.GetOrCreate("dave", 150)
		if err != nil {
			return err
		}
		assert.Equal(t, 150, inTx.RemainingTokens)
		return nil
	})
	require.NoError(t, err)
}

func TestTokenUsage_DebitAndSet(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Usage.GetOrCreate("bob", 200)
	require.NoError(t, err)

	require.NoError(t, store.Usage.Debit("bob", 250))
	usage, err := store.Usage.GetByUserID("bob")
	require.NoError(t, err)
	assert.Equal(t, -50, usage.RemainingTokens)

	require.NoError(t, store.Usage.SetRemaining("bob", 200))
	usage, err = store.Usage.GetByUserIDForUpdate("bob")
	require.NoError(t, err)
	assert.Equal(t, 200, usage.RemainingTokens)

	missing, err := store.Usage.GetByUserID("nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestConversation_ListOrdersPinnedThenNewest(t *testing.T) {
	store := setupTestStore(t)
	base := time.Now().UTC().Add(-time.Hour)

	oldPinned := &model.Conversation{UserID: "u1", Title: "old pinned", CreatedAt: base}
	middle := &model.Conversation{UserID: "u1", Title: "middle", CreatedAt: base.Add(time.Minute)}
	newest := &model.Conversation{UserID: "u1", Title: "newest", CreatedAt: base.Add(2 * time.Minute)}
	other := &model.Conversation{UserID: "u2", Title: "someone else", CreatedAt: base.Add(3 * time.Minute)}
	for _, c := range []*model.Conversation{oldPinned, middle, newest, other} {
		require.NoError(t, store.Conversations.Create(c))
	}
	require.NoError(t, store.Conversations.UpdatePinned(oldPinned.ID, true))

	list, err := store.Conversations.ListByUserID("u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "old pinned", list[0].Title)
	assert.Equal(t, "newest", list[1].Title)
	assert.Equal(t, "middle", list[2].Title)

	latest, err := store.Conversations.GetLatestByUserID("u1")
	require.NoError(t, err)
	assert.Equal(t, newest.ID, latest.ID)

	none, err := store.Conversations.GetLatestByUserID("u3")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMessage_ListInCreationOrder(t *testing.T) {
	store := setupTestStore(t)
	conv := &model.Conversation{UserID: "u1", Title: model.PlaceholderTitle}
	require.NoError(t, store.Conversations.Create(conv))

	for _, content := range []string{"one", "two", "three"} {
		require.NoError(t, store.Messages.Create(&model.Message{
			ConversationID: conv.ID,
			Role:           model.RoleUser,
			Content:        content,
		}))
	}

	messages, err := store.Messages.ListByConversationID(conv.ID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "one", messages[0].Content)
	assert.Equal(t, "three", messages[2].Content)

	limited, err := store.Messages.ListByConversationID(conv.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	empty, err := store.Messages.ListByConversationID(conv.ID+100, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestStore_TransactionRollsBack(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Transaction(ctx, func(tx *Store) error {
		conv := &model.Conversation{UserID: "u1", Title: "doomed"}
		if err := tx.Conversations.Create(conv); err != nil {
			return err
		}
		if err := tx.Messages.Create(&model.Message{ConversationID: conv.ID, Role: model.RoleUser, Content: "hi"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	list, err := store.WithContext(ctx).Conversations.ListByUserID("u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSupport_UpsertByTitle(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.Supports.Upsert(&model.Support{Title: "General", Description: "v1", DifyModel: "m1"}))
	require.NoError(t, store.Supports.Upsert(&model.Support{Title: "General", Description: "v2", DifyModel: "m2"}))
	require.NoError(t, store.Supports.Upsert(&model.Support{Title: "Technical", Description: "tech", DifyModel: "m3"}))

	list, err := store.Supports.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "General", list[0].Title)
	assert.Equal(t, "v2", list[0].Description)
	assert.Equal(t, "m2", list[0].DifyModel)

	got, err := store.Supports.GetByID(list[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Technical", got.Title)

	missing, err := store.Supports.GetByID(9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
