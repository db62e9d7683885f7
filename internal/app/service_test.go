package app

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"tokenchat/internal/ai"
	"tokenchat/internal/config"
	"tokenchat/internal/platform/database"
	"tokenchat/internal/repository"
)

// wordCounter charges one token per whitespace-separated word.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []ai.SendRequest
	result   *ai.SendResult
	err      error
}

func (g *fakeGateway) Send(_ context.Context, req ai.SendRequest) (*ai.SendResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

type testEnv struct {
	store         *repository.Store
	ledger        *LedgerService
	conversations *ConversationService
	chat          *ChatService
	support       *SupportService
	gateway       *fakeGateway
}

func setupTestStore(t *testing.T) *repository.Store {
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
	return repository.NewStore(db)
}

func setupTestEnv(t *testing.T, ledgerCfg LedgerConfig) *testEnv {
	t.Helper()
	store := setupTestStore(t)
	gateway := &fakeGateway{result: &ai.SendResult{Answer: "hi there", ConversationID: "ext-1"}}

	ledger := NewLedgerService(store, wordCounter{}, ledgerCfg, nil)
	conversations := NewConversationService(store, nil, nil)
	return &testEnv{
		store:         store,
		ledger:        ledger,
		conversations: conversations,
		chat:          NewChatService(store, ledger, conversations, gateway, nil, nil),
		support:       NewSupportService(store, nil),
		gateway:       gateway,
	}
}

func countRows(t *testing.T, store *repository.Store, value any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, store.DB().Model(value).Count(&n).Error)
	return n
}
