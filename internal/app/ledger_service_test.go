package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenchat/internal/model"
)

func TestLedger_GetBalanceCreatesDefaultLedgerOnce(t *testing.T) {
	env := setupTestEnv(t, DefaultLedgerConfig())
	ctx := context.Background()

	var wg sync.WaitGroup
	balances := make([]int, 8)
	errs := make([]error, 8)
	for i := range balances {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			balances[i], errs[i] = env.ledger.GetBalance(ctx, "u1")
		}(i)
	}
	wg.Wait()

	for i := range balances {
		require.NoError(t, errs[i])
		assert.Equal(t, 200, balances[i])
	}
	assert.Equal(t, int64(1), countRows(t, env.store, &model.TokenUsage{}))
}

func TestLedger_GetBalanceRejectsEmptyUser(t *testing.T) {
	env := setupTestEnv(t, DefaultLedgerConfig())

	_, err := env.ledger.GetBalance(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLedger_ReserveRejectsWhenEstimateExceedsBalance(t *testing.T) {
	env := setupTestEnv(t, DefaultLedgerConfig())
	ctx := context.Background()

	_, err := env.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)

	_, err = env.ledger.Reserve(ctx, "u1", 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQuotaExceeded))
	assert.Contains(t, err.Error(), "need 300, have 200")

	balance, err := env.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 200, balance)
}

func TestLedger_ReserveDebitsOnlyInput(t *testing.T) {
	env := setupTestEnv(t, DefaultLedgerConfig())
	ctx := context.Background()

	reservation, err := env.ledger.Reserve(ctx, "u1", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, reservation.InputTokens)
	assert.Equal(t, 150, reservation.Required)
	assert.Equal(t, 150, reservation.BalanceAfter)

	balance, err := env.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 150, balance)
}

func TestLedger_ReserveExactFit(t *testing.T) {
	env := setupTestEnv(t, DefaultLedgerConfig())

	reservation, err := env.ledger.Reserve(context.Background(), "u1", 66)
	require.NoError(t, err)
	assert.Equal(t, 198, reservation.Required)
	assert.Equal(t, 134, reservation.BalanceAfter)
}

func TestLedger_SettleIsNotIdempotent(t *testing.T) {
	env := setupTestEnv(t, DefaultLedgerConfig())
	ctx := context.Background()

	_, err := env.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, env.store.Usage.SetRemaining("u1", 10))

	balance, err := env.ledger.Settle(ctx, "u1", 30)
	require.NoError(t, err)
	assert.Equal(t, -20, balance)

	balance, err = env.ledger.Settle(ctx, "u1", 30)
	require.NoError(t, err)
	assert.Equal(t, -50, balance)

	stored, err := env.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, -50, stored)
}

func TestLedger_SettleClampsWhenNegativeDisallowed(t *testing.T) {
	cfg := DefaultLedgerConfig()
	cfg.AllowNegativeBalance = false
	env := setupTestEnv(t, cfg)
	ctx := context.Background()

	_, err := env.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, env.store.Usage.SetRemaining("u1", 10))

	balance, err := env.ledger.Settle(ctx, "u1", 30)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)

	balance, err = env.ledger.Settle(ctx, "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestLedger_SettleUnknownUser(t *testing.T) {
	env := setupTestEnv(t, DefaultLedgerConfig())

	_, err := env.ledger.Settle(context.Background(), "ghost", 5)
	assert.ErrorIs(t, err, ErrUnknownUser)
	assert.Equal(t, int64(0), countRows(t, env.store, &model.TokenUsage{}))
}

func TestLedger_ResetRestoresDefault(t *testing.T) {
	env := setupTestEnv(t, DefaultLedgerConfig())
	ctx := context.Background()

	_, err := env.ledger.Reserve(ctx, "u1", 60)
	require.NoError(t, err)
	_, err = env.ledger.Settle(ctx, "u1", 500)
	require.NoError(t, err)

	balance, err := env.ledger.Reset(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 200, balance)

	stored, err := env.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 200, stored)

	balance, err = env.ledger.Reset(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 200, balance)
	assert.Equal(t, int64(2), countRows(t, env.store, &model.TokenUsage{}))
}

func TestLedger_CustomQuota(t *testing.T) {
	env := setupTestEnv(t, LedgerConfig{DefaultQuota: 1000, ResponseMultiplier: 1, AllowNegativeBalance: true})

	reservation, err := env.ledger.Reserve(context.Background(), "u1", 400)
	require.NoError(t, err)
	assert.Equal(t, 800, reservation.Required)
	assert.Equal(t, 600, reservation.BalanceAfter)
}
