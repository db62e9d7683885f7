package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tokenchat/internal/model"
	"tokenchat/internal/repository"
)

const (
	DefaultQuota              = 200
	DefaultResponseMultiplier = 2
)

// TokenCounter turns text into a token cost.
type TokenCounter interface {
	Count(text string) int
}

type LedgerConfig struct {
	// DefaultQuota is the balance a new or reset ledger starts with.
	DefaultQuota int
	// ResponseMultiplier estimates reply cost as a multiple of input cost
	// when deciding whether a reservation fits the balance.
	ResponseMultiplier int
	// AllowNegativeBalance lets settlement push a balance below zero.
	// When false, settlement stops at zero.
	AllowNegativeBalance bool
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		DefaultQuota:         DefaultQuota,
		ResponseMultiplier:   DefaultResponseMultiplier,
		AllowNegativeBalance: true,
	}
}

type LedgerService struct {
	store   *repository.Store
	counter TokenCounter
	cfg     LedgerConfig
	logger  *slog.Logger
}

type Reservation struct {
	InputTokens  int `json:"input_tokens"`
	Required     int `json:"required_tokens"`
	BalanceAfter int `json:"remaining_tokens"`
}

func NewLedgerService(store *repository.Store, counter TokenCounter, cfg LedgerConfig, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{
		store:   store,
		counter: counter,
		cfg:     cfg,
		logger:  logger,
	}
}

// EstimateCost returns the token cost of text.
func (s *LedgerService) EstimateCost(text string) int {
	return s.counter.Count(text)
}

// GetBalance returns the user's remaining tokens, opening a ledger with the
// default quota on first sight of the user.
func (s *LedgerService) GetBalance(ctx context.Context, userID string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrInvalidInput
	}

	var balance int
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		usage, err := s.getOrCreateLedger(tx, userID)
		if err != nil {
			return err
		}
		balance = usage.RemainingTokens
		return nil
	})
	if err != nil {
		return 0, storeErr("get balance", err)
	}
	return balance, nil
}

// Reserve admits a request costing inputTokens when the balance covers the
// input plus the estimated reply, and debits only the input immediately.
// The reply is charged later through Settle.
func (s *LedgerService) Reserve(ctx context.Context, userID string, inputTokens int) (*Reservation, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || inputTokens < 0 {
		return nil, ErrInvalidInput
	}

	var reservation *Reservation
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		reservation, err = s.reserve(tx, userID, inputTokens)
		return err
	})
	if err != nil {
		return nil, storeErr("reserve tokens", err)
	}
	return reservation, nil
}

// Settle charges the reply cost. Settling twice charges twice.
func (s *LedgerService) Settle(ctx context.Context, userID string, responseTokens int) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || responseTokens < 0 {
		return 0, ErrInvalidInput
	}

	var balance int
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		balance, err = s.settle(tx, userID, responseTokens)
		return err
	})
	if err != nil {
		return 0, storeErr("settle tokens", err)
	}
	return balance, nil
}

// Reset restores the default quota, opening the ledger if needed.
func (s *LedgerService) Reset(ctx context.Context, userID string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrInvalidInput
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := s.getOrCreateLedger(tx, userID); err != nil {
			return err
		}
		return tx.Usage.SetRemaining(userID, s.cfg.DefaultQuota)
	})
	if err != nil {
		return 0, storeErr("reset tokens", err)
	}

	s.logger.Info("token ledger reset", "user_id", userID, "remaining_tokens", s.cfg.DefaultQuota)
	return s.cfg.DefaultQuota, nil
}

// getOrCreateLedger is the only place a ledger row is created.
func (s *LedgerService) getOrCreateLedger(tx *repository.Store, userID string) (*model.TokenUsage, error) {
	return tx.Usage.GetOrCreate(userID, s.cfg.DefaultQuota)
}

func (s *LedgerService) reserve(tx *repository.Store, userID string, inputTokens int) (*Reservation, error) {
	if _, err := s.getOrCreateLedger(tx, userID); err != nil {
		return nil, err
	}
	usage, err := tx.Usage.GetByUserIDForUpdate(userID)
	if err != nil {
		return nil, err
	}
	if usage == nil {
		return nil, ErrUnknownUser
	}

	required := inputTokens + s.cfg.ResponseMultiplier*inputTokens
	if usage.RemainingTokens < required {
		s.logger.Info("token reservation rejected",
			"user_id", userID,
			"remaining_tokens", usage.RemainingTokens,
			"required_tokens", required,
		)
		return nil, fmt.Errorf("%w: need %d, have %d", ErrQuotaExceeded, required, usage.RemainingTokens)
	}

	if err := tx.Usage.Debit(userID, inputTokens); err != nil {
		return nil, err
	}
	return &Reservation{
		InputTokens:  inputTokens,
		Required:     required,
		BalanceAfter: usage.RemainingTokens - inputTokens,
	}, nil
}

func (s *LedgerService) settle(tx *repository.Store, userID string, responseTokens int) (int, error) {
	usage, err := tx.Usage.GetByUserIDForUpdate(userID)
	if err != nil {
		return 0, err
	}
	if usage == nil {
		return 0, ErrUnknownUser
	}

	next := usage.RemainingTokens - responseTokens
	if next < 0 && !s.cfg.AllowNegativeBalance {
		if usage.RemainingTokens < 0 {
			next = usage.RemainingTokens
		} else {
			next = 0
		}
		if err := tx.Usage.SetRemaining(userID, next); err != nil {
			return 0, err
		}
		return next, nil
	}

	if err := tx.Usage.Debit(userID, responseTokens); err != nil {
		return 0, err
	}
	return next, nil
}
