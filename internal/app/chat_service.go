package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"tokenchat/internal/ai"
	"tokenchat/internal/model"
	"tokenchat/internal/repository"
)

const statusSuccess = "success"

// AsyncMessagePublisher hands a message off for persistence, possibly later.
type AsyncMessagePublisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

type ChatService struct {
	store         *repository.Store
	ledger        *LedgerService
	conversations *ConversationService
	gateway       ai.Gateway
	publisher     AsyncMessagePublisher
	logger        *slog.Logger
}

type SubmitInput struct {
	UserID  string
	Message string
	// ConversationID selects an existing conversation; nil continues the
	// user's most recent one.
	ConversationID *uint
}

type SubmitResult struct {
	Status          string `json:"status"`
	RemainingTokens int    `json:"remaining_tokens"`
	InputTokens     int    `json:"input_tokens"`
	ConversationID  uint   `json:"conversation_id"`
}

type ResponseResult struct {
	Status          string `json:"status"`
	RemainingTokens int    `json:"remaining_tokens"`
	ResponseTokens  int    `json:"response_tokens"`
}

type ProxyInput struct {
	Query          string
	UserID         string
	ConversationID string
}

type ConverseResult struct {
	Status                 string `json:"status"`
	Answer                 string `json:"answer"`
	ConversationID         uint   `json:"conversation_id"`
	ExternalConversationID string `json:"external_conversation_id,omitempty"`
	InputTokens            int    `json:"input_tokens"`
	ResponseTokens         int    `json:"response_tokens"`
	RemainingTokens        int    `json:"remaining_tokens"`
}

func NewChatService(
	store *repository.Store,
	ledger *LedgerService,
	conversations *ConversationService,
	gateway ai.Gateway,
	publisher AsyncMessagePublisher,
	logger *slog.Logger,
) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = conversations
	}
	return &ChatService{
		store:         store,
		ledger:        ledger,
		conversations: conversations,
		gateway:       gateway,
		publisher:     publisher,
		logger:        logger,
	}
}

// Submit admits a user message against the quota and records it. The
// reservation, conversation lookup and message insert commit together, so a
// rejected or misaddressed message leaves no trace.
func (s *ChatService) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	result, _, err := s.submit(ctx, input)
	return result, err
}

// RecordResponse charges the user for a reply produced elsewhere.
func (s *ChatService) RecordResponse(ctx context.Context, userID, response string) (*ResponseResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.TrimSpace(response) == "" {
		return nil, ErrInvalidInput
	}

	responseTokens := s.ledger.EstimateCost(response)
	balance, err := s.ledger.Settle(ctx, userID, responseTokens)
	if err != nil {
		return nil, err
	}
	return &ResponseResult{
		Status:          statusSuccess,
		RemainingTokens: balance,
		ResponseTokens:  responseTokens,
	}, nil
}

// Proxy forwards a query to the gateway without touching the ledger.
func (s *ChatService) Proxy(ctx context.Context, input ProxyInput) (*ai.SendResult, error) {
	query := strings.TrimSpace(input.Query)
	userID := strings.TrimSpace(input.UserID)
	if query == "" || userID == "" {
		return nil, ErrInvalidInput
	}
	return s.gateway.Send(ctx, ai.SendRequest{
		Query:          query,
		User:           userID,
		ConversationID: strings.TrimSpace(input.ConversationID),
	})
}

// Converse runs a whole turn: admit and record the user message, ask the
// gateway, charge for the answer and record it. A gateway failure leaves
// the input charge and the user message in place.
func (s *ChatService) Converse(ctx context.Context, input SubmitInput) (*ConverseResult, error) {
	submitted, conversation, err := s.submit(ctx, input)
	if err != nil {
		return nil, err
	}

	externalID := ""
	if conversation.ExternalConversationID != nil {
		externalID = *conversation.ExternalConversationID
	}

	started := time.Now()
	reply, err := s.gateway.Send(ctx, ai.SendRequest{
		Query:          strings.TrimSpace(input.Message),
		User:           conversation.UserID,
		ConversationID: externalID,
	})
	if err != nil {
		s.logger.Warn("gateway call failed",
			"user_id", conversation.UserID,
			"conversation_id", conversation.ID,
			"error", err,
		)
		return nil, err
	}
	s.logger.Debug("gateway call finished",
		"conversation_id", conversation.ID,
		"duration", time.Since(started),
	)

	if reply.ConversationID != "" && reply.ConversationID != externalID {
		if err := s.conversations.LinkExternal(ctx, conversation.ID, reply.ConversationID); err != nil {
			return nil, err
		}
		externalID = reply.ConversationID
	}

	if strings.TrimSpace(reply.Answer) != "" {
		assistant := model.Message{
			ConversationID: conversation.ID,
			Role:           model.RoleAssistant,
			Content:        reply.Answer,
		}
		if err := s.publisher.Publish(ctx, assistant); err != nil {
			s.logger.Error("publish assistant message failed",
				"conversation_id", conversation.ID,
				"error", err,
			)
			return nil, storeErr("record assistant message", err)
		}
	}

	// The reply is charged only once it has been recorded.
	responseTokens := s.ledger.EstimateCost(reply.Answer)
	balance, err := s.ledger.Settle(ctx, conversation.UserID, responseTokens)
	if err != nil {
		return nil, err
	}

	return &ConverseResult{
		Status:                 statusSuccess,
		Answer:                 reply.Answer,
		ConversationID:         conversation.ID,
		ExternalConversationID: externalID,
		InputTokens:            submitted.InputTokens,
		ResponseTokens:         responseTokens,
		RemainingTokens:        balance,
	}, nil
}

func (s *ChatService) submit(ctx context.Context, input SubmitInput) (*SubmitResult, *model.Conversation, error) {
	userID := strings.TrimSpace(input.UserID)
	message := strings.TrimSpace(input.Message)
	if userID == "" || message == "" {
		return nil, nil, ErrInvalidInput
	}

	inputTokens := s.ledger.EstimateCost(message)

	var (
		reservation  *Reservation
		conversation *model.Conversation
	)
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		reservation, err = s.ledger.reserve(tx, userID, inputTokens)
		if err != nil {
			return err
		}
		conversation, err = s.conversations.resolve(tx, userID, input.ConversationID, message)
		if err != nil {
			return err
		}
		_, err = s.conversations.appendMessage(tx, conversation.ID, message, model.RoleUser)
		return err
	})
	if err != nil {
		return nil, nil, storeErr("submit chat message", err)
	}
	s.conversations.invalidateHistory(ctx, conversation.ID)

	return &SubmitResult{
		Status:          statusSuccess,
		RemainingTokens: reservation.BalanceAfter,
		InputTokens:     inputTokens,
		ConversationID:  conversation.ID,
	}, conversation, nil
}
