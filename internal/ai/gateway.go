package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrGatewayTimeout     = errors.New("gateway timed out")
	ErrGatewayUnavailable = errors.New("gateway unavailable")
)

// GatewayError reports an upstream reply that was not a usable success.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Body)
}

type SendRequest struct {
	Query string
	// User identifies the end user to the upstream service.
	User string
	// ConversationID is the upstream conversation to continue; empty starts a new one.
	ConversationID string
}

type SendResult struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
}

// Gateway sends one chat turn to the external conversational service.
// Implementations never retry.
type Gateway interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}

// classifyTransportError maps a failed round trip onto the gateway taxonomy.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}
