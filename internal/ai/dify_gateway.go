package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGatewayTimeout = 30 * time.Second

type DifyConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// DifyGateway talks to a Dify application's blocking chat-messages endpoint.
type DifyGateway struct {
	cfg        DifyConfig
	httpClient *http.Client
}

type difyChatRequest struct {
	Inputs         map[string]interface{} `json:"inputs"`
	Query          string                 `json:"query"`
	ResponseMode   string                 `json:"response_mode"`
	ConversationID string                 `json:"conversation_id"`
	User           string                 `json:"user"`
}

type difyChatResponse struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

func NewDifyGateway(cfg DifyConfig) *DifyGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGatewayTimeout
	}
	return &DifyGateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (g *DifyGateway) Send(ctx context.Context, in SendRequest) (*SendResult, error) {
	bodyBytes, err := json.Marshal(difyChatRequest{
		Inputs:         map[string]interface{}{},
		Query:          in.Query,
		ResponseMode:   "blocking",
		ConversationID: in.ConversationID,
		User:           in.User,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal gateway request failed: %w", err)
	}

	url := strings.TrimRight(g.cfg.BaseURL, "/") + "/chat-messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build gateway request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed difyChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: "malformed response: " + string(raw)}
	}

	conversationID := parsed.ConversationID
	if conversationID == "" {
		conversationID = in.ConversationID
	}
	return &SendResult{
		Answer:         parsed.Answer,
		ConversationID: conversationID,
	}, nil
}
