package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"tokenchat/internal/model"
)

// MessageCache keeps each conversation's message listing in Redis. A short
// lived dirty marker set on every write keeps readers from refilling the
// cache with a listing that is about to change.
type MessageCache struct {
	client         *redisv9.Client
	listingTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewMessageCache(client *redisv9.Client, listingTTL, dirtyMarkerTTL time.Duration) *MessageCache {
	if listingTTL <= 0 {
		listingTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &MessageCache{
		client:         client,
		listingTTL:     listingTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *MessageCache) GetHistory(ctx context.Context, conversationID uint) ([]model.Message, bool, error) {
	raw, err := c.client.Get(ctx, listingKey(conversationID)).Bytes()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get messages failed: %w", err)
	}

	messages := make([]model.Message, 0)
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached messages failed: %w", err)
	}
	return messages, true, nil
}

func (c *MessageCache) SetHistory(ctx context.Context, conversationID uint, messages []model.Message) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal messages failed: %w", err)
	}
	if err := c.client.Set(ctx, listingKey(conversationID), payload, c.listingTTL).Err(); err != nil {
		return fmt.Errorf("redis set messages failed: %w", err)
	}
	return nil
}

func (c *MessageCache) DeleteHistory(ctx context.Context, conversationID uint) error {
	if err := c.client.Del(ctx, listingKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("redis delete messages failed: %w", err)
	}
	return nil
}

func (c *MessageCache) MarkDirty(ctx context.Context, conversationID uint) error {
	if err := c.client.Set(ctx, dirtyKey(conversationID), "1", c.dirtyMarkerTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *MessageCache) IsDirty(ctx context.Context, conversationID uint) (bool, error) {
	exists, err := c.client.Exists(ctx, dirtyKey(conversationID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func listingKey(conversationID uint) string {
	return fmt.Sprintf("tokenchat:conversation:%d:messages", conversationID)
}

func dirtyKey(conversationID uint) string {
	return fmt.Sprintf("tokenchat:conversation:%d:dirty", conversationID)
}
