package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"tokenchat/internal/app"
	"tokenchat/internal/model"
)

// MessageAppender stores a message on an existing conversation.
type MessageAppender interface {
	AppendMessage(ctx context.Context, conversationID uint, content, role string) (*model.Message, error)
}

// MessagePersistWorker drains the persist queue into the conversation store.
type MessagePersistWorker struct {
	conn      *amqp.Connection
	appender  MessageAppender
	queueName string
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMessagePersistWorker(conn *amqp.Connection, appender MessageAppender, queueName string, logger *slog.Logger) *MessagePersistWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessagePersistWorker{
		conn:      conn,
		appender:  appender,
		queueName: queueName,
		logger:    logger.With("component", "message_persist_worker", "queue", queueName),
	}
}

func (w *MessagePersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if _, err := ch.QueueDeclare(w.queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker prefetch failed: %w", err)
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.logger.Warn("delivery channel closed")
					return
				}
				w.settle(d, w.handle(workerCtx, d.Body), d.Redelivered)
			}
		}
	}()

	w.logger.Info("worker started")
	return nil
}

type outcome int

const (
	ack outcome = iota
	drop
	retry
)

// handle persists one delivery. Undecodable or orphaned messages are
// dropped; store failures are retried once through redelivery.
func (w *MessagePersistWorker) handle(ctx context.Context, body []byte) outcome {
	var msg model.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		w.logger.Error("decode message failed", "error", err)
		return drop
	}

	if _, err := w.appender.AppendMessage(ctx, msg.ConversationID, msg.Content, msg.Role); err != nil {
		switch {
		case errors.Is(err, app.ErrConversationNotFound), errors.Is(err, app.ErrInvalidInput):
			w.logger.Warn("discarding message", "conversation_id", msg.ConversationID, "error", err)
			return drop
		default:
			w.logger.Error("persist message failed", "conversation_id", msg.ConversationID, "error", err)
			return retry
		}
	}
	return ack
}

func (w *MessagePersistWorker) settle(d amqp.Delivery, result outcome, redelivered bool) {
	switch {
	case result == ack:
		_ = d.Ack(false)
	case result == retry && !redelivered:
		_ = d.Nack(false, true)
	default:
		_ = d.Nack(false, false)
	}
}

func (w *MessagePersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
