package worker

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenchat/internal/app"
	"tokenchat/internal/model"
)

type fakeAppender struct {
	err      error
	appended []model.Message
}

func (f *fakeAppender) AppendMessage(_ context.Context, conversationID uint, content, role string) (*model.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	msg := model.Message{ConversationID: conversationID, Content: content, Role: role}
	f.appended = append(f.appended, msg)
	return &msg, nil
}

type recordingAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (r *recordingAcknowledger) Ack(uint64, bool) error {
	r.acked = true
	return nil
}

func (r *recordingAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	r.nacked = true
	r.requeue = requeue
	return nil
}

func (r *recordingAcknowledger) Reject(_ uint64, requeue bool) error {
	r.nacked = true
	r.requeue = requeue
	return nil
}

func TestHandle_PersistsDecodedMessage(t *testing.T) {
	appender := &fakeAppender{}
	w := NewMessagePersistWorker(nil, appender, "q", nil)

	result := w.handle(context.Background(), []byte(`{"conversation_id":7,"role":"assistant","content":"hi"}`))
	assert.Equal(t, ack, result)
	require.Len(t, appender.appended, 1)
	assert.Equal(t, uint(7), appender.appended[0].ConversationID)
	assert.Equal(t, "assistant", appender.appended[0].Role)
}

func TestHandle_Outcomes(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  error
		want outcome
	}{
		{name: "malformed", body: `{`, want: drop},
		{name: "orphaned", body: `{"conversation_id":1,"role":"user","content":"x"}`, err: app.ErrConversationNotFound, want: drop},
		{name: "invalid", body: `{"conversation_id":1,"role":"robot","content":"x"}`, err: app.ErrInvalidInput, want: drop},
		{name: "store failure", body: `{"conversation_id":1,"role":"user","content":"x"}`, err: &app.StoreError{Op: "append message", Err: errors.New("disk full")}, want: retry},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := NewMessagePersistWorker(nil, &fakeAppender{err: tc.err}, "q", nil)
			assert.Equal(t, tc.want, w.handle(context.Background(), []byte(tc.body)))
		})
	}
}

func TestSettle_RetriesOnlyOnce(t *testing.T) {
	w := NewMessagePersistWorker(nil, &fakeAppender{}, "q", nil)

	first := &recordingAcknowledger{}
	w.settle(amqp.Delivery{Acknowledger: first, DeliveryTag: 1}, retry, false)
	assert.True(t, first.nacked)
	assert.True(t, first.requeue)

	second := &recordingAcknowledger{}
	w.settle(amqp.Delivery{Acknowledger: second, DeliveryTag: 2}, retry, true)
	assert.True(t, second.nacked)
	assert.False(t, second.requeue)

	ok := &recordingAcknowledger{}
	w.settle(amqp.Delivery{Acknowledger: ok, DeliveryTag: 3}, ack, false)
	assert.True(t, ok.acked)
}
