package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/tm-acme-shop/acme-shop-storefront-bot/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/service"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []kafka.Message
	closes    int
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
	return nil
}

type fakeHandler struct {
	calls    int
	failures int
	err      error
	channels []models.ConfirmationChannel
}

func (h *fakeHandler) HandleIPN(ctx context.Context, n *models.PaymentNotification, channel models.ConfirmationChannel) (service.Outcome, error) {
	h.calls++
	h.channels = append(h.channels, channel)
	if h.err != nil {
		return "", h.err
	}
	if h.failures > 0 {
		h.failures--
		return "", &apperrors.LedgerError{Err: errors.New("ledger down")}
	}
	return service.OutcomeCommitted, nil
}

func rawIPN(t *testing.T) kafka.Message {
	t.Helper()
	return kafka.Message{Value: []byte(`{"payment_id":5077125051,"payment_status":"finished","price_amount":10,"pay_currency":"ltc","order_id":"ord-1"}`)}
}

func envelope(t *testing.T, attempt string) kafka.Message {
	t.Helper()
	data, err := json.Marshal(&models.PaymentNotification{PaymentID: "p-1", PaymentStatus: "finished", OrderID: "ord-1"})
	require.NoError(t, err)
	event := Event{Type: EventTypePaymentNotification, OrderID: "ord-1", Data: data, Metadata: map[string]string{attemptKey: attempt}}
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func newTestConsumer(reader messageReader, handler ConfirmationHandler, requeuer Requeuer, retries int) *KafkaConsumer {
	return newKafkaConsumer(reader, handler, requeuer, retries, 0, logging.NewLoggerV2("consumer-test"))
}

func TestKafkaConsumer_HandlesAndCommits(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{rawIPN(t), envelope(t, "0")}}
	handler := &fakeHandler{}
	requeuer := NewMockEventPublisher()

	err := newTestConsumer(reader, handler, requeuer, 3).Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, handler.calls)
	assert.Len(t, reader.committed, 2)
	assert.Equal(t, 0, requeuer.RequeuedCount())
	for _, ch := range handler.channels {
		assert.Equal(t, models.ChannelKafka, ch)
	}
}

func TestKafkaConsumer_RetriesLedgerErrors(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{rawIPN(t)}}
	handler := &fakeHandler{failures: 2}
	requeuer := NewMockEventPublisher()

	require.NoError(t, newTestConsumer(reader, handler, requeuer, 3).Start(context.Background()))

	assert.Equal(t, 3, handler.calls)
	assert.Equal(t, 0, requeuer.RequeuedCount())
	assert.Len(t, reader.committed, 1)
}

func TestKafkaConsumer_RequeuesAfterRetries(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{envelope(t, "1")}}
	handler := &fakeHandler{failures: 100}
	requeuer := NewMockEventPublisher()

	require.NoError(t, newTestConsumer(reader, handler, requeuer, 2).Start(context.Background()))

	assert.Equal(t, 3, handler.calls)
	require.Equal(t, 1, requeuer.RequeuedCount())
	assert.Equal(t, 2, requeuer.Attempts[0])
	assert.Len(t, reader.committed, 1)
}

func TestKafkaConsumer_DropsAfterMaxRequeues(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{envelope(t, "5")}}
	handler := &fakeHandler{failures: 100}
	requeuer := NewMockEventPublisher()

	require.NoError(t, newTestConsumer(reader, handler, requeuer, 0).Start(context.Background()))

	assert.Equal(t, 1, handler.calls)
	assert.Equal(t, 0, requeuer.RequeuedCount())
}

func TestKafkaConsumer_OtherErrorsNotRetried(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{rawIPN(t)}}
	handler := &fakeHandler{err: errors.New("session store unavailable")}
	requeuer := NewMockEventPublisher()

	require.NoError(t, newTestConsumer(reader, handler, requeuer, 3).Start(context.Background()))

	assert.Equal(t, 1, handler.calls)
	assert.Equal(t, 0, requeuer.RequeuedCount())
}

func TestKafkaConsumer_SkipsForeignAndBadMessages(t *testing.T) {
	foreign, _ := json.Marshal(Event{Type: EventTypeOrderConfirmed, OrderID: "ord-1"})
	reader := &fakeReader{messages: []kafka.Message{
		{Value: foreign},
		{Value: []byte("not json")},
		{Value: []byte(`{"hello":"world"}`)},
	}}
	handler := &fakeHandler{}

	require.NoError(t, newTestConsumer(reader, handler, NewMockEventPublisher(), 3).Start(context.Background()))

	assert.Equal(t, 0, handler.calls)
	assert.Len(t, reader.committed, 3, "unhandleable messages are still committed")
}

func TestKafkaConsumer_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestConsumer(&fakeReader{}, &fakeHandler{}, NewMockEventPublisher(), 3).Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKafkaConsumer_StopTwice(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{{Value: []byte(`{}`)}}}
	handler := &fakeHandler{}
	consumer := newTestConsumer(reader, handler, NewMockEventPublisher(), 3)

	consumer.Stop()
	assert.NotPanics(t, consumer.Stop)

	require.NoError(t, consumer.Start(context.Background()))
	assert.Equal(t, 0, handler.calls)
	assert.Equal(t, 1, reader.closes)
}
