package events

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
)

// EventType represents the type of storefront event.
type EventType string

const (
	EventTypeOrderConfirmed      EventType = "order.confirmed"
	EventTypePaymentNotification EventType = "payment.notification"
)

const attemptKey = "attempt"

// Event is the envelope written to every topic.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	OrderID   string            `json:"order_id"`
	BuyerID   string            `json:"buyer_id,omitempty"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp time.Time         `json:"timestamp"`
}

// Attempt is how many times a requeued notification has already failed.
func (e *Event) Attempt() int {
	n, _ := strconv.Atoi(e.Metadata[attemptKey])
	return n
}

// Publisher is what the HTTP and consumer paths need from the event bus.
type Publisher interface {
	PublishOrderConfirmed(ctx context.Context, row *models.LedgerRow) error
	RequeueConfirmation(ctx context.Context, n *models.PaymentNotification, attempt int) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes confirmed orders to the orders topic and requeues
// payment notifications on the payments topic.
type KafkaPublisher struct {
	writer        messageWriter
	ordersTopic   string
	paymentsTopic string
	logger        *logging.LoggerV2
}

// NewKafkaPublisher creates a new Kafka-based event publisher. The writer has
// no default topic; each message names its own.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *logging.LoggerV2) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
	}

	return &KafkaPublisher{
		writer:        writer,
		ordersTopic:   cfg.OrdersTopic,
		paymentsTopic: cfg.PaymentsTopic,
		logger:        logger,
	}
}

// PublishOrderConfirmed publishes the ledger row of a committed order.
func (p *KafkaPublisher) PublishOrderConfirmed(ctx context.Context, row *models.LedgerRow) error {
	p.logger.Debug("Publishing order confirmed event", logging.Fields{
		"order_id": row.OrderID,
	})

	data, err := json.Marshal(row)
	if err != nil {
		return err
	}

	event := newEvent(EventTypeOrderConfirmed, row.OrderID, row.BuyerID, data)
	return p.publish(ctx, p.ordersTopic, event)
}

// RequeueConfirmation puts a notification back on the payments topic so the
// consumer retries it later.
func (p *KafkaPublisher) RequeueConfirmation(ctx context.Context, n *models.PaymentNotification, attempt int) error {
	p.logger.Info("Requeueing payment notification", logging.Fields{
		"payment_id": n.PaymentID,
		"order_id":   n.OrderID,
		"attempt":    attempt,
	})

	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	event := newEvent(EventTypePaymentNotification, n.OrderID, "", data)
	event.Metadata[attemptKey] = strconv.Itoa(attempt)
	return p.publish(ctx, p.paymentsTopic, event)
}

func newEvent(eventType EventType, orderID, buyerID string, data []byte) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		OrderID:   orderID,
		BuyerID:   buyerID,
		Data:      data,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UTC(),
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, topic string, event *Event) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(event.OrderID),
		Value: eventData,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event", logging.Fields{
			"event_id":   event.ID,
			"event_type": string(event.Type),
			"order_id":   event.OrderID,
			"topic":      topic,
			"error":      err.Error(),
		})
		return err
	}

	p.logger.Info("Event published", logging.Fields{
		"event_id":   event.ID,
		"event_type": string(event.Type),
		"order_id":   event.OrderID,
		"topic":      topic,
	})

	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing Kafka publisher")
	return p.writer.Close()
}

// NoopPublisher is used when order events are disabled.
type NoopPublisher struct {
	logger *logging.LoggerV2
}

func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{logger: logging.NewLoggerV2("noop-publisher")}
}

func (p *NoopPublisher) PublishOrderConfirmed(ctx context.Context, row *models.LedgerRow) error {
	p.logger.Debug("Order events disabled, not publishing", logging.Fields{"order_id": row.OrderID})
	return nil
}

func (p *NoopPublisher) RequeueConfirmation(ctx context.Context, n *models.PaymentNotification, attempt int) error {
	p.logger.Warn("Order events disabled, notification not requeued", logging.Fields{
		"payment_id": n.PaymentID,
		"order_id":   n.OrderID,
	})
	return nil
}

// MockEventPublisher is a mock implementation for testing.
type MockEventPublisher struct {
	mu        sync.Mutex
	Confirmed []*models.LedgerRow
	Requeued  []*models.PaymentNotification
	Attempts  []int
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) PublishOrderConfirmed(ctx context.Context, row *models.LedgerRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Confirmed = append(m.Confirmed, row)
	return nil
}

func (m *MockEventPublisher) RequeueConfirmation(ctx context.Context, n *models.PaymentNotification, attempt int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requeued = append(m.Requeued, n)
	m.Attempts = append(m.Attempts, attempt)
	return nil
}

func (m *MockEventPublisher) RequeuedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requeued)
}
