package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/config"
	apperrors "github.com/tm-acme-shop/acme-shop-storefront-bot/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/service"
)

// maxRequeues bounds how often one notification goes back on the topic.
const maxRequeues = 5

// ConfirmationHandler reconciles a payment notification.
type ConfirmationHandler interface {
	HandleIPN(ctx context.Context, n *models.PaymentNotification, channel models.ConfirmationChannel) (service.Outcome, error)
}

// Requeuer puts a notification back for a later attempt.
type Requeuer interface {
	RequeueConfirmation(ctx context.Context, n *models.PaymentNotification, attempt int) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer reads payment notifications from the payments topic and
// reconciles them. Offsets are committed only after a message is handled,
// retried out or requeued.
type KafkaConsumer struct {
	reader     messageReader
	handler    ConfirmationHandler
	requeuer   Requeuer
	maxRetries int
	backoff    time.Duration
	logger     *logging.LoggerV2
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewKafkaConsumer creates a new Kafka-based payment notification consumer.
func NewKafkaConsumer(cfg config.KafkaConfig, handler ConfirmationHandler, requeuer Requeuer, logger *logging.LoggerV2) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.PaymentsTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	return newKafkaConsumer(reader, handler, requeuer, cfg.MaxRetries, cfg.RetryBackoff, logger)
}

func newKafkaConsumer(reader messageReader, handler ConfirmationHandler, requeuer Requeuer, maxRetries int, backoff time.Duration, logger *logging.LoggerV2) *KafkaConsumer {
	return &KafkaConsumer{
		reader:     reader,
		handler:    handler,
		requeuer:   requeuer,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// Start begins consuming events. It returns when ctx is done, Stop is
// called, or the reader is closed.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("Kafka consumer stopped")
			return nil
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				c.logger.Info("Kafka reader closed")
				return nil
			}
			c.logger.Error("Failed to read message", logging.Fields{"error": err.Error()})
			continue
		}

		c.handleMessage(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Failed to commit message", logging.Fields{
				"partition": msg.Partition,
				"offset":    msg.Offset,
				"error":     err.Error(),
			})
		}
	}
}

// Stop stops the consumer. Calling it more than once is safe.
func (c *KafkaConsumer) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("Failed to close Kafka reader", logging.Fields{"error": err.Error()})
		}
	})
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	c.logger.Debug("Received message", logging.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	n, attempt, err := decodeNotification(msg.Value)
	if err != nil {
		c.logger.Error("Failed to decode payment notification", logging.Fields{
			"offset": msg.Offset,
			"error":  err.Error(),
		})
		return
	}
	if n == nil {
		return
	}

	for try := 0; ; try++ {
		outcome, err := c.handler.HandleIPN(ctx, n, models.ChannelKafka)
		if err == nil {
			c.logger.Info("Payment notification handled", logging.Fields{
				"payment_id": n.PaymentID,
				"order_id":   n.OrderID,
				"outcome":    string(outcome),
			})
			return
		}
		if !apperrors.IsLedger(err) {
			c.logger.Error("Payment notification failed", logging.Fields{
				"payment_id": n.PaymentID,
				"error":      err.Error(),
			})
			return
		}
		if try >= c.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff):
		}
	}

	if attempt+1 > maxRequeues {
		c.logger.Error("Dropping payment notification after repeated ledger failures", logging.Fields{
			"payment_id": n.PaymentID,
			"order_id":   n.OrderID,
			"attempts":   attempt + 1,
		})
		return
	}
	if err := c.requeuer.RequeueConfirmation(ctx, n, attempt+1); err != nil {
		c.logger.Error("Failed to requeue payment notification", logging.Fields{
			"payment_id": n.PaymentID,
			"error":      err.Error(),
		})
	}
}

// decodeNotification accepts either an event envelope or a bare processor
// callback body. A nil notification means the message is not one to handle.
func decodeNotification(value []byte) (*models.PaymentNotification, int, error) {
	var event Event
	if err := json.Unmarshal(value, &event); err != nil {
		return nil, 0, err
	}

	switch event.Type {
	case EventTypePaymentNotification:
		var n models.PaymentNotification
		if err := json.Unmarshal(event.Data, &n); err != nil {
			return nil, 0, err
		}
		return &n, event.Attempt(), nil
	case "":
		var n models.PaymentNotification
		if err := json.Unmarshal(value, &n); err != nil {
			return nil, 0, err
		}
		if n.PaymentStatus == "" {
			return nil, 0, nil
		}
		return &n, 0, nil
	default:
		return nil, 0, nil
	}
}
