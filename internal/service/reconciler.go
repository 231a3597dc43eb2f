package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/config"
	apperrors "github.com/tm-acme-shop/acme-shop-storefront-bot/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/repository"
)

// Outcome describes what a confirmation did.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	// OutcomeIgnored: the processor status was not final, or the channel is off.
	OutcomeIgnored   Outcome = "ignored"
	OutcomeUnmatched Outcome = "unmatched"
	// OutcomeStale: the session exists but is not awaiting payment.
	OutcomeStale     Outcome = "stale"
	OutcomeAmbiguous Outcome = "ambiguous"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeMismatch  Outcome = "mismatch"
)

// EventPublisher announces committed orders.
type EventPublisher interface {
	PublishOrderConfirmed(ctx context.Context, row *models.LedgerRow) error
}

// Reconciler turns payment confirmations into ledger rows. At most one row
// is appended per session: the append happens before the session is
// removed, and both happen under the buyer's lock.
type Reconciler struct {
	sessions  repository.SessionStore
	ledger    repository.LedgerStore
	dedup     repository.PaymentDedup
	publisher EventPublisher
	chat      ChatGateway
	locks     *KeyedLocker
	shop      config.ShopConfig
	features  config.FeatureFlags
	now       func() time.Time
	logger    *logging.LoggerV2

	committedMu sync.Mutex
	committed   map[string]struct{}
}

// NewReconciler creates a new reconciler.
func NewReconciler(
	sessions repository.SessionStore,
	ledger repository.LedgerStore,
	dedup repository.PaymentDedup,
	publisher EventPublisher,
	chat ChatGateway,
	locks *KeyedLocker,
	cfg *config.Config,
) *Reconciler {
	return &Reconciler{
		sessions:  sessions,
		ledger:    ledger,
		dedup:     dedup,
		publisher: publisher,
		chat:      chat,
		locks:     locks,
		shop:      cfg.Shop,
		features:  cfg.Features,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logging.NewLoggerV2("reconciler"),
		committed: make(map[string]struct{}),
	}
}

// HandleIPN reconciles a processor notification. Only a LedgerError is
// returned; every other non-commit is reported through the Outcome.
func (r *Reconciler) HandleIPN(ctx context.Context, n *models.PaymentNotification, channel models.ConfirmationChannel) (Outcome, error) {
	fields := logging.Fields{
		"payment_id":     n.PaymentID,
		"order_id":       n.OrderID,
		"payment_status": n.PaymentStatus,
		"amount":         n.PriceAmount.String(),
		"pay_currency":   string(n.PayCurrency),
		"channel":        string(channel),
	}

	if !n.Finished() {
		r.logger.Info("Payment notification not final", fields)
		return r.record(channel, OutcomeIgnored), nil
	}

	if n.PaymentID != "" {
		seen, err := r.dedup.Seen(ctx, n.PaymentID)
		if err != nil {
			r.logger.Warn("Payment dedup lookup failed", logging.Fields{
				"payment_id": n.PaymentID,
				"error":      err.Error(),
			})
		}
		if seen {
			r.logger.Info("Duplicate payment notification", fields)
			return r.record(channel, OutcomeDuplicate), nil
		}
	}

	target, outcome, err := r.resolve(ctx, n)
	if err != nil {
		return "", err
	}
	if target == nil {
		fields["outcome"] = string(outcome)
		r.logger.Info("Payment notification discarded", fields)
		return r.record(channel, outcome), nil
	}

	unlock := r.locks.Lock(target.Buyer.ID)
	defer unlock()

	current, err := r.sessions.Get(ctx, target.Buyer.ID)
	if err != nil {
		return "", err
	}
	if current == nil || current.OrderID != target.OrderID || !current.AwaitingPayment() || r.alreadyCommitted(current.OrderID) {
		r.logger.Info("Session changed before commit", fields)
		return r.record(channel, OutcomeStale), nil
	}

	row, err := r.commit(ctx, current, channel, n.PaymentID)
	if err != nil {
		return "", err
	}

	r.notify(ctx, current.Buyer, paymentReceivedText(row))
	return r.record(channel, OutcomeCommitted), nil
}

// HandleManual reconciles the buyer's own "paid" declaration against their
// current session. The buyer is told the order is confirmed even when the
// ledger append fails; the error is still returned so the event is retried.
func (r *Reconciler) HandleManual(ctx context.Context, buyer models.Buyer) (Outcome, error) {
	channel := models.ChannelManual

	if !r.features.EnableManualConfirmation {
		r.logger.Info("Manual confirmation disabled", logging.Fields{"buyer_id": buyer.ID})
		return r.record(channel, OutcomeIgnored), nil
	}
	if err := ValidateBuyer(buyer); err != nil {
		return "", err
	}

	unlock := r.locks.Lock(buyer.ID)
	defer unlock()

	session, err := r.sessions.Get(ctx, buyer.ID)
	if err != nil {
		return "", err
	}
	if session == nil || !session.AwaitingPayment() || r.alreadyCommitted(session.OrderID) {
		outcome := OutcomeUnmatched
		fields := logging.Fields{"buyer_id": buyer.ID}
		if session != nil {
			outcome = OutcomeStale
			fields["status"] = string(session.Status)
		}
		r.logger.Info("Manual confirmation without open invoice", fields)
		r.notify(ctx, buyer, noOpenInvoiceText)
		return r.record(channel, outcome), nil
	}

	if buyer.Handle != "" {
		session.Buyer.Handle = buyer.Handle
	}

	_, err = r.commit(ctx, session, channel, "")
	r.notify(ctx, buyer, manualConfirmedText)
	if err != nil {
		return "", err
	}
	return r.record(channel, OutcomeCommitted), nil
}

// resolve finds the session a notification belongs to. The order id is
// authoritative when present; otherwise exactly one awaiting session must
// match amount, currency and description.
func (r *Reconciler) resolve(ctx context.Context, n *models.PaymentNotification) (*models.OrderSession, Outcome, error) {
	if n.OrderID != "" {
		session, err := r.sessions.FindByOrderID(ctx, n.OrderID)
		if err != nil {
			return nil, "", err
		}
		if session == nil {
			return nil, OutcomeUnmatched, nil
		}
		if !session.AwaitingPayment() || r.alreadyCommitted(session.OrderID) {
			return nil, OutcomeStale, nil
		}
		if !notificationMatches(session, n) {
			r.logger.Warn("Payment notification does not match its order", logging.Fields{
				"order_id":          session.OrderID,
				"expected_amount":   session.TotalPrice().String(),
				"received_amount":   n.PriceAmount.String(),
				"expected_currency": string(session.PayCurrency),
				"received_currency": string(n.PayCurrency),
			})
			return nil, OutcomeMismatch, nil
		}
		return session, "", nil
	}

	sessions, err := r.sessions.List(ctx)
	if err != nil {
		return nil, "", err
	}

	var candidates []*models.OrderSession
	for _, s := range sessions {
		if !s.AwaitingPayment() || r.alreadyCommitted(s.OrderID) || !notificationMatches(s, n) {
			continue
		}
		if n.OrderDescription != "" && !strings.EqualFold(n.OrderDescription, r.shop.OrderDescription) {
			continue
		}
		candidates = append(candidates, s)
	}

	switch len(candidates) {
	case 0:
		return nil, OutcomeUnmatched, nil
	case 1:
		return candidates[0], "", nil
	default:
		r.logger.Warn("Payment notification matches several orders", logging.Fields{
			"payment_id": n.PaymentID,
			"candidates": len(candidates),
		})
		return nil, OutcomeAmbiguous, nil
	}
}

// commit must be called with the buyer's lock held.
func (r *Reconciler) commit(ctx context.Context, session *models.OrderSession, channel models.ConfirmationChannel, paymentID string) (*models.LedgerRow, error) {
	row := models.NewLedgerRow(session, channel, paymentID, r.now())

	if err := r.ledger.Append(ctx, row); err != nil {
		metrics.LedgerWriteFailures.Inc()
		r.logger.Error("Ledger append failed, order left awaiting payment", logging.Fields{
			"buyer_id":   session.Buyer.ID,
			"order_id":   session.OrderID,
			"payment_id": paymentID,
			"channel":    string(channel),
			"error":      err.Error(),
		})
		if !apperrors.IsLedger(err) {
			err = &apperrors.LedgerError{Err: err}
		}
		return nil, err
	}

	r.retire(ctx, session)

	if paymentID != "" {
		if err := r.dedup.MarkSeen(ctx, paymentID); err != nil {
			r.logger.Warn("Failed to record processed payment", logging.Fields{
				"payment_id": paymentID,
				"error":      err.Error(),
			})
		}
	}

	r.logger.Info("Order confirmed", logging.Fields{
		"buyer_id":   session.Buyer.ID,
		"order_id":   session.OrderID,
		"payment_id": paymentID,
		"quantity":   row.Quantity,
		"total":      row.TotalPrice.StringFixed(2),
		"channel":    string(channel),
		"outcome":    row.Outcome,
	})

	if r.publisher != nil {
		if err := r.publisher.PublishOrderConfirmed(ctx, row); err != nil {
			r.logger.Error("Failed to publish order confirmed event", logging.Fields{
				"order_id": session.OrderID,
				"error":    err.Error(),
			})
		}
	}

	return row, nil
}

// retire closes a session whose row is already in the ledger. The Confirmed
// status is stored before removal so a failed Remove cannot leave the order
// open; if the store rejects both, the order id is remembered in process.
func (r *Reconciler) retire(ctx context.Context, session *models.OrderSession) {
	session.Status = models.OrderStatusConfirmed
	session.UpdatedAt = r.now()

	fields := logging.Fields{
		"buyer_id": session.Buyer.ID,
		"order_id": session.OrderID,
	}

	putErr := r.sessions.Put(ctx, session)
	if putErr != nil {
		fields["put_error"] = putErr.Error()
	}

	removeErr := r.sessions.Remove(ctx, session.Buyer.ID)
	if removeErr == nil {
		return
	}
	fields["error"] = removeErr.Error()
	r.logger.Error("Failed to remove confirmed session", fields)

	if putErr != nil {
		r.committedMu.Lock()
		r.committed[session.OrderID] = struct{}{}
		r.committedMu.Unlock()
	}
}

// alreadyCommitted reports whether orderID reached the ledger but the store
// still shows it open.
func (r *Reconciler) alreadyCommitted(orderID string) bool {
	r.committedMu.Lock()
	defer r.committedMu.Unlock()
	_, ok := r.committed[orderID]
	return ok
}

func (r *Reconciler) notify(ctx context.Context, buyer models.Buyer, text string) {
	if r.chat == nil {
		return
	}
	if err := r.chat.SendText(ctx, buyer, text); err != nil {
		r.logger.Warn("Failed to send chat message", logging.Fields{
			"buyer_id": buyer.ID,
			"error":    err.Error(),
		})
	}
}

func (r *Reconciler) record(channel models.ConfirmationChannel, outcome Outcome) Outcome {
	metrics.ConfirmationsTotal.WithLabelValues(string(channel), string(outcome)).Inc()
	return outcome
}

func notificationMatches(s *models.OrderSession, n *models.PaymentNotification) bool {
	return n.PriceAmount.Equal(s.TotalPrice()) &&
		strings.EqualFold(string(n.PayCurrency), string(s.PayCurrency))
}
