package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/config"
	apperrors "github.com/tm-acme-shop/acme-shop-storefront-bot/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/repository"
)

// ChatGateway renders messages in the buyer's chat.
type ChatGateway interface {
	SendText(ctx context.Context, buyer models.Buyer, text string) error
	SendMenu(ctx context.Context, buyer models.Buyer, text string, options []clients.MenuOption) error
}

// InvoiceCreator requests a payable invoice from the payment processor.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, orderID string, amount decimal.Decimal, currency models.Currency) (*models.Invoice, error)
}

// OrderMachine drives a buyer's conversation from quantity selection to an
// invoice awaiting payment. Confirmation belongs to the Reconciler.
type OrderMachine struct {
	sessions repository.SessionStore
	invoices InvoiceCreator
	chat     ChatGateway
	locks    *KeyedLocker
	shop     config.ShopConfig
	now      func() time.Time
	newID    func() string
	logger   *logging.LoggerV2
}

// NewOrderMachine creates a new order state machine.
func NewOrderMachine(
	sessions repository.SessionStore,
	invoices InvoiceCreator,
	chat ChatGateway,
	locks *KeyedLocker,
	shop config.ShopConfig,
) *OrderMachine {
	return &OrderMachine{
		sessions: sessions,
		invoices: invoices,
		chat:     chat,
		locks:    locks,
		shop:     shop,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		logger:   logging.NewLoggerV2("order-machine"),
	}
}

// Begin starts a new order, replacing any session the buyer had.
func (m *OrderMachine) Begin(ctx context.Context, buyer models.Buyer) (*models.OrderSession, error) {
	if err := ValidateBuyer(buyer); err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(buyer.ID)
	defer unlock()

	prev, err := m.sessions.Get(ctx, buyer.ID)
	if err != nil {
		return nil, err
	}
	if prev != nil && prev.AwaitingPayment() {
		// The old invoice stays open at the processor; its callback will no
		// longer match anything.
		m.logger.Warn("Abandoning order awaiting payment", logging.Fields{
			"buyer_id":    buyer.ID,
			"order_id":    prev.OrderID,
			"invoice_url": prev.InvoiceURL,
		})
	}

	session := m.newSession(buyer)
	if err := m.sessions.Put(ctx, session); err != nil {
		return nil, err
	}

	m.logger.Info("Order started", logging.Fields{
		"buyer_id": buyer.ID,
		"order_id": session.OrderID,
	})

	m.menu(ctx, buyer, welcomeText(m.shop.Name), quantityOptions(m.shop.MaxQuantity))
	return session, nil
}

// SelectQuantity records the quantity and offers the currencies for its tier.
// A session is created when the buyer skipped Begin.
func (m *OrderMachine) SelectQuantity(ctx context.Context, buyer models.Buyer, quantity int) (*models.OrderSession, error) {
	if err := ValidateBuyer(buyer); err != nil {
		return nil, err
	}
	if err := ValidateQuantity(quantity, m.shop.MaxQuantity); err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(buyer.ID)
	defer unlock()

	session, err := m.sessions.Get(ctx, buyer.ID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		session = m.newSession(buyer)
	}
	if session.AwaitingPayment() {
		m.logger.Info("Quantity rejected, invoice already open", logging.Fields{
			"buyer_id": buyer.ID,
			"order_id": session.OrderID,
		})
		m.text(ctx, buyer, openInvoiceText)
		return nil, ErrInvalidTransition
	}

	if buyer.Handle != "" {
		session.Buyer.Handle = buyer.Handle
	}
	session.Quantity = quantity
	session.PayCurrency = ""
	session.Status = models.OrderStatusSelectingCurrency
	session.UpdatedAt = m.now()

	if err := m.sessions.Put(ctx, session); err != nil {
		return nil, err
	}

	m.logger.Info("Quantity selected", logging.Fields{
		"buyer_id": buyer.ID,
		"order_id": session.OrderID,
		"quantity": quantity,
		"total":    session.TotalPrice().StringFixed(2),
	})

	m.menu(ctx, buyer, currencyPromptText(session), currencyOptions(quantity))
	return session, nil
}

// SelectCurrency requests the invoice. On InvoiceError the session is left
// in SelectingCurrency so the buyer can pick again.
func (m *OrderMachine) SelectCurrency(ctx context.Context, buyer models.Buyer, currency models.Currency) (*models.OrderSession, error) {
	if err := ValidateBuyer(buyer); err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(buyer.ID)
	defer unlock()

	session, err := m.sessions.Get(ctx, buyer.ID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Status != models.OrderStatusSelectingCurrency {
		fields := logging.Fields{"buyer_id": buyer.ID, "currency": string(currency)}
		if session != nil {
			fields["status"] = string(session.Status)
		}
		m.logger.Info("Currency selection out of order", fields)
		return nil, ErrInvalidTransition
	}

	if err := ValidateCurrency(session.Quantity, currency); err != nil {
		m.text(ctx, buyer, err.Error())
		m.menu(ctx, buyer, currencyPromptText(session), currencyOptions(session.Quantity))
		return nil, err
	}

	invoice, err := m.invoices.CreateInvoice(ctx, session.OrderID, session.TotalPrice(), currency)
	if err != nil {
		metrics.InvoicesTotal.WithLabelValues("error").Inc()
		m.logger.Error("Invoice creation failed", logging.Fields{
			"buyer_id": buyer.ID,
			"order_id": session.OrderID,
			"currency": string(currency),
			"error":    err.Error(),
		})
		m.text(ctx, buyer, invoiceFailedText)
		m.menu(ctx, buyer, currencyPromptText(session), currencyOptions(session.Quantity))
		if !apperrors.IsInvoice(err) {
			err = &apperrors.InvoiceError{Err: err}
		}
		return nil, err
	}
	metrics.InvoicesTotal.WithLabelValues("created").Inc()

	if buyer.Handle != "" {
		session.Buyer.Handle = buyer.Handle
	}
	session.PayCurrency = currency
	session.InvoiceID = invoice.ID
	session.InvoiceURL = invoice.URL
	session.Status = models.OrderStatusAwaitingPayment
	session.UpdatedAt = m.now()

	if err := m.sessions.Put(ctx, session); err != nil {
		return nil, err
	}

	m.logger.Info("Invoice created", logging.Fields{
		"buyer_id":   buyer.ID,
		"order_id":   session.OrderID,
		"invoice_id": invoice.ID,
		"currency":   string(currency),
		"total":      session.TotalPrice().StringFixed(2),
	})

	m.text(ctx, buyer, invoiceText(session))
	return session, nil
}

// Session returns the buyer's current session.
func (m *OrderMachine) Session(ctx context.Context, buyerID string) (*models.OrderSession, error) {
	session, err := m.sessions.Get(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.ErrNotFound
	}
	return session, nil
}

func (m *OrderMachine) newSession(buyer models.Buyer) *models.OrderSession {
	now := m.now()
	return &models.OrderSession{
		OrderID:   m.newID(),
		Buyer:     buyer,
		Status:    models.OrderStatusSelectingQuantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Chat delivery failures are logged and never undo a transition.
func (m *OrderMachine) text(ctx context.Context, buyer models.Buyer, text string) {
	if err := m.chat.SendText(ctx, buyer, text); err != nil {
		m.logger.Warn("Failed to send chat message", logging.Fields{
			"buyer_id": buyer.ID,
			"error":    err.Error(),
		})
	}
}

func (m *OrderMachine) menu(ctx context.Context, buyer models.Buyer, text string, options []clients.MenuOption) {
	if err := m.chat.SendMenu(ctx, buyer, text, options); err != nil {
		m.logger.Warn("Failed to send chat menu", logging.Fields{
			"buyer_id": buyer.ID,
			"error":    err.Error(),
		})
	}
}
