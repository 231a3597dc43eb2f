package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatusFinished is the only processor status that completes an order.
const PaymentStatusFinished = "finished"

// PaymentNotification is the processor's asynchronous payment callback (IPN).
type PaymentNotification struct {
	PaymentID        string          `json:"payment_id"`
	InvoiceID        string          `json:"invoice_id,omitempty"`
	PaymentStatus    string          `json:"payment_status"`
	PriceAmount      decimal.Decimal `json:"price_amount"`
	PriceCurrency    string          `json:"price_currency,omitempty"`
	PayCurrency      Currency        `json:"pay_currency"`
	OrderID          string          `json:"order_id,omitempty"`
	OrderDescription string          `json:"order_description,omitempty"`
}

// UnmarshalJSON accepts payment_id and invoice_id as numbers or strings; the
// processor sends numbers.
func (n *PaymentNotification) UnmarshalJSON(data []byte) error {
	type plain PaymentNotification
	aux := struct {
		*plain
		PaymentID json.RawMessage `json:"payment_id"`
		InvoiceID json.RawMessage `json:"invoice_id"`
	}{plain: (*plain)(n)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if n.PaymentID, err = flexibleID(aux.PaymentID); err != nil {
		return err
	}
	n.InvoiceID, err = flexibleID(aux.InvoiceID)
	return err
}

func flexibleID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return "", err
	}
	return num.String(), nil
}

func (n *PaymentNotification) Finished() bool {
	return strings.EqualFold(n.PaymentStatus, PaymentStatusFinished)
}

// ConfirmationChannel names where a confirmation came from.
type ConfirmationChannel string

const (
	ChannelWebhook ConfirmationChannel = "webhook"
	ChannelManual  ConfirmationChannel = "manual"
	ChannelKafka   ConfirmationChannel = "kafka"
)

// Outcome tags written to the ledger.
const (
	OutcomeConfirmed = "Confirmed"
	OutcomePaid      = "Paid"
)

// LedgerRow is one completed order. Rows are never updated.
type LedgerRow struct {
	BuyerID     string              `json:"buyer_id"`
	BuyerHandle string              `json:"buyer_handle"`
	Quantity    int                 `json:"quantity"`
	TotalPrice  decimal.Decimal     `json:"total_price"`
	PayCurrency Currency            `json:"pay_currency"`
	InvoiceURL  string              `json:"invoice_url"`
	Outcome     string              `json:"outcome"`
	OrderID     string              `json:"order_id"`
	PaymentID   string              `json:"payment_id,omitempty"`
	Channel     ConfirmationChannel `json:"channel"`
	RecordedAt  time.Time           `json:"recorded_at"`
}

// NewLedgerRow builds the row for a session confirmed through channel.
func NewLedgerRow(s *OrderSession, channel ConfirmationChannel, paymentID string, now time.Time) *LedgerRow {
	outcome := OutcomeConfirmed
	if channel == ChannelManual {
		outcome = OutcomePaid
	}
	return &LedgerRow{
		BuyerID:     s.Buyer.ID,
		BuyerHandle: s.Buyer.DisplayHandle(),
		Quantity:    s.Quantity,
		TotalPrice:  s.TotalPrice(),
		PayCurrency: s.PayCurrency,
		InvoiceURL:  s.InvoiceURL,
		Outcome:     outcome,
		OrderID:     s.OrderID,
		PaymentID:   paymentID,
		Channel:     channel,
		RecordedAt:  now,
	}
}
