package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementCurrency is the currency invoices are priced in.
const SettlementCurrency = "usd"

// UnitPrice is the fixed price of one item in the settlement currency.
var UnitPrice = decimal.NewFromInt(5)

// Buyer identifies one chat participant.
type Buyer struct {
	ID     string `json:"buyer_id"`
	Handle string `json:"username,omitempty"`
}

// DisplayHandle is the handle recorded in the ledger; it falls back to the id.
func (b Buyer) DisplayHandle() string {
	if b.Handle != "" {
		return b.Handle
	}
	return b.ID
}

type OrderStatus string

const (
	OrderStatusSelectingQuantity OrderStatus = "selecting_quantity"
	OrderStatusSelectingCurrency OrderStatus = "selecting_currency"
	OrderStatusAwaitingPayment   OrderStatus = "awaiting_payment"
	OrderStatusConfirmed         OrderStatus = "confirmed"
)

// OrderSession is a buyer's in-progress order. OrderID is the correlation
// token sent to the payment processor and echoed back in its callback.
type OrderSession struct {
	OrderID     string      `json:"order_id"`
	Buyer       Buyer       `json:"buyer"`
	Quantity    int         `json:"quantity"`
	PayCurrency Currency    `json:"pay_currency,omitempty"`
	InvoiceID   string      `json:"invoice_id,omitempty"`
	InvoiceURL  string      `json:"invoice_url,omitempty"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TotalPrice is always derived from the quantity.
func (s *OrderSession) TotalPrice() decimal.Decimal {
	return TotalPrice(s.Quantity)
}

func (s *OrderSession) AwaitingPayment() bool {
	return s.Status == OrderStatusAwaitingPayment
}

// TotalPrice returns quantity × UnitPrice.
func TotalPrice(quantity int) decimal.Decimal {
	return UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Currency is a processor pay-currency code.
type Currency string

const (
	CurrencyUSDTTRC20 Currency = "usdttrc20"
	CurrencyLTC       Currency = "ltc"
	CurrencyDOGE      Currency = "doge"
	CurrencyXRP       Currency = "xrp"
	CurrencyBNBBEP20  Currency = "bnbbsc"
)

var currencyLabels = map[Currency]string{
	CurrencyUSDTTRC20: "USDT-TRC20",
	CurrencyLTC:       "LTC",
	CurrencyDOGE:      "DOGE",
	CurrencyXRP:       "XRP",
	CurrencyBNBBEP20:  "BNB-BEP20",
}

// Label is the buyer-facing name of the currency.
func (c Currency) Label() string {
	if l, ok := currencyLabels[c]; ok {
		return l
	}
	return strings.ToUpper(string(c))
}

// ParseCurrency accepts either a processor code or a display label.
func ParseCurrency(s string) (Currency, bool) {
	s = strings.TrimSpace(s)
	for c, label := range currencyLabels {
		if strings.EqualFold(s, string(c)) || strings.EqualFold(s, label) {
			return c, true
		}
	}
	return "", false
}

// CurrenciesFor returns the currencies offered for a quantity, in menu order.
// A single item cannot be paid in the USD-pegged option.
func CurrenciesFor(quantity int) []Currency {
	if quantity <= 1 {
		return []Currency{CurrencyLTC, CurrencyDOGE, CurrencyXRP, CurrencyBNBBEP20}
	}
	return []Currency{CurrencyUSDTTRC20, CurrencyLTC, CurrencyDOGE, CurrencyXRP, CurrencyBNBBEP20}
}

func CurrencyAllowed(quantity int, c Currency) bool {
	for _, allowed := range CurrenciesFor(quantity) {
		if allowed == c {
			return true
		}
	}
	return false
}

// Invoice is the processor's answer to an invoice request.
type Invoice struct {
	ID  string `json:"id"`
	URL string `json:"invoice_url"`
}
