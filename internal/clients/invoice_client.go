package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/config"
	apperrors "github.com/tm-acme-shop/acme-shop-storefront-bot/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
)

// InvoiceRequest is the processor's invoice-creation body.
type InvoiceRequest struct {
	PriceAmount      float64         `json:"price_amount"`
	PriceCurrency    string          `json:"price_currency"`
	PayCurrency      models.Currency `json:"pay_currency"`
	OrderID          string          `json:"order_id,omitempty"`
	OrderDescription string          `json:"order_description"`
	IPNCallbackURL   string          `json:"ipn_callback_url"`
}

type invoiceResponse struct {
	ID         json.RawMessage `json:"id"`
	InvoiceURL string          `json:"invoice_url"`
	OrderID    string          `json:"order_id"`
}

// invoiceID tolerates the id arriving as either a JSON string or number.
func (r *invoiceResponse) invoiceID() string {
	return strings.Trim(string(r.ID), `"`)
}

// NOWPaymentsClient creates invoices through the NOWPayments API.
type NOWPaymentsClient struct {
	baseURL     string
	apiKey      string
	ipnSecret   string
	callbackURL string
	description string
	httpClient  *http.Client
	logger      *logging.LoggerV2
}

// NewNOWPaymentsClient creates an invoice client for the configured processor.
func NewNOWPaymentsClient(cfg config.PaymentProcessorConfig, shop config.ShopConfig, logger *logging.LoggerV2) *NOWPaymentsClient {
	return &NOWPaymentsClient{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		ipnSecret:   cfg.IPNSecret,
		callbackURL: cfg.CallbackURL,
		description: shop.OrderDescription,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// CreateInvoice requests a payable invoice for amount in the given pay
// currency. orderID travels to the processor and comes back in the callback.
// Exactly one request is made; failures are returned as *errors.InvoiceError.
func (c *NOWPaymentsClient) CreateInvoice(ctx context.Context, orderID string, amount decimal.Decimal, currency models.Currency) (*models.Invoice, error) {
	c.logger.Debug("Creating invoice", logging.Fields{
		"order_id":     orderID,
		"amount":       amount.String(),
		"pay_currency": currency,
	})

	req := InvoiceRequest{
		PriceAmount:      amount.InexactFloat64(),
		PriceCurrency:    models.SettlementCurrency,
		PayCurrency:      currency,
		OrderID:          orderID,
		OrderDescription: c.description,
		IPNCallbackURL:   c.callbackURL,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &apperrors.InvoiceError{Err: err}
	}

	url := fmt.Sprintf("%s/v1/invoice", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &apperrors.InvoiceError{Err: err}
	}

	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Invoice request failed", logging.Fields{
			"order_id": orderID,
			"error":    err.Error(),
		})
		return nil, &apperrors.InvoiceError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &apperrors.InvoiceError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Invoice request returned error", logging.Fields{
			"order_id":    orderID,
			"status_code": resp.StatusCode,
			"body":        string(respBody),
		})
		return nil, &apperrors.InvoiceError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result invoiceResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &apperrors.InvoiceError{StatusCode: resp.StatusCode, Body: string(respBody), Err: err}
	}

	if result.InvoiceURL == "" {
		c.logger.Error("Invoice response has no invoice_url", logging.Fields{
			"order_id": orderID,
			"body":     string(respBody),
		})
		return nil, &apperrors.InvoiceError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	c.logger.Info("Invoice created", logging.Fields{
		"order_id":   orderID,
		"invoice_id": result.invoiceID(),
	})

	return &models.Invoice{ID: result.invoiceID(), URL: result.InvoiceURL}, nil
}

// ValidateWebhook checks the x-nowpayments-sig header of a callback. When no
// IPN secret is configured every payload is accepted.
func (c *NOWPaymentsClient) ValidateWebhook(payload []byte, signature string) (bool, error) {
	if c.ipnSecret == "" {
		return true, nil
	}
	if signature == "" {
		return false, nil
	}
	return VerifyIPNSignature(payload, signature, c.ipnSecret)
}

func (c *NOWPaymentsClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}
