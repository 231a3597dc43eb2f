package clients

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
)

// MockChatGateway records outbound chat messages for testing.
type MockChatGateway struct {
	mu       sync.Mutex
	messages []ChatMessage
	Err      error
}

func NewMockChatGateway() *MockChatGateway {
	return &MockChatGateway{}
}

func (m *MockChatGateway) SendText(ctx context.Context, buyer models.Buyer, text string) error {
	return m.SendMenu(ctx, buyer, text, nil)
}

func (m *MockChatGateway) SendMenu(ctx context.Context, buyer models.Buyer, text string, options []MenuOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, ChatMessage{BuyerID: buyer.ID, Text: text, Options: options})
	return m.Err
}

// Messages returns a copy of every message sent so far.
func (m *MockChatGateway) Messages() []ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Last returns the most recent message, or the zero value.
func (m *MockChatGateway) Last() ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return ChatMessage{}
	}
	return m.messages[len(m.messages)-1]
}

// MockInvoiceClient returns sequential invoice URLs, or Err when set.
type MockInvoiceClient struct {
	mu       sync.Mutex
	Requests []InvoiceRequest
	Err      error
}

func NewMockInvoiceClient() *MockInvoiceClient {
	return &MockInvoiceClient{}
}

func (m *MockInvoiceClient) CreateInvoice(ctx context.Context, orderID string, amount decimal.Decimal, currency models.Currency) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	price, _ := amount.Float64()
	m.Requests = append(m.Requests, InvoiceRequest{
		PriceAmount:   price,
		PriceCurrency: models.SettlementCurrency,
		PayCurrency:   currency,
		OrderID:       orderID,
	})
	if m.Err != nil {
		return nil, m.Err
	}

	id := fmt.Sprintf("inv_%d", len(m.Requests))
	return &models.Invoice{ID: id, URL: "https://pay.example/" + id}, nil
}

func (m *MockInvoiceClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
