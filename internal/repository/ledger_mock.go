package repository

import (
	"context"
	"errors"
	"sync"

	apperrors "github.com/tm-acme-shop/acme-shop-storefront-bot/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
)

// MockLedger is an in-memory LedgerStore for testing.
type MockLedger struct {
	mu       sync.Mutex
	rows     []models.LedgerRow
	failures int
}

func NewMockLedger() *MockLedger {
	return &MockLedger{}
}

// FailNext makes the next n appends fail with a LedgerError.
func (m *MockLedger) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
}

func (m *MockLedger) Append(ctx context.Context, row *models.LedgerRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return &apperrors.LedgerError{Err: errors.New("mock ledger unavailable")}
	}
	m.rows = append(m.rows, *row)
	return nil
}

func (m *MockLedger) Rows() []models.LedgerRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.LedgerRow, len(m.rows))
	copy(out, m.rows)
	return out
}
