package repository

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
)

var (
	_ SessionStore = (*MemorySessionStore)(nil)
	_ LedgerStore  = (*PostgresLedger)(nil)
	_ LedgerStore  = (*MockLedger)(nil)
	_ PaymentDedup = (*RedisPaymentDedup)(nil)
	_ PaymentDedup = (*MemoryPaymentDedup)(nil)
)

// SessionStore holds each buyer's in-progress order. Get returns a copy,
// or nil when the buyer has no session.
type SessionStore interface {
	Get(ctx context.Context, buyerID string) (*models.OrderSession, error)
	Put(ctx context.Context, session *models.OrderSession) error
	Remove(ctx context.Context, buyerID string) error
	FindByOrderID(ctx context.Context, orderID string) (*models.OrderSession, error)
	List(ctx context.Context) ([]*models.OrderSession, error)
}

// LedgerStore appends completed orders. There is no update or delete.
type LedgerStore interface {
	Append(ctx context.Context, row *models.LedgerRow) error
}

// PaymentDedup remembers processor payment ids that already produced a row.
type PaymentDedup interface {
	Seen(ctx context.Context, paymentID string) (bool, error)
	MarkSeen(ctx context.Context, paymentID string) error
}
