package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/repository"
)

type fakePublisher struct {
	mu   sync.Mutex
	rows []*models.LedgerRow
}

func (p *fakePublisher) PublishOrderConfirmed(ctx context.Context, row *models.LedgerRow) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = append(p.rows, row)
	return nil
}

type fixture struct {
	sessions   *repository.MemorySessionStore
	ledger     *repository.MockLedger
	dedup      *repository.MemoryPaymentDedup
	publisher  *fakePublisher
	chat       *clients.MockChatGateway
	invoices   *clients.MockInvoiceClient
	machine    *OrderMachine
	reconciler *Reconciler
}

func testConfig() *config.Config {
	return &config.Config{
		Shop: config.ShopConfig{
			Name:             "Test Shop",
			OrderDescription: "Account bundle",
			MaxQuantity:      100,
		},
		Features: config.FeatureFlags{EnableManualConfirmation: true},
	}
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithConfig(t, testConfig())
}

func newFixtureWithConfig(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	f := &fixture{
		sessions:  repository.NewMemorySessionStore(),
		ledger:    repository.NewMockLedger(),
		dedup:     repository.NewMemoryPaymentDedup(0),
		publisher: &fakePublisher{},
		chat:      clients.NewMockChatGateway(),
		invoices:  clients.NewMockInvoiceClient(),
	}
	f.wire(cfg, f.sessions)
	return f
}

// newFixtureWithStore routes every session access through store, which
// should wrap f.sessions.
func newFixtureWithStore(t *testing.T, wrap func(*repository.MemorySessionStore) repository.SessionStore) *fixture {
	t.Helper()
	f := newFixture(t)
	f.wire(testConfig(), wrap(f.sessions))
	return f
}

func (f *fixture) wire(cfg *config.Config, store repository.SessionStore) {
	locks := NewKeyedLocker()
	f.machine = NewOrderMachine(store, f.invoices, f.chat, locks, cfg.Shop)
	f.reconciler = NewReconciler(store, f.ledger, f.dedup, f.publisher, f.chat, locks, cfg)
}

// flakySessionStore fails the next Put or Remove calls it is told to.
type flakySessionStore struct {
	*repository.MemorySessionStore

	mu          sync.Mutex
	failPuts    int
	failRemoves int
}

func (s *flakySessionStore) Put(ctx context.Context, session *models.OrderSession) error {
	s.mu.Lock()
	fail := s.failPuts > 0
	if fail {
		s.failPuts--
	}
	s.mu.Unlock()
	if fail {
		return errors.New("session store unavailable")
	}
	return s.MemorySessionStore.Put(ctx, session)
}

func (s *flakySessionStore) Remove(ctx context.Context, buyerID string) error {
	s.mu.Lock()
	fail := s.failRemoves > 0
	if fail {
		s.failRemoves--
	}
	s.mu.Unlock()
	if fail {
		return errors.New("session store unavailable")
	}
	return s.MemorySessionStore.Remove(ctx, buyerID)
}

// awaitingPayment walks buyer through to an open invoice.
func (f *fixture) awaitingPayment(t *testing.T, buyer models.Buyer, quantity int, currency models.Currency) *models.OrderSession {
	t.Helper()
	ctx := context.Background()
	_, err := f.machine.Begin(ctx, buyer)
	require.NoError(t, err)
	_, err = f.machine.SelectQuantity(ctx, buyer, quantity)
	require.NoError(t, err)
	session, err := f.machine.SelectCurrency(ctx, buyer, currency)
	require.NoError(t, err)
	return session
}

func finishedIPN(paymentID string, s *models.OrderSession) *models.PaymentNotification {
	return &models.PaymentNotification{
		PaymentID:        paymentID,
		PaymentStatus:    models.PaymentStatusFinished,
		PriceAmount:      s.TotalPrice(),
		PriceCurrency:    models.SettlementCurrency,
		PayCurrency:      s.PayCurrency,
		OrderID:          s.OrderID,
		OrderDescription: "Account bundle",
	}
}
