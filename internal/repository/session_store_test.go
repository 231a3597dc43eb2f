package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
)

func newSession(buyerID, orderID string, created time.Time) *models.OrderSession {
	return &models.OrderSession{
		OrderID:   orderID,
		Buyer:     models.Buyer{ID: buyerID, Handle: "user" + buyerID},
		Quantity:  2,
		Status:    models.OrderStatusSelectingCurrency,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestMemorySessionStore_GetMissing(t *testing.T) {
	store := NewMemorySessionStore()

	session, err := store.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestMemorySessionStore_StoresCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()

	original := newSession("1", "ord-1", time.Now())
	require.NoError(t, store.Put(ctx, original))

	original.Quantity = 99

	got, err := store.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Quantity)

	got.Status = models.OrderStatusConfirmed
	again, _ := store.Get(ctx, "1")
	assert.Equal(t, models.OrderStatusSelectingCurrency, again.Status)
}

func TestMemorySessionStore_FindByOrderID(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()

	require.NoError(t, store.Put(ctx, newSession("1", "ord-1", time.Now())))

	got, err := store.FindByOrderID(ctx, "ord-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1", got.Buyer.ID)

	// Replacing the session drops the old correlation token.
	require.NoError(t, store.Put(ctx, newSession("1", "ord-2", time.Now())))

	got, err = store.FindByOrderID(ctx, "ord-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.FindByOrderID(ctx, "ord-2")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestMemorySessionStore_Remove(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()

	require.NoError(t, store.Put(ctx, newSession("1", "ord-1", time.Now())))
	require.NoError(t, store.Remove(ctx, "1"))
	require.NoError(t, store.Remove(ctx, "1"))

	got, _ := store.Get(ctx, "1")
	assert.Nil(t, got)
	got, _ = store.FindByOrderID(ctx, "ord-1")
	assert.Nil(t, got)
}

func TestMemorySessionStore_ListOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Put(ctx, newSession("b", "ord-b", base.Add(2*time.Minute))))
	require.NoError(t, store.Put(ctx, newSession("a", "ord-a", base)))
	require.NoError(t, store.Put(ctx, newSession("c", "ord-c", base.Add(time.Minute))))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].Buyer.ID)
	assert.Equal(t, "c", list[1].Buyer.ID)
	assert.Equal(t, "b", list[2].Buyer.ID)
}
