package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
)

// MemorySessionStore keeps sessions in process memory. Sessions are lost on
// restart.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]models.OrderSession
	byOrder  map[string]string
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]models.OrderSession),
		byOrder:  make(map[string]string),
	}
}

func (s *MemorySessionStore) Get(ctx context.Context, buyerID string) (*models.OrderSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[buyerID]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

// Put stores a copy of session, replacing whatever the buyer had before.
func (s *MemorySessionStore) Put(ctx context.Context, session *models.OrderSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buyerID := session.Buyer.ID
	if prev, ok := s.sessions[buyerID]; ok && prev.OrderID != session.OrderID {
		delete(s.byOrder, prev.OrderID)
	}
	s.sessions[buyerID] = *session
	s.byOrder[session.OrderID] = buyerID
	return nil
}

func (s *MemorySessionStore) Remove(ctx context.Context, buyerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.sessions[buyerID]; ok {
		delete(s.byOrder, prev.OrderID)
		delete(s.sessions, buyerID)
	}
	return nil
}

func (s *MemorySessionStore) FindByOrderID(ctx context.Context, orderID string) (*models.OrderSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buyerID, ok := s.byOrder[orderID]
	if !ok {
		return nil, nil
	}
	session := s.sessions[buyerID]
	return &session, nil
}

// List returns copies of all sessions ordered by creation time.
func (s *MemorySessionStore) List(ctx context.Context) ([]*models.OrderSession, error) {
	s.mu.RLock()
	out := make([]*models.OrderSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		session := session
		out = append(out, &session)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
