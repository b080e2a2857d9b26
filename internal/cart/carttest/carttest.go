// Package carttest is an in-memory cart.Store over a bidstest.Store.
package carttest

import (
	"context"
	"slices"
	"sync"

	"github.com/ariefcatur/go-watch-bids/internal/bids"
	"github.com/ariefcatur/go-watch-bids/internal/bids/bidstest"
	"github.com/ariefcatur/go-watch-bids/internal/cart"
)

type Store struct {
	Bids *bidstest.Store

	mu    sync.Mutex
	items []cart.LineItem
}

// MaterializeTx holds the store lock for the whole decision, like the row lock in Postgres.
func (s *Store) MaterializeTx(ctx context.Context, bidID string, decide cart.Decide) (cart.LineItem, bids.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.Bids.Get(ctx, bidID)
	if err != nil {
		return cart.LineItem{}, bids.Bid{}, err
	}
	item, _, err := decide(b)
	if err != nil {
		return cart.LineItem{}, bids.Bid{}, err
	}
	consumed, err := s.Bids.Consume(bidID, item.ID)
	if err != nil {
		return cart.LineItem{}, bids.Bid{}, err
	}
	s.items = append(s.items, item)
	return item, consumed, nil
}

func (s *Store) Add(_ context.Context, item cart.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	return nil
}

func (s *Store) ListByUser(_ context.Context, userID string) ([]cart.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.DeleteFunc(slices.Clone(s.items), func(it cart.LineItem) bool { return it.UserID != userID }), nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
