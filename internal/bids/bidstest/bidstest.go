// Package bidstest holds in-memory stand-ins for the bid store, listing lookup and event sink.
package bidstest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-watch-bids/internal/bids"
)

// Store implements bids.BidStore and bids.ListingFinder over maps, with the same
// revision check and live-bid uniqueness as the Postgres repositories.
type Store struct {
	mu       sync.Mutex
	bids     map[string]bids.Bid
	order    []string
	listings map[string]bids.Listing
}

func NewStore(listings ...bids.Listing) *Store {
	s := &Store{bids: map[string]bids.Bid{}, listings: map[string]bids.Listing{}}
	for _, l := range listings {
		s.listings[l.ID] = l
	}
	return s
}

func (s *Store) PutListing(l bids.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[l.ID] = l
}

func (s *Store) GetListing(_ context.Context, id string) (bids.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return bids.Listing{}, fmt.Errorf("listing %s: %w", id, bids.ErrNotFound)
	}
	return l, nil
}

func (s *Store) Create(_ context.Context, b bids.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.bids {
		if other.ListingID == b.ListingID && other.BidderID == b.BidderID && other.Status.IsLive() {
			return bids.ErrDuplicateActiveBid
		}
	}
	s.bids[b.ID] = b
	s.order = append(s.order, b.ID)
	return nil
}

func (s *Store) Get(_ context.Context, id string) (bids.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bids[id]
	if !ok {
		return bids.Bid{}, fmt.Errorf("bid %s: %w", id, bids.ErrNotFound)
	}
	return b, nil
}

func (s *Store) ListByListing(_ context.Context, listingID string) ([]bids.Bid, error) {
	return s.filter(func(b bids.Bid) bool { return b.ListingID == listingID }), nil
}

func (s *Store) ListByBidder(_ context.Context, listingID, bidderID string) ([]bids.Bid, error) {
	return s.filter(func(b bids.Bid) bool { return b.ListingID == listingID && b.BidderID == bidderID }), nil
}

func (s *Store) filter(keep func(bids.Bid) bool) []bids.Bid {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []bids.Bid{}
	for _, id := range s.order {
		if b := s.bids[id]; keep(b) {
			out = append(out, b)
		}
	}
	return out
}

func (s *Store) Update(_ context.Context, prev, next bids.Bid) (bids.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.bids[prev.ID]
	if !ok {
		return bids.Bid{}, bids.ErrNotFound
	}
	if cur.Revision != prev.Revision || cur.Status != prev.Status {
		return bids.Bid{}, bids.ErrConflict
	}
	next.Revision = cur.Revision + 1
	next.ConsumedByCartItemID = cur.ConsumedByCartItemID
	s.bids[next.ID] = next
	return next, nil
}

// Consume marks an accepted bid as used by a cart line item, failing if already used.
func (s *Store) Consume(id, lineItemID string) (bids.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bids[id]
	if !ok {
		return bids.Bid{}, bids.ErrNotFound
	}
	if b.ConsumedByCartItemID != nil {
		return bids.Bid{}, bids.ErrAlreadyConsumed
	}
	b.ConsumedByCartItemID = &lineItemID
	b.Revision++
	s.bids[id] = b
	return b, nil
}

type Message struct {
	Key     string
	Value   []byte
	Headers []kafkago.Header
}

// Publisher records published messages.
type Publisher struct {
	mu   sync.Mutex
	msgs []Message
}

func (p *Publisher) Publish(key, value []byte, headers ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, Message{Key: string(key), Value: value, Headers: headers})
}

func (p *Publisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.msgs)
}
