package bids

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/ariefcatur/go-watch-bids/internal/contextx"
	"github.com/ariefcatur/go-watch-bids/internal/logx"
	"github.com/ariefcatur/go-watch-bids/internal/metrics"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

type BidStore interface {
	Create(ctx context.Context, b Bid) error
	Get(ctx context.Context, id string) (Bid, error)
	ListByListing(ctx context.Context, listingID string) ([]Bid, error)
	ListByBidder(ctx context.Context, listingID, bidderID string) ([]Bid, error)
	Update(ctx context.Context, prev, next Bid) (Bid, error)
}

// SnapshotCache holds read copies of bids. Any Get error is treated as a miss.
type SnapshotCache interface {
	GetBid(ctx context.Context, id string) (Bid, error)
	SetBid(ctx context.Context, b Bid) error
}

// IdempotencyStore maps a caller-supplied key to the bid it created.
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID, key string) (bidID string, found bool, err error)
	Remember(ctx context.Context, userID, key, bidID string) error
}

// Service loads a bid, lets Place/Apply decide, persists with a revision check and publishes.
// Cache and Idempotency are optional. Listings must be authoritative since placing a bid
// decides on listing status; ListingReads, when set, serves lookups that only need the owner.
type Service struct {
	Bids          BidStore
	Listings      ListingFinder
	ListingReads  ListingFinder
	Cache         SnapshotCache
	Idempotency   IdempotencyStore
	Created       Publisher
	StatusChanged Publisher
	ServiceName   string
	Now           func() time.Time
	NewID         func() string

	reads singleflight.Group
}

type PlaceInput struct {
	ListingID      string
	BidderID       string
	Amount         decimal.Decimal
	Comment        string
	IdempotencyKey string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) listingReads() ListingFinder {
	if s.ListingReads != nil {
		return s.ListingReads
	}
	return s.Listings
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// PlaceBid opens a bid. created is false when an earlier request with the same
// idempotency key already opened it; that bid is returned unchanged.
func (s *Service) PlaceBid(ctx context.Context, in PlaceInput) (bid Bid, created bool, err error) {
	defer func() { observe(ActionPlace, err) }()

	if in.IdempotencyKey != "" && s.Idempotency != nil {
		id, found, err := s.Idempotency.Lookup(ctx, in.BidderID, in.IdempotencyKey)
		if err != nil {
			logger(ctx).Warn("idempotency lookup", logx.Error(err))
		} else if found {
			b, err := s.GetBid(ctx, in.BidderID, id)
			return b, false, err
		}
	}

	l, err := s.Listings.GetListing(ctx, in.ListingID)
	if err != nil {
		return Bid{}, false, err
	}
	existing, err := s.Bids.ListByBidder(ctx, l.ID, in.BidderID)
	if err != nil {
		return Bid{}, false, err
	}
	bid, err = Place(l, existing, PlaceCommand{
		BidID:    s.newID(),
		BidderID: in.BidderID,
		Amount:   in.Amount,
		Comment:  in.Comment,
		At:       s.now(),
	})
	if err != nil {
		return Bid{}, false, err
	}
	if err := s.Bids.Create(ctx, bid); err != nil {
		return Bid{}, false, err
	}

	if in.IdempotencyKey != "" && s.Idempotency != nil {
		if err := s.Idempotency.Remember(ctx, in.BidderID, in.IdempotencyKey, bid.ID); err != nil {
			logger(ctx).Warn("idempotency remember", slog.String(logx.FieldBidID, bid.ID), logx.Error(err))
		}
	}
	s.cache(ctx, bid)
	PublishEvent(ctx, s.Created, s.ServiceName, EventBidCreated, bid.ID, BidCreatedPayload{
		BidID:     bid.ID,
		ListingID: bid.ListingID,
		BidderID:  bid.BidderID,
		SellerID:  l.OwnerID,
		Amount:    bid.Amount,
	}, bid.CreatedAt)

	return bid, true, nil
}

// Act applies a negotiation action to a stored bid.
func (s *Service) Act(ctx context.Context, bidID string, cmd Command) (next Bid, err error) {
	defer func() { observe(cmd.Action, err) }()

	prev, err := s.Bids.Get(ctx, bidID)
	if err != nil {
		return Bid{}, err
	}
	l, err := s.listingReads().GetListing(ctx, prev.ListingID)
	if err != nil {
		return Bid{}, err
	}
	if cmd.At.IsZero() {
		cmd.At = s.now()
	}
	next, err = Apply(prev, l, cmd)
	if err != nil {
		return Bid{}, err
	}
	next, err = s.Bids.Update(ctx, prev, next)
	if err != nil {
		return Bid{}, err
	}

	s.cache(ctx, next)
	PublishEvent(ctx, s.StatusChanged, s.ServiceName, EventBidStatusChanged, next.ID, BidStatusChangedPayload{
		BidID:         next.ID,
		ListingID:     next.ListingID,
		BidderID:      next.BidderID,
		SellerID:      l.OwnerID,
		ActorID:       cmd.ActorID,
		Action:        cmd.Action,
		From:          prev.Status,
		To:            next.Status,
		CounterAmount: next.CounterAmount,
		AgreedPrice:   next.AgreedPrice,
		Revision:      next.Revision,
	}, next.UpdatedAt)

	return next, nil
}

// GetBid returns the bid to either negotiating party.
func (s *Service) GetBid(ctx context.Context, userID, bidID string) (Bid, error) {
	b, err := s.load(ctx, bidID)
	if err != nil {
		return Bid{}, err
	}
	l, err := s.listingReads().GetListing(ctx, b.ListingID)
	if err != nil {
		return Bid{}, err
	}
	if !CanView(b, l, userID) {
		return Bid{}, ErrForbiddenActor
	}
	return b, nil
}

// ListForListing returns every bid to the listing owner and only their own bids to anyone else.
func (s *Service) ListForListing(ctx context.Context, userID, listingID string) ([]Bid, error) {
	l, err := s.listingReads().GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.OwnerID == userID {
		return s.Bids.ListByListing(ctx, l.ID)
	}
	return s.Bids.ListByBidder(ctx, l.ID, userID)
}

func (s *Service) load(ctx context.Context, bidID string) (Bid, error) {
	if s.Cache != nil {
		if b, err := s.Cache.GetBid(ctx, bidID); err == nil {
			return b, nil
		}
	}
	// concurrent misses for one bid share a single database read
	v, err, _ := s.reads.Do(bidID, func() (any, error) {
		b, err := s.Bids.Get(ctx, bidID)
		if err != nil {
			return Bid{}, err
		}
		s.cache(ctx, b)
		return b, nil
	})
	if err != nil {
		return Bid{}, err
	}
	return v.(Bid), nil
}

func (s *Service) cache(ctx context.Context, b Bid) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.SetBid(ctx, b); err != nil {
		logger(ctx).Warn("cache bid snapshot", slog.String(logx.FieldBidID, b.ID), logx.Error(err))
	}
}

func observe(action Action, err error) {
	result := metrics.ResultOK
	if err != nil {
		result = Kind(err)
	}
	metrics.ObserveTransition(string(action), result)
}
