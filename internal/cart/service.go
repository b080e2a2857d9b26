package cart

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-watch-bids/internal/bids"
	"github.com/ariefcatur/go-watch-bids/internal/contextx"
	"github.com/ariefcatur/go-watch-bids/internal/logx"
	"github.com/ariefcatur/go-watch-bids/internal/metrics"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

const (
	sourceBid     = "bid"
	sourceListing = "listing"
)

type Store interface {
	MaterializeTx(ctx context.Context, bidID string, decide Decide) (LineItem, bids.Bid, error)
	Add(ctx context.Context, item LineItem) error
	ListByUser(ctx context.Context, userID string) ([]LineItem, error)
}

// Service adds items to carts. Cache is optional and refreshed with the consumed bid.
// Listings must be authoritative since direct buys decide on listing status.
// ListingReads, when set, serves the seller lookup for events.
type Service struct {
	Items        Store
	Listings     bids.ListingFinder
	ListingReads bids.ListingFinder
	Cache        bids.SnapshotCache
	Events      bids.Publisher
	ServiceName string
	Now         func() time.Time
	NewID       func() string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// AddFromBid materializes an accepted bid for its bidder, at most once.
func (s *Service) AddFromBid(ctx context.Context, userID, bidID string) (item LineItem, err error) {
	defer func() { observe(sourceBid, err) }()

	lineID, at := s.newID(), s.now()
	item, consumed, err := s.Items.MaterializeTx(ctx, bidID, func(b bids.Bid) (LineItem, bids.Bid, error) {
		return Materialize(b, userID, lineID, at)
	})
	if err != nil {
		return LineItem{}, err
	}

	if s.Cache != nil {
		if err := s.Cache.SetBid(ctx, consumed); err != nil {
			logger(ctx).Warn("cache consumed bid", slog.String(logx.FieldBidID, consumed.ID), logx.Error(err))
		}
	}
	s.publishFromBid(ctx, item, bidID)
	return item, nil
}

// AddListing puts a fixed-price listing in the cart at list price.
func (s *Service) AddListing(ctx context.Context, userID, listingID string) (item LineItem, err error) {
	defer func() { observe(sourceListing, err) }()

	l, err := s.Listings.GetListing(ctx, listingID)
	if err != nil {
		return LineItem{}, err
	}
	item, err = AddListing(l, userID, s.newID(), s.now())
	if err != nil {
		return LineItem{}, err
	}
	if err := s.Items.Add(ctx, item); err != nil {
		return LineItem{}, err
	}
	s.publish(ctx, item, l.OwnerID, l.ID)
	return item, nil
}

func (s *Service) Cart(ctx context.Context, userID string) ([]LineItem, error) {
	return s.Items.ListByUser(ctx, userID)
}

// publishFromBid looks up the seller of a materialized bid. Without a seller the
// event has no recipient, so it is not published.
func (s *Service) publishFromBid(ctx context.Context, item LineItem, bidID string) {
	finder := s.Listings
	if s.ListingReads != nil {
		finder = s.ListingReads
	}
	l, err := finder.GetListing(ctx, item.ListingID)
	if err != nil {
		logger(ctx).Error("skip cart event, seller unknown",
			slog.String(logx.FieldListingID, item.ListingID),
			slog.String(logx.FieldBidID, bidID),
			logx.Error(err),
		)
		return
	}
	s.publish(ctx, item, l.OwnerID, bidID)
}

func (s *Service) publish(ctx context.Context, item LineItem, sellerID, key string) {
	bids.PublishEvent(ctx, s.Events, s.ServiceName, bids.EventCartItemAdded, key, bids.CartItemAddedPayload{
		LineItemID: item.ID,
		UserID:     item.UserID,
		ListingID:  item.ListingID,
		SellerID:   sellerID,
		Price:      item.Price,
		FromBid:    item.FromBid,
	}, item.CreatedAt)
}

func observe(source string, err error) {
	result := metrics.ResultOK
	if err != nil {
		result = bids.Kind(err)
	}
	metrics.ObserveCartItem(source, result)
}
