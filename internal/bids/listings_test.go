package bids_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-watch-bids/internal/bids"
	"github.com/ariefcatur/go-watch-bids/internal/bids/bidstest"
)

func TestCachedListings(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()
	store := bidstest.NewStore(listing(nil))
	cached := bids.NewCachedListings(store, time.Minute)

	l, err := cached.GetListing(ctx, "listing-1")
	rq.NoError(err)
	rq.Equal(bids.ListingActive, l.Status)

	// served from memory until the ttl passes
	sold := listing(nil)
	sold.Status = bids.ListingSold
	store.PutListing(sold)
	l, err = cached.GetListing(ctx, "listing-1")
	rq.NoError(err)
	rq.Equal(bids.ListingActive, l.Status)

	_, err = cached.GetListing(ctx, "missing")
	rq.ErrorIs(err, bids.ErrNotFound)
	store.PutListing(bids.Listing{ID: "missing", OwnerID: seller, Status: bids.ListingActive})
	l, err = cached.GetListing(ctx, "missing")
	rq.NoError(err, "errors are not cached")
	rq.Equal(seller, l.OwnerID)
}
