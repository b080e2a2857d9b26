package bids

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

type ListingFinder interface {
	GetListing(ctx context.Context, id string) (Listing, error)
}

// ListingRepo reads listings; they are written by the catalogue and checkout flows.
type ListingRepo struct{ DB *pgxpool.Pool }

func (r *ListingRepo) GetListing(ctx context.Context, id string) (Listing, error) {
	var (
		l     Listing
		price decimal.NullDecimal
	)
	err := r.DB.QueryRow(ctx, `SELECT id, owner_id, price, status FROM listings WHERE id=$1`, id).
		Scan(&l.ID, &l.OwnerID, &price, &l.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Listing{}, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Listing{}, err
	}
	if price.Valid {
		l.Price = &price.Decimal
	}
	return l, nil
}

// CachedListings keeps listings in process memory for ttl.
// Misses and errors go to Next; errors are not cached.
type CachedListings struct {
	Next  ListingFinder
	cache *cache.Cache
}

func NewCachedListings(next ListingFinder, ttl time.Duration) *CachedListings {
	return &CachedListings{Next: next, cache: cache.New(ttl, 2*ttl)}
}

func (c *CachedListings) GetListing(ctx context.Context, id string) (Listing, error) {
	if v, ok := c.cache.Get(id); ok {
		return v.(Listing), nil //nolint:forcetypeassert
	}
	l, err := c.Next.GetListing(ctx, id)
	if err != nil {
		return Listing{}, err
	}
	c.cache.SetDefault(id, l)
	return l, nil
}
