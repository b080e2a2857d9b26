package bids

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-watch-bids/internal/postgres"
)

const liveBidderIndex = "bids_live_bidder_uq"

// BidColumns is the select list ScanBid expects, in order.
const BidColumns = `id, listing_id, bidder_id, amount, status, counter_amount, counter_by,
	agreed_price, comments, consumed_by_cart_item_id, revision, created_at, updated_at`

type BidRepo struct{ DB *pgxpool.Pool }

func ScanBid(row pgx.Row) (Bid, error) {
	var (
		b                   Bid
		counter, agreed     decimal.NullDecimal
		counterBy, consumed *string
	)
	err := row.Scan(&b.ID, &b.ListingID, &b.BidderID, &b.Amount, &b.Status, &counter, &counterBy,
		&agreed, &b.Comments, &consumed, &b.Revision, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bid{}, ErrNotFound
	}
	if err != nil {
		return Bid{}, err
	}
	if counter.Valid {
		b.CounterAmount = &counter.Decimal
	}
	if agreed.Valid {
		b.AgreedPrice = &agreed.Decimal
	}
	if counterBy != nil {
		b.CounterBy = Role(*counterBy)
	}
	b.ConsumedByCartItemID = consumed
	if b.Comments == nil {
		b.Comments = []Comment{}
	}
	return b, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func nullRole(r Role) *string {
	if r == "" {
		return nil
	}
	s := string(r)
	return &s
}

// Create inserts a new bid. The partial unique index backs the one-live-bid rule.
func (r *BidRepo) Create(ctx context.Context, b Bid) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO bids (id, listing_id, bidder_id, amount, status, counter_amount, counter_by,
			agreed_price, comments, revision, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		b.ID, b.ListingID, b.BidderID, b.Amount, b.Status, nullDecimal(b.CounterAmount), nullRole(b.CounterBy),
		nullDecimal(b.AgreedPrice), b.Comments, b.Revision, b.CreatedAt, b.UpdatedAt)
	if postgres.IsUniqueViolation(err, liveBidderIndex) {
		return fmt.Errorf("listing %s: %w", b.ListingID, ErrDuplicateActiveBid)
	}
	return err
}

func (r *BidRepo) Get(ctx context.Context, id string) (Bid, error) {
	b, err := ScanBid(r.DB.QueryRow(ctx, `SELECT `+BidColumns+` FROM bids WHERE id=$1`, id))
	if err != nil {
		return Bid{}, fmt.Errorf("bid %s: %w", id, err)
	}
	return b, nil
}

func (r *BidRepo) ListByListing(ctx context.Context, listingID string) ([]Bid, error) {
	return r.list(ctx, `SELECT `+BidColumns+` FROM bids WHERE listing_id=$1 ORDER BY created_at, id`, listingID)
}

func (r *BidRepo) ListByBidder(ctx context.Context, listingID, bidderID string) ([]Bid, error) {
	return r.list(ctx, `SELECT `+BidColumns+` FROM bids WHERE listing_id=$1 AND bidder_id=$2 ORDER BY created_at, id`,
		listingID, bidderID)
}

func (r *BidRepo) list(ctx context.Context, sql string, args ...any) ([]Bid, error) {
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Bid{}
	for rows.Next() {
		b, err := ScanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Update writes next over prev only if the stored row still has prev's revision and status.
// The stored revision is bumped and returned in the result.
func (r *BidRepo) Update(ctx context.Context, prev, next Bid) (Bid, error) {
	err := r.DB.QueryRow(ctx, `
		UPDATE bids
		SET status=$4, counter_amount=$5, counter_by=$6, agreed_price=$7, comments=$8,
			revision=revision+1, updated_at=$9
		WHERE id=$1 AND revision=$2 AND status=$3
		RETURNING revision`,
		prev.ID, prev.Revision, prev.Status,
		next.Status, nullDecimal(next.CounterAmount), nullRole(next.CounterBy), nullDecimal(next.AgreedPrice),
		next.Comments, next.UpdatedAt,
	).Scan(&next.Revision)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bids WHERE id=$1)`, prev.ID).Scan(&exists); err != nil {
			return Bid{}, err
		}
		if !exists {
			return Bid{}, fmt.Errorf("bid %s: %w", prev.ID, ErrNotFound)
		}
		return Bid{}, fmt.Errorf("bid %s at revision %d: %w", prev.ID, prev.Revision, ErrConflict)
	}
	if err != nil {
		return Bid{}, err
	}
	return next, nil
}
