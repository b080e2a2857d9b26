package cart

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-watch-bids/internal/bids"
	"github.com/ariefcatur/go-watch-bids/internal/postgres"
)

const fromBidUnique = "cart_items_from_bid_key"

type Repo struct{ DB *pgxpool.Pool }

// Decide computes the line item and consumed bid from the locked bid row.
type Decide func(b bids.Bid) (LineItem, bids.Bid, error)

// MaterializeTx locks the bid row, lets decide rule on it, then inserts the line item and
// marks the bid consumed in one transaction. A concurrent second call blocks on the lock
// and then sees the bid already consumed.
func (r *Repo) MaterializeTx(ctx context.Context, bidID string, decide Decide) (LineItem, bids.Bid, error) {
	type result struct {
		item LineItem
		bid  bids.Bid
	}
	res, err := postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) (result, error) {
		b, err := bids.ScanBid(tx.QueryRow(ctx, `SELECT `+bids.BidColumns+` FROM bids WHERE id=$1 FOR UPDATE`, bidID))
		if err != nil {
			return result{}, fmt.Errorf("bid %s: %w", bidID, err)
		}
		item, next, err := decide(b)
		if err != nil {
			return result{}, err
		}
		if err := insertItem(ctx, tx, item); err != nil {
			return result{}, err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE bids SET consumed_by_cart_item_id=$2, revision=revision+1, updated_at=$3
			WHERE id=$1 AND consumed_by_cart_item_id IS NULL`,
			b.ID, item.ID, item.CreatedAt)
		if err != nil {
			return result{}, err
		}
		if tag.RowsAffected() != 1 {
			return result{}, fmt.Errorf("bid %s: %w", b.ID, bids.ErrAlreadyConsumed)
		}
		next.Revision = b.Revision + 1
		next.UpdatedAt = item.CreatedAt
		return result{item: item, bid: next}, nil
	})
	if err != nil {
		return LineItem{}, bids.Bid{}, err
	}
	return res.item, res.bid, nil
}

func (r *Repo) Add(ctx context.Context, item LineItem) error {
	return insertItem(ctx, r.DB, item)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertItem(ctx context.Context, db execer, item LineItem) error {
	_, err := db.Exec(ctx,
		`INSERT INTO cart_items (id, user_id, listing_id, price, from_bid, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		item.ID, item.UserID, item.ListingID, item.Price, item.FromBid, item.CreatedAt)
	if postgres.IsUniqueViolation(err, fromBidUnique) {
		return fmt.Errorf("bid %s: %w", *item.FromBid, bids.ErrAlreadyConsumed)
	}
	return err
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]LineItem, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id, user_id, listing_id, price, from_bid, created_at FROM cart_items WHERE user_id=$1 ORDER BY created_at, id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LineItem{}
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.ListingID, &it.Price, &it.FromBid, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
