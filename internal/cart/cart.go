package cart

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-watch-bids/internal/bids"
)

type LineItem struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	ListingID string          `json:"listing_id"`
	Price     decimal.Decimal `json:"price"`
	FromBid   *string         `json:"from_bid,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Materialize turns an accepted bid into a line item at the agreed price and marks the
// bid consumed by it. On error both results are zero.
func Materialize(b bids.Bid, requesterID, lineID string, at time.Time) (LineItem, bids.Bid, error) {
	if requesterID != b.BidderID {
		return LineItem{}, bids.Bid{}, fmt.Errorf("only the bidder may add bid %s to a cart: %w", b.ID, bids.ErrForbiddenActor)
	}
	if b.Status != bids.StatusAccepted || b.AgreedPrice == nil {
		return LineItem{}, bids.Bid{}, fmt.Errorf("bid %s is %s: %w", b.ID, b.Status, bids.ErrNotAccepted)
	}
	if b.Consumed() {
		return LineItem{}, bids.Bid{}, fmt.Errorf("bid %s used by cart item %s: %w", b.ID, *b.ConsumedByCartItemID, bids.ErrAlreadyConsumed)
	}

	bidID := b.ID
	item := LineItem{
		ID:        lineID,
		UserID:    b.BidderID,
		ListingID: b.ListingID,
		Price:     *b.AgreedPrice,
		FromBid:   &bidID,
		CreatedAt: at,
	}
	b.ConsumedByCartItemID = &item.ID
	return item, b, nil
}

// AddListing is a direct buy at list price.
func AddListing(l bids.Listing, userID, lineID string, at time.Time) (LineItem, error) {
	if l.Status != bids.ListingActive {
		return LineItem{}, fmt.Errorf("listing %s is %s: %w", l.ID, l.Status, bids.ErrListingNotAvailable)
	}
	if l.Price == nil {
		return LineItem{}, fmt.Errorf("listing %s is price on request, place a bid: %w", l.ID, bids.ErrInvalidAmount)
	}
	if userID == "" || userID == l.OwnerID {
		return LineItem{}, fmt.Errorf("owner cannot buy own listing: %w", bids.ErrForbiddenActor)
	}
	return LineItem{
		ID:        lineID,
		UserID:    userID,
		ListingID: l.ID,
		Price:     *l.Price,
		CreatedAt: at,
	}, nil
}
