package bids

import (
	"time"

	"github.com/shopspring/decimal"
)

type ListingStatus string

const (
	ListingActive  ListingStatus = "active"
	ListingPending ListingStatus = "pending"
	ListingSold    ListingStatus = "sold"
)

// Listing is the read-only view of a watch listing. A nil Price means "price on request".
type Listing struct {
	ID      string           `json:"id"`
	OwnerID string           `json:"owner_id"`
	Price   *decimal.Decimal `json:"price,omitempty"`
	Status  ListingStatus    `json:"status"`
}

type Comment struct {
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Bid struct {
	ID        string          `json:"id"`
	ListingID string          `json:"listing_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    Status          `json:"status"`

	// CounterAmount is the latest counter on the table, CounterBy the party who made it.
	CounterAmount *decimal.Decimal `json:"counter_amount,omitempty"`
	CounterBy     Role             `json:"counter_by,omitempty"`

	AgreedPrice          *decimal.Decimal `json:"agreed_price,omitempty"`
	Comments             []Comment        `json:"comments"`
	ConsumedByCartItemID *string          `json:"consumed_by_cart_item_id,omitempty"`

	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CurrentAmount is the price an accept would agree to right now.
func (b Bid) CurrentAmount() decimal.Decimal {
	if b.Status == StatusCounterOffered && b.CounterAmount != nil {
		return *b.CounterAmount
	}
	return b.Amount
}

func (b Bid) Consumed() bool {
	return b.ConsumedByCartItemID != nil
}

// roleOf resolves the actor against the bid and its listing.
func roleOf(b Bid, l Listing, actorID string) (Role, bool) {
	switch actorID {
	case "":
		return "", false
	case l.OwnerID:
		return RoleSeller, true
	case b.BidderID:
		return RoleBuyer, true
	}
	return "", false
}

// CanView reports whether the user is one of the two negotiating parties.
func CanView(b Bid, l Listing, userID string) bool {
	_, ok := roleOf(b, l, userID)
	return ok
}
