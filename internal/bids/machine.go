package bids

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// AmountPlaces is the number of decimal places money is stored with.
const AmountPlaces = 2

func wholeCents(d decimal.Decimal) bool { return d.Equal(d.Round(AmountPlaces)) }

type PlaceCommand struct {
	BidID    string
	BidderID string
	Amount   decimal.Decimal
	Comment  string
	At       time.Time
}

// Command is a negotiation action against an existing bid.
// Amount is read only by counter.
type Command struct {
	Action  Action
	ActorID string
	Amount  decimal.Decimal
	Comment string
	At      time.Time
}

// Place decides a new bid on the listing. existing holds the bidder's other bids on it.
func Place(l Listing, existing []Bid, cmd PlaceCommand) (Bid, error) {
	if l.Status != ListingActive {
		return Bid{}, fmt.Errorf("listing %s is %s: %w", l.ID, l.Status, ErrListingNotAvailable)
	}
	if cmd.BidderID == "" || cmd.BidderID == l.OwnerID {
		return Bid{}, fmt.Errorf("owner cannot bid on own listing: %w", ErrForbiddenActor)
	}
	if !cmd.Amount.IsPositive() {
		return Bid{}, fmt.Errorf("amount %s must be positive: %w", cmd.Amount, ErrInvalidAmount)
	}
	if !wholeCents(cmd.Amount) {
		return Bid{}, fmt.Errorf("amount %s has more than %d decimal places: %w", cmd.Amount, AmountPlaces, ErrInvalidAmount)
	}
	if l.Price != nil && cmd.Amount.GreaterThanOrEqual(*l.Price) {
		return Bid{}, fmt.Errorf("amount %s must be below list price %s: %w", cmd.Amount, l.Price, ErrInvalidAmount)
	}
	live, found := lo.Find(existing, func(b Bid) bool {
		return b.ListingID == l.ID && b.BidderID == cmd.BidderID && b.Status.IsLive()
	})
	if found {
		return Bid{}, fmt.Errorf("bid %s is %s: %w", live.ID, live.Status, ErrDuplicateActiveBid)
	}

	return Bid{
		ID:        cmd.BidID,
		ListingID: l.ID,
		BidderID:  cmd.BidderID,
		Amount:    cmd.Amount,
		Status:    StatusOffered,
		Comments:  appendComment([]Comment{}, cmd.BidderID, cmd.Comment, cmd.At),
		Revision:  1,
		CreatedAt: cmd.At,
		UpdatedAt: cmd.At,
	}, nil
}

// Apply decides a transition of b. On error the zero Bid is returned and b is untouched.
func Apply(b Bid, l Listing, cmd Command) (Bid, error) {
	if b.ListingID != l.ID {
		return Bid{}, fmt.Errorf("bid %s is not on listing %s: %w", b.ID, l.ID, ErrNotFound)
	}
	role, ok := roleOf(b, l, cmd.ActorID)
	if !ok {
		return Bid{}, fmt.Errorf("user %s is not a party to bid %s: %w", cmd.ActorID, b.ID, ErrForbiddenActor)
	}
	r, ok := transitions[b.Status][cmd.Action]
	if !ok {
		return Bid{}, &TransitionError{From: b.Status, Action: cmd.Action}
	}
	want := r.actor
	if want == roleResponder {
		want = b.CounterBy.Counterpart()
	}
	if role != want {
		return Bid{}, fmt.Errorf("%s may not %s a %s bid, %s must: %w", role, cmd.Action, b.Status, want, ErrForbiddenActor)
	}

	next := b
	switch cmd.Action {
	case ActionCounter:
		if !cmd.Amount.IsPositive() {
			return Bid{}, fmt.Errorf("counter %s must be positive: %w", cmd.Amount, ErrInvalidAmount)
		}
		if !wholeCents(cmd.Amount) {
			return Bid{}, fmt.Errorf("counter %s has more than %d decimal places: %w", cmd.Amount, AmountPlaces, ErrInvalidAmount)
		}
		if cmd.Amount.Equal(b.CurrentAmount()) {
			return Bid{}, fmt.Errorf("counter %s equals the amount on the table: %w", cmd.Amount, ErrNoOpTransition)
		}
		next.CounterAmount = lo.ToPtr(cmd.Amount)
		next.CounterBy = role
	case ActionAccept:
		next.AgreedPrice = lo.ToPtr(b.CurrentAmount())
	}
	next.Status = r.to
	next.Comments = appendComment(b.Comments, cmd.ActorID, cmd.Comment, cmd.At)
	next.UpdatedAt = cmd.At
	return next, nil
}

func appendComment(cs []Comment, author, text string, at time.Time) []Comment {
	text = strings.TrimSpace(text)
	if text == "" {
		return cs
	}
	return append(slices.Clone(cs), Comment{AuthorID: author, Text: text, CreatedAt: at})
}
