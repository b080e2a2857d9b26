package bids

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-watch-bids/internal/contextx"
	kafkax "github.com/ariefcatur/go-watch-bids/internal/kafka"
)

const (
	EventBidCreated       = "BidCreated"
	EventBidStatusChanged = "BidStatusChanged"
	EventCartItemAdded    = "CartItemAdded"

	EventVersion = 1
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // bid id, or listing id for direct buys
	Payload       json.RawMessage `json:"payload"`
}

type BidCreatedPayload struct {
	BidID     string          `json:"bid_id"`
	ListingID string          `json:"listing_id"`
	BidderID  string          `json:"bidder_id"`
	SellerID  string          `json:"seller_id"`
	Amount    decimal.Decimal `json:"amount"`
}

type BidStatusChangedPayload struct {
	BidID         string           `json:"bid_id"`
	ListingID     string           `json:"listing_id"`
	BidderID      string           `json:"bidder_id"`
	SellerID      string           `json:"seller_id"`
	ActorID       string           `json:"actor_id"`
	Action        Action           `json:"action"`
	From          Status           `json:"from"`
	To            Status           `json:"to"`
	CounterAmount *decimal.Decimal `json:"counter_amount,omitempty"`
	AgreedPrice   *decimal.Decimal `json:"agreed_price,omitempty"`
	Revision      int64            `json:"revision"`
}

type CartItemAddedPayload struct {
	LineItemID string          `json:"line_item_id"`
	UserID     string          `json:"user_id"`
	ListingID  string          `json:"listing_id"`
	SellerID   string          `json:"seller_id"`
	Price      decimal.Decimal `json:"price"`
	FromBid    *string         `json:"from_bid,omitempty"`
}

func NewEnvelope(eventType, producer, traceID, correlationID string, payload any, at time.Time) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  EventVersion,
		OccurredAt:    at.UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
}

// Publisher is the async event sink; kafka.Producer implements it.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// PublishEvent wraps payload in an envelope and enqueues it keyed by correlationID.
func PublishEvent(ctx context.Context, p Publisher, producer, eventType, correlationID string, payload any, at time.Time) Envelope {
	trace, _ := contextx.TraceIDFromContext(ctx)
	env := NewEnvelope(eventType, producer, trace.String(), correlationID, payload, at)
	if p != nil {
		p.Publish(PartitionKey(correlationID), kafkax.MustMarshal(env), kafkax.EventHeaders(eventType, EventVersion)...)
	}
	return env
}
