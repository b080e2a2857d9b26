package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-watch-bids/internal/bids"
	"github.com/ariefcatur/go-watch-bids/internal/contextx"
	kafkax "github.com/ariefcatur/go-watch-bids/internal/kafka"
	"github.com/ariefcatur/go-watch-bids/internal/logx"
	"github.com/ariefcatur/go-watch-bids/internal/metrics"
	"github.com/ariefcatur/go-watch-bids/internal/redisx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

type FeedWriter interface {
	Push(ctx context.Context, userID string, n redisx.Notification) error
}

// Service turns bid and cart events into entries in the counterpart's feed.
type Service struct {
	Redis       *redis.Client
	Feed        FeedWriter
	ServiceName string
}

// Topics the notifier subscribes to.
func Topics() []string {
	return []string{bids.TopicBidCreated, bids.TopicBidStatusChanged, bids.TopicCartItemAdded}
}

// HandleEvent is the consumer handler. Replayed event ids are skipped.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env bids.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		// Undecodable messages would block the partition forever; drop them.
		logger(ctx).Error("drop undecodable event", slog.String(logx.FieldTopic, m.Topic), logx.Error(err))
		metrics.ObserveEvent("unknown", "error")
		return nil
	}
	log := logger(ctx).With(
		slog.String(logx.FieldEventID, env.EventID),
		slog.String(logx.FieldEventType, env.EventType),
		slog.String(logx.FieldTraceID, env.TraceID),
	)

	to, n, err := render(env)
	if err != nil {
		log.Error("drop malformed event", logx.Error(err))
		metrics.ObserveEvent(env.EventType, "error")
		return nil
	}
	if to == "" {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	claimed, err := redisx.Claim(ctx, s.Redis, dkey, redisx.TTLDedup)
	if err != nil {
		metrics.ObserveEvent(env.EventType, "error")
		return fmt.Errorf("claim event: %w", err)
	}
	if !claimed {
		metrics.ObserveEvent(env.EventType, "duplicate")
		return nil
	}
	if err := s.Feed.Push(ctx, to, n); err != nil {
		// release so the redelivery is not mistaken for a duplicate
		if derr := s.Redis.Del(context.WithoutCancel(ctx), dkey).Err(); derr != nil {
			log.Warn("release event claim", logx.Error(derr))
		}
		metrics.ObserveEvent(env.EventType, "error")
		return fmt.Errorf("push notification: %w", err)
	}

	log.Debug("notified", slog.String(logx.FieldUserID, to))
	metrics.ObserveEvent(env.EventType, metrics.ResultOK)
	return nil
}

// render picks the recipient and text for an event. An empty recipient means nothing to send.
func render(env bids.Envelope) (string, redisx.Notification, error) {
	n := redisx.Notification{EventID: env.EventID, EventType: env.EventType, OccurredAt: env.OccurredAt}

	switch env.EventType {
	case bids.EventBidCreated:
		p, err := kafkax.UnwrapPayload[bids.BidCreatedPayload](env.Payload)
		if err != nil {
			return "", n, err
		}
		n.BidID, n.ListingID = p.BidID, p.ListingID
		n.Message = fmt.Sprintf("New bid of %s on your listing", p.Amount.StringFixed(2))
		return p.SellerID, n, nil

	case bids.EventBidStatusChanged:
		p, err := kafkax.UnwrapPayload[bids.BidStatusChangedPayload](env.Payload)
		if err != nil {
			return "", n, err
		}
		n.BidID, n.ListingID = p.BidID, p.ListingID
		n.Message = statusMessage(p)
		if p.ActorID == p.BidderID {
			return p.SellerID, n, nil
		}
		return p.BidderID, n, nil

	case bids.EventCartItemAdded:
		p, err := kafkax.UnwrapPayload[bids.CartItemAddedPayload](env.Payload)
		if err != nil {
			return "", n, err
		}
		n.ListingID = p.ListingID
		if p.FromBid != nil {
			n.BidID = *p.FromBid
			n.Message = fmt.Sprintf("Buyer added your watch to their cart at the agreed %s", p.Price.StringFixed(2))
		} else {
			n.Message = fmt.Sprintf("Buyer added your watch to their cart at %s", p.Price.StringFixed(2))
		}
		return p.SellerID, n, nil
	}
	return "", n, nil
}

func statusMessage(p bids.BidStatusChangedPayload) string {
	switch p.To {
	case bids.StatusCounterOffered:
		if p.CounterAmount != nil {
			return fmt.Sprintf("Counter offer of %s", p.CounterAmount.StringFixed(2))
		}
		return "Counter offer received"
	case bids.StatusAccepted:
		if p.AgreedPrice != nil {
			return fmt.Sprintf("Bid accepted at %s", p.AgreedPrice.StringFixed(2))
		}
		return "Bid accepted"
	case bids.StatusRejected:
		return "Bid rejected"
	case bids.StatusCancelled:
		return "Bid cancelled by the buyer"
	}
	return fmt.Sprintf("Bid is now %s", p.To)
}
