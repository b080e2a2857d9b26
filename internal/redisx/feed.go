package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

type Notification struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	BidID      string    `json:"bid_id,omitempty"`
	ListingID  string    `json:"listing_id"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Feed is a per-user capped list of notifications, newest first.
type Feed struct {
	Client *redis.Client
}

func (f *Feed) Push(ctx context.Context, userID string, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	key := fmt.Sprintf(KeyNotifications, userID)
	_, err = f.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, key, data)
		p.LTrim(ctx, key, 0, FeedCap-1)
		p.Expire(ctx, key, TTLFeed)
		return nil
	})
	return err
}

// List returns up to limit entries; entries that fail to decode are skipped.
func (f *Feed) List(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 || limit > FeedCap {
		limit = FeedCap
	}
	raw, err := f.Client.LRange(ctx, fmt.Sprintf(KeyNotifications, userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	return lo.FilterMap(raw, func(s string, _ int) (Notification, bool) {
		var n Notification
		return n, json.Unmarshal([]byte(s), &n) == nil
	}), nil
}
