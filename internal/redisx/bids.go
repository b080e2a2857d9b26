package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-watch-bids/internal/bids"
)

// setIfNewer writes a snapshot hash unless the cached one has the same or a later revision.
var setIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'rev')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'rev', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// BidCache stores read snapshots of bids as hashes of revision and JSON body.
// Postgres stays the source of truth.
type BidCache struct {
	Client *redis.Client
}

func (c *BidCache) GetBid(ctx context.Context, id string) (bids.Bid, error) {
	data, err := c.Client.HGet(ctx, fmt.Sprintf(KeyBidSnapshot, id), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return bids.Bid{}, ErrCacheMiss
	}
	if err != nil {
		return bids.Bid{}, fmt.Errorf("redis get: %w", err)
	}
	var b bids.Bid
	if err := json.Unmarshal(data, &b); err != nil {
		return bids.Bid{}, fmt.Errorf("unmarshal bid: %w", err)
	}
	return b, nil
}

// SetBid caches b unless a snapshot of the same or a later revision is already cached,
// so a slow reader cannot overwrite a newer write.
func (c *BidCache) SetBid(ctx context.Context, b bids.Bid) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal bid: %w", err)
	}
	key := fmt.Sprintf(KeyBidSnapshot, b.ID)
	if err := setIfNewer.Run(ctx, c.Client, []string{key}, b.Revision, data, TTLBidSnapshot.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *BidCache) Delete(ctx context.Context, id string) error {
	return c.Client.Del(ctx, fmt.Sprintf(KeyBidSnapshot, id)).Err()
}

// Idempotency remembers which bid a client-supplied key created, per user.
type Idempotency struct {
	Client *redis.Client
}

func (i *Idempotency) Lookup(ctx context.Context, userID, key string) (string, bool, error) {
	id, err := i.Client.Get(ctx, fmt.Sprintf(KeyIdemBidPlace, userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (i *Idempotency) Remember(ctx context.Context, userID, key, bidID string) error {
	return i.Client.SetNX(ctx, fmt.Sprintf(KeyIdemBidPlace, userID, key), bidID, TTLIdempotency).Err()
}
