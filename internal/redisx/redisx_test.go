package redisx

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-watch-bids/internal/bids"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), Options{Addr: addr})
	require.ErrorContains(t, err, "redis ping")
}

func TestBidCache(t *testing.T) {
	rq := require.New(t)
	client, mr := setupRedis(t)
	c := &BidCache{Client: client}
	ctx := context.Background()

	_, err := c.GetBid(ctx, "bid-1")
	rq.ErrorIs(err, ErrCacheMiss)

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	b := bids.Bid{
		ID: "bid-1", ListingID: "l-1", BidderID: "u-1",
		Amount:        decimal.RequireFromString("8000.50"),
		Status:        bids.StatusCounterOffered,
		CounterAmount: lo.ToPtr(decimal.NewFromInt(9000)),
		CounterBy:     bids.RoleSeller,
		Comments:      []bids.Comment{{AuthorID: "u-1", Text: "hi", CreatedAt: at}},
		Revision:      2, CreatedAt: at, UpdatedAt: at,
	}
	rq.NoError(c.SetBid(ctx, b))
	rq.Equal(TTLBidSnapshot, mr.TTL(fmt.Sprintf(KeyBidSnapshot, "bid-1")))

	got, err := c.GetBid(ctx, "bid-1")
	rq.NoError(err)
	rq.Equal(b.Status, got.Status)
	rq.True(b.Amount.Equal(got.Amount))
	rq.True(got.CounterAmount.Equal(decimal.NewFromInt(9000)))
	rq.Equal(b.Comments, got.Comments)
	rq.Nil(got.AgreedPrice)

	rq.NoError(c.Delete(ctx, "bid-1"))
	_, err = c.GetBid(ctx, "bid-1")
	rq.ErrorIs(err, ErrCacheMiss)

	mr.HSet(fmt.Sprintf(KeyBidSnapshot, "broken"), "rev", "1", "data", "{not json")
	_, err = c.GetBid(ctx, "broken")
	rq.ErrorContains(err, "unmarshal bid")
}

func TestBidCacheKeepsNewestRevision(t *testing.T) {
	rq := require.New(t)
	client, _ := setupRedis(t)
	c := &BidCache{Client: client}
	ctx := context.Background()

	offered := bids.Bid{ID: "bid-1", Status: bids.StatusOffered, Amount: decimal.NewFromInt(8000), Revision: 1}
	accepted := offered
	accepted.Status = bids.StatusAccepted
	accepted.AgreedPrice = lo.ToPtr(decimal.NewFromInt(8000))
	accepted.Revision = 2

	rq.NoError(c.SetBid(ctx, accepted))
	// a reader that loaded revision 1 before the accept finishes last
	rq.NoError(c.SetBid(ctx, offered))

	got, err := c.GetBid(ctx, "bid-1")
	rq.NoError(err)
	rq.Equal(bids.StatusAccepted, got.Status)
	rq.EqualValues(2, got.Revision)

	consumed := accepted
	consumed.ConsumedByCartItemID = lo.ToPtr("line-1")
	consumed.Revision = 3
	rq.NoError(c.SetBid(ctx, consumed))
	got, err = c.GetBid(ctx, "bid-1")
	rq.NoError(err)
	rq.Equal("line-1", *got.ConsumedByCartItemID)
}

func TestIdempotency(t *testing.T) {
	rq := require.New(t)
	client, mr := setupRedis(t)
	i := &Idempotency{Client: client}
	ctx := context.Background()

	_, found, err := i.Lookup(ctx, "u-1", "k-1")
	rq.NoError(err)
	rq.False(found)

	rq.NoError(i.Remember(ctx, "u-1", "k-1", "bid-1"))
	rq.NoError(i.Remember(ctx, "u-1", "k-1", "bid-2"))

	id, found, err := i.Lookup(ctx, "u-1", "k-1")
	rq.NoError(err)
	rq.True(found)
	rq.Equal("bid-1", id)

	_, found, err = i.Lookup(ctx, "u-2", "k-1")
	rq.NoError(err)
	rq.False(found)

	mr.FastForward(TTLIdempotency + time.Second)
	_, found, err = i.Lookup(ctx, "u-1", "k-1")
	rq.NoError(err)
	rq.False(found)
}

func TestClaim(t *testing.T) {
	rq := require.New(t)
	client, _ := setupRedis(t)
	ctx := context.Background()
	key := fmt.Sprintf(KeyDedup, "notifier", "evt-1")

	ok, err := Claim(ctx, client, key, TTLDedup)
	rq.NoError(err)
	rq.True(ok)

	ok, err = Claim(ctx, client, key, TTLDedup)
	rq.NoError(err)
	rq.False(ok)
}

func TestFeedIsCappedNewestFirst(t *testing.T) {
	rq := require.New(t)
	client, mr := setupRedis(t)
	f := &Feed{Client: client}
	ctx := context.Background()

	for i := 0; i < FeedCap+20; i++ {
		rq.NoError(f.Push(ctx, "u-1", Notification{EventID: fmt.Sprintf("e-%d", i), Message: "m"}))
	}
	mr.Lpush(fmt.Sprintf(KeyNotifications, "u-1"), "garbage")

	all, err := f.List(ctx, "u-1", 0)
	rq.NoError(err)
	rq.Len(all, FeedCap-1)
	rq.Equal(fmt.Sprintf("e-%d", FeedCap+19), all[0].EventID)

	top, err := f.List(ctx, "u-1", 3)
	rq.NoError(err)
	rq.Len(top, 2)

	empty, err := f.List(ctx, "nobody", 10)
	rq.NoError(err)
	rq.Empty(empty)
}
