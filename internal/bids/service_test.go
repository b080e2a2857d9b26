package bids_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-watch-bids/internal/bids"
	"github.com/ariefcatur/go-watch-bids/internal/bids/bidstest"
	"github.com/ariefcatur/go-watch-bids/internal/contextx"
	kafkax "github.com/ariefcatur/go-watch-bids/internal/kafka"
	"github.com/ariefcatur/go-watch-bids/internal/redisx"
)

type serviceEnv struct {
	svc     *bids.Service
	store   *bidstest.Store
	created *bidstest.Publisher
	changed *bidstest.Publisher
	mr      *miniredis.Miniredis
}

func newServiceEnv(t *testing.T) serviceEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := bidstest.NewStore(listing(lo.ToPtr(dec(10000))))
	created, changed := &bidstest.Publisher{}, &bidstest.Publisher{}
	n := 0
	var mu sync.Mutex
	return serviceEnv{
		svc: &bids.Service{
			Bids:          store,
			Listings:      store,
			ListingReads:  bids.NewCachedListings(store, time.Minute),
			Cache:         &redisx.BidCache{Client: rdb},
			Idempotency:   &redisx.Idempotency{Client: rdb},
			Created:       created,
			StatusChanged: changed,
			ServiceName:   "bid-api",
			Now:           func() time.Time { return t0 },
			NewID: func() string {
				mu.Lock()
				defer mu.Unlock()
				n++
				return fmt.Sprintf("bid-%d", n)
			},
		},
		store:   store,
		created: created,
		changed: changed,
		mr:      mr,
	}
}

func TestServicePlaceAndNegotiate(t *testing.T) {
	rq := require.New(t)
	env := newServiceEnv(t)
	ctx := contextx.WithTraceID(context.Background(), "trace-1")

	b, created, err := env.svc.PlaceBid(ctx, bids.PlaceInput{ListingID: "listing-1", BidderID: buyer, Amount: dec(8000)})
	rq.NoError(err)
	rq.True(created)
	rq.Equal("bid-1", b.ID)

	msgs := env.created.Messages()
	rq.Len(msgs, 1)
	rq.Equal("bid-1", msgs[0].Key)
	var envl bids.Envelope
	rq.NoError(kafkax.UnmarshalEnvelope(msgs[0].Value, &envl))
	rq.Equal(bids.EventBidCreated, envl.EventType)
	rq.Equal("trace-1", envl.TraceID)
	p, err := kafkax.UnwrapPayload[bids.BidCreatedPayload](envl.Payload)
	rq.NoError(err)
	rq.Equal(seller, p.SellerID)

	b, err = env.svc.Act(ctx, b.ID, bids.Command{Action: bids.ActionCounter, ActorID: seller, Amount: dec(9000)})
	rq.NoError(err)
	rq.EqualValues(2, b.Revision)

	b, err = env.svc.Act(ctx, b.ID, bids.Command{Action: bids.ActionAccept, ActorID: buyer, Comment: "deal"})
	rq.NoError(err)
	rq.Equal(bids.StatusAccepted, b.Status)
	rq.EqualValues(3, b.Revision)
	rq.True(dec(9000).Equal(*b.AgreedPrice))

	changed := env.changed.Messages()
	rq.Len(changed, 2)
	rq.NoError(kafkax.UnmarshalEnvelope(changed[1].Value, &envl))
	sc, err := kafkax.UnwrapPayload[bids.BidStatusChangedPayload](envl.Payload)
	rq.NoError(err)
	rq.Equal(bids.StatusCounterOffered, sc.From)
	rq.Equal(bids.StatusAccepted, sc.To)
	rq.Equal(buyer, sc.ActorID)

	got, err := env.svc.GetBid(ctx, seller, b.ID)
	rq.NoError(err)
	rq.Equal(bids.StatusAccepted, got.Status)
	rq.True(env.mr.Exists("bid:bid-1"))

	_, err = env.svc.GetBid(ctx, stranger, b.ID)
	rq.ErrorIs(err, bids.ErrForbiddenActor)
}

func TestServiceIdempotentPlace(t *testing.T) {
	rq := require.New(t)
	env := newServiceEnv(t)
	ctx := context.Background()
	in := bids.PlaceInput{ListingID: "listing-1", BidderID: buyer, Amount: dec(8000), IdempotencyKey: "abc"}

	first, created, err := env.svc.PlaceBid(ctx, in)
	rq.NoError(err)
	rq.True(created)

	again, created, err := env.svc.PlaceBid(ctx, in)
	rq.NoError(err)
	rq.False(created)
	rq.Equal(first.ID, again.ID)
	rq.Len(env.created.Messages(), 1)

	in.IdempotencyKey = "other"
	_, _, err = env.svc.PlaceBid(ctx, in)
	rq.ErrorIs(err, bids.ErrDuplicateActiveBid)
}

func TestServiceStaleWriteConflicts(t *testing.T) {
	rq := require.New(t)
	env := newServiceEnv(t)
	ctx := context.Background()

	b, _, err := env.svc.PlaceBid(ctx, bids.PlaceInput{ListingID: "listing-1", BidderID: buyer, Amount: dec(8000)})
	rq.NoError(err)

	l, err := env.store.GetListing(ctx, "listing-1")
	rq.NoError(err)
	accept, err := bids.Apply(b, l, bids.Command{Action: bids.ActionAccept, ActorID: seller, At: t0})
	rq.NoError(err)
	reject, err := bids.Apply(b, l, bids.Command{Action: bids.ActionReject, ActorID: seller, At: t0})
	rq.NoError(err)

	_, err = env.store.Update(ctx, b, accept)
	rq.NoError(err)
	_, err = env.store.Update(ctx, b, reject)
	rq.ErrorIs(err, bids.ErrConflict)

	stored, err := env.store.Get(ctx, b.ID)
	rq.NoError(err)
	rq.Equal(bids.StatusAccepted, stored.Status)
}

func TestServiceConcurrentActionsSerialize(t *testing.T) {
	rq := require.New(t)
	env := newServiceEnv(t)
	ctx := context.Background()

	b, _, err := env.svc.PlaceBid(ctx, bids.PlaceInput{ListingID: "listing-1", BidderID: buyer, Amount: dec(8000)})
	rq.NoError(err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			action := lo.Ternary(i%2 == 0, bids.ActionAccept, bids.ActionReject)
			_, errs[i] = env.svc.Act(ctx, b.ID, bids.Command{Action: action, ActorID: seller})
		}(i)
	}
	wg.Wait()

	ok := lo.CountBy(errs, func(err error) bool { return err == nil })
	rq.Equal(1, ok)
	for _, err := range errs {
		if err != nil {
			rq.True(bids.Kind(err) == "Conflict" || bids.Kind(err) == "InvalidTransition", err.Error())
		}
	}
	rq.Len(env.changed.Messages(), 1)
}

func TestServiceListForListing(t *testing.T) {
	rq := require.New(t)
	env := newServiceEnv(t)
	ctx := context.Background()

	for _, u := range []string{"buyer-a", "buyer-b", "buyer-c"} {
		_, _, err := env.svc.PlaceBid(ctx, bids.PlaceInput{ListingID: "listing-1", BidderID: u, Amount: dec(7000)})
		rq.NoError(err)
	}

	all, err := env.svc.ListForListing(ctx, seller, "listing-1")
	rq.NoError(err)
	rq.Len(all, 3)

	own, err := env.svc.ListForListing(ctx, "buyer-b", "listing-1")
	rq.NoError(err)
	rq.Len(own, 1)
	rq.Equal("buyer-b", own[0].BidderID)

	_, err = env.svc.ListForListing(ctx, seller, "missing")
	rq.ErrorIs(err, bids.ErrNotFound)
}

func TestServicePlaceBidSeesListingSoldAfterCachedRead(t *testing.T) {
	rq := require.New(t)
	env := newServiceEnv(t)
	ctx := context.Background()

	_, err := env.svc.ListForListing(ctx, buyer, "listing-1")
	rq.NoError(err)

	sold := listing(lo.ToPtr(dec(10000)))
	sold.Status = bids.ListingSold
	env.store.PutListing(sold)

	_, _, err = env.svc.PlaceBid(ctx, bids.PlaceInput{ListingID: "listing-1", BidderID: buyer, Amount: dec(8000)})
	rq.ErrorIs(err, bids.ErrListingNotAvailable)
	rq.Empty(env.created.Messages())
}

// interleavedStore runs during inside the first Get, between the read and its return.
type interleavedStore struct {
	*bidstest.Store
	fired  atomic.Bool
	during func()
}

func (s *interleavedStore) Get(ctx context.Context, id string) (bids.Bid, error) {
	b, err := s.Store.Get(ctx, id)
	if s.fired.CompareAndSwap(false, true) {
		s.during()
	}
	return b, err
}

func TestServiceSlowReaderDoesNotOverwriteNewerSnapshot(t *testing.T) {
	rq := require.New(t)
	env := newServiceEnv(t)
	ctx := context.Background()

	b, _, err := env.svc.PlaceBid(ctx, bids.PlaceInput{ListingID: "listing-1", BidderID: buyer, Amount: dec(8000)})
	rq.NoError(err)
	env.mr.FlushAll()

	store := &interleavedStore{Store: env.store}
	store.during = func() {
		_, err := env.svc.Act(ctx, b.ID, bids.Command{Action: bids.ActionAccept, ActorID: seller})
		rq.NoError(err)
	}
	env.svc.Bids = store

	stale, err := env.svc.GetBid(ctx, buyer, b.ID)
	rq.NoError(err)
	rq.Equal(bids.StatusOffered, stale.Status)

	got, err := env.svc.GetBid(ctx, buyer, b.ID)
	rq.NoError(err)
	rq.Equal(bids.StatusAccepted, got.Status)
	rq.EqualValues(2, got.Revision)
}

func TestServiceActOnMissingBid(t *testing.T) {
	env := newServiceEnv(t)
	_, err := env.svc.Act(context.Background(), "nope", bids.Command{Action: bids.ActionAccept, ActorID: seller})
	require.ErrorIs(t, err, bids.ErrNotFound)
}

func TestKind(t *testing.T) {
	cases := map[error]string{
		bids.ErrAlreadyConsumed: "AlreadyConsumed",
		&bids.TransitionError{From: bids.StatusRejected, Action: bids.ActionAccept}: "InvalidTransition",
		fmt.Errorf("wrapped: %w", bids.ErrConflict):                                  "Conflict",
		fmt.Errorf("boom"):                                                           "Internal",
	}
	for err, want := range cases {
		require.Equal(t, want, bids.Kind(err))
	}
}
