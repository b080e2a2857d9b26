package cart_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"go.uber.org/goleak"

	"github.com/ariefcatur/go-watch-bids/internal/bids"
	"github.com/ariefcatur/go-watch-bids/internal/cart"
	"github.com/ariefcatur/go-watch-bids/internal/postgres/pgtest"
)

type cartRepoSuite struct {
	suite.Suite

	pool      *pgxpool.Pool
	repo      *cart.Repo
	bids      *bids.BidRepo
	container testcontainers.Container
}

func TestCartRepoSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	defer goleak.VerifyNone(t)

	suite.Run(t, new(cartRepoSuite))
}

func (s *cartRepoSuite) SetupSuite() {
	ctx := s.T().Context()

	var (
		dsn string
		err error
	)
	s.container, dsn, err = pgtest.Start(ctx)
	s.Require().NoError(err)

	s.pool, err = pgxpool.New(ctx, dsn)
	s.Require().NoError(err)

	s.repo = &cart.Repo{DB: s.pool}
	s.bids = &bids.BidRepo{DB: s.pool}
}

func (s *cartRepoSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.NoError(s.container.Terminate(context.Background()))
	}
}

// acceptedBid stores a listing and a bid its owner accepted.
func (s *cartRepoSuite) acceptedBid() (bids.Listing, bids.Bid) {
	ctx := context.Background()
	l := bids.Listing{ID: gofakeit.UUID(), OwnerID: gofakeit.UUID(), Price: lo.ToPtr(decimal.NewFromInt(10000)), Status: bids.ListingActive}
	_, err := s.pool.Exec(ctx, `INSERT INTO listings (id, owner_id, price, status) VALUES ($1,$2,$3,$4)`,
		l.ID, l.OwnerID, *l.Price, l.Status)
	s.Require().NoError(err)

	at := time.Now().UTC().Truncate(time.Microsecond)
	b, err := bids.Place(l, nil, bids.PlaceCommand{BidID: gofakeit.UUID(), BidderID: gofakeit.UUID(), Amount: decimal.NewFromInt(8000), At: at})
	s.Require().NoError(err)
	s.Require().NoError(s.bids.Create(ctx, b))

	accepted, err := bids.Apply(b, l, bids.Command{Action: bids.ActionAccept, ActorID: l.OwnerID, At: at})
	s.Require().NoError(err)
	accepted, err = s.bids.Update(ctx, b, accepted)
	s.Require().NoError(err)
	return l, accepted
}

func (s *cartRepoSuite) materialize(b bids.Bid, userID string) (cart.LineItem, bids.Bid, error) {
	lineID, at := gofakeit.UUID(), time.Now().UTC().Truncate(time.Microsecond)
	return s.repo.MaterializeTx(context.Background(), b.ID, func(locked bids.Bid) (cart.LineItem, bids.Bid, error) {
		return cart.Materialize(locked, userID, lineID, at)
	})
}

func (s *cartRepoSuite) TestMaterializeOnce() {
	ctx := context.Background()
	_, b := s.acceptedBid()

	item, consumed, err := s.materialize(b, b.BidderID)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(8000).Equal(item.Price))
	s.Equal(b.Revision+1, consumed.Revision)

	stored, err := s.bids.Get(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(item.ID, *stored.ConsumedByCartItemID)
	s.Equal(consumed.Revision, stored.Revision)

	_, _, err = s.materialize(b, b.BidderID)
	s.ErrorIs(err, bids.ErrAlreadyConsumed)

	items, err := s.repo.ListByUser(ctx, b.BidderID)
	s.Require().NoError(err)
	s.Len(items, 1)
	s.Equal(b.ID, *items[0].FromBid)
}

func (s *cartRepoSuite) TestMaterializeConcurrent() {
	_, b := s.acceptedBid()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.materialize(b, b.BidderID)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Equal(1, lo.CountBy(errs, func(err error) bool { return err == nil }))
	items, err := s.repo.ListByUser(context.Background(), b.BidderID)
	s.Require().NoError(err)
	s.Len(items, 1)
}

func (s *cartRepoSuite) TestMaterializeRulesRollBack() {
	ctx := context.Background()
	l, b := s.acceptedBid()

	_, _, err := s.materialize(b, l.OwnerID)
	s.ErrorIs(err, bids.ErrForbiddenActor)

	_, _, err = s.materialize(bids.Bid{ID: gofakeit.UUID()}, b.BidderID)
	s.ErrorIs(err, bids.ErrNotFound)

	items, err := s.repo.ListByUser(ctx, l.OwnerID)
	s.Require().NoError(err)
	s.Empty(items)
}

func (s *cartRepoSuite) TestAddDirect() {
	ctx := context.Background()
	l, _ := s.acceptedBid()
	user := gofakeit.UUID()

	item, err := cart.AddListing(l, user, gofakeit.UUID(), time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.repo.Add(ctx, item))

	items, err := s.repo.ListByUser(ctx, user)
	s.Require().NoError(err)
	s.Len(items, 1)
	s.Nil(items[0].FromBid)
	s.True(l.Price.Equal(items[0].Price))
}
