package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-watch-bids/internal/bids"
	"github.com/ariefcatur/go-watch-bids/internal/cart"
	"github.com/ariefcatur/go-watch-bids/internal/config"
	"github.com/ariefcatur/go-watch-bids/internal/contextx"
	"github.com/ariefcatur/go-watch-bids/internal/httpx"
	kafkax "github.com/ariefcatur/go-watch-bids/internal/kafka"
	"github.com/ariefcatur/go-watch-bids/internal/logx"
	"github.com/ariefcatur/go-watch-bids/internal/postgres"
	"github.com/ariefcatur/go-watch-bids/internal/redisx"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load", logx.Error(err))
		os.Exit(1)
	}
	log := logx.New(os.Stdout, cfg.SlogLevel(), cfg.ServiceName)
	slog.SetDefault(log)
	ctx = contextx.WithLogger(ctx, log)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("application failed", logx.Error(err))
		os.Exit(1)
	}
	log.Info("application stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.Postgres.MigrateOnStart {
		if err := postgres.Migrate(cfg.Postgres.DSN); err != nil {
			return err
		}
	}
	db, err := postgres.Connect(ctx, cfg.Postgres.DSN, postgres.PoolConfig{
		MaxConns: cfg.Postgres.MaxConns,
		MinConns: cfg.Postgres.MinConns,
	})
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	rdb, err := redisx.New(ctx, redisx.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer rdb.Close()

	// one producer per topic; closed after the HTTP server has drained
	created := kafkax.NewProducer(cfg.Kafka.Brokers, bids.TopicBidCreated, 1024, log)
	changed := kafkax.NewProducer(cfg.Kafka.Brokers, bids.TopicBidStatusChanged, 1024, log)
	cartAdded := kafkax.NewProducer(cfg.Kafka.Brokers, bids.TopicCartItemAdded, 1024, log)
	producers := []*kafkax.Producer{created, changed, cartAdded}
	for _, p := range producers {
		p.Start(ctx)
	}
	defer func() {
		for _, p := range producers {
			p.Close()
		}
		for _, p := range producers {
			p.WaitClosed()
		}
	}()

	// placing a bid and direct buys decide on listing status and read it uncached
	listings := &bids.ListingRepo{DB: db}
	listingReads := bids.NewCachedListings(listings, cfg.ListingCacheTTL)
	cache := &redisx.BidCache{Client: rdb}

	h := &httpx.Handler{
		Bids: &bids.Service{
			Bids:          &bids.BidRepo{DB: db},
			Listings:      listings,
			ListingReads:  listingReads,
			Cache:         cache,
			Idempotency:   &redisx.Idempotency{Client: rdb},
			Created:       created,
			StatusChanged: changed,
			ServiceName:   cfg.ServiceName,
		},
		Cart: &cart.Service{
			Items:        &cart.Repo{DB: db},
			Listings:     listings,
			ListingReads: listingReads,
			Cache:        cache,
			Events:       cartAdded,
			ServiceName:  cfg.ServiceName,
		},
		Feed:    &redisx.Feed{Client: rdb},
		Timeout: cfg.RequestTimeout,
	}
	router := httpx.NewRouter(log)
	h.Register(router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpx.Serve(ctx, cfg.HTTPAddr, router, cfg.ShutdownTimeout)
	})
	return g.Wait()
}
