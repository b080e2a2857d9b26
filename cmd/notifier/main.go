package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-watch-bids/internal/config"
	"github.com/ariefcatur/go-watch-bids/internal/contextx"
	"github.com/ariefcatur/go-watch-bids/internal/httpx"
	kafkax "github.com/ariefcatur/go-watch-bids/internal/kafka"
	"github.com/ariefcatur/go-watch-bids/internal/logx"
	"github.com/ariefcatur/go-watch-bids/internal/notify"
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
	service := cfg.ServiceName + "-notifier"
	log := logx.New(os.Stdout, cfg.SlogLevel(), service)
	slog.SetDefault(log)
	ctx = contextx.WithLogger(ctx, log)

	if err := run(ctx, cfg, service, log); err != nil {
		log.Error("notifier failed", logx.Error(err))
		os.Exit(1)
	}
	log.Info("notifier stopped")
}

func run(ctx context.Context, cfg config.Config, service string, log *slog.Logger) error {
	rdb, err := redisx.New(ctx, redisx.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer rdb.Close()

	svc := &notify.Service{
		Redis:       rdb,
		Feed:        &redisx.Feed{Client: rdb},
		ServiceName: service,
	}
	topics := notify.Topics()
	cons := kafkax.NewConsumer(cfg.Kafka.Brokers, cfg.Notifier.Group, topics, cfg.Notifier.Workers, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("consumer started",
			slog.String("group", cfg.Notifier.Group),
			slog.Any("topics", topics),
			slog.Int("workers", cfg.Notifier.Workers),
		)
		return cons.Start(ctx, svc.HandleEvent)
	})
	g.Go(func() error {
		// health and metrics only
		return httpx.Serve(ctx, cfg.Notifier.HTTPAddr, httpx.NewRouter(log), cfg.ShutdownTimeout)
	})
	return g.Wait()
}
