package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	natsadapter "github.com/samirrijal/geobubbles/internal/adapters/nats"
	"github.com/samirrijal/geobubbles/internal/adapters/valkey"
	"github.com/samirrijal/geobubbles/internal/bootstrap"
	"github.com/samirrijal/geobubbles/internal/core/domain"
	"github.com/samirrijal/geobubbles/internal/core/ports"
	"github.com/samirrijal/geobubbles/internal/pkg/config"
	"github.com/samirrijal/geobubbles/internal/pkg/logging"
)

// realtime consumes the event streams: device positions become user last
// locations and message changes evict cached copies.
func main() {
	cfg, err := config.Load("geobubbles-realtime")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer stores.Close()

	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Prefix); err != nil {
		slog.Warn("valkey unavailable, cache eviction disabled", "error", err)
	} else {
		defer vc.Close()
		cache = vc
	}

	// The publisher declares the streams the durable consumers attach to.
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	svc := bootstrap.NewServices(stores, cfg, cache, nil)

	err = sub.SubscribeLocationUpdates(ctx, func(ctx context.Context, u *domain.LocationUpdate) error {
		if err := svc.Users.ApplyLocationUpdate(ctx, u); err != nil {
			slog.Warn("location update failed", "user_id", u.UserID, "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe locations: %v", err)
	}

	err = sub.SubscribeMessageEvents(ctx, func(ctx context.Context, ev *domain.MessageEvent) error {
		svc.Messages.Invalidate(ctx, ev.Message.ID)
		slog.Debug("message event", "kind", ev.Kind, "message_id", ev.Message.ID)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe messages: %v", err)
	}

	slog.Info("realtime consumer started", "storage", stores.Driver)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutting down realtime consumer", "signal", sig.String())
}
