package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/geobubbles/internal/adapters/nats"
	"github.com/samirrijal/geobubbles/internal/adapters/valkey"
	"github.com/samirrijal/geobubbles/internal/bootstrap"
	"github.com/samirrijal/geobubbles/internal/core/ports"
	"github.com/samirrijal/geobubbles/internal/pkg/config"
	"github.com/samirrijal/geobubbles/internal/pkg/logging"
	"github.com/samirrijal/geobubbles/internal/workflows"
)

func main() {
	cfg, err := config.Load("geobubbles-purger")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer stores.Close()

	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Prefix); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vc.Close()
		cache = vc
	}

	var publisher ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, delete events not published", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	svc := bootstrap.NewServices(stores, cfg, cache, publisher)

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	workflows.Register(w, &workflows.PurgeActivities{Accounts: svc.Accounts})

	slog.Info("purge worker started", "task_queue", cfg.Temporal.TaskQueue, "storage", stores.Driver)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
