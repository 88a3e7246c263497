package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/geobubbles/internal/adapters/http"
	natsadapter "github.com/samirrijal/geobubbles/internal/adapters/nats"
	"github.com/samirrijal/geobubbles/internal/adapters/valkey"
	"github.com/samirrijal/geobubbles/internal/bootstrap"
	"github.com/samirrijal/geobubbles/internal/core/ports"
	"github.com/samirrijal/geobubbles/internal/pkg/config"
	"github.com/samirrijal/geobubbles/internal/pkg/logging"
	"github.com/samirrijal/geobubbles/internal/pkg/telemetry"
	"github.com/samirrijal/geobubbles/internal/workflows"
)

func main() {
	cfg, err := config.Load("geobubbles-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Store
	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer stores.Close()
	stores.ReportPoolMetrics(ctx, 15*time.Second)

	deps := &http.Dependencies{DB: stores, DocsPath: cfg.Server.DocsPath}

	// Cache
	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Prefix); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vc.Close()
		cache = vc
		deps.Cache = vc
	}

	// NATS: one connection publishes events and feeds the WebSocket relay
	var publisher ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
		deps.NATS = pub.Conn()
	}

	svc := bootstrap.NewServices(stores, cfg, cache, publisher)
	deps.Users = svc.Users
	deps.Friends = svc.Friends
	deps.Messages = svc.Messages
	deps.Replies = svc.Replies
	deps.Feed = svc.Feed
	deps.Accounts = svc.Accounts
	deps.Fallback = bootstrap.Fallback(cfg)

	// Temporal: account purges run as workflows when enabled
	if cfg.Temporal.Enabled {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			Logger:    slog.Default(),
		})
		if err != nil {
			slog.Warn("temporal unavailable, purges run inline", "error", err)
		} else {
			defer tc.Close()
			deps.Purges = workflows.NewScheduler(tc, cfg.Temporal.TaskQueue)
		}
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "geobubbles API",
		ErrorHandler: http.ErrorHandler,
	})
	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "storage", stores.Driver)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
