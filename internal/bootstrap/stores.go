// Package bootstrap wires adapters from configuration for the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mongoadapter "github.com/samirrijal/geobubbles/internal/adapters/mongo"
	"github.com/samirrijal/geobubbles/internal/adapters/postgres"
	"github.com/samirrijal/geobubbles/internal/core/domain"
	"github.com/samirrijal/geobubbles/internal/core/ports"
	"github.com/samirrijal/geobubbles/internal/pkg/config"
	"github.com/samirrijal/geobubbles/internal/pkg/metrics"
)

// BatchMessageWriter inserts many messages at once. Both store adapters provide it.
type BatchMessageWriter interface {
	CreateBatch(ctx context.Context, msgs []domain.Message) error
}

// Stores holds the repositories of the configured driver.
type Stores struct {
	Driver   string
	Users    ports.UserRepository
	Messages interface {
		ports.MessageRepository
		BatchMessageWriter
	}
	Replies ports.ReplyRepository
	Friends ports.FriendRepository

	// Exactly one of these is set.
	Postgres *postgres.DB
	Mongo    *mongoadapter.Store
}

// Ping checks the underlying store.
func (s *Stores) Ping(ctx context.Context) error {
	if s.Postgres != nil {
		return s.Postgres.Ping(ctx)
	}
	return s.Mongo.Ping(ctx)
}

// Close releases the store connections.
func (s *Stores) Close() {
	if s.Postgres != nil {
		s.Postgres.Close()
	}
	if s.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Mongo.Close(ctx)
	}
}

// OpenStores connects to the store selected by storage.driver.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return &Stores{
			Driver:   "postgres",
			Users:    postgres.NewUserRepo(db),
			Messages: postgres.NewMessageRepo(db),
			Replies:  postgres.NewReplyRepo(db),
			Friends:  postgres.NewFriendRepo(db),
			Postgres: db,
		}, nil
	case "mongo":
		st, err := mongoadapter.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		return &Stores{
			Driver:   "mongo",
			Users:    mongoadapter.NewUserRepo(st),
			Messages: mongoadapter.NewMessageRepo(st),
			Replies:  mongoadapter.NewReplyRepo(st),
			Friends:  mongoadapter.NewFriendRepo(st),
			Mongo:    st,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// ReportPoolMetrics refreshes the Postgres pool gauges until ctx is done.
// It is a no-op for the document store.
func (s *Stores) ReportPoolMetrics(ctx context.Context, every time.Duration) {
	if s.Postgres == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(s.Postgres.Pool.Stat())
			}
		}
	}()
	slog.Debug("pool metrics reporting", "interval", every.String())
}
