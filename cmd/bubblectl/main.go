// Command bubblectl is the operator CLI: schema migrations, index setup,
// seeding, offline filtering and account purges.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samirrijal/geobubbles/internal/bootstrap"
	"github.com/samirrijal/geobubbles/internal/pkg/config"
	"github.com/samirrijal/geobubbles/internal/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bubblectl",
		Short:         "Operate a geobubbles deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newIndexesCmd(),
		newSeedCmd(),
		newFilterCmd(),
		newPurgeCmd(),
	)
	return root
}

// loadConfig reads configuration and sets up logging to stderr.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load("geobubbles-ctl")
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logging.Setup(cfg.Log.Level, "text")
	return cfg, nil
}

// openStores loads configuration and connects to the configured store.
func openStores(ctx context.Context) (*config.Config, *bootstrap.Stores, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}
