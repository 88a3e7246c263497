package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/geobubbles/internal/bootstrap"
	"github.com/samirrijal/geobubbles/internal/workflows"
)

func newPurgeCmd() *cobra.Command {
	var inline bool
	cmd := &cobra.Command{
		Use:   "purge <user-id>",
		Short: "Remove an account and all of its content",
		Long: "Starts the account purge workflow. With --inline the steps run in\n" +
			"this process against the configured store instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID := args[0]
			out := cmd.OutOrStdout()

			if !inline {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				c, err := client.Dial(client.Options{
					HostPort:  cfg.Temporal.HostPort,
					Namespace: cfg.Temporal.Namespace,
					Logger:    slog.Default(),
				})
				if err != nil {
					return fmt.Errorf("temporal client: %w", err)
				}
				defer c.Close()

				id, err := workflows.NewScheduler(c, cfg.Temporal.TaskQueue).SchedulePurge(ctx, userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "purge started: workflow %s\n", id)
				return nil
			}

			cfg, st, err := openStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			report, err := bootstrap.NewServices(st, cfg, nil, nil).Accounts.Purge(ctx, userID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().BoolVar(&inline, "inline", false, "run the purge in this process instead of starting a workflow")
	return cmd
}
