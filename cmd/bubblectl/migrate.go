package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|down>",
		Short:     "Apply or revert the relational schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			if st.Postgres == nil {
				return fmt.Errorf("migrate needs storage.driver=postgres, got %q", st.Driver)
			}

			out := cmd.OutOrStdout()
			err = st.Postgres.Migrate(cmd.Context(), args[0], func(name string) {
				fmt.Fprintf(out, "OK  %s\n", name)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "all %s migrations applied\n", args[0])
			return nil
		},
	}
}

func newIndexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the document store indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			if st.Mongo == nil {
				return fmt.Errorf("indexes needs storage.driver=mongo, got %q", st.Driver)
			}

			out := cmd.OutOrStdout()
			return st.Mongo.EnsureIndexes(cmd.Context(), func(coll string, names []string) {
				fmt.Fprintf(out, "OK  %s %v\n", coll, names)
			})
		},
	}
}
