package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prudhvinik1/smsledger/internal/database"
)

func newMigrateCommand(opts *dbOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the ledger schema to Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := opts.connect(ctx, opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.Migrate(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}
