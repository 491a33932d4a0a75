package commands

import (
	"github.com/spf13/cobra"

	"github.com/prudhvinik1/smsledger/internal/repositories"
	"github.com/prudhvinik1/smsledger/internal/services"
)

func newStatsCommand(opts *dbOptions) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print sender statistics for an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, closeFn, err := opts.openLedger(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := services.NewStatsService(ledger).SenderStatistics(cmd.Context(), owner)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id (required)")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func newDevicesCommand(opts *dbOptions) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List an owner's devices and their last sync time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, closeFn, err := opts.openLedger(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			log := opts.logger(cmd.ErrOrStderr())
			devices, err := services.NewLedgerService(ledger, nil, 0, log).Devices(cmd.Context(), owner)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), devices)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id (required)")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func (o *dbOptions) openLedger(cmd *cobra.Command) (repositories.LedgerRepository, func(), error) {
	loc, err := o.location()
	if err != nil {
		return nil, nil, err
	}
	pool, err := o.connect(cmd.Context(), o.logger(cmd.ErrOrStderr()))
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewPostgresLedgerRepository(pool, loc), pool.Close, nil
}
