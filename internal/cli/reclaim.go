package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/packfinderz-ledger/internal/reconcile"
)

func NewReclaimCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reclaim",
		Short: "Expire stale pending orders and release their reserved stock",
		Long: `Run one stale-reservation reclaim pass. A pass that finds a reservation it
cannot release aborts without writing anything and exits 1.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReclaim(rootOpts, cmd)
		},
	}
}

func runReclaim(opts *RootOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	return opts.withService(cmd.Context(), func(svc reconcile.Service) error {
		summary, err := svc.ReclaimStaleOrders(cmd.Context())
		if err != nil {
			return out.Failure("reclaim failed", err)
		}
		if opts.Format == "json" {
			return out.JSON(summary)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Cutoff: %s\n", summary.Cutoff.Format(time.RFC3339))
		fmt.Fprintf(w, "Expired %d order(s), released %d unit(s) across %d item(s)\n",
			summary.OrdersExpired, summary.UnitsReleased, summary.ItemsReleased)
		for _, id := range summary.OrderIDs {
			fmt.Fprintf(w, "  %s\n", id)
		}
		return nil
	})
}
