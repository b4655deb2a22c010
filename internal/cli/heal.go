package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/packfinderz-ledger/internal/reconcile"
)

type HealOptions struct {
	*RootOptions
	DryRun bool
}

func NewHealCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HealOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "heal",
		Short: "Rebuild live state from the ledger",
		Long: `Rebuild every derived table from the ledger inside one transaction.

With --dry-run the rebuild runs and is rolled back, so the listed changes show
what a real heal would correct.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeal(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "roll the rebuild back instead of committing it")

	return cmd
}

func runHeal(opts *HealOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	return opts.withService(cmd.Context(), func(svc reconcile.Service) error {
		report, err := svc.Heal(cmd.Context(), opts.DryRun)
		if err != nil {
			return out.Failure("heal failed", err)
		}
		if opts.Format == "json" {
			return out.JSON(report)
		}

		w := cmd.OutOrStdout()
		verb := "Healed"
		if report.DryRun {
			verb = "Dry run: would heal"
		}
		fmt.Fprintf(w, "%s %d difference(s) from %d event(s) up to seq %d\n", verb, len(report.Changes), report.EventsApplied, report.LastSeq)
		writeViolations(w, report.Changes)
		return nil
	})
}
