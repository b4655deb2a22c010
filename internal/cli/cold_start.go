package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/packfinderz-ledger/internal/reconcile"
)

type ColdStartOptions struct {
	*RootOptions
	Confirm string
}

func NewColdStartCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ColdStartOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cold-start",
		Short: "Discard and rebuild all live state from the full ledger",
		Long: fmt.Sprintf(`Rebuild all derived tables from the full ledger. Requires --confirm %s.

Example:
  reconcile cold-start --confirm %s`, reconcile.ColdStartConfirmation, reconcile.ColdStartConfirmation),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runColdStart(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Confirm, "confirm", "", fmt.Sprintf("must be %q", reconcile.ColdStartConfirmation))
	_ = cmd.MarkFlagRequired("confirm")

	return cmd
}

func runColdStart(opts *ColdStartOptions, cmd *cobra.Command) error {
	if opts.Confirm != reconcile.ColdStartConfirmation {
		return NewExitError(ExitCommandError, fmt.Sprintf("--confirm must be %q", reconcile.ColdStartConfirmation))
	}
	out := opts.formatter(cmd)
	return opts.withService(cmd.Context(), func(svc reconcile.Service) error {
		result, err := svc.ColdStart(cmd.Context(), opts.Confirm)
		if err != nil {
			return out.Failure("cold start failed", err)
		}
		if opts.Format == "json" {
			return out.JSON(result)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Rebuilt live state from %d event(s) up to seq %d\n", result.EventsApplied, result.LastSeq)
		fmt.Fprintf(w, "Corrected %d difference(s)\n", len(result.Violations))
		writeViolations(w, result.Violations)
		return nil
	})
}
