package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/packfinderz-ledger/internal/reconcile"
)

// ServiceFactory connects to storage and returns the reconcile service together with a
// cleanup function. Commands call it lazily so --help never touches the database.
type ServiceFactory func(ctx context.Context) (reconcile.Service, func() error, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format  string
	connect ServiceFactory
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand(connect ServiceFactory) *cobra.Command {
	opts := &RootOptions{connect: connect}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile live inventory, order and shipment state against the ledger",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewHealCommand(opts))
	cmd.AddCommand(NewColdStartCommand(opts))
	cmd.AddCommand(NewReclaimCommand(opts))

	return cmd
}

// withService runs fn against a connected service and always runs the cleanup.
func (o *RootOptions) withService(ctx context.Context, fn func(reconcile.Service) error) (err error) {
	if o.connect == nil {
		return NewExitError(ExitCommandError, "no service configured")
	}
	svc, cleanup, err := o.connect(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect", err)
	}
	if cleanup != nil {
		defer func() {
			if cerr := cleanup(); cerr != nil && err == nil {
				err = WrapExitError(ExitCommandError, "failed to close connections", cerr)
			}
		}()
	}
	return fn(svc)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}
