package main

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newStatusesCmd(opts *globalOptions) *cobra.Command {
	statusesCmd := &cobra.Command{
		Use:   "statuses",
		Short: "Inspect and repair invoice statuses",
	}

	refreshCmd := &cobra.Command{
		Use:   "refresh [invoice-id]",
		Short: "Recompute invoice statuses from their payments",
		Long: `Recompute the status of one invoice, or of every invoice when no id is
given. Only statuses that differ from the derived value are written.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid invoice id %q", args[0])
				}
				result, err := s.settlement.RefreshInvoiceStatus(cmd.Context(), id)
				if err != nil {
					return err
				}
				return render(cmd, opts, result, func(w io.Writer) {
					fmt.Fprintf(w, "%s: %s -> %s (remaining %s)\n",
						result.InvoiceNumber, result.PreviousStatus, result.Status,
						result.RemainingAmount.StringFixed(2))
				})
			}

			result, err := s.settlement.RefreshAllInvoiceStatuses(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, opts, result, func(w io.Writer) {
				fmt.Fprintf(w, "checked %d invoices, changed %d\n", result.Checked, result.Changed)
			})
		},
	}

	statusesCmd.AddCommand(refreshCmd)
	return statusesCmd
}
