package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type figureOutput struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

func newReportCmd(opts *globalOptions) *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Print ledger reports",
	}

	figures := []struct {
		use   string
		short string
		fn    func(s *session, ctx context.Context) (decimal.Decimal, error)
	}{
		{"cash", "Cash position: money in minus money out, loans excluded",
			func(s *session, ctx context.Context) (decimal.Decimal, error) { return s.reports.ComputeCashBalance(ctx) }},
		{"clients-outstanding", "Sum of all client balances",
			func(s *session, ctx context.Context) (decimal.Decimal, error) {
				return s.reports.ComputeClientsOutstanding(ctx)
			}},
		{"suppliers-outstanding", "Sum of all supplier balances",
			func(s *session, ctx context.Context) (decimal.Decimal, error) {
				return s.reports.ComputeSuppliersOutstanding(ctx)
			}},
		{"net-profit", "Cash plus receivables minus payables",
			func(s *session, ctx context.Context) (decimal.Decimal, error) { return s.reports.ComputeNetProfit(ctx) }},
		{"profit-margin", "Net profit as a percentage of net sales",
			func(s *session, ctx context.Context) (decimal.Decimal, error) { return s.reports.ComputeProfitMargin(ctx) }},
	}

	for _, f := range figures {
		reportCmd.AddCommand(&cobra.Command{
			Use:   f.use,
			Short: f.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := openSession(opts)
				if err != nil {
					return err
				}
				defer s.Close()

				value, err := f.fn(s, cmd.Context())
				if err != nil {
					return err
				}
				return render(cmd, opts, figureOutput{Name: f.use, Value: value}, func(w io.Writer) {
					fmt.Fprintln(w, value.StringFixed(2))
				})
			},
		})
	}

	reportCmd.AddCommand(newAgingCmd(opts))
	return reportCmd
}

func newAgingCmd(opts *globalOptions) *cobra.Command {
	agingCmd := &cobra.Command{
		Use:   "aging",
		Short: "Open sales invoices grouped by age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			today, err := parseDateFlag(cmd, "today")
			if err != nil {
				return err
			}

			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := s.reports.ComputeAgingReport(cmd.Context(), today)
			if err != nil {
				return err
			}
			return render(cmd, opts, report, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "BUCKET\tINVOICES\tTOTAL")
				for _, b := range report.Buckets {
					fmt.Fprintf(tw, "%s\t%d\t%s\n", b.Label, len(b.Invoices), b.Total.StringFixed(2))
				}
				fmt.Fprintf(tw, "Total\t\t%s\n", report.GrandTotal.StringFixed(2))
				_ = tw.Flush()
			})
		},
	}
	agingCmd.Flags().String("today", "", "Age invoices as of this date (YYYY-MM-DD, default today)")
	return agingCmd
}
