package main

import (
	"fmt"
	"io"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/spf13/cobra"
)

func newWeeklyCmd(opts *globalOptions) *cobra.Command {
	weeklyCmd := &cobra.Command{
		Use:   "weekly",
		Short: "Build or send the weekly outstanding-balance report",
	}

	var currency string
	weeklyCmd.PersistentFlags().StringVar(&currency, "currency", "", "Currency label printed after amounts")

	weeklyCmd.AddCommand(
		&cobra.Command{
			Use:   "preview",
			Short: "Print the weekly report without sending it",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWeekly(cmd, opts, currency, false)
			},
		},
		&cobra.Command{
			Use:   "send",
			Short: "Send the weekly report through the configured notifier",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWeekly(cmd, opts, currency, true)
			},
		},
	)
	return weeklyCmd
}

func runWeekly(cmd *cobra.Command, opts *globalOptions, currency string, send bool) error {
	s, err := openSession(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	weekly, err := s.weeklyReports(currency)
	if err != nil {
		return err
	}

	var report *ledgerapp.WeeklyReport
	if send {
		report, err = weekly.Send(cmd.Context())
	} else {
		report, err = weekly.Build(cmd.Context())
	}
	if err != nil {
		return err
	}
	if send && !report.Delivered {
		return fmt.Errorf("weekly report was built but not delivered")
	}

	return render(cmd, opts, report, func(w io.Writer) {
		fmt.Fprintln(w, report.Message)
	})
}
