package main

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type balanceOutput struct {
	Kind    string          `json:"kind"`
	ID      uuid.UUID       `json:"id"`
	Balance decimal.Decimal `json:"balance"`
}

func newBalanceCmd(opts *globalOptions) *cobra.Command {
	balanceCmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the signed balance of a client or supplier",
		Long: `Show a counterparty's balance: invoice totals minus everything it has paid
or been paid, including payments not linked to an invoice. A negative
balance is credit in the counterparty's favour.`,
	}

	for _, kind := range []string{"client", "supplier"} {
		balanceCmd.AddCommand(&cobra.Command{
			Use:   kind + " <id>",
			Short: "Balance of a " + kind,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid %s id %q", kind, args[0])
				}

				s, err := openSession(opts)
				if err != nil {
					return err
				}
				defer s.Close()

				var balance decimal.Decimal
				if kind == "client" {
					balance, err = s.settlement.ComputeClientBalance(cmd.Context(), id)
				} else {
					balance, err = s.settlement.ComputeSupplierBalance(cmd.Context(), id)
				}
				if err != nil {
					return err
				}

				out := balanceOutput{Kind: kind, ID: id, Balance: balance}
				return render(cmd, opts, out, func(w io.Writer) {
					fmt.Fprintln(w, balance.StringFixed(2))
				})
			},
		})
	}
	return balanceCmd
}
