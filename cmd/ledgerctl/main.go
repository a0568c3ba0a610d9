// Command ledgerctl is the operator CLI for the ledger: status backfill,
// balances, reports and the weekly outstanding-balance message.
package main

func main() {
	Execute()
}
