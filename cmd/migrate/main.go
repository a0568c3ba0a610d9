// Command migrate applies and inspects the ledger schema migrations. The
// database is configured the same way as the server: config.toml, .env or
// LEDGER_DATABASE_* environment variables.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
