package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

const dateLayout = "2006-01-02"

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	sqlitePath string
	logLevel   string
	output     string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operator CLI for the ledger",
		Long: `ledgerctl runs maintenance and reporting tasks against the ledger store.

By default it connects to the Postgres database configured through
config.toml, .env or LEDGER_DATABASE_* variables. With --sqlite it works on a
local SQLite file instead, creating the schema when the file is new.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case "text", "json":
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want text or json)", opts.output)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.sqlitePath, "sqlite", "", "Use a local SQLite file instead of Postgres")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.StringVarP(&opts.output, "output", "o", "text", "Output format: text or json")

	rootCmd.AddCommand(
		newStatusesCmd(opts),
		newBalanceCmd(opts),
		newReportCmd(opts),
		newWeeklyCmd(opts),
	)
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// render writes v as indented JSON when --output json is set, otherwise it
// calls text.
func render(cmd *cobra.Command, opts *globalOptions, v any, text func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if opts.output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(out)
	return nil
}

func parseDateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, err := cmd.Flags().GetString(name)
	if err != nil {
		return time.Time{}, err
	}
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: expected YYYY-MM-DD", name, raw)
	}
	return t, nil
}
