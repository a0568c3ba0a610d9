package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"

	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/migration"
	"github.com/erp/ledger/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultMigrationsDir = "migrations"

type app struct {
	dir      string
	logLevel string
	log      *zap.Logger
}

// source is the migration set in use: the embedded one unless --dir is set.
func (a *app) source() (migration.Source, fs.FS) {
	if a.dir != "" {
		return migration.Source{Dir: a.dir}, os.DirFS(a.dir)
	}
	return migration.Source{FS: migrations.FS}, migrations.FS
}

// withMigrator opens the configured database, runs fn and closes both.
func (a *app) withMigrator(fn func(m *migration.Migrator, available fs.FS) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("pgx", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	src, available := a.source()
	m, err := migration.New(db, src, a.log)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer m.Close()
	return fn(m, available)
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Ledger database migration tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(&logger.Config{
				Level:      a.logLevel,
				Format:     "console",
				Output:     "stderr",
				TimeFormat: "2006-01-02 15:04:05",
				Component:  "migrate",
			})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			a.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.dir, "dir", "", "Read migrations from this directory instead of the embedded set")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newUpCmd(a),
		newDownCmd(a),
		newStepCmd(a),
		newGotoCmd(a),
		newStatusCmd(a),
		newForceCmd(a),
		newCreateCmd(a),
		newListCmd(a),
	)
	return rootCmd
}
