package main

import (
	"fmt"
	"time"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/notify"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// session is one open connection to the ledger store plus the services the
// subcommands call.
type session struct {
	db         *persistence.Database
	log        *zap.Logger
	cfg        *config.Config
	scope      *persistence.GormTransactionScope
	settlement *ledgerapp.SettlementService
	reports    *ledgerapp.ReportService
}

func openSession(opts *globalOptions) (*session, error) {
	log, err := logger.New(&logger.Config{
		Level:      opts.logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.RFC3339,
		Component:  "ledgerctl",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	s := &session{log: log}
	if opts.sqlitePath != "" {
		s.db, err = persistence.NewSQLiteDatabase(opts.sqlitePath,
			persistence.WithZapLogger(log, opts.logLevel, time.Second),
		)
		if err != nil {
			_ = log.Sync()
			return nil, err
		}
		log.Debug("Using local SQLite store", zap.String("path", opts.sqlitePath))
	} else {
		s.cfg, err = config.Load()
		if err != nil {
			_ = log.Sync()
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		s.db, err = persistence.NewDatabase(&s.cfg.Database,
			persistence.WithZapLogger(log, opts.logLevel, s.cfg.Database.SlowQueryThresh),
		)
		if err != nil {
			_ = log.Sync()
			return nil, err
		}
	}

	s.scope = s.db.TransactionScope()
	s.settlement = ledgerapp.NewSettlementService(s.scope,
		ledgerapp.WithSettlementLogger(log.Named("settlement")),
		ledgerapp.WithSettlementRetryPolicy(s.retryPolicy()),
	)
	s.reports = ledgerapp.NewReportService(s.scope,
		ledgerapp.WithAlertSettings(s.alertSettings()),
		ledgerapp.WithReportLogger(log.Named("reports")),
	)
	return s, nil
}

func (s *session) retryPolicy() ledgerapp.RetryPolicy {
	if s.cfg == nil {
		return ledgerapp.DefaultRetryPolicy()
	}
	return ledgerapp.RetryPolicy{
		MaxRetries: s.cfg.Settlement.MaxRetries,
		Backoff:    s.cfg.Settlement.RetryBackoff,
	}
}

func (s *session) alertSettings() ledgerapp.AlertSettings {
	if s.cfg == nil {
		return ledgerapp.AlertSettings{}
	}
	return ledgerapp.AlertSettings{
		LowStockThreshold: s.cfg.Alerts.LowStockThreshold,
		DueSoonDays:       s.cfg.Alerts.DueSoonDays,
	}
}

// weeklyReports builds the weekly report service. Local mode always logs
// the message instead of sending it anywhere.
func (s *session) weeklyReports(currency string) (*ledgerapp.WeeklyReportService, error) {
	var (
		notifier ledgerapp.Notifier = notify.NewLogNotifier(s.log)
		lang                        = language.English
	)
	if s.cfg != nil {
		n, err := notify.New(s.cfg.Notify, s.log)
		if err != nil {
			return nil, err
		}
		notifier = n
		lang = language.Make(s.cfg.Notify.Language)
		if currency == "" {
			currency = s.cfg.Notify.CurrencyLabel
		}
	}
	opts := []ledgerapp.WeeklyReportOption{
		ledgerapp.WithReportLanguage(lang),
		ledgerapp.WithWeeklyReportLogger(s.log.Named("weekly_report")),
	}
	if currency != "" {
		opts = append(opts, ledgerapp.WithCurrencyLabel(currency))
	}
	return ledgerapp.NewWeeklyReportService(s.scope, notifier, opts...), nil
}

func (s *session) Close() {
	if err := s.db.Close(); err != nil {
		s.log.Warn("Failed to close database", zap.Error(err))
	}
	_ = s.log.Sync()
}
