package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/notify"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/scheduler"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/erp/ledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.ISO8601Millis,
		Component:  "server",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = baseLog.Sync()
	}()

	ctx := context.Background()
	tel, err := telemetry.Setup(ctx, telemetrySettings(cfg), baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log := tel.Logger
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			baseLog.Error("Telemetry shutdown failed", zap.Error(err))
		}
	}()

	log.Info("Starting ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithZapLogger(log, cfg.Log.Level, cfg.Database.SlowQueryThresh),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:          cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		IncludeVariables: cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh:  cfg.Telemetry.DBSlowQueryThresh,
		DBName:           cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	metrics, err := telemetry.NewLedgerMetrics(tel.Meter.Meter("ledger"))
	if err != nil {
		log.Fatal("Failed to create ledger metrics", zap.Error(err))
	}

	idempotency, err := cache.OpenIdempotencyStore(ctx, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() { _ = idempotency.Close() }()

	notifier, err := notify.New(cfg.Notify, log)
	if err != nil {
		log.Fatal("Failed to create notifier", zap.Error(err))
	}

	bus := newEventBus(cfg, idempotency, notifier, log)
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	scope := db.TransactionScope()
	retry := ledgerapp.RetryPolicy{
		MaxRetries: cfg.Settlement.MaxRetries,
		Backoff:    cfg.Settlement.RetryBackoff,
	}
	settlement := ledgerapp.NewSettlementService(scope,
		ledgerapp.WithSettlementEventPublisher(bus),
		ledgerapp.WithIdempotencyStore(idempotency, cfg.Settlement.IdempotencyTTL),
		ledgerapp.WithSettlementMetrics(metrics),
		ledgerapp.WithSettlementLogger(log.Named("settlement")),
		ledgerapp.WithSettlementRetryPolicy(retry),
	)
	invoices := ledgerapp.NewInvoiceService(scope,
		ledgerapp.WithInvoiceEventPublisher(bus),
		ledgerapp.WithInvoiceMetrics(metrics),
		ledgerapp.WithInvoiceLogger(log.Named("invoice")),
		ledgerapp.WithInvoiceRetryPolicy(retry),
	)
	masterData := ledgerapp.NewMasterDataService(scope, log.Named("masterdata"))
	reports := ledgerapp.NewReportService(scope,
		ledgerapp.WithAlertSettings(ledgerapp.AlertSettings{
			LowStockThreshold: cfg.Alerts.LowStockThreshold,
			DueSoonDays:       cfg.Alerts.DueSoonDays,
		}),
		ledgerapp.WithReportLogger(log.Named("report")),
	)
	weekly := ledgerapp.NewWeeklyReportService(scope, notifier,
		ledgerapp.WithCurrencyLabel(cfg.Notify.CurrencyLabel),
		ledgerapp.WithReportLanguage(language.Make(cfg.Notify.Language)),
		ledgerapp.WithWeeklyReportMetrics(metrics),
		ledgerapp.WithWeeklyReportLogger(log.Named("weekly_report")),
	)

	trigger, err := newWeeklyTrigger(cfg, weekly, log)
	if err != nil {
		log.Fatal("Failed to create weekly report trigger", zap.Error(err))
	}
	if trigger != nil {
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start weekly report trigger", zap.Error(err))
		}
		log.Info("Weekly report scheduled", zap.Time("next_run", trigger.NextRun()))
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsCfg := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	tracingCfg := middleware.DefaultTracingConfig()
	tracingCfg.ServiceName = cfg.Telemetry.ServiceName
	tracingCfg.Enabled = cfg.Telemetry.Enabled

	// RequestID runs first so every later middleware can log and tag it
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsCfg),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.TracingWithConfig(tracingCfg),
		middleware.SpanAttributes(),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: tel.Meter,
			Enabled:       cfg.Telemetry.MetricsEnabled,
			Logger:        log,
		}),
		middleware.Profiling(cfg.Telemetry.ProfilingEnabled, "/health"),
	)

	router.MountLedgerAPI(engine, router.LedgerHandlers{
		Clients:    handler.NewCounterpartyHandler(ledger.CounterpartyClient, masterData, settlement, reports),
		Suppliers:  handler.NewCounterpartyHandler(ledger.CounterpartySupplier, masterData, settlement, reports),
		MasterData: handler.NewMasterDataHandler(masterData),
		Invoices:   handler.NewInvoiceHandler(invoices, settlement),
		Payments:   handler.NewPaymentHandler(settlement),
		Reports:    handler.NewReportHandler(reports, weekly),
		System:     handler.NewSystemHandler(cfg.App.Name, version, db),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if trigger != nil {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Warn("Weekly report trigger did not stop cleanly", zap.Error(err))
		}
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not drain", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func telemetrySettings(cfg *config.Config) telemetry.Settings {
	t := cfg.Telemetry
	return telemetry.Settings{
		Collector: telemetry.Collector{
			Endpoint:    t.CollectorEndpoint,
			Insecure:    t.Insecure,
			ServiceName: t.ServiceName,
		},
		Tracing: telemetry.TracingConfig{
			Enabled:       t.Enabled,
			SamplingRatio: t.SamplingRatio,
		},
		Metrics: telemetry.MetricsConfig{
			Enabled:        t.MetricsEnabled,
			ExportInterval: t.MetricsInterval,
		},
		Logs: telemetry.LogsConfig{Enabled: t.LogsEnabled},
		Profiling: telemetry.ProfilerConfig{
			Enabled:           t.ProfilingEnabled,
			ServerAddress:     t.ProfilingServerAddress,
			ApplicationName:   t.ServiceName,
			BasicAuthUser:     t.ProfilingUser,
			BasicAuthPassword: t.ProfilingPassword,
			ProfileTypes:      t.ProfileTypes,
		},
		LogLevel: logger.ParseLevel(cfg.Log.Level),
	}
}

// newEventBus delivers settlement events to the operator notifier off the
// request path. Redelivered events are dropped by the idempotent wrapper.
func newEventBus(cfg *config.Config, store shared.IdempotencyStore, notifier ledgerapp.Notifier, log *zap.Logger) *event.InMemoryEventBus {
	bus := event.NewInMemoryEventBus(log.Named("event_bus"),
		event.WithAsyncDelivery(),
		event.WithHandlerTimeout(cfg.Notify.Timeout),
	)
	notifications := ledgerapp.NewSettlementNotificationHandler(notifier, log.Named("notifications"))
	bus.Subscribe(event.NewIdempotentHandler(notifications, store, log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{
			TTL:     cfg.Settlement.IdempotencyTTL,
			Enabled: true,
		}),
	), notifications.EventTypes()...)
	return bus
}

func newWeeklyTrigger(cfg *config.Config, weekly *ledgerapp.WeeklyReportService, log *zap.Logger) (*scheduler.WeeklyTrigger, error) {
	if !cfg.Report.WeeklyEnabled {
		return nil, nil
	}
	runner := scheduler.NewRunner("weekly_report", scheduler.TaskFunc(func(ctx context.Context) error {
		_, err := weekly.Send(ctx)
		return err
	}), scheduler.DefaultRunnerConfig(), log.Named("scheduler"))

	return scheduler.NewWeeklyTrigger(scheduler.WeeklyTriggerConfig{
		Weekday:       cfg.Report.Weekday,
		Hour:          cfg.Report.Hour,
		Minute:        cfg.Report.Minute,
		CheckInterval: cfg.Report.CheckInterval,
		Location:      cfg.Report.Location(),
	}, runner, log.Named("scheduler"))
}
