package telemetry

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Settings groups the configuration for every telemetry signal.
type Settings struct {
	Collector Collector
	Tracing   TracingConfig
	Metrics   MetricsConfig
	Logs      LogsConfig
	Profiling ProfilerConfig
	LogLevel  zapcore.Level
}

// Telemetry holds the started providers for one process.
type Telemetry struct {
	Tracer   *TracerProvider
	Meter    *MeterProvider
	Logs     *LoggerProvider
	Profiler *Profiler
	// Logger is the base logger bridged into the log exporter when enabled.
	Logger *zap.Logger
}

// Setup starts the profiler first so span profiles can attach to it, then
// traces, metrics and logs. On error everything already started is shut down.
func Setup(ctx context.Context, s Settings, logger *zap.Logger) (*Telemetry, error) {
	t := &Telemetry{Logger: logger}
	var err error

	if t.Profiler, err = NewProfiler(s.Profiling, logger); err != nil {
		return nil, err
	}
	if t.Tracer, err = NewTracerProvider(ctx, s.Collector, s.Tracing, logger); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}
	if t.Profiler.IsEnabled() {
		t.Tracer.EnableSpanProfiles()
	}
	if t.Meter, err = NewMeterProvider(ctx, s.Collector, s.Metrics, logger); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}
	if t.Logs, err = NewLoggerProvider(ctx, s.Collector, s.Logs, logger); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}
	t.Logger = t.Logs.Bridge(logger, s.LogLevel)
	return t, nil
}

// Shutdown stops every started provider and joins their errors.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.Logs != nil {
		errs = append(errs, t.Logs.Shutdown(ctx))
	}
	if t.Meter != nil {
		errs = append(errs, t.Meter.Shutdown(ctx))
	}
	if t.Tracer != nil {
		errs = append(errs, t.Tracer.Shutdown(ctx))
	}
	if t.Profiler != nil {
		errs = append(errs, t.Profiler.Stop())
	}
	return errors.Join(errs...)
}
