package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/flemzord/opsgate/internal/audit"
	"github.com/flemzord/opsgate/internal/config"
	"github.com/flemzord/opsgate/internal/dispatch"
	"github.com/flemzord/opsgate/internal/limit"
	"github.com/flemzord/opsgate/internal/operation"
	"github.com/flemzord/opsgate/internal/ops"
	"github.com/flemzord/opsgate/internal/permission"
)

// runtime holds the assembled backplane shared by the transports.
type runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *operation.Registry
	resolver   *permission.Resolver
	dispatcher *dispatch.Dispatcher
	store      *audit.Store
	cron       *cron.Cron
	shutdownFn []func(context.Context) error
}

// buildRuntime loads the config and wires the registry, resolver,
// audit sinks, rate limiter, telemetry, and dispatcher.
func buildRuntime(cfgPath string) (*runtime, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	rt := &runtime{cfg: cfg, logger: logger}

	rt.registry = operation.NewRegistry()
	if err := ops.RegisterAll(rt.registry); err != nil {
		return nil, fmt.Errorf("registering operations: %w", err)
	}
	rt.resolver = permission.NewResolver(cfg.Permissions, logger)

	auditLogger, err := rt.buildAudit()
	if err != nil {
		return nil, err
	}

	if err := rt.setupTelemetry(); err != nil {
		return nil, err
	}

	var limiter *limit.AgentLimiter
	if cfg.Limits.RequestsPerSecond > 0 {
		limiter = limit.NewAgentLimiter(cfg.Limits.RequestsPerSecond, cfg.Limits.Burst)
	}

	rt.dispatcher = dispatch.New(dispatch.Config{
		Registry: rt.registry,
		Resolver: rt.resolver,
		Timeout:  cfg.Server.RequestTimeout,
		Limiter:  limiter,
		Audit:    auditLogger,
		Logger:   logger,
	})
	return rt, nil
}

func (rt *runtime) buildAudit() (*audit.Logger, error) {
	lcfg := audit.LoggerConfig{Logger: rt.logger}

	if path := rt.cfg.Audit.LogPath; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		lcfg.Writer = f
		rt.shutdownFn = append(rt.shutdownFn, func(context.Context) error { return f.Close() })
	}

	if path := rt.cfg.Audit.StorePath; path != "" {
		store, err := audit.OpenStore(path)
		if err != nil {
			return nil, fmt.Errorf("opening audit store: %w", err)
		}
		rt.store = store
		lcfg.Store = store
		rt.shutdownFn = append(rt.shutdownFn, func(context.Context) error { return store.Close() })

		if rt.cfg.Audit.RetentionDays > 0 {
			rt.cron = cron.New()
			retention := time.Duration(rt.cfg.Audit.RetentionDays) * 24 * time.Hour
			_, err := rt.cron.AddFunc(rt.cfg.Audit.PruneSchedule, func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				pruned, err := store.Prune(ctx, time.Now().Add(-retention))
				if err != nil {
					rt.logger.Error("audit prune failed", "error", err)
					return
				}
				rt.logger.Info("audit events pruned", "count", pruned)
			})
			if err != nil {
				return nil, fmt.Errorf("scheduling audit prune: %w", err)
			}
		}
	}

	if lcfg.Writer == nil && lcfg.Store == nil {
		return nil, nil
	}
	return audit.NewLogger(lcfg), nil
}

// setupTelemetry installs the OTLP trace exporter when an endpoint is
// configured. Without one the default no-op tracer provider stays in
// place and spans cost nothing.
func (rt *runtime) setupTelemetry() error {
	endpoint := rt.cfg.Telemetry.OTLPEndpoint
	if endpoint == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("creating trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(rt.cfg.Telemetry.ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return fmt.Errorf("building telemetry resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	rt.shutdownFn = append(rt.shutdownFn, provider.Shutdown)
	return nil
}

// start launches background jobs.
func (rt *runtime) start() {
	if rt.cron != nil {
		rt.cron.Start()
	}
}

// shutdown stops background jobs and flushes sinks, last-added first.
func (rt *runtime) shutdown(ctx context.Context) {
	if rt.cron != nil {
		<-rt.cron.Stop().Done()
	}
	for i := len(rt.shutdownFn) - 1; i >= 0; i-- {
		if err := rt.shutdownFn[i](ctx); err != nil {
			rt.logger.Error("shutdown step failed", "error", err)
		}
	}
}
