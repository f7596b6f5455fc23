package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/campuslink/campuslink-server/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"
)

type AppMetrics struct {
	authLoginCounter         metric.Int64Counter
	authFlowCounter          metric.Int64Counter
	authReqDuration          metric.Float64Histogram
	tokenValidationCounter   metric.Int64Counter
	authzDecisionCounter     metric.Int64Counter
	middlewareEventCounter   metric.Int64Counter
	rateLimitDecisionCounter metric.Int64Counter
	notificationCounter      metric.Int64Counter
	complaintEventCounter    metric.Int64Counter
	announcementEventCounter metric.Int64Counter
	avatarEventCounter       metric.Int64Counter
	dbStartupEventCounter    metric.Int64Counter
	dbStartupDuration        metric.Float64Histogram
	healthCheckResultCounter metric.Int64Counter
	healthCheckDuration      metric.Float64Histogram
	feedCacheLookupCounter   metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "auth.request.duration"},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
				},
			},
		)),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("campuslink-server")
	loginCounter, err := meter.Int64Counter("auth.login.attempts")
	if err != nil {
		return nil, err
	}
	authFlowCounter, err := meter.Int64Counter("auth.flow.events")
	if err != nil {
		return nil, err
	}
	authReqDuration, err := meter.Float64Histogram(
		"auth.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of auth endpoint requests in seconds"),
	)
	if err != nil {
		return nil, err
	}
	tokenValidationCounter, err := meter.Int64Counter("auth.token.validation.events")
	if err != nil {
		return nil, err
	}
	authzDecisionCounter, err := meter.Int64Counter("authz.decisions")
	if err != nil {
		return nil, err
	}
	middlewareEventCounter, err := meter.Int64Counter("http.middleware.validation.events")
	if err != nil {
		return nil, err
	}
	rateLimitDecisionCounter, err := meter.Int64Counter("http.rate_limit.decisions")
	if err != nil {
		return nil, err
	}
	notificationCounter, err := meter.Int64Counter("notification.email.events")
	if err != nil {
		return nil, err
	}
	complaintEventCounter, err := meter.Int64Counter("complaint.events")
	if err != nil {
		return nil, err
	}
	announcementEventCounter, err := meter.Int64Counter("announcement.events")
	if err != nil {
		return nil, err
	}
	avatarEventCounter, err := meter.Int64Counter("user.avatar.events")
	if err != nil {
		return nil, err
	}
	dbStartupEventCounter, err := meter.Int64Counter("database.startup.events")
	if err != nil {
		return nil, err
	}
	dbStartupDuration, err := meter.Float64Histogram(
		"database.startup.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of database startup stages in seconds"),
	)
	if err != nil {
		return nil, err
	}
	healthCheckResultCounter, err := meter.Int64Counter("health.check.results")
	if err != nil {
		return nil, err
	}
	healthCheckDuration, err := meter.Float64Histogram(
		"health.check.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of health dependency checks in seconds"),
	)
	if err != nil {
		return nil, err
	}
	feedCacheLookupCounter, err := meter.Int64Counter("announcement.feed.cache.lookups")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		authLoginCounter:         loginCounter,
		authFlowCounter:          authFlowCounter,
		authReqDuration:          authReqDuration,
		tokenValidationCounter:   tokenValidationCounter,
		authzDecisionCounter:     authzDecisionCounter,
		middlewareEventCounter:   middlewareEventCounter,
		rateLimitDecisionCounter: rateLimitDecisionCounter,
		notificationCounter:      notificationCounter,
		complaintEventCounter:    complaintEventCounter,
		announcementEventCounter: announcementEventCounter,
		avatarEventCounter:       avatarEventCounter,
		dbStartupEventCounter:    dbStartupEventCounter,
		dbStartupDuration:        dbStartupDuration,
		healthCheckResultCounter: healthCheckResultCounter,
		healthCheckDuration:      healthCheckDuration,
		feedCacheLookupCounter:   feedCacheLookupCounter,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAuthLogin(ctx context.Context, status string) {
	m := current()
	if m == nil {
		return
	}
	m.authLoginCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordAuthFlowEvent counts outcomes of the non-login auth flows: register,
// refresh, password change, reset, verification, deactivation.
func RecordAuthFlowEvent(ctx context.Context, flow, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.authFlowCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("outcome", outcome),
	))
}

func RecordAuthRequestDuration(ctx context.Context, endpoint, status string, duration time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.authReqDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	))
}

func RecordTokenValidation(ctx context.Context, result, code string) {
	m := current()
	if m == nil {
		return
	}
	m.tokenValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
		attribute.String("code", code),
	))
}

func RecordAuthzDecision(ctx context.Context, check, decision string) {
	m := current()
	if m == nil {
		return
	}
	m.authzDecisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check", check),
		attribute.String("decision", decision),
	))
}

func RecordMiddlewareValidationEvent(ctx context.Context, middleware, event string) {
	m := current()
	if m == nil {
		return
	}
	m.middlewareEventCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("middleware", middleware),
		attribute.String("event", event),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitDecisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	))
}

func RecordNotificationEvent(ctx context.Context, kind, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.notificationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

func RecordComplaintEvent(ctx context.Context, action, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.complaintEventCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func RecordAnnouncementEvent(ctx context.Context, action, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.announcementEventCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func RecordAvatarEvent(ctx context.Context, action, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.avatarEventCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func RecordDatabaseStartupEvent(ctx context.Context, stage, status string) {
	m := current()
	if m == nil {
		return
	}
	m.dbStartupEventCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}

func RecordDatabaseStartupDuration(ctx context.Context, stage string, duration time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.dbStartupDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
	))
}

func RecordHealthCheckResult(ctx context.Context, check, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.healthCheckResultCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check", check),
		attribute.String("outcome", outcome),
	))
}

// RecordFeedCacheLookup counts announcement feed cache hits and misses per
// audience class. Cache effectiveness is tracked here at the domain level,
// not by sniffing Redis command replies.
func RecordFeedCacheLookup(ctx context.Context, audience, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.feedCacheLookupCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("audience", audience),
		attribute.String("outcome", outcome),
	))
}

func RecordHealthCheckDuration(ctx context.Context, check string, duration time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.healthCheckDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("check", check),
	))
}
