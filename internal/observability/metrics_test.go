package observability

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/campuslink/campuslink-server/internal/config"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func recordEverything(ctx context.Context) {
	RecordAuthLogin(ctx, "success")
	RecordAuthFlowEvent(ctx, "register", "success")
	RecordAuthRequestDuration(ctx, "login", "success", 10*time.Millisecond)
	RecordTokenValidation(ctx, "failure", "EXPIRED_TOKEN")
	RecordAuthzDecision(ctx, "role", "deny")
	RecordMiddlewareValidationEvent(ctx, "cors", "preflight")
	RecordRateLimitDecision(ctx, "login", "limited")
	RecordNotificationEvent(ctx, "password_reset", "sent")
	RecordComplaintEvent(ctx, "status_update", "success")
	RecordAnnouncementEvent(ctx, "create", "success")
	RecordAvatarEvent(ctx, "upload", "success")
	RecordDatabaseStartupEvent(ctx, "connect", "success")
	RecordDatabaseStartupDuration(ctx, "migrate", 15*time.Millisecond)
	RecordHealthCheckResult(ctx, "db", "ready")
	RecordHealthCheckDuration(ctx, "db", 5*time.Millisecond)
}

func TestRecordMetricHelpersNoPanicWhenUninitialized(t *testing.T) {
	metricsMu.Lock()
	appMetrics = nil
	metricsMu.Unlock()

	// every helper must no-op safely before InitMetrics runs
	recordEverything(context.Background())
}

func TestRecordMetricHelpersEmitExpectedLabelCardinality(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()

	m := newTestAppMetrics(t, provider)
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()
	defer func() {
		metricsMu.Lock()
		appMetrics = nil
		metricsMu.Unlock()
	}()

	recordEverything(ctx)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	expected := map[string]int{
		"auth.login.attempts":               1,
		"auth.flow.events":                  2,
		"auth.request.duration":             2,
		"auth.token.validation.events":      2,
		"authz.decisions":                   2,
		"http.middleware.validation.events": 2,
		"http.rate_limit.decisions":         2,
		"notification.email.events":         2,
		"complaint.events":                  2,
		"announcement.events":               2,
		"user.avatar.events":                2,
		"database.startup.events":           2,
		"database.startup.duration":         1,
		"health.check.results":              2,
		"health.check.duration":             1,
	}

	observed := collectLabelCardinality(t, rm)
	for metricName, want := range expected {
		got, ok := observed[metricName]
		if !ok {
			t.Fatalf("missing metric datapoint for %s", metricName)
		}
		if got != want {
			t.Fatalf("metric %s label cardinality mismatch: got=%d want=%d", metricName, got, want)
		}
	}
}

func TestInitMetricsDisabledReturnsProvider(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{OTELMetricsEnabled: false}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mp, err := InitMetrics(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("init metrics disabled: %v", err)
	}
	if mp == nil {
		t.Fatal("expected non-nil meter provider")
	}
	_ = mp.Shutdown(ctx)
}

func newTestAppMetrics(t *testing.T, provider *sdkmetric.MeterProvider) *AppMetrics {
	t.Helper()
	meter := provider.Meter("observability-test")

	counter := func(name string) metric.Int64Counter {
		t.Helper()
		c, err := meter.Int64Counter(name)
		if err != nil {
			t.Fatalf("create counter %s: %v", name, err)
		}
		return c
	}
	hist := func(name string) metric.Float64Histogram {
		t.Helper()
		h, err := meter.Float64Histogram(name)
		if err != nil {
			t.Fatalf("create histogram %s: %v", name, err)
		}
		return h
	}

	return &AppMetrics{
		authLoginCounter:         counter("auth.login.attempts"),
		authFlowCounter:          counter("auth.flow.events"),
		authReqDuration:          hist("auth.request.duration"),
		tokenValidationCounter:   counter("auth.token.validation.events"),
		authzDecisionCounter:     counter("authz.decisions"),
		middlewareEventCounter:   counter("http.middleware.validation.events"),
		rateLimitDecisionCounter: counter("http.rate_limit.decisions"),
		notificationCounter:      counter("notification.email.events"),
		complaintEventCounter:    counter("complaint.events"),
		announcementEventCounter: counter("announcement.events"),
		avatarEventCounter:       counter("user.avatar.events"),
		dbStartupEventCounter:    counter("database.startup.events"),
		dbStartupDuration:        hist("database.startup.duration"),
		healthCheckResultCounter: counter("health.check.results"),
		healthCheckDuration:      hist("health.check.duration"),
	}
}

func collectLabelCardinality(t *testing.T, rm metricdata.ResourceMetrics) map[string]int {
	t.Helper()
	out := map[string]int{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					out[m.Name] = data.DataPoints[0].Attributes.Len()
				}
			case metricdata.Sum[float64]:
				if len(data.DataPoints) > 0 {
					out[m.Name] = data.DataPoints[0].Attributes.Len()
				}
			case metricdata.Histogram[int64]:
				if len(data.DataPoints) > 0 {
					out[m.Name] = data.DataPoints[0].Attributes.Len()
				}
			case metricdata.Histogram[float64]:
				if len(data.DataPoints) > 0 {
					out[m.Name] = data.DataPoints[0].Attributes.Len()
				}
			}
		}
	}
	return out
}
