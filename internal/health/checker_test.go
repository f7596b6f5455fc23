package health

import (
	"context"
	"testing"
	"time"
)

type stubChecker struct {
	result CheckResult
}

func (s stubChecker) Check(context.Context) CheckResult {
	return s.result
}

func TestProbeRunnerReady(t *testing.T) {
	runner := NewProbeRunner(200*time.Millisecond, 0,
		stubChecker{result: CheckResult{Name: "db", Healthy: true}},
		stubChecker{result: CheckResult{Name: "redis", Healthy: true}},
	)
	ready, results := runner.Ready(context.Background())
	if !ready {
		t.Fatal("expected ready")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestProbeRunnerUnready(t *testing.T) {
	runner := NewProbeRunner(200*time.Millisecond, 0,
		stubChecker{result: CheckResult{Name: "db", Healthy: true}},
		stubChecker{result: CheckResult{Name: "redis", Healthy: false, Error: "connection refused"}},
	)
	ready, results := runner.Ready(context.Background())
	if ready {
		t.Fatal("expected unready")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestProbeRunnerStartupGrace(t *testing.T) {
	runner := NewProbeRunner(200*time.Millisecond, 2*time.Second,
		stubChecker{result: CheckResult{Name: "db", Healthy: true}},
	)
	ready, results := runner.Ready(context.Background())
	if ready {
		t.Fatal("expected unready during grace period")
	}
	if len(results) != 1 || results[0].Name != "startup_grace" {
		t.Fatalf("unexpected grace results: %+v", results)
	}
}

func TestProbeRunnerNilIsAlwaysReady(t *testing.T) {
	var runner *ProbeRunner
	ready, results := runner.Ready(context.Background())
	if !ready || results != nil {
		t.Fatalf("nil runner should be ready with no results, got ready=%v results=%+v", ready, results)
	}
}

func TestSummary(t *testing.T) {
	got := Summary([]CheckResult{
		{Name: "db", Healthy: true},
		{Name: "redis", Healthy: false, Error: "connection refused"},
	})
	if got != "db=ok redis=fail" {
		t.Fatalf("unexpected summary: %q", got)
	}
	if Summary(nil) != "" {
		t.Fatalf("expected empty summary for no results, got %q", Summary(nil))
	}
}
