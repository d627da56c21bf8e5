package httpapi

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIncrementBackpressureIncrementsCounter(t *testing.T) {
	baseline := testutil.ToFloat64(backpressureTotal.WithLabelValues("queue"))
	IncrementBackpressure("queue")
	IncrementBackpressure("queue")
	got := testutil.ToFloat64(backpressureTotal.WithLabelValues("queue"))
	if got < baseline+2 {
		t.Fatalf("expected backpressure counter >= %v, got %v", baseline+2, got)
	}

	before := testutil.ToFloat64(backpressureTotal.WithLabelValues("unspecified"))
	IncrementBackpressure("")
	after := testutil.ToFloat64(backpressureTotal.WithLabelValues("unspecified"))
	if after < before+1 {
		t.Fatalf("expected empty reason to increment unspecified by at least 1: before=%v after=%v", before, after)
	}
}

func TestSetContextsLoadedSetsGauge(t *testing.T) {
	SetContextsLoaded("m-gauge-test", 3)
	if got := testutil.ToFloat64(contextsLoaded.WithLabelValues("m-gauge-test")); got != 3 {
		t.Fatalf("contextsLoaded = %v, want 3", got)
	}
	SetContextsLoaded("m-gauge-test", 0)
	if got := testutil.ToFloat64(contextsLoaded.WithLabelValues("m-gauge-test")); got != 0 {
		t.Fatalf("contextsLoaded = %v, want 0", got)
	}
}

func TestObserveRunIncrementsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(runsTotal.WithLabelValues("m-run-test", "inst0", "success"))
	ObserveRun("m-run-test", "inst0", true)
	after := testutil.ToFloat64(runsTotal.WithLabelValues("m-run-test", "inst0", "success"))
	if after != before+1 {
		t.Fatalf("success counter = %v, want %v", after, before+1)
	}

	before = testutil.ToFloat64(runsTotal.WithLabelValues("m-run-test", "inst0", "failure"))
	ObserveRun("m-run-test", "inst0", false)
	after = testutil.ToFloat64(runsTotal.WithLabelValues("m-run-test", "inst0", "failure"))
	if after != before+1 {
		t.Fatalf("failure counter = %v, want %v", after, before+1)
	}
}
