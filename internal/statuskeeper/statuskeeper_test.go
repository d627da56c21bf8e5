package statuskeeper

import (
	"testing"
	"time"
)

func TestSnapshotUnknownPairIsNotOK(t *testing.T) {
	s := New()
	if _, ok := s.Snapshot("m", "i0"); ok {
		t.Fatal("expected ok=false for a pair with no recorded runs")
	}
}

func TestRecordSuccessAccumulates(t *testing.T) {
	s := New()
	t0 := time.Unix(1000, 0)
	s.RecordSuccess("m", "i0", t0, 10*time.Millisecond, 20*time.Millisecond, 5*time.Millisecond)
	s.RecordSuccess("m", "i0", t0.Add(time.Second), 15*time.Millisecond, 25*time.Millisecond, 7*time.Millisecond)

	c, ok := s.Snapshot("m", "i0")
	if !ok {
		t.Fatal("expected a snapshot after two successes")
	}
	if c.SuccessCount != 2 {
		t.Fatalf("SuccessCount = %d, want 2", c.SuccessCount)
	}
	if c.ComputeInputNanos != (10 + 15) * time.Millisecond.Nanoseconds() {
		t.Fatalf("ComputeInputNanos = %d, want %d", c.ComputeInputNanos, (10+15)*time.Millisecond.Nanoseconds())
	}
	if !c.LastInference.Equal(t0.Add(time.Second)) {
		t.Fatalf("LastInference = %v, want %v", c.LastInference, t0.Add(time.Second))
	}
}

func TestRecordFailureIncrementsIndependently(t *testing.T) {
	s := New()
	s.RecordSuccess("m", "i0", time.Now(), 0, 0, 0)
	s.RecordFailure("m", "i0", time.Now())
	s.RecordFailure("m", "i0", time.Now())

	c, _ := s.Snapshot("m", "i0")
	if c.SuccessCount != 1 || c.FailureCount != 2 {
		t.Fatalf("counts = %+v, want success=1 failure=2", c)
	}
}

func TestCountersAreIndependentPerInstance(t *testing.T) {
	s := New()
	s.RecordSuccess("m", "i0", time.Now(), 0, 0, 0)
	s.RecordSuccess("m", "i1", time.Now(), 0, 0, 0)
	s.RecordSuccess("m", "i1", time.Now(), 0, 0, 0)

	byInstance := s.SnapshotModel("m")
	if len(byInstance) != 2 {
		t.Fatalf("len(byInstance) = %d, want 2", len(byInstance))
	}
	if byInstance["i0"].SuccessCount != 1 || byInstance["i1"].SuccessCount != 2 {
		t.Fatalf("byInstance = %+v, want i0=1 i1=2", byInstance)
	}
}

func TestSnapshotModelExcludesOtherModels(t *testing.T) {
	s := New()
	s.RecordSuccess("m1", "i0", time.Now(), 0, 0, 0)
	s.RecordSuccess("m2", "i0", time.Now(), 0, 0, 0)

	byInstance := s.SnapshotModel("m1")
	if len(byInstance) != 1 {
		t.Fatalf("len(byInstance) = %d, want 1", len(byInstance))
	}
}

func TestZeroValueSinkIsUsable(t *testing.T) {
	var s Sink
	s.RecordSuccess("m", "i0", time.Now(), 0, 0, 0)
	if c, ok := s.Snapshot("m", "i0"); !ok || c.SuccessCount != 1 {
		t.Fatalf("Snapshot = %+v, ok=%v", c, ok)
	}
}
