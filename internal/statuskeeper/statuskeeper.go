// Package statuskeeper implements the Status Sink (spec section 4.9,
// C10): per (model, instance) execution counters updated by the Run
// Orchestrator and snapshotted read-only for the HTTP observability
// surface. Grounded on original_source/src/core/server_status.cc's
// success/failed counters and cumulative compute-stage durations, kept
// under one mutex the way the teacher's Manager.Status() protects its
// own state.
package statuskeeper

import (
	"sync"
	"time"
)

// Counters is one (model, instance)'s accumulated execution stats.
// Durations are cumulative across every run counted, matching the
// original's total_time_ns fields; a caller wanting an average divides
// by the corresponding count.
type Counters struct {
	SuccessCount int64
	FailureCount int64

	LastInference time.Time

	ComputeInputNanos int64
	ComputeInferNanos int64
	ComputeOutputNanos int64
}

type key struct {
	model    string
	instance string
}

// Sink accumulates Counters for every (model, instance) pair seen, under
// a single mutex. The zero value is ready to use.
type Sink struct {
	mu      sync.Mutex
	entries map[key]*Counters
}

// New constructs an empty Sink.
func New() *Sink {
	return &Sink{entries: map[key]*Counters{}}
}

func (s *Sink) entry(model, instance string) *Counters {
	if s.entries == nil {
		s.entries = map[key]*Counters{}
	}
	k := key{model, instance}
	c, ok := s.entries[k]
	if !ok {
		c = &Counters{}
		s.entries[k] = c
	}
	return c
}

// RecordSuccess accounts one successful run and its per-stage durations.
func (s *Sink) RecordSuccess(model, instance string, at time.Time, computeInput, computeInfer, computeOutput time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.entry(model, instance)
	c.SuccessCount++
	c.LastInference = at
	c.ComputeInputNanos += computeInput.Nanoseconds()
	c.ComputeInferNanos += computeInfer.Nanoseconds()
	c.ComputeOutputNanos += computeOutput.Nanoseconds()
}

// RecordFailure accounts one failed run. Failed runs carry no
// compute-stage timing since the original never reached (or never
// finished) those stages.
func (s *Sink) RecordFailure(model, instance string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.entry(model, instance)
	c.FailureCount++
	c.LastInference = at
}

// Snapshot returns a copy of one (model, instance)'s counters, safe to
// read without holding the sink's lock. The second return value is
// false if nothing has been recorded for that pair yet.
func (s *Sink) Snapshot(model, instance string) (Counters, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.entries[key{model, instance}]
	if !ok {
		return Counters{}, false
	}
	return *c, true
}

// SnapshotModel returns a copy of every instance's counters recorded
// under model, keyed by instance name.
func (s *Sink) SnapshotModel(model string) map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]Counters{}
	for k, c := range s.entries {
		if k.model == model {
			out[k.instance] = *c
		}
	}
	return out
}
