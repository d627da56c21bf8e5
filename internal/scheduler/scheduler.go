// Package scheduler implements the Reference Scheduler (spec section
// 4.10, C11): a minimal, real implementation of the external Scheduler
// contract consumed by the core (spec section 6), sufficient to drive
// C6/C7 end to end without any dynamic or sequence batching policy
// behind it. Runner i owns exactly one goroutine, pulling whatever
// payloads are already queued for it and calling the registered run
// function once per batch; the runner blocks on the run's completion
// callback before picking up its next batch, matching "no context is
// ever entered concurrently."
package scheduler

import (
	"sync"

	"inferd/pkg/payload"
	"inferd/pkg/rterr"
)

// InitFunc initializes runner i, e.g. warming up its execution context.
type InitFunc func(runnerIdx int) error

// CompletionFunc signals that a runner's current batch has finished and
// it may accept its next one.
type CompletionFunc func()

// RunFunc executes one batch on runner i. It must call completion
// exactly once, from any goroutine, when the batch is fully done.
type RunFunc func(runnerIdx int, payloads []*payload.Payload, completion CompletionFunc)

// ShapeFunc supplies a per-input shape override for a given payload,
// returning nil for "no change." The reference scheduler never
// overrides shapes itself; it only carries the callback through for
// callers that need it (spec section 6).
type ShapeFunc func(runnerIdx int, inputName string, p *payload.Payload) []int64

// queueDepth bounds how many pending payloads a runner will hold before
// Dispatch reports backpressure.
const queueDepth = 64

// Scheduler owns N runner goroutines, one per registered runner index.
type Scheduler struct {
	runners []*runner
	shape   ShapeFunc
}

type runner struct {
	idx          int
	maxBatchSize int
	run          RunFunc
	queue        chan *payload.Payload
	quit         chan struct{}
}

// SetConfiguredScheduler starts n runner goroutines. maxBatchSizes[i]
// caps how many payloads runner i passes to one run call
// (modelconfig.NoBatching means "exactly one payload per batch"); the
// payloads' Request.BatchSize values are not summed against it. init is called once per runner, in order,
// before its goroutine starts; if any call fails, runners already
// started are stopped and the error is returned.
func SetConfiguredScheduler(n int, maxBatchSizes []int, init InitFunc, run RunFunc, shape ShapeFunc) (*Scheduler, error) {
	s := &Scheduler{shape: shape}
	for i := 0; i < n; i++ {
		if err := init(i); err != nil {
			s.Stop()
			return nil, rterr.ToInternal(err)
		}
		batchCap := maxBatchSizes[i]
		if batchCap <= 0 {
			batchCap = 1
		}
		r := &runner{
			idx:          i,
			maxBatchSize: batchCap,
			run:          run,
			queue:        make(chan *payload.Payload, queueDepth),
			quit:         make(chan struct{}),
		}
		s.runners = append(s.runners, r)
		go r.loop()
	}
	return s, nil
}

// NumRunners returns the number of registered runners.
func (s *Scheduler) NumRunners() int { return len(s.runners) }

// Shape calls the registered ShapeFunc, or returns nil if none was
// given.
func (s *Scheduler) Shape(runnerIdx int, inputName string, p *payload.Payload) []int64 {
	if s.shape == nil {
		return nil
	}
	return s.shape(runnerIdx, inputName, p)
}

// Dispatch queues p on runner runnerIdx. It returns Unavailable if that
// runner's queue is full rather than blocking the caller.
func (s *Scheduler) Dispatch(runnerIdx int, p *payload.Payload) error {
	if runnerIdx < 0 || runnerIdx >= len(s.runners) {
		return rterr.InvalidArg("scheduler: no runner %d", runnerIdx)
	}
	select {
	case s.runners[runnerIdx].queue <- p:
		return nil
	default:
		return rterr.Unavailable("scheduler: runner %d queue full", runnerIdx)
	}
}

// Stop halts every runner goroutine. In-flight batches are allowed to
// finish; queued-but-undispatched payloads are simply dropped.
func (s *Scheduler) Stop() {
	for _, r := range s.runners {
		close(r.quit)
	}
}

func (r *runner) loop() {
	for {
		select {
		case <-r.quit:
			return
		case p := <-r.queue:
			batch := r.drain(p)
			var wg sync.WaitGroup
			wg.Add(1)
			r.run(r.idx, batch, func() { wg.Done() })
			wg.Wait()
		}
	}
}

// drain collects first, plus whatever else is already queued, up to
// maxBatchSize, without blocking for more to arrive.
func (r *runner) drain(first *payload.Payload) []*payload.Payload {
	batch := make([]*payload.Payload, 0, r.maxBatchSize)
	batch = append(batch, first)
	for len(batch) < r.maxBatchSize {
		select {
		case p := <-r.queue:
			batch = append(batch, p)
		default:
			return batch
		}
	}
	return batch
}
