// Package execctx implements the Execution Context (spec section 4.5,
// C5): one binding of an instance name and device to a loaded session,
// carrying transient per-run tensor state between run entry and its
// scoped release.
package execctx

import (
	"sync"

	"inferd/internal/engine"
	"inferd/internal/memmgr"
	"inferd/pkg/modelconfig"
	"inferd/pkg/rterr"
)

// State names a point in the per-run state machine described in spec
// section 4.7. Only Idle allows the context to be closed without
// waiting.
type State int

const (
	Idle State = iota
	StagingInputs
	DeviceCopyInputs
	EngineRunning
	DeviceCopyOutputs
	ReleasingTensors
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case StagingInputs:
		return "StagingInputs"
	case DeviceCopyInputs:
		return "DeviceCopyInputs"
	case EngineRunning:
		return "EngineRunning"
	case DeviceCopyOutputs:
		return "DeviceCopyOutputs"
	case ReleasingTensors:
		return "ReleasingTensors"
	default:
		return "Unknown"
	}
}

// ExecutionContext binds one (instance, device) pair to a loaded
// session. It is immutable after construction except for the transient
// per-run fields guarded by mu.
type ExecutionContext struct {
	InstanceName  string
	Kind          modelconfig.Kind
	DeviceOrdinal int
	MaxBatchSize  int
	InputPinned   bool
	OutputPinned  bool

	Session engine.Session
	Mem     *memmgr.Manager
	// Stream is non-nil only for GPU-bound contexts, created at
	// construction per spec section 4.5.
	Stream *memmgr.Stream

	// InputRemap/OutputRemap translate config-facing tensor names to the
	// engine's own names, when they differ.
	InputRemap  map[string]string
	OutputRemap map[string]string

	mu            sync.Mutex
	state         State
	inputTensors  []engine.Tensor
	outputTensors []engine.Tensor
}

// New constructs an ExecutionContext. A stream is created only for
// KindGPU; CPU and MODEL_DEVICE contexts run synchronously.
func New(instanceName string, kind modelconfig.Kind, deviceOrdinal, maxBatchSize int, session engine.Session, mem *memmgr.Manager) *ExecutionContext {
	c := &ExecutionContext{
		InstanceName:  instanceName,
		Kind:          kind,
		DeviceOrdinal: deviceOrdinal,
		MaxBatchSize:  maxBatchSize,
		Session:       session,
		Mem:           mem,
		state:         Idle,
	}
	if kind == modelconfig.KindGPU {
		c.Stream = memmgr.NewStream()
	}
	return c
}

// State returns the context's current state.
func (c *ExecutionContext) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BeginRun transitions Idle -> StagingInputs. It fails with Internal if
// the context is not idle, which would indicate a scheduler bug (two
// runs entering the same runner concurrently).
func (c *ExecutionContext) BeginRun() (*ReleaseGuard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return nil, rterr.Internal("execctx %s: BeginRun called while in state %s", c.InstanceName, c.state)
	}
	c.state = StagingInputs
	return &ReleaseGuard{ctx: c}, nil
}

func (c *ExecutionContext) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// SetDeviceCopyInputs advances StagingInputs -> DeviceCopyInputs.
func (c *ExecutionContext) SetDeviceCopyInputs() { c.setState(DeviceCopyInputs) }

// SetEngineRunning advances to EngineRunning.
func (c *ExecutionContext) SetEngineRunning() { c.setState(EngineRunning) }

// SetDeviceCopyOutputs advances to DeviceCopyOutputs.
func (c *ExecutionContext) SetDeviceCopyOutputs() { c.setState(DeviceCopyOutputs) }

// StoreInputTensors records the per-run input tensors so the release
// guard can account for them; it does not itself own their lifetime
// beyond bookkeeping since this build's tensors carry no native handle.
func (c *ExecutionContext) StoreInputTensors(ts []engine.Tensor) {
	c.mu.Lock()
	c.inputTensors = ts
	c.mu.Unlock()
}

// StoreOutputTensors records the per-run output tensors.
func (c *ExecutionContext) StoreOutputTensors(ts []engine.Tensor) {
	c.mu.Lock()
	c.outputTensors = ts
	c.mu.Unlock()
}

// Close releases the underlying session. It must only be called from
// Idle; callers that close mid-run have a bug.
func (c *ExecutionContext) Close() error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != Idle {
		return rterr.Internal("execctx %s: Close called while in state %s", c.InstanceName, state)
	}
	if c.Stream != nil {
		c.Stream.Close()
	}
	return c.Session.Close()
}

// ReleaseGuard is the scoped release guard from spec section 4.5 and
// section 8's idempotence property: Release may be called any number of
// times on any exit path, but only the first call does anything.
type ReleaseGuard struct {
	ctx  *ExecutionContext
	once sync.Once
}

// Release drops the context's per-run tensor state and returns it to
// Idle. Safe to call multiple times.
func (g *ReleaseGuard) Release() {
	g.once.Do(func() {
		g.ctx.mu.Lock()
		g.ctx.inputTensors = nil
		g.ctx.outputTensors = nil
		g.ctx.state = Idle
		g.ctx.mu.Unlock()
	})
}
