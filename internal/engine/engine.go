// Package engine defines the polymorphic capability set an execution
// context uses to load, introspect, and run a backend model, per spec
// section 4.1 and the "capability set over tagged variants" design note
// in section 9. Two concrete adapters implement it: graphexec and
// sessionexec.
package engine

import (
	"context"

	"inferd/pkg/dtype"
	"inferd/pkg/modelconfig"
	"inferd/pkg/tensorinfo"
)

// SessionOptions configures how an engine loads a model file. C6 clones
// a shared base and attaches per-context accelerator/device settings
// before calling Load.
type SessionOptions struct {
	IntraOpThreads   int
	GraphOptLevel    int // 0 = highest, -1 = basic, 1 = extended
	GPUAccelerators  []modelconfig.Accelerator
	CPUAccelerators  []modelconfig.Accelerator
	DeviceOrdinal    int // GPU ordinal; NoGPUDevice for CPU, ModelDevice for model-device
}

// Tensor is an engine-owned or engine-bound value passed to and returned
// from Run. Fixed-dtype tensors expose a zero-copy byte view; string
// tensors expose their decoded elements.
type Tensor interface {
	DType() dtype.DType
	Shape() []int64
	// Bytes returns the raw contiguous buffer for a fixed-size dtype.
	// It panics if DType().IsString().
	Bytes() []byte
	// Strings returns one []byte per element for a string/bytes dtype.
	// It panics if !DType().IsString().
	Strings() [][]byte
}

// Session is a loaded model, ready to run.
type Session interface {
	InputNames() []string
	OutputNames() []string
	InputInfos() (map[string]tensorinfo.TensorInfo, error)
	OutputInfos() (map[string]tensorinfo.TensorInfo, error)
	// Run executes the model. Output ordering matches outputNames.
	Run(ctx context.Context, inputNames []string, inputs []Tensor, outputNames []string) ([]Tensor, error)
	Close() error
}

// Engine loads sessions and reports whether doing so with a given
// accelerator selection is safe to call concurrently with other loads.
type Engine interface {
	Load(ctx context.Context, path string, opts SessionOptions) (Session, error)
	// ThreadSafeLoad reports whether Load may run concurrently with
	// other Load calls (across any model) when using this accelerator
	// selection. C6 takes a process-wide lock around Load when false.
	ThreadSafeLoad(opts SessionOptions) bool
}
