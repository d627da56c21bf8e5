// Package payload defines the scheduler-to-core contract: one in-flight
// request's inputs, its mutable status, and the callbacks the core uses
// to deliver outputs back to whatever produced the request. This is the
// "Payload" type from spec section 3 — the boundary the runtime consumes
// but never constructs on its own behalf.
package payload

import (
	"sync"

	"inferd/pkg/dtype"
)

// MemType names where a buffer physically lives.
type MemType int

const (
	MemCPU MemType = iota
	MemCPUPinned
	MemGPU
)

func (m MemType) String() string {
	switch m {
	case MemCPU:
		return "CPU"
	case MemCPUPinned:
		return "CPU_PINNED"
	case MemGPU:
		return "GPU"
	default:
		return "UNKNOWN"
	}
}

// IndirectBuffer represents a non-contiguous source region that must be
// gathered into a contiguous destination via a stream copy, per spec
// section 9's "Indirect input/output buffers" design note.
type IndirectBuffer struct {
	Buf    []byte
	Offset int
}

// InputTensor is one named input's contribution from a single request.
type InputTensor struct {
	DType dtype.DType
	Shape []int64
	// Data holds the contiguous byte payload for this request's slice
	// of the input. For string/bytes tensors this is the wire-encoded
	// (u32 length, bytes)* sequence for exactly this request's elements.
	Data []byte
	// BatchByteSize is the caller-declared size of Data for variable
	// length tensors; the normalizer that produced this Payload
	// guarantees it, per spec section 4.3 step 3.
	BatchByteSize int
	// Indirect lists non-contiguous source regions for this input. Input
	// assembly in internal/tensorio does not read it: each payload is
	// always staged from Data in a single contiguous copy.
	Indirect []IndirectBuffer
}

// Request is the immutable view of one inference request.
type Request struct {
	BatchSize int
	Inputs    map[string]InputTensor
}

// ResponseProvider lets the core ask the request's originator whether it
// wants a given output, and obtain a buffer to write it into.
type ResponseProvider interface {
	RequiresOutput(name string) bool
	// AllocateOutputBuffer returns a buffer of at least size bytes, plus
	// the memory type it actually landed in (which may differ from
	// preferred).
	AllocateOutputBuffer(name string, size int, shape []int64, preferred MemType) ([]byte, MemType, error)
}

// StatsSink receives timing stamps for one payload's pipeline stages.
// A payload with no stats sink (nil) is simply not stamped.
type StatsSink interface {
	StampComputeInputEnd()
	StampComputeOutputStart()
}

// Status is a payload's mutable outcome. Per spec section 8's testable
// property, it is set exactly once; Set after the first call is a no-op,
// which callers can rely on to make idempotent abort paths safe.
type Status struct {
	mu  sync.Mutex
	set bool
	err error
}

// Set records err as the payload's final outcome if it has not already
// been set. err == nil means success.
func (s *Status) Set(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		return
	}
	s.set = true
	s.err = err
}

// Ok reports whether the status is currently error-free. An unset
// status is considered ok, matching spec section 4.7's "reject if any
// payload has non-ok status on entry" check firing only for payloads
// upstream already marked failed.
func (s *Status) Ok() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err == nil
}

// IsSet reports whether Set has been called at least once.
func (s *Status) IsSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// Err returns the recorded error, or nil if none has been set.
func (s *Status) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Payload is one in-flight request inside a batched run.
type Payload struct {
	Request          Request
	ResponseProvider ResponseProvider
	Status           *Status
	Stats            StatsSink
}

// NewPayload constructs a Payload with a fresh, unset Status.
func NewPayload(req Request, rp ResponseProvider, stats StatsSink) *Payload {
	return &Payload{Request: req, ResponseProvider: rp, Status: &Status{}, Stats: stats}
}
