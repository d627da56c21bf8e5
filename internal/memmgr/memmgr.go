// Package memmgr owns request-scoped buffer allocation and cross-device
// copies for execution contexts (spec section 4.2, C2). There is no
// vendored device driver behind it: GPU-preferred allocations are
// honestly reported back as host memory, and copies "targeting" a GPU
// memtype are simulated as an asynchronous FIFO on a per-context Stream
// rather than a real cudaMemcpyAsync. The manager↔stream contract this
// package exposes — AllocatedMemory reporting an actual memtype that may
// differ from the caller's preference, and Copy reporting whether the
// caller must sync before the destination is visible — is what C3 and C7
// are written against, so a future real backend slots in without
// changing either caller.
package memmgr

import (
	"sync"

	"inferd/pkg/modelconfig"
	"inferd/pkg/payload"
	"inferd/pkg/rterr"
)

// Buffer is a request-scoped allocation and where it actually lives.
type Buffer struct {
	Data     []byte
	MemType  payload.MemType
	DeviceID int
}

// Manager allocates buffers and moves bytes between them. It holds no
// state of its own; the zero value is ready to use.
type Manager struct{}

// AllocatedMemory allocates size bytes, preferring memtype preferred on
// device deviceID. The actual memtype is reported back and may differ
// from preferred — this build never backs MemGPU with device memory, so
// a GPU preference is honored by reporting MemCPU instead of failing.
func (m *Manager) AllocatedMemory(size int, preferred payload.MemType, deviceID int) (Buffer, error) {
	if size < 0 {
		return Buffer{}, rterr.InvalidArg("memmgr: negative allocation size %d", size)
	}
	buf := make([]byte, size)
	switch preferred {
	case payload.MemCPUPinned:
		return Buffer{Data: buf, MemType: payload.MemCPUPinned, DeviceID: modelconfig.NoGPUDevice}, nil
	case payload.MemGPU:
		return Buffer{Data: buf, MemType: payload.MemCPU, DeviceID: modelconfig.NoGPUDevice}, nil
	default:
		return Buffer{Data: buf, MemType: payload.MemCPU, DeviceID: modelconfig.NoGPUDevice}, nil
	}
}

// Copy moves bytes from src to dst. When either endpoint is MemGPU and a
// stream is given, the copy is enqueued on the stream's FIFO and the
// second return value is true: the caller must call stream.Sync before
// relying on dst's contents. Otherwise the copy runs synchronously.
func (m *Manager) Copy(src, dst []byte, srcType, dstType payload.MemType, stream *Stream) (ok bool, enqueuedAsync bool) {
	if len(dst) < len(src) {
		return false, false
	}
	needsAsync := stream != nil && (srcType == payload.MemGPU || dstType == payload.MemGPU)
	if needsAsync {
		stream.enqueue(func() { copy(dst, src) })
		return true, true
	}
	copy(dst, src)
	return true, false
}

// Stream serializes the asynchronous copies for one GPU-bound execution
// context, mirroring the "each GPU-bound context owns exactly one
// stream" invariant. Jobs run in FIFO order on a single worker
// goroutine; Sync blocks until every job enqueued so far has completed.
type Stream struct {
	jobs chan func()
	wg   sync.WaitGroup
	quit chan struct{}
	once sync.Once
}

// NewStream starts a stream's worker goroutine.
func NewStream() *Stream {
	s := &Stream{
		jobs: make(chan func(), 64),
		quit: make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Stream) loop() {
	for {
		select {
		case job := <-s.jobs:
			job()
			s.wg.Done()
		case <-s.quit:
			return
		}
	}
}

func (s *Stream) enqueue(job func()) {
	s.wg.Add(1)
	s.jobs <- job
}

// Sync blocks until all copies enqueued on this stream so far have run.
func (s *Stream) Sync() {
	s.wg.Wait()
}

// Close stops the stream's worker goroutine. Callers must Sync before
// Close if any copy might still be in flight.
func (s *Stream) Close() {
	s.once.Do(func() { close(s.quit) })
}
