// Package sessionexec is the session-executor engine adapter, modeled on
// an ONNX-Runtime-style backend: a model file compiles into a single
// session, and session creation stops being safe to call concurrently
// with other loads once the OpenVINO execution provider is configured.
package sessionexec

import (
	"context"

	"inferd/internal/accel"
	"inferd/internal/engine"
)

// Engine is the session-executor Engine adapter.
type Engine struct{}

// New returns a session-executor Engine.
func New() *Engine { return &Engine{} }

func (e *Engine) Load(ctx context.Context, path string, opts engine.SessionOptions) (engine.Session, error) {
	return engine.LoadSimSession(path)
}

// ThreadSafeLoad reports false once the CPU execution accelerator list
// includes OpenVINO, mirroring onnxruntime's OpenVINO execution
// provider. C6 takes a process-wide lock around Load in that case.
// A malformed accelerator list is not this method's concern; C6 already
// ran accel.ParseCPU during context-set construction and would have
// rejected it before ever reaching Load.
func (e *Engine) ThreadSafeLoad(opts engine.SessionOptions) bool {
	parsed, err := accel.ParseCPU(opts.CPUAccelerators)
	if err != nil {
		return true
	}
	return !accel.ThreadUnsafe(parsed)
}
