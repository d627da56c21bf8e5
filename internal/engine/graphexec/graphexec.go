// Package graphexec is the graph-executor engine adapter, modeled on a
// TensorFlow-style backend: a model file is a whole computation graph,
// and creating a session from it has always been safe to do
// concurrently with other sessions in this design.
package graphexec

import (
	"context"

	"inferd/internal/engine"
)

// Engine is the graph-executor Engine adapter.
type Engine struct{}

// New returns a graph-executor Engine.
func New() *Engine { return &Engine{} }

func (e *Engine) Load(ctx context.Context, path string, opts engine.SessionOptions) (engine.Session, error) {
	return engine.LoadSimSession(path)
}

// ThreadSafeLoad is always true: graph loading here carries no
// serialization requirement, unlike the session-executor path under
// OpenVINO.
func (e *Engine) ThreadSafeLoad(opts engine.SessionOptions) bool { return true }
