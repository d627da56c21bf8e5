package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"inferd/pkg/dtype"
	"inferd/pkg/rterr"
	"inferd/pkg/tensorinfo"
)

// descriptor is the on-disk signature format both compiled-in adapters
// load. Since this module vendors no native graph/session runtime, a
// "model file" is a small JSON document declaring the tensor signature
// and, for the identity/passthrough models the test suite uses, which
// output echoes which input. Real deployments would
// replace this with the vendor's own binary format; the capability-set
// interfaces in engine.go do not care which.
type descriptor struct {
	Inputs      []tensorinfo.TensorInfo `json:"inputs"`
	Outputs     []tensorinfo.TensorInfo `json:"outputs"`
	IdentityMap map[string]string       `json:"identity_map"`
	// FailWith, if set, makes every Run call fail with this engine error
	// code/message instead of executing — used to exercise the
	// unrecoverable-batch-failure path (spec section 4.3).
	FailWith *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"fail_with,omitempty"`
}

func loadDescriptor(path string) (*descriptor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, rterr.Internal("load model file %s: %v", path, err)
	}
	var d descriptor
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, rterr.Internal("parse model file %s: %v", path, err)
	}
	return &d, nil
}

// simSession is the Session implementation shared by both compiled-in
// adapters. It echoes each declared output from its mapped input, keeping
// the input's shape and data and tagging it with the output's declared
// dtype — enough to be a
// real, deterministic engine for the round-trip and batching properties
// spec section 8 requires, without a vendored native runtime.
type simSession struct {
	desc *descriptor
}

func newSimSession(desc *descriptor) *simSession { return &simSession{desc: desc} }

func (s *simSession) InputNames() []string {
	names := make([]string, len(s.desc.Inputs))
	for i, in := range s.desc.Inputs {
		names[i] = in.Name
	}
	return names
}

func (s *simSession) OutputNames() []string {
	names := make([]string, len(s.desc.Outputs))
	for i, out := range s.desc.Outputs {
		names[i] = out.Name
	}
	return names
}

func (s *simSession) InputInfos() (map[string]tensorinfo.TensorInfo, error) {
	m := make(map[string]tensorinfo.TensorInfo, len(s.desc.Inputs))
	for _, in := range s.desc.Inputs {
		m[in.Name] = in
	}
	return m, nil
}

func (s *simSession) OutputInfos() (map[string]tensorinfo.TensorInfo, error) {
	m := make(map[string]tensorinfo.TensorInfo, len(s.desc.Outputs))
	for _, out := range s.desc.Outputs {
		m[out.Name] = out
	}
	return m, nil
}

func (s *simSession) Run(ctx context.Context, inputNames []string, inputs []Tensor, outputNames []string) ([]Tensor, error) {
	if s.desc.FailWith != nil {
		return nil, rterr.EngineError{Code: s.desc.FailWith.Code, Message: s.desc.FailWith.Message}
	}
	if len(inputNames) != len(inputs) {
		return nil, rterr.Internal("engine: input name/tensor count mismatch: %d names, %d tensors", len(inputNames), len(inputs))
	}
	byName := make(map[string]Tensor, len(inputs))
	for i, name := range inputNames {
		byName[name] = inputs[i]
	}
	out := make([]Tensor, len(outputNames))
	outInfos, _ := s.OutputInfos()
	for i, name := range outputNames {
		srcName, ok := s.desc.IdentityMap[name]
		if !ok {
			return nil, rterr.EngineError{Code: 1, Message: fmt.Sprintf("no identity mapping for output %q", name)}
		}
		src, ok := byName[srcName]
		if !ok {
			return nil, rterr.EngineError{Code: 2, Message: fmt.Sprintf("missing input %q mapped from output %q", srcName, name)}
		}
		info := outInfos[name]
		if src.DType().IsString() {
			out[i] = NewStringTensor(info.DType, src.Shape(), src.Strings())
		} else {
			out[i] = NewFixedTensor(info.DType, src.Shape(), src.Bytes())
		}
	}
	return out, nil
}

func (s *simSession) Close() error { return nil }

// LoadSimSession reads a descriptor file and returns the shared
// deterministic Session both compiled-in adapters run. It is exported so
// the graphexec and sessionexec packages, which supply the Engine-level
// policy (thread-safety, accelerator handling), can share one
// implementation instead of duplicating the interpreter.
func LoadSimSession(path string) (Session, error) {
	desc, err := loadDescriptor(path)
	if err != nil {
		return nil, err
	}
	return newSimSession(desc), nil
}

// dtypeOrInvalid parses a config-facing type name, returning Invalid on
// failure rather than an error, for descriptor fields that are already
// validated at model-file authoring time.
func dtypeOrInvalid(name string) dtype.DType {
	d, err := dtype.Parse(name)
	if err != nil {
		return dtype.Invalid
	}
	return d
}
