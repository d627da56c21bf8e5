// Package accel parses and validates the Optimization.ExecutionAccelerators
// block of a ModelConfig (spec section 6) and decides whether the
// resulting accelerator set forces serialized session creation.
package accel

import (
	"strconv"

	"inferd/pkg/modelconfig"
	"inferd/pkg/rterr"
)

// GPU accelerator names.
const (
	TensorRT = "tensorrt"
	CUDA     = "cuda"
	GPUIO    = "gpu_io"
)

// CPU accelerator names.
const (
	OpenVINO = "openvino"
)

// PrecisionMode is a TensorRT precision setting.
type PrecisionMode string

const (
	FP32 PrecisionMode = "FP32"
	FP16 PrecisionMode = "FP16"
)

// TensorRTOptions holds the parsed tensorrt accelerator parameters.
type TensorRTOptions struct {
	PrecisionMode        PrecisionMode
	MinimumSegmentSize   int
	MaxWorkspaceSizeBytes int64
	MaxCachedEngines     int
}

// Parsed is one validated accelerator entry.
type Parsed struct {
	Name    string
	TensorRT *TensorRTOptions // set only when Name == TensorRT
}

var gpuAllowed = map[string]bool{TensorRT: true, CUDA: true, GPUIO: true}
var cpuAllowed = map[string]bool{OpenVINO: true}

// ParseGPU validates and parses a list of GPU execution accelerators in
// declared order.
func ParseGPU(accs []modelconfig.Accelerator) ([]Parsed, error) {
	out := make([]Parsed, 0, len(accs))
	for _, a := range accs {
		if !gpuAllowed[a.Name] {
			return nil, rterr.InvalidArg("unknown gpu execution accelerator %q", a.Name)
		}
		p := Parsed{Name: a.Name}
		if a.Name == TensorRT {
			opts, err := parseTensorRT(a.Parameters)
			if err != nil {
				return nil, err
			}
			p.TensorRT = opts
		} else if len(a.Parameters) > 0 {
			return nil, rterr.InvalidArg("accelerator %q does not accept parameters", a.Name)
		}
		out = append(out, p)
	}
	return out, nil
}

// ParseCPU validates and parses a list of CPU execution accelerators.
func ParseCPU(accs []modelconfig.Accelerator) ([]Parsed, error) {
	out := make([]Parsed, 0, len(accs))
	for _, a := range accs {
		if !cpuAllowed[a.Name] {
			return nil, rterr.InvalidArg("unknown cpu execution accelerator %q", a.Name)
		}
		if len(a.Parameters) > 0 {
			return nil, rterr.InvalidArg("accelerator %q does not accept parameters", a.Name)
		}
		out = append(out, Parsed{Name: a.Name})
	}
	return out, nil
}

var tensorRTParamKeys = map[string]bool{
	"precision_mode": true, "minimum_segment_size": true,
	"max_workspace_size_bytes": true, "max_cached_engines": true,
}

func parseTensorRT(params map[string]string) (*TensorRTOptions, error) {
	opts := &TensorRTOptions{PrecisionMode: FP32, MinimumSegmentSize: 3, MaxCachedEngines: 1}
	for k, v := range params {
		if !tensorRTParamKeys[k] {
			return nil, rterr.InvalidArg("unknown tensorrt parameter %q", k)
		}
		switch k {
		case "precision_mode":
			switch PrecisionMode(v) {
			case FP32, FP16:
				opts.PrecisionMode = PrecisionMode(v)
			default:
				return nil, rterr.InvalidArg("tensorrt precision_mode must be FP32 or FP16, got %q", v)
			}
		case "minimum_segment_size":
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, rterr.InvalidArg("tensorrt minimum_segment_size: %v", err)
			}
			opts.MinimumSegmentSize = n
		case "max_workspace_size_bytes":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, rterr.InvalidArg("tensorrt max_workspace_size_bytes: %v", err)
			}
			opts.MaxWorkspaceSizeBytes = n
		case "max_cached_engines":
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, rterr.InvalidArg("tensorrt max_cached_engines: %v", err)
			}
			opts.MaxCachedEngines = n
		}
	}
	return opts, nil
}

// ThreadUnsafe reports whether creating a session with this accelerator
// set must be serialized against a process-wide lock. Only OpenVINO
// carries this restriction, mirroring onnxruntime's OpenVINO execution
// provider.
func ThreadUnsafe(cpu []Parsed) bool {
	for _, p := range cpu {
		if p.Name == OpenVINO {
			return true
		}
	}
	return false
}
