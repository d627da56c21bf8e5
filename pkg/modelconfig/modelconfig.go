// Package modelconfig is the declarative schema describing one model:
// its instance groups, per-device file selection, optimization options,
// and typed input/output signature. It plays the role protobuf-defined
// configs play in the systems this runtime is modeled on; here it is a
// plain Go struct tree loaded from YAML/TOML/JSON (see Load).
package modelconfig

// Sentinel values, per spec section 6: NoBatching for max_batch_size,
// NoGPUDevice and ModelDevice for a context's device.
const (
	NoBatching   = 0
	NoGPUDevice  = -1
	ModelDevice  = -2
)

// Kind is the instance-group placement kind.
type Kind string

const (
	KindCPU         Kind = "KIND_CPU"
	KindGPU         Kind = "KIND_GPU"
	KindModelDevice Kind = "KIND_MODEL"
)

// InstanceGroup declares a set of replicas of a model instance, and
// where they run.
type InstanceGroup struct {
	Name  string `yaml:"name" toml:"name" json:"name"`
	Kind  Kind   `yaml:"kind" toml:"kind" json:"kind"`
	Count int    `yaml:"count" toml:"count" json:"count"`
	// GPUs lists device ordinals to instantiate on, one context per
	// ordinal per replica. Ignored for KindCPU and KindModelDevice.
	GPUs []int `yaml:"gpus,omitempty" toml:"gpus,omitempty" json:"gpus,omitempty"`
}

// Dims is a declared shape. Unlike engine-reported shapes it never
// contains the dynamic-dim sentinel by convention, though nothing
// prevents a config author from declaring one.
type Dims []int64

// IOSpec declares one input or output tensor.
type IOSpec struct {
	Name string `yaml:"name" toml:"name" json:"name"`
	// DataType is the config-facing type name, e.g. "FP32", "STRING".
	DataType string `yaml:"data_type" toml:"data_type" json:"data_type"`
	Dims     Dims   `yaml:"dims" toml:"dims" json:"dims"`
	// Reshape, if set, replaces Dims wherever EffectiveDims is used: in
	// the signature comparison and in the declared shapes backend.Run
	// assembles inputs and disperses outputs with.
	Reshape Dims `yaml:"reshape,omitempty" toml:"reshape,omitempty" json:"reshape,omitempty"`
}

// EffectiveDims returns Reshape if declared, else Dims.
func (s IOSpec) EffectiveDims() Dims {
	if s.Reshape != nil {
		return s.Reshape
	}
	return s.Dims
}

// GraphOptimization controls the engine's graph-level optimization pass.
// Level: 0/unset = highest, -1 = basic, 1 = extended.
type GraphOptimization struct {
	Level int `yaml:"level" toml:"level" json:"level"`
}

// PinnedMemoryOptimization toggles pinned-host-memory staging for
// inputs/outputs independently.
type PinnedMemoryOptimization struct {
	EnableInput  bool `yaml:"enable_input" toml:"enable_input" json:"enable_input"`
	EnableOutput bool `yaml:"enable_output" toml:"enable_output" json:"enable_output"`
}

// Accelerator is one entry in an execution_accelerators list: a name
// (e.g. "tensorrt", "openvino") plus opaque string parameters, which
// internal/accel parses and validates against a per-accelerator schema.
type Accelerator struct {
	Name       string            `yaml:"name" toml:"name" json:"name"`
	Parameters map[string]string `yaml:"parameters,omitempty" toml:"parameters,omitempty" json:"parameters,omitempty"`
}

// ExecutionAccelerators is the GPU/CPU accelerator selection, applied in
// list order at context-build time.
type ExecutionAccelerators struct {
	GPU []Accelerator `yaml:"gpu_execution_accelerator,omitempty" toml:"gpu_execution_accelerator,omitempty" json:"gpu_execution_accelerator,omitempty"`
	CPU []Accelerator `yaml:"cpu_execution_accelerator,omitempty" toml:"cpu_execution_accelerator,omitempty" json:"cpu_execution_accelerator,omitempty"`
}

// Optimization bundles the optional performance knobs a config may set.
type Optimization struct {
	Graph                 *GraphOptimization        `yaml:"graph,omitempty" toml:"graph,omitempty" json:"graph,omitempty"`
	PinnedMemory          *PinnedMemoryOptimization `yaml:"pinned_memory,omitempty" toml:"pinned_memory,omitempty" json:"pinned_memory,omitempty"`
	ExecutionAccelerators *ExecutionAccelerators    `yaml:"execution_accelerators,omitempty" toml:"execution_accelerators,omitempty" json:"execution_accelerators,omitempty"`
}

// ControlKind names a sequence-batching control tensor's role.
type ControlKind string

const (
	ControlStart ControlKind = "CONTROL_SEQUENCE_START"
	ControlEnd   ControlKind = "CONTROL_SEQUENCE_END"
	ControlReady ControlKind = "CONTROL_SEQUENCE_READY"
	ControlCorrID ControlKind = "CONTROL_SEQUENCE_CORRID"
)

// SequenceControl declares one control tensor a sequence model expects.
// Boolean-flag controls (start/end/ready) carry an int32/bool value that
// toggles per request; corrid controls carry a caller-chosen scalar.
type SequenceControl struct {
	Kind       ControlKind `yaml:"kind" toml:"kind" json:"kind"`
	TensorName string      `yaml:"tensor_name" toml:"tensor_name" json:"tensor_name"`
	DataType   string      `yaml:"data_type" toml:"data_type" json:"data_type"`
	BoolFlag   bool        `yaml:"bool_flag,omitempty" toml:"bool_flag,omitempty" json:"bool_flag,omitempty"`
}

// SequenceBatching declares the control tensors a sequence-aware model
// expects on top of its ordinary inputs.
type SequenceBatching struct {
	Controls []SequenceControl `yaml:"control,omitempty" toml:"control,omitempty" json:"control,omitempty"`
}

// Enabled reports whether sequence batching is configured at all.
func (s *SequenceBatching) Enabled() bool { return s != nil && len(s.Controls) > 0 }

// ModelConfig is the full declarative description of one model, as
// spec section 3 defines it.
type ModelConfig struct {
	Name string `yaml:"name" toml:"name" json:"name"`
	// Platform selects the compiled-in engine adapter: "graphexec" or
	// "sessionexec".
	Platform      string          `yaml:"platform" toml:"platform" json:"platform"`
	MaxBatchSize  int             `yaml:"max_batch_size" toml:"max_batch_size" json:"max_batch_size"`
	InstanceGroups []InstanceGroup `yaml:"instance_group" toml:"instance_group" json:"instance_group"`

	// CCModelFilenames maps a "major.minor" compute-capability string to
	// a model filename for GPU instances; DefaultModelFilename is used
	// when no entry matches (and always for CPU/model-device instances).
	CCModelFilenames     map[string]string `yaml:"cc_model_filenames,omitempty" toml:"cc_model_filenames,omitempty" json:"cc_model_filenames,omitempty"`
	DefaultModelFilename string            `yaml:"default_model_filename" toml:"default_model_filename" json:"default_model_filename"`

	Optimization *Optimization `yaml:"optimization,omitempty" toml:"optimization,omitempty" json:"optimization,omitempty"`

	Inputs  []IOSpec `yaml:"input" toml:"input" json:"input"`
	Outputs []IOSpec `yaml:"output" toml:"output" json:"output"`

	SequenceBatching *SequenceBatching `yaml:"sequence_batching,omitempty" toml:"sequence_batching,omitempty" json:"sequence_batching,omitempty"`

	// AllowedInputNames maps a declared input name to a set of
	// engine-side names that may satisfy it when the exact name is
	// absent from the loaded session (spec section 4.4).
	AllowedInputNames map[string][]string `yaml:"allowed_input_names,omitempty" toml:"allowed_input_names,omitempty" json:"allowed_input_names,omitempty"`
}

// TotalContextCount returns the number of execution contexts the
// context set builder will create for this config: one per CPU/
// model-device replica, one per (replica, gpu ordinal) for GPU groups.
func (c *ModelConfig) TotalContextCount() int {
	total := 0
	for _, g := range c.InstanceGroups {
		switch g.Kind {
		case KindGPU:
			total += g.Count * len(g.GPUs)
		default:
			total += g.Count
		}
	}
	return total
}

// ModelFilenameFor resolves which model file an instance on the given
// device should load, per spec section 4.6: GPU instances consult
// CCModelFilenames by compute-capability string, falling back to
// DefaultModelFilename; everything else always uses the default.
func (c *ModelConfig) ModelFilenameFor(kind Kind, computeCapability string) string {
	if kind == KindGPU && computeCapability != "" {
		if fn, ok := c.CCModelFilenames[computeCapability]; ok {
			return fn
		}
	}
	return c.DefaultModelFilename
}
