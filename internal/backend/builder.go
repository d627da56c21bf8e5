// Package backend implements the Context Set Builder (spec section 4.6,
// C6) and the Run Orchestrator (spec section 4.7, C7): the two halves
// that turn a ModelConfig into a live pool of execution contexts, and
// drive one batched run through a single context.
package backend

import (
	"context"
	"path/filepath"
	"sync"

	"inferd/internal/accel"
	"inferd/internal/engine"
	"inferd/internal/execctx"
	"inferd/internal/memmgr"
	"inferd/internal/validate"
	"inferd/pkg/modelconfig"
	"inferd/pkg/rterr"
)

// ComputeCapabilityFunc resolves a GPU device ordinal to a
// "major.minor" compute-capability string, used to pick a per-device
// model file variant. This build has no real device inventory to query;
// callers that care about cc_model_filenames selection supply their own
// resolver, and DefaultComputeCapability (always "") is used otherwise.
type ComputeCapabilityFunc func(deviceOrdinal int) string

// DefaultComputeCapability never resolves a compute capability, so
// every GPU instance falls back to DefaultModelFilename.
func DefaultComputeCapability(int) string { return "" }

// Builder builds execution contexts from a ModelConfig, per spec
// section 4.6.
type Builder struct {
	// Engines maps a ModelConfig.Platform name to the adapter that loads
	// it, e.g. {"graphexec": graphexec.New(), "sessionexec": sessionexec.New()}.
	Engines map[string]engine.Engine
	// LoadLock is the single process-wide engine-load mutex (spec
	// section 5's "process-wide engine-load lock"), shared across every
	// model this process builds. It must be the same *sync.Mutex across
	// all Builder instances in a process.
	LoadLock *sync.Mutex
	// ComputeCapability resolves GPU ordinals to compute-capability
	// strings; defaults to DefaultComputeCapability if nil.
	ComputeCapability ComputeCapabilityFunc
	Mem               *memmgr.Manager
}

// Build constructs one ExecutionContext per instance-group replica (and
// per GPU ordinal within a GPU group), loading and validating each
// before returning the full set. Any single failure aborts the whole
// build; contexts already constructed are closed before the error is
// returned.
func (b *Builder) Build(ctx context.Context, cfg *modelconfig.ModelConfig, modelDir string) ([]*execctx.ExecutionContext, error) {
	eng, ok := b.Engines[cfg.Platform]
	if !ok {
		return nil, rterr.InvalidArg("model %s: unknown platform %q", cfg.Name, cfg.Platform)
	}

	graphOptLevel := 0
	var gpuAccs, cpuAccs []modelconfig.Accelerator
	if cfg.Optimization != nil {
		if cfg.Optimization.Graph != nil {
			graphOptLevel = cfg.Optimization.Graph.Level
		}
		if cfg.Optimization.ExecutionAccelerators != nil {
			gpuAccs = cfg.Optimization.ExecutionAccelerators.GPU
			cpuAccs = cfg.Optimization.ExecutionAccelerators.CPU
		}
	}
	if _, err := accel.ParseGPU(gpuAccs); err != nil {
		return nil, err
	}
	if _, err := accel.ParseCPU(cpuAccs); err != nil {
		return nil, err
	}

	ccFn := b.ComputeCapability
	if ccFn == nil {
		ccFn = DefaultComputeCapability
	}
	mem := b.Mem
	if mem == nil {
		mem = &memmgr.Manager{}
	}

	var built []*execctx.ExecutionContext
	abort := func(err error) ([]*execctx.ExecutionContext, error) {
		for i := len(built) - 1; i >= 0; i-- {
			built[i].Close()
		}
		return nil, err
	}

	for _, group := range cfg.InstanceGroups {
		for replica := 0; replica < group.Count; replica++ {
			if group.Kind == modelconfig.KindGPU {
				for _, ordinal := range group.GPUs {
					c, err := b.buildOne(ctx, eng, cfg, modelDir, group, ordinal, graphOptLevel, gpuAccs, cpuAccs, ccFn, mem)
					if err != nil {
						return abort(err)
					}
					built = append(built, c)
				}
				continue
			}
			ordinal := modelconfig.NoGPUDevice
			if group.Kind == modelconfig.KindModelDevice {
				ordinal = modelconfig.ModelDevice
			}
			c, err := b.buildOne(ctx, eng, cfg, modelDir, group, ordinal, graphOptLevel, gpuAccs, cpuAccs, ccFn, mem)
			if err != nil {
				return abort(err)
			}
			built = append(built, c)
		}
	}
	return built, nil
}

func (b *Builder) buildOne(
	ctx context.Context,
	eng engine.Engine,
	cfg *modelconfig.ModelConfig,
	modelDir string,
	group modelconfig.InstanceGroup,
	ordinal int,
	graphOptLevel int,
	gpuAccs, cpuAccs []modelconfig.Accelerator,
	ccFn ComputeCapabilityFunc,
	mem *memmgr.Manager,
) (*execctx.ExecutionContext, error) {
	cc := ""
	if group.Kind == modelconfig.KindGPU {
		cc = ccFn(ordinal)
	}
	filename := cfg.ModelFilenameFor(group.Kind, cc)
	if filename == "" {
		return nil, rterr.InvalidArg("model %s: no model filename resolved for instance %s", cfg.Name, group.Name)
	}
	path := filepath.Join(modelDir, filename)

	opts := engine.SessionOptions{
		IntraOpThreads: 1,
		GraphOptLevel:  graphOptLevel,
		DeviceOrdinal:  ordinal,
	}
	if group.Kind == modelconfig.KindGPU {
		opts.GPUAccelerators = gpuAccs
	} else {
		opts.CPUAccelerators = cpuAccs
	}

	threadSafe := eng.ThreadSafeLoad(opts)
	if !threadSafe {
		b.LoadLock.Lock()
	}
	sess, err := eng.Load(ctx, path, opts)
	if !threadSafe {
		b.LoadLock.Unlock()
	}
	if err != nil {
		return nil, rterr.ToInternal(err)
	}

	if err := validate.Signature(sess, cfg); err != nil {
		sess.Close()
		return nil, err
	}

	return execctx.New(group.Name, group.Kind, ordinal, cfg.MaxBatchSize, sess, mem), nil
}
