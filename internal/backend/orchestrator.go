package backend

import (
	"context"
	"sort"
	"time"

	"inferd/internal/engine"
	"inferd/internal/execctx"
	"inferd/internal/memmgr"
	"inferd/internal/statuskeeper"
	"inferd/internal/tensorio"
	"inferd/pkg/dtype"
	"inferd/pkg/modelconfig"
	"inferd/pkg/payload"
	"inferd/pkg/rterr"
	"inferd/pkg/tensorinfo"
)

// Run executes one batch on ectx, per spec section 4.7's eleven steps.
// It is what a scheduler runner calls with the payloads it collected for
// this dispatch. stats may be nil, in which case no counters are kept.
func Run(ctx context.Context, ectx *execctx.ExecutionContext, cfg *modelconfig.ModelConfig, mem *memmgr.Manager, stats *statuskeeper.Sink, payloads []*payload.Payload) error {
	runStart := time.Now()
	fail := func(err error) error {
		if stats != nil {
			stats.RecordFailure(cfg.Name, ectx.InstanceName, time.Now())
		}
		return err
	}

	for _, p := range payloads {
		if !p.Status.Ok() {
			return fail(rterr.Internal("run: payload delivered to orchestrator with non-ok status"))
		}
	}

	total := 0
	for _, p := range payloads {
		total += p.Request.BatchSize
	}
	if total == 0 {
		return nil
	}
	if cfg.MaxBatchSize == modelconfig.NoBatching {
		if total != 1 {
			return fail(rterr.Internal("run: NO_BATCHING context received total_batch_size=%d", total))
		}
	} else if total > cfg.MaxBatchSize {
		return fail(rterr.Internal("run: total_batch_size %d exceeds max_batch_size %d", total, cfg.MaxBatchSize))
	}

	guard, err := ectx.BeginRun()
	if err != nil {
		return fail(err)
	}
	defer guard.Release()

	specByName := make(map[string]modelconfig.IOSpec, len(cfg.Inputs))
	for _, s := range cfg.Inputs {
		specByName[s.Name] = s
	}

	rep := payloads[0]
	names := make([]string, 0, len(rep.Request.Inputs))
	for name := range rep.Request.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	tensors := make([]engine.Tensor, 0, len(names))
	engineInputNames := make([]string, 0, len(names))
	for _, name := range names {
		spec, ok := specByName[name]
		if !ok {
			return fail(rterr.Internal("run: request carries undeclared input %q", name))
		}
		dt, derr := dtype.Parse(spec.DataType)
		if derr != nil {
			return fail(rterr.Internal("run: input %q declares unknown data_type %q", name, spec.DataType))
		}
		declared := tensorinfo.TensorInfo{Name: name, DType: dt, Shape: dimsToInt64(spec.EffectiveDims())}
		tn, _, aerr := tensorio.AssembleInput(name, declared, cfg.MaxBatchSize, total, payloads, mem, ectx.Stream)
		if aerr != nil {
			return fail(aerr)
		}
		tensors = append(tensors, tn)
		engineInputNames = append(engineInputNames, engineName(ectx.InputRemap, name))
	}

	ectx.SetDeviceCopyInputs()
	ectx.StoreInputTensors(tensors)
	ectx.SetEngineRunning()
	computeInputEnd := time.Now()
	for _, p := range payloads {
		if p.Stats != nil {
			p.Stats.StampComputeInputEnd()
		}
	}

	engineOutputNames := make([]string, len(cfg.Outputs))
	for i, spec := range cfg.Outputs {
		engineOutputNames[i] = engineName(ectx.OutputRemap, spec.Name)
	}

	outs, rerr := ectx.Session.Run(ctx, engineInputNames, tensors, engineOutputNames)
	computeInferEnd := time.Now()
	if rerr != nil {
		mapped := rterr.ToInternal(rerr)
		failAll(payloads, mapped)
		return fail(mapped)
	}
	if len(outs) != len(engineOutputNames) {
		mapped := rterr.Internal("run: engine returned %d outputs, want %d", len(outs), len(engineOutputNames))
		failAll(payloads, mapped)
		return fail(mapped)
	}

	ectx.StoreOutputTensors(outs)
	ectx.SetDeviceCopyOutputs()
	for _, p := range payloads {
		if p.Stats != nil {
			p.Stats.StampComputeOutputStart()
		}
	}

	for i, spec := range cfg.Outputs {
		dt, derr := dtype.Parse(spec.DataType)
		if derr != nil {
			mapped := rterr.Internal("run: output %q declares unknown data_type %q", spec.Name, spec.DataType)
			failAll(payloads, mapped)
			return fail(mapped)
		}
		declared := tensorinfo.TensorInfo{Name: spec.Name, DType: dt, Shape: dimsToInt64(spec.EffectiveDims())}
		if _, derr := tensorio.DisperseOutput(spec.Name, declared, cfg.MaxBatchSize, total, outs[i], payloads, mem, ectx.Stream); derr != nil {
			failAll(payloads, derr)
			return fail(derr)
		}
	}

	if stats != nil {
		now := time.Now()
		stats.RecordSuccess(cfg.Name, ectx.InstanceName, now,
			computeInputEnd.Sub(runStart),
			computeInferEnd.Sub(computeInputEnd),
			now.Sub(computeInferEnd))
	}
	return nil
}

func failAll(payloads []*payload.Payload, err error) {
	for _, p := range payloads {
		if p.Status.Ok() {
			p.Status.Set(err)
		}
	}
}

func engineName(remap map[string]string, name string) string {
	if remap == nil {
		return name
	}
	if v, ok := remap[name]; ok {
		return v
	}
	return name
}

func dimsToInt64(d modelconfig.Dims) []int64 {
	out := make([]int64, len(d))
	copy(out, d)
	return out
}
