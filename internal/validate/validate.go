// Package validate compares a loaded session's tensor signature against
// a ModelConfig's declared inputs and outputs (spec section 4.4, C4).
// Every rejection here is a setup-time error: it happens once, during
// context construction, never during a run.
package validate

import (
	"inferd/internal/engine"
	"inferd/pkg/dtype"
	"inferd/pkg/modelconfig"
	"inferd/pkg/rterr"
	"inferd/pkg/tensorinfo"
)

// Signature validates session against cfg, following the exact algorithm
// in spec section 4.4.
func Signature(session engine.Session, cfg *modelconfig.ModelConfig) error {
	inputInfos, err := session.InputInfos()
	if err != nil {
		return rterr.ToInternal(err)
	}
	outputInfos, err := session.OutputInfos()
	if err != nil {
		return rterr.ToInternal(err)
	}

	expected := len(cfg.Inputs)
	if cfg.SequenceBatching.Enabled() {
		expected += len(cfg.SequenceBatching.Controls)
	}
	if len(inputInfos) != expected {
		return rterr.InvalidArg("model %s: session declares %d inputs, expected %d", cfg.Name, len(inputInfos), expected)
	}

	for _, in := range cfg.Inputs {
		if err := compareOne(cfg, in, inputInfos, cfg.AllowedInputNames[in.Name], false); err != nil {
			return err
		}
	}
	for _, out := range cfg.Outputs {
		if err := compareOne(cfg, out, outputInfos, nil, true); err != nil {
			return err
		}
	}
	if cfg.SequenceBatching.Enabled() {
		for _, ctl := range cfg.SequenceBatching.Controls {
			if err := compareControl(ctl, inputInfos); err != nil {
				return err
			}
		}
	}
	return nil
}

func compareOne(cfg *modelconfig.ModelConfig, spec modelconfig.IOSpec, infos map[string]tensorinfo.TensorInfo, allowed []string, compareExact bool) error {
	info, ok := infos[spec.Name]
	if !ok {
		found := false
		for _, alt := range allowed {
			if info, ok = infos[alt]; ok {
				found = true
				break
			}
		}
		if !found {
			return rterr.InvalidArg("model %s: declared tensor %q not found in loaded session", cfg.Name, spec.Name)
		}
	}

	want, err := dtype.Parse(spec.DataType)
	if err != nil {
		return rterr.InvalidArg("model %s: input %q declares unknown data_type %q", cfg.Name, spec.Name, spec.DataType)
	}
	if info.DType != want {
		return rterr.InvalidArg("model %s: tensor %q element type mismatch: session=%s, declared=%s", cfg.Name, spec.Name, info.DType, want)
	}

	declaredDims := dimsToInt64(spec.EffectiveDims())
	if !CompareDimsSupported(info.Shape, declaredDims, cfg.MaxBatchSize, compareExact) {
		return rterr.InvalidArg("model %s: tensor %q shape mismatch: session=%v, declared=%v", cfg.Name, spec.Name, info.Shape, declaredDims)
	}
	return nil
}

func compareControl(ctl modelconfig.SequenceControl, infos map[string]tensorinfo.TensorInfo) error {
	info, ok := infos[ctl.TensorName]
	if !ok {
		return rterr.InvalidArg("sequence control tensor %q not found in loaded session", ctl.TensorName)
	}
	wantType := ctl.DataType
	if wantType == "" && ctl.BoolFlag {
		wantType = "BOOL"
	}
	want, err := dtype.Parse(wantType)
	if err != nil {
		return rterr.InvalidArg("sequence control %q declares unknown data_type %q", ctl.TensorName, ctl.DataType)
	}
	if info.DType != want {
		return rterr.InvalidArg("sequence control %q element type mismatch: session=%s, declared=%s", ctl.TensorName, info.DType, want)
	}
	debatched := info.Shape
	if len(debatched) > 0 {
		debatched = debatched[1:]
	}
	if len(debatched) != 1 || debatched[0] != 1 {
		return rterr.InvalidArg("sequence control %q debatched shape must be [1], got %v", ctl.TensorName, debatched)
	}
	return nil
}

// CompareDimsSupported implements spec section 4.4's shape compatibility
// rule. engineDims is what the loaded session reports; declaredDims is
// the config's (possibly reshaped) declaration. When maxBatchSize > 0
// engineDims carries a leading batch axis that is stripped before
// comparison. compareExact requires equal rank and every dim to match
// (dynamic engine dims match anything); non-exact additionally allows
// engineDims to be a superset in rank, provided the leading extra dims
// it carries beyond declaredDims's rank are fully specified (not
// dynamic).
func CompareDimsSupported(engineDims, declaredDims []int64, maxBatchSize int, compareExact bool) bool {
	dims := engineDims
	if maxBatchSize > 0 {
		if len(dims) == 0 {
			return false
		}
		dims = dims[1:]
	}

	if compareExact {
		if len(dims) != len(declaredDims) {
			return false
		}
		return dimsEqual(dims, declaredDims)
	}

	if len(dims) < len(declaredDims) {
		return false
	}
	extra := len(dims) - len(declaredDims)
	for i := 0; i < extra; i++ {
		if dims[i] == tensorinfo.DynamicDim {
			return false
		}
	}
	return dimsEqual(dims[extra:], declaredDims)
}

func dimsEqual(sessionDims, declared []int64) bool {
	for i := range declared {
		if sessionDims[i] != tensorinfo.DynamicDim && sessionDims[i] != declared[i] {
			return false
		}
	}
	return true
}

func dimsToInt64(d modelconfig.Dims) []int64 {
	out := make([]int64, len(d))
	copy(out, d)
	return out
}
