package modelconfig

import "testing"

func TestTotalContextCount(t *testing.T) {
	cfg := &ModelConfig{
		InstanceGroups: []InstanceGroup{
			{Kind: KindCPU, Count: 2},
			{Kind: KindGPU, Count: 2, GPUs: []int{0, 1}},
			{Kind: KindModelDevice, Count: 1},
		},
	}
	// 2 (cpu) + 2*2 (gpu replicas x ordinals) + 1 (model device) = 7
	if got := cfg.TotalContextCount(); got != 7 {
		t.Fatalf("TotalContextCount() = %d, want 7", got)
	}
}

func TestModelFilenameForGPUFallback(t *testing.T) {
	cfg := &ModelConfig{
		DefaultModelFilename: "model.onnx",
		CCModelFilenames:     map[string]string{"7.5": "model_sm75.onnx"},
	}
	if got := cfg.ModelFilenameFor(KindGPU, "7.5"); got != "model_sm75.onnx" {
		t.Fatalf("got %q, want model_sm75.onnx", got)
	}
	if got := cfg.ModelFilenameFor(KindGPU, "8.0"); got != "model.onnx" {
		t.Fatalf("got %q, want default fallback", got)
	}
	if got := cfg.ModelFilenameFor(KindCPU, "7.5"); got != "model.onnx" {
		t.Fatalf("CPU instances must always use the default, got %q", got)
	}
}

func TestEffectiveDimsPrefersReshape(t *testing.T) {
	s := IOSpec{Dims: Dims{1, 2, 3}, Reshape: Dims{6}}
	got := s.EffectiveDims()
	if len(got) != 1 || got[0] != 6 {
		t.Fatalf("EffectiveDims() = %v, want [6]", got)
	}
	s2 := IOSpec{Dims: Dims{1, 2, 3}}
	got2 := s2.EffectiveDims()
	if len(got2) != 3 {
		t.Fatalf("EffectiveDims() without reshape = %v, want original dims", got2)
	}
}

func TestSequenceBatchingEnabled(t *testing.T) {
	var nilSB *SequenceBatching
	if nilSB.Enabled() {
		t.Fatal("nil SequenceBatching must not be enabled")
	}
	empty := &SequenceBatching{}
	if empty.Enabled() {
		t.Fatal("SequenceBatching with no controls must not be enabled")
	}
	full := &SequenceBatching{Controls: []SequenceControl{{Kind: ControlStart}}}
	if !full.Enabled() {
		t.Fatal("SequenceBatching with controls must be enabled")
	}
}
