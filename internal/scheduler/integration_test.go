package scheduler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"inferd/internal/backend"
	"inferd/internal/engine"
	"inferd/internal/engine/graphexec"
	"inferd/internal/memmgr"
	"inferd/internal/scheduler"
	"inferd/pkg/dtype"
	"inferd/pkg/modelconfig"
	"inferd/pkg/payload"
)

type recordingProvider struct{ buf []byte }

func (r *recordingProvider) RequiresOutput(name string) bool { return true }
func (r *recordingProvider) AllocateOutputBuffer(name string, size int, shape []int64, preferred payload.MemType) ([]byte, payload.MemType, error) {
	r.buf = make([]byte, size)
	return r.buf, preferred, nil
}

func writeIdentityModel(t *testing.T, dir string) {
	t.Helper()
	doc := map[string]any{
		"inputs":       []map[string]any{{"name": "INPUT0", "dtype": "FP32", "shape": []int64{-1, 4}}},
		"outputs":      []map[string]any{{"name": "OUTPUT0", "dtype": "FP32", "shape": []int64{-1, 4}}},
		"identity_map": map[string]string{"OUTPUT0": "INPUT0"},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "model.json"), b, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// TestSchedulerDrivesOrchestratorEndToEnd wires C11's runner goroutines
// directly to C7's Run, one runner per built execution context, exactly
// the way cmd/inferd registers them.
func TestSchedulerDrivesOrchestratorEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeIdentityModel(t, dir)
	cfg := &modelconfig.ModelConfig{
		Name:                 "m",
		Platform:             "graphexec",
		MaxBatchSize:         8,
		InstanceGroups:       []modelconfig.InstanceGroup{{Name: "inst0", Kind: modelconfig.KindCPU, Count: 2}},
		DefaultModelFilename: "model.json",
		Inputs:               []modelconfig.IOSpec{{Name: "INPUT0", DataType: "FP32", Dims: modelconfig.Dims{4}}},
		Outputs:              []modelconfig.IOSpec{{Name: "OUTPUT0", DataType: "FP32", Dims: modelconfig.Dims{4}}},
	}

	var lock sync.Mutex
	var mem memmgr.Manager
	b := &backend.Builder{Engines: map[string]engine.Engine{"graphexec": graphexec.New()}, LoadLock: &lock, Mem: &mem}
	ctxs, err := b.Build(context.Background(), cfg, dir)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer func() {
		for _, c := range ctxs {
			c.Close()
		}
	}()

	maxBatchSizes := make([]int, len(ctxs))
	for i := range ctxs {
		maxBatchSizes[i] = cfg.MaxBatchSize
	}

	var pending sync.WaitGroup
	run := func(idx int, payloads []*payload.Payload, done scheduler.CompletionFunc) {
		defer done()
		defer pending.Add(-len(payloads))
		if err := backend.Run(context.Background(), ctxs[idx], cfg, &mem, nil, payloads); err != nil {
			for _, p := range payloads {
				if p.Status.Ok() {
					p.Status.Set(err)
				}
			}
		}
	}

	s, err := scheduler.SetConfiguredScheduler(len(ctxs), maxBatchSizes, func(int) error { return nil }, run, nil)
	if err != nil {
		t.Fatalf("SetConfiguredScheduler: %v", err)
	}
	defer s.Stop()

	results := make([]*recordingProvider, 6)
	statuses := make([]*payload.Payload, 6)
	for i := 0; i < 6; i++ {
		rp := &recordingProvider{}
		results[i] = rp
		p := payload.NewPayload(payload.Request{
			BatchSize: 1,
			Inputs:    map[string]payload.InputTensor{"INPUT0": {DType: dtype.FP32, Shape: []int64{4}, Data: bytes.Repeat([]byte{byte(i), 0, 0, 0}, 4)}},
		}, rp, nil)
		statuses[i] = p
		pending.Add(1)
		if err := s.Dispatch(i%len(ctxs), p); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}
	pending.Wait()

	for i, rp := range results {
		if !statuses[i].Status.Ok() {
			t.Fatalf("payload %d failed: %v", i, statuses[i].Status.Err())
		}
		want := bytes.Repeat([]byte{byte(i), 0, 0, 0}, 4)
		if !bytes.Equal(rp.buf, want) {
			t.Fatalf("payload %d output = %x, want %x", i, rp.buf, want)
		}
	}
}
