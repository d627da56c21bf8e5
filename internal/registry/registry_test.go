package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func writeModelDir(t *testing.T, root, name, configYAML string, files ...string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configYAML), 0o644); err != nil {
		t.Fatalf("WriteFile config: %v", err)
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("stub"), 0o644); err != nil {
			t.Fatalf("WriteFile %s: %v", f, err)
		}
	}
}

const identityYAML = `
name: m1
platform: graphexec
max_batch_size: 8
default_model_filename: model.json
cc_model_filenames:
  "7.5": model_sm75.json
instance_group:
  - name: inst0
    kind: KIND_CPU
    count: 1
input:
  - name: INPUT0
    data_type: FP32
    dims: [4]
output:
  - name: OUTPUT0
    data_type: FP32
    dims: [4]
`

func TestLoadDirDiscoversModelAndFiles(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "m1", identityYAML, "model.json", "model_sm75.json")

	repo, err := LoadDir(root)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	models := repo.Models()
	if len(models) != 1 {
		t.Fatalf("len(models) = %d, want 1", len(models))
	}
	m := models[0]
	if m.Name != "m1" {
		t.Fatalf("Name = %q, want m1", m.Name)
	}
	if len(m.Files) != 2 {
		t.Fatalf("len(Files) = %d, want 2", len(m.Files))
	}
	entry, ok := m.Files["model.json"]
	if !ok || entry.Initialized {
		t.Fatalf("model.json entry = %+v, ok=%v, want present and not initialized", entry, ok)
	}
}

func TestLoadDirOmitsUndiscoveredFiles(t *testing.T) {
	root := t.TempDir()
	// model_sm75.json is declared but never written to disk.
	writeModelDir(t, root, "m1", identityYAML, "model.json")

	repo, err := LoadDir(root)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	m, _ := repo.Get("m1")
	if _, ok := m.Files["model_sm75.json"]; ok {
		t.Fatal("undiscovered file must not appear in the Model File Map")
	}
	if _, ok := m.Files["model.json"]; !ok {
		t.Fatal("discovered file must appear in the Model File Map")
	}
}

func TestLoadDirSkipsSubdirWithoutConfig(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "m1", identityYAML, "model.json")
	if err := os.MkdirAll(filepath.Join(root, "scratch"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	repo, err := LoadDir(root)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(repo.Models()) != 1 {
		t.Fatalf("len(models) = %d, want 1 (scratch dir should be skipped)", len(repo.Models()))
	}
}

func TestMarkInitialized(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "m1", identityYAML, "model.json")
	repo, err := LoadDir(root)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if err := repo.MarkInitialized("m1", "model.json"); err != nil {
		t.Fatalf("MarkInitialized: %v", err)
	}
	m, _ := repo.Get("m1")
	if !m.Files["model.json"].Initialized {
		t.Fatal("expected model.json to be marked initialized")
	}
}

func TestMarkInitializedRejectsUnknownModel(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "m1", identityYAML, "model.json")
	repo, err := LoadDir(root)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if err := repo.MarkInitialized("nope", "model.json"); err == nil {
		t.Fatal("expected error for unknown model")
	}
}

func TestMarkInitializedRejectsUnknownFile(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "m1", identityYAML, "model.json")
	repo, err := LoadDir(root)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if err := repo.MarkInitialized("m1", "nope.json"); err == nil {
		t.Fatal("expected error for unknown filename")
	}
}

func TestLoadDirRejectsDuplicateModelName(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "dirA", identityYAML, "model.json")
	writeModelDir(t, root, "dirB", identityYAML, "model.json")

	if _, err := LoadDir(root); err == nil {
		t.Fatal("expected error for duplicate model name across two directories")
	}
}
