// Package registry implements the Model File Registry (spec section
// 4.11, C9): it scans a models-root directory into the Model File Map
// spec.md section 3 describes as supplied by "the repository loader" —
// filename to (is-initialized, absolute-path) — one map per discovered
// model. Grounded on the teacher's internal/registry/loader.go directory
// scan, generalized from a flat *.gguf listing to one subdirectory per
// model, each carrying its own ModelConfig.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"inferd/internal/common/fsutil"
	"inferd/pkg/modelconfig"
)

// FileEntry is one entry of a model's Model File Map: where its file
// lives on disk, and whether a build has actually loaded it yet.
type FileEntry struct {
	Path        string
	Initialized bool
}

// Model is one discovered model: its declared configuration plus the
// Model File Map of every filename the config references that was
// actually found on disk.
type Model struct {
	Name  string
	Dir   string
	Config *modelconfig.ModelConfig
	Files map[string]FileEntry
}

// Repository is the scanned set of models under one models-root
// directory. Files' Initialized flags are the only mutable state, and
// are guarded by mu since a builder may flip one from a different
// goroutine than a status-endpoint reader.
type Repository struct {
	mu     sync.Mutex
	models map[string]*Model
}

// LoadDir scans dir for one subdirectory per model. A subdirectory
// without a loadable config file is skipped; everything else is a hard
// error.
func LoadDir(dir string) (*Repository, error) {
	expanded, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return nil, fmt.Errorf("registry: abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("registry: read dir: %w", err)
	}

	repo := &Repository{models: map[string]*Model{}}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		modelDir := filepath.Join(abs, e.Name())
		cfg, err := modelconfig.LoadFromDir(modelDir)
		if err != nil {
			continue
		}
		name := cfg.Name
		if name == "" {
			name = e.Name()
		}
		if _, dup := repo.models[name]; dup {
			return nil, fmt.Errorf("registry: duplicate model name %q (dir %s)", name, modelDir)
		}
		repo.models[name] = &Model{
			Name:   name,
			Dir:    modelDir,
			Config: cfg,
			Files:  discoverFiles(cfg, modelDir),
		}
	}
	return repo, nil
}

func discoverFiles(cfg *modelconfig.ModelConfig, modelDir string) map[string]FileEntry {
	names := map[string]bool{}
	if cfg.DefaultModelFilename != "" {
		names[cfg.DefaultModelFilename] = true
	}
	for _, fn := range cfg.CCModelFilenames {
		names[fn] = true
	}
	files := make(map[string]FileEntry, len(names))
	for name := range names {
		p := filepath.Join(modelDir, name)
		if fsutil.PathExists(p) {
			files[name] = FileEntry{Path: p}
		}
	}
	return files
}

// Models returns every discovered model, sorted by name.
func (r *Repository) Models() []*Model {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get looks up a model by name.
func (r *Repository) Get(name string) (*Model, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[name]
	return m, ok
}

// MarkInitialized flips a model's file entry to initialized, called
// once a Builder has successfully loaded it. Returns an error if the
// model or filename is unknown, which would indicate the caller is
// building against a file the registry never discovered.
func (r *Repository) MarkInitialized(modelName, filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[modelName]
	if !ok {
		return fmt.Errorf("registry: unknown model %q", modelName)
	}
	entry, ok := m.Files[filename]
	if !ok {
		return fmt.Errorf("registry: model %q has no discovered file %q", modelName, filename)
	}
	entry.Initialized = true
	m.Files[filename] = entry
	return nil
}
