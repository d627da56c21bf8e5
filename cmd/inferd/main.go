// Command inferd hosts a set of declared models behind the backend
// execution runtime: it scans a models directory, builds one execution
// context set per model, registers a reference scheduler runner per
// context, and serves the HTTP observability surface (health,
// readiness, metrics, per-model stats) while the process runs.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/appconfig"
	"inferd/internal/backend"
	"inferd/internal/engine"
	"inferd/internal/engine/graphexec"
	"inferd/internal/engine/sessionexec"
	"inferd/internal/execctx"
	"inferd/internal/httpapi"
	"inferd/internal/memmgr"
	"inferd/internal/registry"
	"inferd/internal/scheduler"
	"inferd/internal/statuskeeper"
	"inferd/pkg/modelconfig"
	"inferd/pkg/payload"
)

// flags holds every value settable via CLI flag or config file. A
// config file (if given) is loaded first; explicit flags override it.
type flags struct {
	configPath  string
	addr        string
	modelsDir   string
	logLevel    string
	corsEnabled bool
	corsOrigins []string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "inferd",
		Short:         "Model-inference serving core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.configPath, "config", "", "Path to a YAML/TOML/JSON config file")
	root.PersistentFlags().StringVar(&f.addr, "addr", ":8080", "HTTP listen address for the observability surface")
	root.PersistentFlags().StringVar(&f.modelsDir, "models-dir", "~/models/inferd", "Directory to scan for model subdirectories")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	root.PersistentFlags().BoolVar(&f.corsEnabled, "cors-enabled", false, "Enable CORS on the observability surface")
	root.PersistentFlags().StringSliceVar(&f.corsOrigins, "cors-origins", nil, "Allowed CORS origins")

	root.AddCommand(newServeCmd(f))
	root.AddCommand(newValidateConfigCmd(f))
	return root
}

// resolve merges a loaded config file (if any) with explicit flags,
// flags taking precedence over file values that were actually set.
func (f *flags) resolve(cmd *cobra.Command) (appconfig.Config, error) {
	cfg := appconfig.Config{
		Addr:        f.addr,
		ModelsDir:   f.modelsDir,
		LogLevel:    f.logLevel,
		CORSEnabled: f.corsEnabled,
		CORSOrigins: f.corsOrigins,
	}
	if f.configPath == "" {
		return cfg, nil
	}
	fileCfg, err := appconfig.Load(f.configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if !cmd.Flags().Changed("addr") && fileCfg.Addr != "" {
		cfg.Addr = fileCfg.Addr
	}
	if !cmd.Flags().Changed("models-dir") && fileCfg.ModelsDir != "" {
		cfg.ModelsDir = fileCfg.ModelsDir
	}
	if !cmd.Flags().Changed("log-level") && fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if !cmd.Flags().Changed("cors-enabled") && fileCfg.CORSEnabled {
		cfg.CORSEnabled = fileCfg.CORSEnabled
	}
	if !cmd.Flags().Changed("cors-origins") && len(fileCfg.CORSOrigins) > 0 {
		cfg.CORSOrigins = fileCfg.CORSOrigins
	}
	return cfg, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}

func newValidateConfigCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load the models directory and report any config errors, without serving",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			repo, err := registry.LoadDir(cfg.ModelsDir)
			if err != nil {
				return fmt.Errorf("load models: %w", err)
			}
			for _, m := range repo.Models() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: platform=%s max_batch_size=%d contexts=%d files=%d\n",
					m.Name, m.Config.Platform, m.Config.MaxBatchSize, m.Config.TotalContextCount(), len(m.Files))
			}
			return nil
		},
	}
}

func newServeCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load declared models and serve the observability surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

// runtime is everything built once at startup and torn down on shutdown.
type runtime struct {
	logger zerolog.Logger
	stats  *statuskeeper.Sink
	repo   *registry.Repository

	mu         sync.Mutex
	readyCount int
	contexts   map[string][]*execctx.ExecutionContext
	schedulers map[string]*scheduler.Scheduler
}

func runServe(cfg appconfig.Config) error {
	logger := newLogger(cfg.LogLevel)
	httpapi.SetLogger(logger)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, cfg.CORSMethods, cfg.CORSHeaders)

	repo, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}

	rt := &runtime{
		logger:     logger,
		stats:      statuskeeper.New(),
		repo:       repo,
		contexts:   map[string][]*execctx.ExecutionContext{},
		schedulers: map[string]*scheduler.Scheduler{},
	}
	defer rt.closeAll()

	var mem memmgr.Manager
	builder := &backend.Builder{
		Engines: map[string]engine.Engine{
			"graphexec":   graphexec.New(),
			"sessionexec": sessionexec.New(),
		},
		LoadLock: &sync.Mutex{},
		Mem:      &mem,
	}

	for _, m := range repo.Models() {
		if err := rt.loadModel(builder, m); err != nil {
			logger.Error().Err(err).Str("model", m.Name).Msg("failed to build execution contexts")
			continue
		}
	}

	mux := httpapi.NewMux(httpapi.Deps{
		Repo:  repo,
		Stats: rt.stats,
		Ready: rt.ready,
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("models_dir", cfg.ModelsDir).Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info().Msg("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

// loadModel builds the execution context set for one discovered model
// and registers a reference scheduler runner per context, per spec
// section 4.10. Nothing external dispatches to it yet in this build
// (HTTP inference ingress is out of scope), but the scheduler is wired
// and ready the way a real ingress layer would drive it.
func (rt *runtime) loadModel(builder *backend.Builder, m *registry.Model) error {
	ctxs, err := builder.Build(context.Background(), m.Config, m.Dir)
	if err != nil {
		return err
	}
	for _, fn := range declaredFilenames(m.Config) {
		_ = rt.repo.MarkInitialized(m.Name, fn)
	}

	maxBatchSizes := make([]int, len(ctxs))
	for i := range ctxs {
		maxBatchSizes[i] = m.Config.MaxBatchSize
	}

	sched, err := scheduler.SetConfiguredScheduler(len(ctxs), maxBatchSizes,
		func(int) error { return nil },
		rt.runFor(m.Config, ctxs, builder.Mem),
		nil,
	)
	if err != nil {
		for _, c := range ctxs {
			_ = c.Close()
		}
		return err
	}

	rt.mu.Lock()
	rt.contexts[m.Name] = ctxs
	rt.schedulers[m.Name] = sched
	rt.readyCount++
	rt.mu.Unlock()

	httpapi.SetContextsLoaded(m.Name, len(ctxs))
	rt.logger.Info().Str("model", m.Name).Int("contexts", len(ctxs)).Msg("model loaded")
	return nil
}

// runFor closes over one model's context set and returns the RunFunc a
// scheduler runner calls with the batch it collected.
func (rt *runtime) runFor(cfg *modelconfig.ModelConfig, ctxs []*execctx.ExecutionContext, mem *memmgr.Manager) scheduler.RunFunc {
	return func(idx int, payloads []*payload.Payload, done scheduler.CompletionFunc) {
		defer done()
		ectx := ctxs[idx]
		err := backend.Run(context.Background(), ectx, cfg, mem, rt.stats, payloads)
		httpapi.ObserveRun(cfg.Name, ectx.InstanceName, err == nil)
		if err != nil {
			for _, p := range payloads {
				if p.Status.Ok() {
					p.Status.Set(err)
				}
			}
			rt.logger.Error().Err(err).Str("model", cfg.Name).Str("instance", ectx.InstanceName).Msg("run failed")
		}
	}
}

func (rt *runtime) ready() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.readyCount > 0
}

func (rt *runtime) closeAll() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for name, sched := range rt.schedulers {
		sched.Stop()
		rt.logger.Info().Str("model", name).Msg("scheduler stopped")
	}
	for name, ctxs := range rt.contexts {
		for _, c := range ctxs {
			if err := c.Close(); err != nil {
				rt.logger.Warn().Err(err).Str("model", name).Msg("context close error")
			}
		}
	}
}

// declaredFilenames returns every model filename cfg references, the
// same set internal/registry.discoverFiles looked for on disk. Called
// after a successful Build to flip their Model File Map entries to
// initialized.
func declaredFilenames(cfg *modelconfig.ModelConfig) []string {
	seen := map[string]bool{}
	if cfg.DefaultModelFilename != "" {
		seen[cfg.DefaultModelFilename] = true
	}
	for _, fn := range cfg.CCModelFilenames {
		seen[fn] = true
	}
	out := make([]string, 0, len(seen))
	for fn := range seen {
		out = append(out, fn)
	}
	return out
}
