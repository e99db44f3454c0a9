// Package app implements the application layer for reuse.
package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/reuse/internal/adapters/buildlog"
	"go.trai.ch/reuse/internal/adapters/telemetry"
	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/core/ports"
	"go.trai.ch/reuse/internal/engine/decision"
	"go.trai.ch/reuse/internal/engine/fingerprint"
	"go.trai.ch/reuse/internal/engine/manifest"
	"go.trai.ch/reuse/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

const defaultLogName = "build.jsonl"

// App represents the main application logic.
type App struct {
	loader   ports.GraphLoader
	caches   ports.CacheProvider
	compiler ports.Compiler
	logger   ports.Logger
	tracer   ports.Tracer
	summary  *telemetry.Summary
	out      io.Writer
	getwd    func() (string, error)
	otelOnce sync.Once
}

// New creates a new App instance.
func New(
	loader ports.GraphLoader,
	caches ports.CacheProvider,
	compiler ports.Compiler,
	log ports.Logger,
	tracer ports.Tracer,
	summary *telemetry.Summary,
) *App {
	return &App{
		loader:   loader,
		caches:   caches,
		compiler: compiler,
		logger:   log,
		tracer:   tracer,
		summary:  summary,
		out:      os.Stdout,
		getwd:    os.Getwd,
	}
}

// WithOutput sets where reports and summaries are written.
func (a *App) WithOutput(w io.Writer) *App {
	a.out = w
	return a
}

// WithWorkingDir makes the App look for the workspace from dir instead of
// the process working directory.
func (a *App) WithWorkingDir(dir string) *App {
	a.getwd = func() (string, error) { return dir, nil }
	return a
}

// BuildOptions configuration for the Build method.
type BuildOptions struct {
	// NoCache rebuilds every unit. Results are still written to the cache.
	NoCache bool
	// CacheMode overrides the workspace cache mode when set.
	CacheMode domain.CacheMode
	// Parallelism overrides the workspace parallelism when positive.
	Parallelism int
	// LogFile receives one JSON line per unit outcome. It defaults to
	// .reuse/log/build.jsonl in the workspace root.
	LogFile string
}

// LogOptions configures the logger for one invocation.
type LogOptions struct {
	Verbose bool
	JSON    bool
}

type configurableLogger interface {
	SetVerbose(enable bool)
	SetJSON(enable bool)
}

// ConfigureLogging applies opts if the logger supports them.
func (a *App) ConfigureLogging(opts LogOptions) {
	if l, ok := a.logger.(configurableLogger); ok {
		l.SetVerbose(opts.Verbose)
		l.SetJSON(opts.JSON)
	}
}

// Build resolves the targets and everything they depend on, materializes
// their outputs under .reuse/out and prints the summary. Without targets the
// whole workspace is built.
func (a *App) Build(ctx context.Context, targetNames []string, opts BuildOptions) error {
	ws, err := a.load()
	if err != nil {
		return err
	}

	settings := ws.Cache
	if opts.CacheMode != "" {
		if !opts.CacheMode.Valid() {
			return zerr.With(domain.ErrInvalidCacheMode, "mode", string(opts.CacheMode))
		}
		settings.Mode = opts.CacheMode
	}
	parallelism := ws.Build.EffectiveParallelism()
	if opts.Parallelism > 0 {
		parallelism = opts.Parallelism
	}

	a.setupOTel()

	gateway, store, err := a.caches.Open(ctx, ws.Root, settings)
	if err != nil {
		return zerr.Wrap(err, "failed to open cache")
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			a.logger.Warn("failed to close cache", "error", closeErr.Error())
		}
	}()

	keys, err := fingerprint.New(ws.Graph, settings.Salt)
	if err != nil {
		return zerr.Wrap(err, domain.ErrConfiguration.Error())
	}
	session := decision.NewSession(ws.Graph, keys)

	logFile := opts.LogFile
	if logFile == "" {
		logFile = filepath.Join(ws.Root, domain.DefaultLogPath(), defaultLogName)
	}
	jsonl, err := buildlog.OpenFile(logFile)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := jsonl.Close(); closeErr != nil {
			a.logger.Error(closeErr)
		}
	}()
	sinks := buildlog.Multi{buildlog.NewLoggerSink(a.logger), jsonl}

	resolver := decision.NewResolver(decision.Config{
		Cache: gateway,
		Manifests: manifest.New(store, manifest.Options{
			Capacity: settings.ManifestCapacity,
			ReadOnly: !settings.Mode.Writes(),
		}),
		Compiler: a.compiler,
		Logger:   a.logger,
		Tracer:   a.tracer,
		Sink:     sinks,
		Options:  decision.OptionsFor(settings.Mode, opts.NoCache),
	})

	sched := scheduler.NewScheduler(resolver, a.tracer)
	report, runErr := sched.Run(ctx, session, domain.NewUnitIDs(targetNames), parallelism)
	if report == nil {
		return zerr.Wrap(runErr, "failed to plan build")
	}

	if err := a.materialize(context.WithoutCancel(ctx), ws.Root, report); err != nil {
		return err
	}
	a.printSummary(report)

	if runErr != nil {
		return zerr.Wrap(runErr, "build interrupted")
	}
	if err := report.Err(); err != nil {
		a.reportFailures(report)
		return err
	}
	return nil
}

// reportFailures logs the cause of every unit whose own build failed.
// Dependents of a failed unit only appear in the summary.
func (a *App) reportFailures(report *scheduler.Report) {
	for _, id := range report.Failed() {
		res := report.Results[id]
		if res.Err == nil || res.Tier != domain.TierBuild {
			continue
		}
		a.logger.Error(zerr.With(zerr.Wrap(res.Err, "unit failed"), "unit", id.String()))
	}
}

func (a *App) load() (*domain.Workspace, error) {
	cwd, err := a.getwd()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to determine working directory")
	}
	ws, err := a.loader.Load(cwd)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	return ws, nil
}

// setupOTel routes spans of the global provider into the timing summary.
func (a *App) setupOTel() {
	a.otelOnce.Do(func() {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(a.summary))
		otel.SetTracerProvider(tp)
	})
}
