// Package app orchestrates module discovery, loading, and hot reload.
// It owns the scan roots, the registry, and the generation counters, and
// exposes the load/unload entry points the watcher drives.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/modkit-go/modkit/internal/handler"
	"github.com/modkit-go/modkit/internal/module"
	"github.com/modkit-go/modkit/internal/registry"
)

// Router receives add/remove notifications for controller records. It is
// called exactly once per successful load and unload respectively.
type Router interface {
	AddController(rec *module.ControllerRecord)
	RemoveController(rec *module.ControllerRecord)
}

// Options configures an App.
type Options struct {
	// Roots are the scan roots. Relative roots resolve against Workdir.
	Roots []string

	// Workdir resolves relative roots; defaults to the process working
	// directory.
	Workdir string

	Logger  *zap.Logger
	Catalog *handler.Catalog
	Router  Router
}

// App drives startup scanning and serves as the load/unload entry point
// for watcher events.
type App struct {
	log      *zap.Logger
	roots    []string
	scanner  *module.Scanner
	loader   *module.Loader
	catalog  *handler.Catalog
	registry *registry.Registry
	router   Router
	env      *Env

	// mu serializes registry and router mutations plus the generation
	// counters; the asynchronous part of a load never holds it.
	mu   sync.Mutex
	gens map[string]uint64
}

// LoadResult reports the outcome of a single load attempt.
type LoadResult struct {
	// Loaded is true when a controller was registered.
	Loaded bool

	// Path is the canonical path the attempt was keyed by.
	Path string

	// Controller is set when Loaded is true.
	Controller *module.ControllerRecord

	// Reason explains a not-loaded outcome (type declaration, no module
	// block, service module).
	Reason string
}

// StartReport summarizes a startup scan.
type StartReport struct {
	Attempted int
	Loaded    int
	Skipped   int
	Failed    int
}

// New creates an App. All roots are canonicalized up front.
func New(opts Options) (*App, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("app: logger is required")
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("app: handler catalog is required")
	}
	if opts.Router == nil {
		return nil, fmt.Errorf("app: router is required")
	}
	if len(opts.Roots) == 0 {
		return nil, fmt.Errorf("app: at least one scan root is required")
	}

	roots := make([]string, 0, len(opts.Roots))
	for _, root := range opts.Roots {
		canon, err := canonicalPath(opts.Workdir, root)
		if err != nil {
			return nil, fmt.Errorf("app: resolve root %s: %w", root, err)
		}
		roots = append(roots, canon)
	}

	return &App{
		log:      opts.Logger,
		roots:    roots,
		scanner:  module.NewScanner(opts.Logger),
		loader:   module.NewLoader(opts.Logger),
		catalog:  opts.Catalog,
		registry: registry.New(),
		router:   opts.Router,
		env:      NewEnv(),
		gens:     make(map[string]uint64),
	}, nil
}

// Roots returns the canonicalized scan roots.
func (a *App) Roots() []string {
	return append([]string(nil), a.roots...)
}

// Registry returns the path registry.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Env returns the environment populated by service modules.
func (a *App) Env() *Env {
	return a.env
}

// Start scans every root and runs the load pipeline for every discovered
// file. All load tasks are issued before Start waits on any of them, and
// Start returns only after every task has settled, so the caller can
// begin listening knowing the routing table is complete.
//
// Roots are independent: a root that cannot be scanned is logged and
// counted as failed without aborting the others. Per-file failures are
// likewise isolated.
func (a *App) Start(ctx context.Context) (*StartReport, error) {
	report := &StartReport{}
	var reportMu sync.Mutex

	var files []string
	for _, root := range a.roots {
		found, err := a.scanner.Scan(root)
		if err != nil {
			a.log.Error("scan root failed", zap.String("root", root), zap.Error(err))
			reportMu.Lock()
			report.Failed++
			reportMu.Unlock()
			continue
		}
		files = append(files, found...)
	}

	var wg sync.WaitGroup
	for _, file := range files {
		// On cancellation stop issuing new tasks; tasks already issued
		// still settle below so the barrier holds.
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(path string) {
			defer wg.Done()

			result, err := a.LoadFile(path)

			reportMu.Lock()
			defer reportMu.Unlock()
			report.Attempted++
			switch {
			case err != nil:
				report.Failed++
				a.log.Error("load failed", zap.String("path", path), zap.Error(err))
			case result.Loaded:
				report.Loaded++
			default:
				report.Skipped++
				a.log.Warn("module not loaded", zap.String("path", path), zap.String("reason", result.Reason))
			}
		}(file)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		a.log.Warn("startup scan cancelled",
			zap.Int("attempted", report.Attempted),
			zap.Error(err))
		return report, err
	}

	a.log.Info("startup scan complete",
		zap.Int("attempted", report.Attempted),
		zap.Int("loaded", report.Loaded),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))

	return report, nil
}

// LoadFile runs the load pipeline for a single path. Idempotent entry
// point used both at startup and on watcher add/change events.
//
// On success the registry entry is inserted (overwriting any previous
// record for the path, whose router registration is removed first so the
// router never holds two live records for one path) and the router is
// notified. On a not-loadable file the result reports Loaded=false with
// a reason and no state changes. Errors are tied to this path only.
func (a *App) LoadFile(path string) (LoadResult, error) {
	canon, err := canonicalPath("", path)
	if err != nil {
		return LoadResult{Path: path}, err
	}

	gen := a.nextGeneration(canon)

	unit, err := a.loader.Load(canon, gen)
	if err != nil {
		if errors.Is(err, module.ErrNotLoadable) {
			return LoadResult{Path: canon, Reason: err.Error()}, nil
		}
		return LoadResult{Path: canon}, err
	}

	switch unit.Descriptor.Kind {
	case module.KindService:
		// Services take effect but are never registered.
		svc := unit.Descriptor.Service
		a.env.Apply(svc.Name, svc.Settings)
		a.log.Info("service module applied",
			zap.String("path", canon),
			zap.String("service", svc.Name),
			zap.Int("settings", len(svc.Settings)))
		return LoadResult{Path: canon, Reason: "service module, not routable"}, nil

	case module.KindController:
		rec, err := module.ExtractController(unit, a.catalog)
		if err != nil {
			return LoadResult{Path: canon}, err
		}

		a.mu.Lock()
		if prev, ok := a.registry.Get(canon); ok {
			// Concurrent loads of one path (overlapping roots) can finish
			// out of order; a commit may never roll back a newer
			// generation.
			if prev.Generation >= rec.Generation {
				a.mu.Unlock()
				return LoadResult{
					Path:   canon,
					Reason: fmt.Sprintf("superseded by generation %d", prev.Generation),
				}, nil
			}
			a.router.RemoveController(prev)
		}
		a.registry.Put(rec)
		a.router.AddController(rec)
		a.mu.Unlock()

		return LoadResult{Loaded: true, Path: canon, Controller: rec}, nil

	default:
		return LoadResult{Path: canon, Reason: fmt.Sprintf("kind %s is not routable", unit.Descriptor.Kind)}, nil
	}
}

// UnloadFile removes the registration for path. Unloading a path that
// was never registered is a no-op and reports false.
func (a *App) UnloadFile(path string) bool {
	canon, err := canonicalPath("", path)
	if err != nil {
		a.log.Warn("unload: cannot canonicalize path", zap.String("path", path), zap.Error(err))
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.registry.Remove(canon)
	if !ok {
		return false
	}
	a.router.RemoveController(rec)

	a.log.Info("module unloaded",
		zap.String("path", canon),
		zap.String("controller", rec.Name))
	return true
}

// Reload unloads then reloads a path. The unload completes fully before
// the load begins, so the router never observes two live records for the
// same path.
func (a *App) Reload(path string) (LoadResult, error) {
	a.UnloadFile(path)
	return a.LoadFile(path)
}

// nextGeneration bumps and returns the load counter for a path.
func (a *App) nextGeneration(path string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gens[path]++
	return a.gens[path]
}

// canonicalPath resolves p to a cleaned absolute path. When p is
// relative it resolves against workdir (or the process working directory
// when workdir is empty). Two roots reaching the same canonical path
// conflate in the registry; last load wins.
func canonicalPath(workdir, p string) (string, error) {
	if !filepath.IsAbs(p) && workdir != "" {
		p = filepath.Join(workdir, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
