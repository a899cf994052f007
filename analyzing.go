// Package analyzing ties the Go front end, the analyzing machine and the
// editing workspace together: a Project interprets entry points of a module
// and applies source edits speculatively, committing them only when the
// edited module still loads and runs.
package analyzing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/podhmo/go-analyzing/edit"
	"github.com/podhmo/go-analyzing/gofront"
	"github.com/podhmo/go-analyzing/instruction"
	"github.com/podhmo/go-analyzing/locator"
	"github.com/podhmo/go-analyzing/machine"
	"github.com/podhmo/go-analyzing/methods"
	"github.com/podhmo/go-analyzing/object"
)

// Project is a module under analysis.
type Project struct {
	cfg        Config
	logger     *slog.Logger
	modulePath string
	layout     gofront.Layout
	ws         *edit.Workspace
	cache      *methods.Cache
	cancel     func()

	applyMu sync.Mutex

	mu          sync.RWMutex
	prog        *gofront.Program
	loadErr     error
	invalidated []object.MethodID
}

// Outcome describes one Apply.
type Outcome struct {
	// View is the id of the view the edits were staged in.
	View string
	// Committed is set when the edits reached the workspace.
	Committed bool
	// Documents are the documents the edits changed, sorted.
	Documents []string
	// Invalidated are the cached methods evicted by the commit.
	Invalidated []object.MethodID
	// Reason is why the view was aborted.
	Reason error
}

// New creates a project over docs, keyed by slash-separated path relative
// to the module root.
func New(modulePath string, docs map[string]string, opts ...Option) (*Project, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}

	layout := gofront.Layout{ModulePath: modulePath, Mounts: cfg.Mounts}
	prog, err := gofront.LoadLayout(layout, docs)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", modulePath, err)
	}
	p := &Project{
		cfg:        cfg,
		logger:     cfg.Logger,
		modulePath: modulePath,
		layout:     layout,
		ws:         edit.NewWorkspace(docs, cfg.Logger),
		cache:      methods.NewCache(cfg.Logger),
		prog:       prog,
	}
	p.cancel = p.ws.OnCommit(p.reload)
	return p, nil
}

// Open creates a project from the module containing dir. Modules replaced
// by a local directory in go.mod are loaded along with it.
func Open(dir string, opts ...Option) (*Project, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	loc, err := locator.New(dir, cfg.Overlay)
	if err != nil {
		return nil, fmt.Errorf("failed to locate module: %w", err)
	}
	docs, err := loc.Sources()
	if err != nil {
		return nil, fmt.Errorf("failed to read sources of %s: %w", loc.ModulePath(), err)
	}
	mounts, err := loc.Mounts()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve replacements of %s: %w", loc.ModulePath(), err)
	}
	if len(mounts) > 0 && cfg.Mounts == nil {
		opts = append(opts, WithMounts(mounts))
	}
	return New(loc.ModulePath(), docs, opts...)
}

// Close detaches the project from its workspace.
func (p *Project) Close() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// ModulePath returns the module path of the project.
func (p *Project) ModulePath() string { return p.modulePath }

// Cache returns the methods cache shared by every run of the project.
func (p *Project) Cache() *methods.Cache { return p.cache }

// Workspace returns the documents of the project.
func (p *Project) Workspace() *edit.Workspace { return p.ws }

// Source returns the committed text of a document.
func (p *Project) Source(name string) (string, bool) { return p.ws.Text(name) }

// Program returns the loaded form of the committed sources.
func (p *Project) Program() (*gofront.Program, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	return p.prog, nil
}

// Methods returns the functions and methods of the project, sorted.
func (p *Project) Methods() ([]object.MethodID, error) {
	prog, err := p.Program()
	if err != nil {
		return nil, err
	}
	return prog.Methods(), nil
}

func (p *Project) machine(cache *methods.Cache, prog *gofront.Program) *machine.Machine {
	opts := []machine.Option{
		machine.WithLogger(p.logger),
		machine.WithResolver(methods.NewResolver(prog.Types())),
	}
	if p.cfg.DirectMethods != nil {
		opts = append(opts, machine.WithDirectMethods(p.cfg.DirectMethods))
	}
	if p.cfg.MaxCallDepth > 0 {
		opts = append(opts, machine.WithMaxCallDepth(p.cfg.MaxCallDepth))
	}
	if p.cfg.MaxSteps > 0 {
		opts = append(opts, machine.WithMaxSteps(p.cfg.MaxSteps))
	}
	return machine.New(cache, prog.Provide, opts...)
}

// Analyze interprets entry against the committed sources. The run holds the
// read lock, so a commit cannot evict the cache while generators of the
// replaced program are still being stored.
func (p *Project) Analyze(ctx context.Context, entry object.MethodID) (*machine.Result, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	p.logger.InfoContext(ctx, "analyze", "entry", string(entry))
	res, err := p.machine(p.cache, p.prog).RunMethod(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", entry, err)
	}
	return res, nil
}

// AnalyzeAll interprets several entry points in parallel over the shared
// cache. Results are in the order of entries; the first failure cancels the rest.
func (p *Project) AnalyzeAll(ctx context.Context, entries []object.MethodID) ([]*machine.Result, error) {
	results := make([]*machine.Result, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, entry := range entries {
		g.Go(func() error {
			res, err := p.Analyze(ctx, entry)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Apply stages ts in a new view, reloads the edited sources and validates
// them. The view is committed only when validation passes; otherwise it is
// aborted and the workspace is left untouched.
func (p *Project) Apply(ctx context.Context, ts ...edit.Transformation) (*Outcome, error) {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	v := p.ws.NewView()
	out := &Outcome{View: v.ID()}
	fail := func(err error) (*Outcome, error) {
		if !v.IsAborted() {
			v.Abort(err)
		}
		out.Reason = err
		p.logger.InfoContext(ctx, "edit aborted", "view", v.ID(), "error", err)
		return out, err
	}

	for _, t := range ts {
		if err := v.Apply(t); err != nil {
			return fail(fmt.Errorf("apply %s: %w", t, err))
		}
	}
	texts, err := v.Texts()
	if err != nil {
		return fail(err)
	}
	for name, text := range texts {
		if committed, _ := p.ws.Text(name); committed != text {
			out.Documents = append(out.Documents, name)
		}
	}
	sort.Strings(out.Documents)

	prog, err := gofront.LoadLayout(p.layout, texts)
	if err != nil {
		return fail(fmt.Errorf("reload edited sources: %w", err))
	}
	if err := p.validate(ctx, prog, out.Documents); err != nil {
		return fail(err)
	}
	if err := v.Commit(); err != nil {
		return fail(fmt.Errorf("commit: %w", err))
	}

	p.mu.RLock()
	out.Invalidated = p.invalidated
	p.mu.RUnlock()
	out.Committed = true
	p.logger.InfoContext(ctx, "edit committed", "view", v.ID(), "documents", out.Documents, "invalidated", len(out.Invalidated))
	return out, nil
}

// validate runs the configured entries against prog with a private cache,
// or compiles the functions of the changed documents when there are none.
func (p *Project) validate(ctx context.Context, prog *gofront.Program, changed []string) error {
	if len(p.cfg.Entries) > 0 {
		for _, entry := range p.cfg.Entries {
			if _, err := p.machine(methods.NewCache(p.logger), prog).RunMethod(ctx, entry); err != nil {
				return fmt.Errorf("validate %s: %w", entry, err)
			}
		}
		return nil
	}
	docs := make(map[string]bool, len(changed))
	for _, name := range changed {
		docs[name] = true
	}
	for _, id := range prog.Methods() {
		if doc, _ := prog.DocumentOf(id); !docs[doc] {
			continue
		}
		gen, ok := prog.Generator(id)
		if !ok {
			continue
		}
		if _, err := instruction.Build(gen); err != nil {
			return fmt.Errorf("validate %s: %w", id, err)
		}
	}
	return nil
}

// reload follows commits to the workspace: the sources are loaded again and
// the packages of the changed documents are evicted from the cache. The new
// program is published before the eviction, under the same lock, so no run
// can refill the cache from the old one and commits cannot publish out of order.
func (p *Project) reload(changed []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prog, err := gofront.LoadLayout(p.layout, p.ws.Snapshot())
	if err != nil {
		p.loadErr = fmt.Errorf("load %s: %w", p.modulePath, err)
		p.logger.Error("reload after commit", "error", err)
	} else {
		p.prog = prog
		p.loadErr = nil
	}

	refs := map[methods.AssemblyRef]bool{}
	for _, name := range changed {
		refs[methods.AssemblyRef(p.layout.PackagePath(name))] = true
	}
	var removed []object.MethodID
	for ref := range refs {
		removed = append(removed, p.cache.InvalidateAssembly(ref)...)
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	p.invalidated = removed
	p.logger.Debug("reloaded", "documents", changed, "invalidated", len(removed))
}
