// Package compile drives the external document compiler over a notebook
// tree: one render pass for a standalone leaf, render, index and render
// again for the aggregate, followed by page-map extraction and artifact
// publication.
package compile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ariavasulin/YouLearn/internal/notebook"
)

// Options configures a Compiler.
type Options struct {
	Compiler         string        // render executable, e.g. pdflatex
	Indexer          string        // index executable, e.g. makeindex; empty uses the built-in generator
	Timeout          time.Duration // per pass
	DiagnosticBudget int           // characters
	PageMapTypes     []string
	Slug             string // aggregate artifact is <Slug>-Notes.pdf
}

func (o *Options) defaults() {
	if o.Compiler == "" {
		o.Compiler = "pdflatex"
	}
	if o.Timeout <= 0 {
		o.Timeout = 120 * time.Second
	}
	if o.DiagnosticBudget <= 0 {
		o.DiagnosticBudget = 500
	}
	if len(o.PageMapTypes) == 0 {
		o.PageMapTypes = DefaultPageMapTypes
	}
	if o.Slug == "" {
		o.Slug = "notebook"
	}
}

// Result describes one successful compile.
type Result struct {
	Target   string        `json:"target"`
	Artifact string        `json:"artifact"`
	Size     int64         `json:"size"`
	Pages    int           `json:"pages"`
	PageMap  []PageEntry   `json:"page_map,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Compiler compiles targets of one notebook. Compiles of the same target
// run one at a time because the compiler writes its intermediate files next
// to the source; different targets run concurrently.
type Compiler struct {
	nb     *notebook.Notebook
	runner Runner
	store  *ArtifactStore
	opts   Options
	log    *slog.Logger

	mu   sync.Mutex
	sems map[string]chan struct{}
}

func New(nb *notebook.Notebook, runner Runner, store *ArtifactStore, opts Options, log *slog.Logger) *Compiler {
	opts.defaults()
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Compiler{
		nb:     nb,
		runner: runner,
		store:  store,
		opts:   opts,
		log:    log,
		sems:   make(map[string]chan struct{}),
	}
}

// Store returns the artifact store compiles publish to.
func (c *Compiler) Store() *ArtifactStore { return c.store }

// Compile builds target ("aggregate" or a leaf id) and publishes the PDF.
func (c *Compiler) Compile(ctx context.Context, target string) (*Result, error) {
	t, err := c.nb.ResolveTarget(target)
	if err != nil {
		return nil, err
	}
	kind := "leaf"
	if t.Aggregate {
		kind = "aggregate"
	}

	release, err := c.acquire(ctx, t.Path)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	res, err := c.compile(ctx, t)
	if err != nil {
		compileRuns.WithLabelValues(kind, outcomeOf(err)).Inc()
		c.log.Warn("compile failed", "target", t.Name, "error", err)
		return nil, err
	}
	res.Duration = time.Since(start)
	compileRuns.WithLabelValues(kind, "ok").Inc()
	compileDuration.WithLabelValues(kind).Observe(res.Duration.Seconds())
	c.log.Info("compiled",
		"target", t.Name,
		"artifact", res.Artifact,
		"size", res.Size,
		"pages", res.Pages,
		"page_map", len(res.PageMap),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (c *Compiler) compile(ctx context.Context, t notebook.Target) (*Result, error) {
	if _, err := c.nb.Stat(t.Path); err != nil {
		return nil, err
	}
	absSrc, err := c.nb.Abs(t.Path)
	if err != nil {
		return nil, err
	}
	dir := path.Dir(t.Path)
	file := path.Base(t.Path)
	stem := strings.TrimSuffix(file, path.Ext(file))
	workDir := filepath.Dir(absSrc)

	render := Command{
		Name: c.opts.Compiler,
		Args: []string{"-interaction=nonstopmode", file},
		Dir:  workDir,
	}

	if err := c.renderPass(ctx, t, render); err != nil {
		return nil, err
	}
	if t.Aggregate {
		c.indexPass(ctx, t, workDir, path.Join(dir, stem))
		if err := c.renderPass(ctx, t, render); err != nil {
			return nil, err
		}
	}

	pdfRel := path.Join(dir, stem+".pdf")
	if !c.nb.Exists(pdfRel) {
		return nil, &Failure{Target: t.Name, Pass: "render", Diagnostic: "no PDF produced"}
	}
	pdfAbs, err := c.nb.Abs(pdfRel)
	if err != nil {
		return nil, err
	}

	name := t.Name + ".pdf"
	if t.Aggregate {
		name = c.opts.Slug + "-Notes.pdf"
	}
	size, err := c.store.Publish(name, pdfAbs)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Target:   t.Name,
		Artifact: name,
		Size:     size,
		Pages:    CountPages(pdfAbs),
	}
	if t.Aggregate {
		aux, err := c.nb.Read(path.Join(dir, stem+".aux"))
		if err != nil {
			c.log.Warn("no auxiliary output for page map", "target", t.Name, "error", err)
		} else {
			res.PageMap = ParsePageMap(string(aux), c.opts.PageMapTypes...)
		}
	}
	return res, nil
}

func (c *Compiler) renderPass(ctx context.Context, t notebook.Target, cmd Command) error {
	out, err := c.run(ctx, cmd)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrToolingUnavailable) || errors.Is(err, ErrTimeout) || ctx.Err() != nil {
		return err
	}
	return &Failure{
		Target:     t.Name,
		Pass:       "render",
		Diagnostic: Diagnose(out, c.opts.DiagnosticBudget),
	}
}

// indexPass resolves the term index between the two render passes. The
// external indexer is tried first when configured; when it is missing or
// fails, the built-in generator writes the .ind file. A missing .idx means
// nothing was indexed.
func (c *Compiler) indexPass(ctx context.Context, t notebook.Target, workDir, stemRel string) {
	idx, err := c.nb.Read(stemRel + ".idx")
	if err != nil {
		return
	}
	if c.opts.Indexer != "" {
		_, err := c.run(ctx, Command{
			Name: c.opts.Indexer,
			Args: []string{path.Base(stemRel) + ".idx"},
			Dir:  workDir,
		})
		if err == nil {
			return
		}
		c.log.Warn("external indexer failed, using built-in index", "target", t.Name, "error", err)
	}
	if err := c.nb.Write(stemRel+".ind", []byte(BuildIndex(string(idx)))); err != nil {
		c.log.Warn("write index", "target", t.Name, "error", err)
	}
}

func (c *Compiler) run(ctx context.Context, cmd Command) ([]byte, error) {
	passCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	out, err := c.runner.Run(passCtx, cmd)
	if err != nil && !errors.Is(err, ErrTimeout) && errors.Is(passCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%s after %s: %w", cmd.Name, c.opts.Timeout, ErrTimeout)
	}
	return out, err
}

func (c *Compiler) acquire(ctx context.Context, key string) (func(), error) {
	c.mu.Lock()
	sem, ok := c.sems[key]
	if !ok {
		sem = make(chan struct{}, 1)
		c.sems[key] = sem
	}
	c.mu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrToolingUnavailable):
		return "tooling_unavailable"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCompileFailure):
		return "failure"
	default:
		return "error"
	}
}
