// Package enrich runs the background passes that read recently changed
// leaves and write derived documents: the verification report and the
// narrative leaf. Each pass remembers when it last succeeded and does
// nothing when no relevant leaf changed since then.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ariavasulin/YouLearn/internal/capability"
	"github.com/ariavasulin/YouLearn/internal/notebook"
)

var (
	// ErrPassRunning means the same pass is already in flight. Triggers
	// arriving meanwhile are skipped, not queued.
	ErrPassRunning = errors.New("pass already running")
	ErrUnknownPass = errors.New("unknown pass")
	// ErrCapabilityUnavailable means the pass has work but no capability
	// was configured to do it.
	ErrCapabilityUnavailable = errors.New("capability not configured")
	ErrPassPanicked          = errors.New("pass panicked")
)

// Options tunes the passes.
type Options struct {
	PayloadTokens     int    // narrative payload budget
	MaxOutputTokens   int    // narrative generation limit
	SearchConcurrency int    // parallel claim lookups
	SessionKind       string // leaf kind holding session logs
	CourseName        string
	RunTTL            time.Duration
}

func (o *Options) defaults() {
	if o.PayloadTokens <= 0 {
		o.PayloadTokens = 12000
	}
	if o.MaxOutputTokens <= 0 {
		o.MaxOutputTokens = 4096
	}
	if o.SearchConcurrency <= 0 {
		o.SearchConcurrency = 4
	}
	if o.SessionKind == "" {
		o.SessionKind = "session"
	}
	if o.CourseName == "" {
		o.CourseName = "the course"
	}
}

// Outcome summarizes one pass run.
type Outcome struct {
	Pass      PassID   `json:"pass"`
	Skipped   bool     `json:"skipped"`
	Message   string   `json:"message"`
	Delta     []string `json:"delta"`
	Claims    int      `json:"claims,omitempty"`
	Written   string   `json:"written,omitempty"`
	Truncated []string `json:"truncated,omitempty"`
	Dropped   []string `json:"dropped,omitempty"`
}

// Orchestrator schedules and runs enrichment passes.
type Orchestrator struct {
	nb      *notebook.Notebook
	cursors CursorStore
	search  capability.SearchCapability
	gen     capability.GenerationCapability
	judge   Judge
	runs    *RunStore
	opts    Options
	log     *slog.Logger

	// Now is the clock used for cursors and run records.
	Now func() time.Time

	mu      sync.Mutex
	running map[PassID]bool
	wg      sync.WaitGroup
}

// New wires an orchestrator. search and gen may be nil; a pass whose
// capability is missing fails when it has work to do. Claims are judged by
// the generation capability when present, by term overlap otherwise.
func New(nb *notebook.Notebook, cursors CursorStore, search capability.SearchCapability, gen capability.GenerationCapability, opts Options, log *slog.Logger) *Orchestrator {
	opts.defaults()
	var judge Judge = OverlapJudge{}
	if gen != nil {
		judge = GenerationJudge{Gen: gen}
	}
	return &Orchestrator{
		nb:      nb,
		cursors: cursors,
		search:  search,
		gen:     gen,
		judge:   judge,
		runs:    NewRunStore(opts.RunTTL),
		opts:    opts,
		log:     log,
		Now:     time.Now,
		running: make(map[PassID]bool),
	}
}

// WithJudge replaces the claim judge.
func (o *Orchestrator) WithJudge(j Judge) *Orchestrator {
	o.judge = j
	return o
}

func (o *Orchestrator) Runs() *RunStore { return o.runs }

// Start evicts old run records until ctx ends.
func (o *Orchestrator) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.runs.Cleanup(o.Now())
			}
		}
	}()
}

// Running reports whether pass is in flight.
func (o *Orchestrator) Running(pass PassID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running[pass]
}

func (o *Orchestrator) acquire(pass PassID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[pass] {
		return false
	}
	o.running[pass] = true
	return true
}

func (o *Orchestrator) release(pass PassID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, pass)
}

// Run executes pass synchronously.
func (o *Orchestrator) Run(ctx context.Context, pass PassID) (Outcome, error) {
	if _, err := ParsePass(string(pass)); err != nil {
		return Outcome{}, err
	}
	if !o.acquire(pass) {
		return Outcome{Pass: pass}, ErrPassRunning
	}
	defer o.release(pass)

	run := newRun(pass, o.Now())
	o.runs.Put(run)
	return o.execute(ctx, pass, run)
}

// Trigger starts pass in the background and returns its run id. Detached
// runs have no cancellation; they finish or fail on their own.
func (o *Orchestrator) Trigger(pass PassID) (string, error) {
	if _, err := ParsePass(string(pass)); err != nil {
		return "", err
	}
	if !o.acquire(pass) {
		o.log.Info("pass already running, trigger skipped", "pass", pass)
		return "", ErrPassRunning
	}

	run := newRun(pass, o.Now())
	o.runs.Put(run)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.release(pass)
		_, _ = o.execute(context.Background(), pass, run)
	}()
	return run.ID, nil
}

// SessionEnded triggers every pass. Passes already running are skipped.
func (o *Orchestrator) SessionEnded() map[PassID]string {
	started := make(map[PassID]string, len(Passes))
	for _, p := range Passes {
		id, err := o.Trigger(p)
		if err != nil {
			continue
		}
		started[p] = id
	}
	return started
}

// Wait blocks until every detached run has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) execute(ctx context.Context, pass PassID, run *Run) (out Outcome, err error) {
	log := o.log.With("pass", pass, "run_id", run.ID)
	start := o.Now()
	began := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPassPanicked, r)
			log.Error("enrichment pass panicked", "panic", r, "stack", string(debug.Stack()))
		}
		out.Pass = pass
		run.finish(out, err, o.Now())
		status := run.Snapshot().Status
		passRuns.WithLabelValues(string(pass), string(status)).Inc()
		passDuration.WithLabelValues(string(pass)).Observe(time.Since(began).Seconds())
		if err != nil {
			log.Error("enrichment pass failed", "error", err, "delta", len(out.Delta))
			return
		}
		log.Info("enrichment pass finished", "status", status, "message", out.Message, "delta", len(out.Delta))
	}()

	cur, err := o.cursors.Load(ctx, pass)
	if err != nil {
		return out, err
	}

	switch pass {
	case PassVerify:
		out, err = o.verify(ctx, cur.LastRun, start)
	case PassNarrative:
		out, err = o.narrate(ctx, cur.LastRun)
	default:
		return out, fmt.Errorf("%q: %w", pass, ErrUnknownPass)
	}
	if err != nil || out.Skipped {
		return out, err
	}

	if err := o.cursors.Save(ctx, Cursor{PassID: pass, LastRun: start}); err != nil {
		return out, err
	}
	return out, nil
}

// changedSince filters leaves modified after since.
func changedSince(leaves []notebook.LeafInfo, since time.Time, keep func(notebook.LeafInfo) bool) []notebook.LeafInfo {
	var out []notebook.LeafInfo
	for _, l := range leaves {
		if keep(l) && l.ModTime.After(since) {
			out = append(out, l)
		}
	}
	return out
}

func leafPaths(leaves []notebook.LeafInfo) []string {
	out := make([]string, 0, len(leaves))
	for _, l := range leaves {
		out = append(out, l.Path)
	}
	return out
}
