// Package watch recompiles a notebook when its sources change.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ariavasulin/YouLearn/internal/compile"
	"github.com/ariavasulin/YouLearn/internal/notebook"
	"github.com/fsnotify/fsnotify"
)

// Compiler is the part of compile.Compiler the watcher needs.
type Compiler interface {
	Compile(ctx context.Context, target string) (*compile.Result, error)
}

// Options configures a Watcher.
type Options struct {
	Debounce   time.Duration // quiet period before a rebuild, default 500ms
	Target     string        // default notebook.AggregateTarget
	Extensions []string      // source extensions, default .tex
	IgnoreDirs []string      // absolute directories to skip, e.g. the artifact dir

	// OnCompile is called after each rebuild.
	OnCompile func(*compile.Result, error)
}

func (o *Options) defaults() {
	if o.Debounce <= 0 {
		o.Debounce = 500 * time.Millisecond
	}
	if o.Target == "" {
		o.Target = notebook.AggregateTarget
	}
	if len(o.Extensions) == 0 {
		o.Extensions = []string{".tex"}
	}
}

// Watcher watches every source directory under a root.
type Watcher struct {
	root string
	comp Compiler
	opts Options
	log  *slog.Logger
}

func New(root string, comp Compiler, opts Options, log *slog.Logger) *Watcher {
	opts.defaults()
	ignore := make([]string, 0, len(opts.IgnoreDirs))
	for _, d := range opts.IgnoreDirs {
		if abs, err := filepath.Abs(d); err == nil {
			ignore = append(ignore, abs)
		}
	}
	opts.IgnoreDirs = ignore
	root, _ = filepath.Abs(root)
	return &Watcher{root: root, comp: comp, opts: opts, log: log}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	dirs := 0
	err = filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != w.root && w.ignoredDir(p) {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			w.log.Warn("watch dir", "dir", p, "error", err)
			return nil
		}
		dirs++
		return nil
	})
	if err != nil {
		return err
	}
	w.log.Info("watching notebook", "root", w.root, "dirs", dirs, "target", w.opts.Target)

	return w.loop(ctx, fsw.Events, fsw.Errors, fsw.Add)
}

// loop debounces source events into rebuilds. addDir registers directories
// created while watching.
func (w *Watcher) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, addDir func(string) error) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && addDir != nil {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !w.ignoredDir(ev.Name) {
					if err := addDir(ev.Name); err != nil {
						w.log.Warn("watch dir", "dir", ev.Name, "error", err)
					}
				}
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.Debug("source changed", "path", w.rel(ev.Name), "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				fire = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)

		case <-fire:
			timer = nil
			fire = nil
			w.rebuild(ctx)
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context) {
	res, err := w.comp.Compile(ctx, w.opts.Target)
	if err != nil {
		w.log.Error("rebuild failed", "target", w.opts.Target, "error", err)
	} else {
		w.log.Info("rebuilt", "target", w.opts.Target, "artifact", res.Artifact, "pages", res.Pages, "page_map", len(res.PageMap))
	}
	if w.opts.OnCompile != nil {
		w.opts.OnCompile(res, err)
	}
}

// relevant reports whether ev touches a source file outside ignored and
// hidden paths. Compiler outputs never match the source extensions.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(ev.Name))
	matched := false
	for _, e := range w.opts.Extensions {
		if ext == e {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	return !w.ignoredDir(filepath.Dir(ev.Name)) && !hidden(filepath.Base(ev.Name))
}

func (w *Watcher) ignoredDir(dir string) bool {
	for _, d := range w.opts.IgnoreDirs {
		if dir == d || strings.HasPrefix(dir, d+string(filepath.Separator)) {
			return true
		}
	}
	rel, err := filepath.Rel(w.root, dir)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if hidden(part) {
			return true
		}
	}
	return false
}

func (w *Watcher) rel(p string) string {
	if r, err := filepath.Rel(w.root, p); err == nil {
		return filepath.ToSlash(r)
	}
	return p
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
