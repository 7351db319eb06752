// Package notebook is the mutation engine for a notebook tree: sandboxed
// file operations relative to a root directory, marker-based leaf creation,
// and the layout that says where each kind of leaf lives.
package notebook

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is one directory listing item.
type Entry struct {
	Name    string    `json:"name"`
	Dir     bool      `json:"dir"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Tree is a sandboxed view of a notebook directory. All paths passed to it
// are slash-separated and relative to the root.
type Tree struct {
	root  string
	locks *PathLocks
}

// Option configures a Tree.
type Option func(*Tree)

// WithPathLocks serializes writes to the same path.
func WithPathLocks() Option {
	return func(t *Tree) { t.locks = NewPathLocks() }
}

// Open returns a Tree rooted at dir, which must exist.
func Open(dir string, opts ...Option) (*Tree, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("notebook root is not a directory")
	}
	t := &Tree{root: real}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Root returns the absolute root directory.
func (t *Tree) Root() string { return t.root }

// Abs resolves rel to an absolute path inside the root.
func (t *Tree) Abs(rel string) (string, error) {
	return t.resolve("resolve", rel)
}

func (t *Tree) resolve(op, rel string) (string, error) {
	if strings.ContainsRune(rel, 0) {
		return "", &PathError{Op: op, Path: rel, Err: ErrPathEscape}
	}
	slashed := filepath.ToSlash(rel)
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", &PathError{Op: op, Path: rel, Err: ErrPathEscape}
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", &PathError{Op: op, Path: rel, Err: ErrPathEscape}
	}
	abs := filepath.Join(t.root, clean)
	if err := t.checkLinks(abs); err != nil {
		return "", &PathError{Op: op, Path: rel, Err: err}
	}
	return abs, nil
}

// checkLinks resolves the deepest existing ancestor of abs and rejects it
// when a symlink leads outside the root. A dangling link is rejected as well
// since a write through it would land wherever it points.
func (t *Tree) checkLinks(abs string) error {
	p := abs
	for {
		real, err := filepath.EvalSymlinks(p)
		if err == nil {
			if !within(t.root, real) {
				return ErrPathEscape
			}
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return scrub(err)
		}
		if info, lerr := os.Lstat(p); lerr == nil && info.Mode()&fs.ModeSymlink != 0 {
			return ErrPathEscape
		}
		parent := filepath.Dir(p)
		if parent == p || !within(t.root, parent) {
			return nil
		}
		p = parent
	}
}

func within(root, p string) bool {
	if p == root {
		return true
	}
	return strings.HasPrefix(p, root+string(filepath.Separator))
}

// Read returns the content of a file.
func (t *Tree) Read(rel string) ([]byte, error) {
	abs, err := t.resolve("read", rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, &PathError{Op: "read", Path: rel, Err: scrub(err)}
	}
	return data, nil
}

// Write replaces a file's content, creating missing parent directories.
// The write goes to a temporary sibling first and is renamed into place.
func (t *Tree) Write(rel string, content []byte) error {
	abs, err := t.resolve("write", rel)
	if err != nil {
		return err
	}
	if abs == t.root {
		return &PathError{Op: "write", Path: rel, Err: fs.ErrInvalid}
	}
	if t.locks != nil {
		unlock := t.locks.Lock(abs)
		defer unlock()
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return &PathError{Op: "write", Path: rel, Err: scrub(err)}
	}
	tmp, err := os.CreateTemp(filepath.Dir(abs), ".tmp-"+filepath.Base(abs)+"-*")
	if err != nil {
		return &PathError{Op: "write", Path: rel, Err: scrub(err)}
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		cleanup()
		return &PathError{Op: "write", Path: rel, Err: scrub(err)}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &PathError{Op: "write", Path: rel, Err: scrub(err)}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return &PathError{Op: "write", Path: rel, Err: scrub(err)}
	}
	if err := os.Rename(tmpName, abs); err != nil {
		cleanup()
		return &PathError{Op: "write", Path: rel, Err: scrub(err)}
	}
	return nil
}

// List returns the entries of a directory sorted by name. Hidden entries
// are skipped.
func (t *Tree) List(rel string) ([]Entry, error) {
	abs, err := t.resolve("list", rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &PathError{Op: "list", Path: rel, Err: scrub(err)}
	}
	if !info.IsDir() {
		return nil, &PathError{Op: "list", Path: rel, Err: ErrNotFound}
	}
	dirents, err := os.ReadDir(abs)
	if err != nil {
		return nil, &PathError{Op: "list", Path: rel, Err: scrub(err)}
	}

	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		if strings.HasPrefix(d.Name(), ".") {
			continue
		}
		e := Entry{Name: d.Name(), Dir: d.IsDir()}
		if fi, err := d.Info(); err == nil {
			e.Size = fi.Size()
			e.ModTime = fi.ModTime()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Stat describes a single path.
func (t *Tree) Stat(rel string) (Entry, error) {
	abs, err := t.resolve("stat", rel)
	if err != nil {
		return Entry{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Entry{}, &PathError{Op: "stat", Path: rel, Err: scrub(err)}
	}
	return Entry{
		Name:    info.Name(),
		Dir:     info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Exists reports whether rel resolves to an existing path.
func (t *Tree) Exists(rel string) bool {
	_, err := t.Stat(rel)
	return err == nil
}

// Glob matches a slash-separated pattern relative to the root and returns
// relative paths. Patterns that leave the root fail with ErrPathEscape.
func (t *Tree) Glob(pattern string) ([]string, error) {
	if !insideRoot(pattern) {
		return nil, &PathError{Op: "glob", Path: pattern, Err: ErrPathEscape}
	}
	matches, err := filepath.Glob(filepath.Join(t.root, filepath.FromSlash(pattern)))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(t.root, m)
		if err != nil || !within(t.root, m) {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out, nil
}

// PathLocks is an advisory per-path mutex set.
type PathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

func NewPathLocks() *PathLocks {
	return &PathLocks{locks: make(map[string]*pathLock)}
}

// Lock blocks until path is free and returns the release function.
func (l *PathLocks) Lock(path string) func() {
	l.mu.Lock()
	pl, ok := l.locks[path]
	if !ok {
		pl = &pathLock{}
		l.locks[path] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()
	return func() {
		pl.mu.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, path)
		}
		l.mu.Unlock()
	}
}
