package notebook

import (
	"path"
	"path/filepath"
	"strings"
)

// ScopedWriter writes only to the paths it owns. Reads are unrestricted.
type ScopedWriter struct {
	tree  *Tree
	owned map[string]bool
}

// Scoped returns a writer limited to paths.
func (t *Tree) Scoped(paths ...string) *ScopedWriter {
	owned := make(map[string]bool, len(paths))
	for _, p := range paths {
		owned[path.Clean(filepath.ToSlash(p))] = true
	}
	return &ScopedWriter{tree: t, owned: owned}
}

func (s *ScopedWriter) Read(rel string) ([]byte, error) {
	return s.tree.Read(rel)
}

func (s *ScopedWriter) Write(rel string, content []byte) error {
	if !s.owned[path.Clean(filepath.ToSlash(rel))] {
		return &PathError{Op: "write", Path: rel, Err: ErrOutOfScope}
	}
	return s.tree.Write(rel, content)
}

// Reserved reports whether rel belongs to an enrichment pass: the
// narrative leaf, the report and anything under the state directory.
func (n *Notebook) Reserved(rel string) bool {
	p := cleanRel(rel)
	if p == cleanRel(n.layout.Narrative) || p == cleanRel(n.layout.Report) {
		return true
	}
	if n.layout.StateDir == "" {
		return false
	}
	dir := cleanRel(n.layout.StateDir)
	return p == dir || strings.HasPrefix(p, dir+"/")
}

// Write writes a file on behalf of a user or an import. Reserved paths fail
// with ErrOutOfScope; the passes write them through Scoped.
func (n *Notebook) Write(rel string, content []byte) error {
	if n.Reserved(rel) {
		return &PathError{Op: "write", Path: rel, Err: ErrOutOfScope}
	}
	return n.Tree.Write(rel, content)
}

func cleanRel(p string) string {
	if p == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean(filepath.ToSlash(p)), "/")
}
