package compile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ArtifactStore is the directory compiled PDFs are published to.
type ArtifactStore struct {
	dir string
}

func NewArtifactStore(dir string) (*ArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &ArtifactStore{dir: dir}, nil
}

func (s *ArtifactStore) Dir() string { return s.dir }

// ValidName reports whether name is a plain .pdf file name.
func ValidName(name string) bool {
	return name != "" &&
		!strings.ContainsAny(name, `/\`) &&
		!strings.HasPrefix(name, ".") &&
		filepath.Base(name) == name &&
		strings.HasSuffix(strings.ToLower(name), ".pdf")
}

// Publish copies src into the store under name, replacing any previous
// artifact atomically. It returns the published size.
func (s *ArtifactStore) Publish(name, src string) (int64, error) {
	if !ValidName(name) {
		return 0, fmt.Errorf("%q: %w", name, ErrInvalidArtifact)
	}
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open compiled output: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(s.dir, ".publish-*")
	if err != nil {
		return 0, fmt.Errorf("create temp artifact: %w", err)
	}
	size, err := io.Copy(tmp, in)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("copy artifact: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("chmod artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("publish artifact: %w", err)
	}
	return size, nil
}

// Open returns the artifact for serving.
func (s *ArtifactStore) Open(name string) (*os.File, os.FileInfo, error) {
	if !ValidName(name) {
		return nil, nil, fmt.Errorf("%q: %w", name, ErrInvalidArtifact)
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, nil, fmt.Errorf("artifact %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("artifact %s: %w", name, err)
	}
	return f, info, nil
}

// List returns published artifact names.
func (s *ArtifactStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && ValidName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// CountPages reads the page count of a PDF. Unreadable files count as 0.
func CountPages(path string) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	return r.NumPage()
}
