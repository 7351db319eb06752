package parser

import (
	"bytes"
	"errors"
	"fmt"
	"path"

	"github.com/ariavasulin/YouLearn/internal/doctree"
	"github.com/ariavasulin/YouLearn/internal/notebook"
)

// ImportDir is where imported material lands unless a destination is given.
const ImportDir = "resources/imported"

// ErrExists means the import destination already exists and overwriting
// was not requested.
var ErrExists = errors.New("import destination exists")

// ErrUnreadable means the parser could not make sense of the file.
var ErrUnreadable = errors.New("unreadable document")

// Document is a converted file.
type Document struct {
	Title    string
	Tree     *doctree.DocTree
	Markdown string
}

// Convert parses data according to its filename's extension and renders
// the result as markdown.
func Convert(filename string, data []byte, opts Options) (*Document, error) {
	p, err := ForFile(filename, opts)
	if err != nil {
		return nil, err
	}
	tree, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", filename, ErrUnreadable, err)
	}
	return &Document{Title: tree.Title, Tree: tree, Markdown: Render(tree)}, nil
}

// ImportOptions controls where an import is written.
type ImportOptions struct {
	Options
	// Dest is the tree-relative destination. Empty means
	// resources/imported/<slug>.md.
	Dest      string
	Overwrite bool
}

// ImportResult describes a completed import.
type ImportResult struct {
	Path     string `json:"path"`
	Title    string `json:"title"`
	Bytes    int    `json:"bytes"`
	Sections int    `json:"sections"`
}

// Store is the part of the notebook an import writes through. A
// *notebook.Notebook refuses paths owned by the enrichment passes.
type Store interface {
	Exists(rel string) bool
	Write(rel string, content []byte) error
}

// Import converts a file and writes the markdown into the notebook.
func Import(tree Store, filename string, data []byte, opts ImportOptions) (ImportResult, error) {
	doc, err := Convert(filename, data, opts.Options)
	if err != nil {
		return ImportResult{}, err
	}

	dest := opts.Dest
	if dest == "" {
		slug := notebook.Slugify(titleFromFilename(filename))
		if slug == "" {
			slug = "document"
		}
		dest = path.Join(ImportDir, slug+".md")
	}
	if !opts.Overwrite && tree.Exists(dest) {
		return ImportResult{}, fmt.Errorf("%s: %w", dest, ErrExists)
	}
	if err := tree.Write(dest, []byte(doc.Markdown)); err != nil {
		return ImportResult{}, err
	}
	return ImportResult{
		Path:     dest,
		Title:    doc.Title,
		Bytes:    len(doc.Markdown),
		Sections: doc.Tree.Sections(),
	}, nil
}
