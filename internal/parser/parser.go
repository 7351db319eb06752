// Package parser turns external course material (notes, handouts, papers,
// slides exported to PDF) into section trees and renders them as markdown
// resources inside a notebook.
package parser

import (
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/ariavasulin/YouLearn/internal/doctree"
)

// ErrUnsupported means no parser handles the file's extension.
var ErrUnsupported = errors.New("unsupported file type")

// Parser converts raw document bytes into a DocTree.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.DocTree, error)
}

// SupportedExtensions lists file extensions the importer can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// Options tune individual parsers.
type Options struct {
	// Readable runs HTML through article extraction before outlining.
	Readable bool
	// SourceURL is the page an HTML document came from, used to resolve
	// relative links during article extraction.
	SourceURL string
	// PdftotextFallback shells out to pdftotext when the PDF library
	// cannot read a file.
	PdftotextFallback bool
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{Readable: opts.Readable, SourceURL: opts.SourceURL}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PdftotextFallback}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// titleFromFilename drops the directory and extension.
func titleFromFilename(filename string) string {
	base := path.Base(filepath.ToSlash(filename))
	return strings.TrimSuffix(base, path.Ext(base))
}
