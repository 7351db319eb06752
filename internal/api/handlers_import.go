package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ariavasulin/YouLearn/internal/parser"
)

// handleImport converts an uploaded file (notes, handouts, readings) into
// a markdown resource inside the tree.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	opts := parser.ImportOptions{
		Options: parser.Options{
			Readable:          formBool(r, "readable", s.cfg.ImportReadable),
			SourceURL:         r.FormValue("source_url"),
			PdftotextFallback: s.cfg.PDFFallbackPdftotext,
		},
		Dest:      r.FormValue("dest"),
		Overwrite: formBool(r, "overwrite", false),
	}
	res, err := parser.Import(s.deps.Notebook, filename, data, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("imported", "file", filename, "path", res.Path, "sections", res.Sections, "bytes", res.Bytes)
	writeJSON(w, http.StatusCreated, res)
}

func formBool(r *http.Request, key string, fallback bool) bool {
	if v := r.FormValue(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
