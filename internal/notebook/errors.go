package notebook

import (
	"errors"
	"io/fs"
	"os"

	"github.com/ariavasulin/YouLearn/internal/doctree"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrPathEscape    = errors.New("path escapes notebook root")
	ErrDuplicateLeaf = errors.New("leaf already exists")
	ErrUnknownKind   = errors.New("unknown leaf kind")
	ErrInvalidTarget = errors.New("invalid compile target")
	ErrOutOfScope    = errors.New("write outside owned scope")
	ErrInvalidLayout = errors.New("invalid layout")

	// ErrMarkerMissing is never returned as an error from CreateLeaf; it
	// surfaces as a Warning on the result.
	ErrMarkerMissing = doctree.ErrMarkerMissing
)

// PathError records a failed tree operation. Path is always the caller's
// relative path, never the resolved location on disk.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }

// scrub strips the absolute path the os package embeds in its errors and
// maps not-exist conditions to ErrNotFound.
func scrub(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	var le *os.LinkError
	if errors.As(err, &le) {
		return le.Err
	}
	return err
}
