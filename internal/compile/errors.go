package compile

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrToolingUnavailable means the compiler executable is not installed.
	ErrToolingUnavailable = errors.New("compiler tooling unavailable")
	// ErrCompileFailure is wrapped by every *Failure.
	ErrCompileFailure = errors.New("compile failed")
	// ErrTimeout means a pass ran past its deadline and was killed.
	ErrTimeout         = errors.New("compile timed out")
	ErrInvalidArtifact = errors.New("invalid artifact name")
)

// Failure is a render pass that exited non-zero.
type Failure struct {
	Target     string
	Pass       string
	Diagnostic string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("compile %s failed at %s pass:\n%s", f.Target, f.Pass, f.Diagnostic)
}

func (f *Failure) Unwrap() error { return ErrCompileFailure }

// Diagnose condenses compiler output. Lines starting with "!" are the
// compiler's error lines and are preferred; without any, the tail of the
// output is used. The result is cut to budget characters.
func Diagnose(output []byte, budget int) string {
	text := strings.ToValidUTF8(string(output), "")
	if strings.TrimSpace(text) == "" {
		return "(no output)"
	}

	var errLines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "!") {
			errLines = append(errLines, strings.TrimRight(line, "\r"))
		}
	}
	if len(errLines) > 0 {
		return head(strings.Join(errLines, "\n"), budget)
	}
	return tail(text, budget)
}

func head(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func tail(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[len(r)-n:])
}
