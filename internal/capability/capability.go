// Package capability defines the two external services the enrichment
// passes depend on, plus HTTP adapters and wrappers for them.
package capability

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Snippet is one search hit, best first.
type Snippet struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

// SearchCapability answers a query with ranked text snippets.
type SearchCapability interface {
	Search(ctx context.Context, query string) ([]Snippet, error)
}

// Prompt is a structured generation request.
type Prompt struct {
	System    string
	User      string
	MaxTokens int
}

// GenerationCapability turns a prompt into text.
type GenerationCapability interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// SearchFunc adapts a function to SearchCapability.
type SearchFunc func(ctx context.Context, query string) ([]Snippet, error)

func (f SearchFunc) Search(ctx context.Context, query string) ([]Snippet, error) {
	return f(ctx, query)
}

// GenerateFunc adapts a function to GenerationCapability.
type GenerateFunc func(ctx context.Context, p Prompt) (string, error)

func (f GenerateFunc) Generate(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

var fenceRe = regexp.MustCompile("(?s)^```[A-Za-z]*[ \t]*\n?(.*?)\\s*```$")

// StripFences removes a Markdown code fence wrapped around a whole response.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
