package capability

import (
	"context"
	"math/rand"
	"time"
)

const MaxRetries = 3

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

// backoff is swapped out in tests.
var backoff = Backoff

func retry[T any](ctx context.Context, call func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := 0; ; attempt++ {
		out, err = call()
		if err == nil || !IsRetryable(err) || attempt >= MaxRetries {
			return out, err
		}
		timer := time.NewTimer(backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

type retrySearch struct {
	next SearchCapability
}

// RetrySearch retries retryable search failures with exponential backoff.
func RetrySearch(s SearchCapability) SearchCapability {
	return &retrySearch{next: s}
}

func (r *retrySearch) Search(ctx context.Context, query string) ([]Snippet, error) {
	return retry(ctx, func() ([]Snippet, error) { return r.next.Search(ctx, query) })
}

type retryGeneration struct {
	next GenerationCapability
}

// RetryGeneration retries retryable generation failures with exponential
// backoff.
func RetryGeneration(g GenerationCapability) GenerationCapability {
	return &retryGeneration{next: g}
}

func (r *retryGeneration) Generate(ctx context.Context, p Prompt) (string, error) {
	return retry(ctx, func() (string, error) { return r.next.Generate(ctx, p) })
}
