package capability

import (
	"context"

	"golang.org/x/time/rate"
)

type rateLimitedSearch struct {
	next    SearchCapability
	limiter *rate.Limiter
}

// RateLimited caps outgoing searches at rps requests per second with the
// given burst. A non-positive rps disables the limit.
func RateLimited(s SearchCapability, rps float64, burst int) SearchCapability {
	if rps <= 0 {
		return s
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedSearch{
		next:    s,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *rateLimitedSearch) Search(ctx context.Context, query string) ([]Snippet, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Search(ctx, query)
}
