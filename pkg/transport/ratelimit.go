package transport

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

type rateLimitDoer struct {
	next    Doer
	limiter *rate.Limiter
}

// WithRateLimit lets at most limit requests per second through next, with
// bursts of up to burst. Requests wait for a slot; a request whose context
// ends first is not sent and the context error is returned.
func WithRateLimit(next Doer, limit rate.Limit, burst int) Doer {
	if burst < 1 {
		burst = 1
	}
	return &rateLimitDoer{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (d *rateLimitDoer) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := d.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// The wait would outlast the context deadline.
		return nil, fmt.Errorf("transport: rate limit: %w", err)
	}
	return d.next.Do(req)
}
