package transport

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig controls [WithRetry].
type RetryConfig struct {
	// MaxTries bounds the attempts per request, the first included.
	// Values below 1 mean 1.
	MaxTries uint

	// InitialInterval is the wait before the second attempt.
	InitialInterval time.Duration

	// MaxInterval caps the wait between attempts.
	MaxInterval time.Duration

	// Logger receives one debug record per retry. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultRetryConfig returns three tries starting at 200ms, capped at 2s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxTries:        3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// retryableStatus reports whether a response status is worth another try.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// statusError marks a retryable response that was discarded.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "transport: retryable status " + http.StatusText(e.code)
}

type retryDoer struct {
	next   Doer
	cfg    RetryConfig
	logger *slog.Logger
}

// WithRetry retries requests that fail at the transport level or come back
// with 502, 503 or 504, waiting with exponential backoff between tries.
//
// The response of the last try is returned as is, whatever its status.
// A request with a body is only retried when req.GetBody is set, which
// [http.NewRequest] does for the common in-memory readers. Cancelling the
// request context stops the retries.
func WithRetry(next Doer, cfg RetryConfig) Doer {
	if cfg.MaxTries < 1 {
		cfg.MaxTries = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &retryDoer{next: next, cfg: cfg, logger: logger}
}

func (d *retryDoer) Do(req *http.Request) (*http.Response, error) {
	tries := d.cfg.MaxTries
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		tries = 1
	}
	if tries == 1 {
		return d.next.Do(req)
	}

	ctx := req.Context()
	expBackoff := backoff.NewExponentialBackOff()
	if d.cfg.InitialInterval > 0 {
		expBackoff.InitialInterval = d.cfg.InitialInterval
	}
	if d.cfg.MaxInterval > 0 {
		expBackoff.MaxInterval = d.cfg.MaxInterval
	}
	expBackoff.Reset()

	var attempt uint
	operation := func() (*http.Response, error) {
		attempt++
		try := req
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			try = req.Clone(ctx)
			try.Body = body
		}

		resp, err := d.next.Do(try)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if attempt < tries && retryableStatus(resp.StatusCode) {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			_ = resp.Body.Close()
			return nil, &statusError{code: resp.StatusCode}
		}
		return resp, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(tries),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			d.logger.Debug("transport: retrying request",
				"method", req.Method,
				"url", req.URL.Redacted(),
				"attempt", attempt,
				"wait", wait,
				"error", err,
			)
		}),
	)
}
