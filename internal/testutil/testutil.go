// Package testutil provides shared assertions and helpers for the bridge
// test suite. Helpers call t.Helper() so failures point at the caller.
package testutil

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

// RequireErrorCode fails the test immediately unless err is an *sserr.Error
// (anywhere in the chain) with the given code.
func RequireErrorCode(t testing.TB, err error, code sserr.Code, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	ssErr, ok := sserr.AsError(err)
	require.True(t, ok, "expected *sserr.Error, got %T: %v", err, err)
	require.Equal(t, code, ssErr.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		ssErr.Code, code, ssErr.Message)
}

// AssertErrorCode is the non-fatal form of RequireErrorCode.
func AssertErrorCode(t testing.TB, err error, code sserr.Code, msgAndArgs ...any) bool {
	t.Helper()
	if !assert.Error(t, err, msgAndArgs...) {
		return false
	}
	ssErr, ok := sserr.AsError(err)
	if !assert.True(t, ok, "expected *sserr.Error, got %T: %v", err, err) {
		return false
	}
	return assert.Equal(t, code, ssErr.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		ssErr.Code, code, ssErr.Message)
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTracerProvider returns an SDK tracer provider that exports finished
// spans synchronously to the returned in-memory exporter.
func NewTracerProvider(t testing.TB) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exporter
}

// SpanNames returns the names of the exported spans in end order.
func SpanNames(exporter *tracetest.InMemoryExporter) []string {
	spans := exporter.GetSpans()
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name
	}
	return names
}

// RecordedRequest is a request observed by a [RecordingHandler].
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

// RecordingHandler wraps an http.Handler and records every request it
// serves. It is safe for concurrent use.
type RecordingHandler struct {
	next http.Handler

	mu       sync.Mutex
	requests []RecordedRequest
}

// NewRecordingHandler wraps next.
func NewRecordingHandler(next http.Handler) *RecordingHandler {
	return &RecordingHandler{next: next}
}

// ServeHTTP records r and delegates to the wrapped handler. The body is
// buffered so the wrapped handler can still read it.
func (h *RecordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	h.mu.Lock()
	h.requests = append(h.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   string(body),
	})
	h.mu.Unlock()

	h.next.ServeHTTP(w, r)
}

// Requests returns a copy of the recorded requests.
func (h *RecordingHandler) Requests() []RecordedRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]RecordedRequest(nil), h.requests...)
}

// Count returns how many requests matched method and path.
func (h *RecordingHandler) Count(method, path string) int {
	n := 0
	for _, r := range h.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}
