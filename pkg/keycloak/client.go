// Package keycloak is a client for the Keycloak endpoints the bridge uses:
// the OpenID Connect token endpoint, the realm list and the user admin
// endpoints.
//
// Two cache-aside readers sit in front of the network:
//
//   - [TokenManager.AccessToken] caches client-credentials access tokens
//     for expires_in minus a safety margin (never less than one second).
//   - [Client.Realms] caches the raw realm list body for RealmListTTL.
//
// Cached tokens are decoded but not re-checked for expiry; the cache TTL is
// the only freshness control. Concurrent misses may each fetch a token;
// there is no request coalescing.
//
// # Usage
//
//	client, err := keycloak.New(cfg,
//	    keycloak.WithCache(cache.NewMemory(0)),
//	    keycloak.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	realms, err := client.Realms(ctx)
package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/stricklysoft-keycloak/pkg/cache"
	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
	"github.com/StricklySoft/stricklysoft-keycloak/pkg/token"
)

const tracerName = "github.com/StricklySoft/stricklysoft-keycloak/pkg/keycloak"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

// Doer sends HTTP requests. [*http.Client] satisfies it, as do the
// decorators in pkg/transport.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a [Client] or [TokenManager].
type Option func(*options)

type options struct {
	doer           Doer
	cache          cache.Cache
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
}

// WithHTTPClient sends requests through d instead of an [http.Client]
// with Config.HTTPTimeout.
func WithHTTPClient(d Doer) Option {
	return func(o *options) { o.doer = d }
}

// WithCache enables cache-aside reads through c. Without it every call
// goes to the network.
func WithCache(c cache.Cache) Option {
	return func(o *options) { o.cache = c }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracerProvider sets the tracer provider. The default is the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

func buildOptions(cfg Config, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.doer == nil {
		o.doer = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	return o
}

// Client calls Keycloak on behalf of one confidential client. Admin calls
// authenticate with a service-account token for Config.Realm obtained
// through the client's [TokenManager]. Client is safe for concurrent use.
type Client struct {
	cfg      Config
	api      caller
	adminAPI caller
	cache    cache.Cache
	logger   *slog.Logger
	tracer   trace.Tracer
	tokens   *TokenManager
}

// New validates cfg and builds a Client.
//
// Error codes returned:
//   - VAL_xxx: invalid configuration, with the field in details
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(cfg, opts)
	tracer := o.tracerProvider.Tracer(tracerName)
	c := &Client{
		cfg:      cfg,
		api:      caller{doer: o.doer, baseURL: cfg.BaseURL},
		adminAPI: caller{doer: o.doer, baseURL: cfg.AdminBaseURL},
		cache:    o.cache,
		logger:   o.logger,
		tracer:   tracer,
	}
	c.tokens = newTokenManager(cfg, o, tracer)
	return c, nil
}

// Config returns the validated configuration.
func (c *Client) Config() Config { return c.cfg }

// Tokens returns the client's access token manager.
func (c *Client) Tokens() *TokenManager { return c.tokens }

// AccessToken is shorthand for c.Tokens().AccessToken.
func (c *Client) AccessToken(ctx context.Context, realm string) (*token.BearerToken, error) {
	return c.tokens.AccessToken(ctx, realm)
}

// caller performs raw HTTP exchanges against one Keycloak base URL.
type caller struct {
	doer    Doer
	baseURL string
}

func (c caller) url(query url.Values, segments ...string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}
	return b.String()
}

// send executes req and returns the status and at most maxResponseBytes
// of the body. Transport failures are classified with [sserr.Transport].
func (c caller) send(req *http.Request, what string) (int, []byte, error) {
	resp, err := c.doer.Do(req)
	if err != nil {
		return 0, nil, sserr.Transport(err, "keycloak: "+what+" request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, sserr.Transport(err, "keycloak: "+what+" response could not be read")
	}
	return resp.StatusCode, body, nil
}

// postForm POSTs form to the token endpoint of realm.
func (c caller) postForm(ctx context.Context, realm string, form url.Values) (int, []byte, error) {
	endpoint := c.url(nil, "realms", realm, "protocol", "openid-connect", "token")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, sserr.Wrap(err, sserr.CodeInternal, "keycloak: failed to build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.send(req, "token")
}

// adminCall describes one authenticated admin request.
type adminCall struct {
	name     string // span suffix and error context, e.g. "CreateUser"
	method   string
	segments []string
	query    url.Values
	payload  any

	// want is the required status; 0 accepts any 2xx.
	want int
	code sserr.Code
}

// admin sends call with a service-account bearer token and returns the
// response body when the status matches.
func (c *Client) admin(ctx context.Context, call adminCall) ([]byte, error) {
	tok, err := c.tokens.AccessToken(ctx, c.cfg.Realm)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if call.payload != nil {
		data, err := json.Marshal(call.payload)
		if err != nil {
			return nil, sserr.Wrap(err, sserr.CodeInternal, "keycloak: failed to encode "+call.name+" body")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, call.method, c.adminAPI.url(call.query, call.segments...), body)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternal, "keycloak: failed to build "+call.name+" request")
	}
	req.Header.Set("Authorization", "Bearer "+tok.Raw)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	status, respBody, err := c.adminAPI.send(req, call.name)
	if err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.response.status_code", status))

	ok := status == call.want
	if call.want == 0 {
		ok = status >= 200 && status < 300
	}
	if !ok {
		return nil, sserr.Upstream(call.code, status, string(respBody), "keycloak: "+call.name+" failed")
	}
	return respBody, nil
}

// finishSpan records err on span and sets the span status.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
