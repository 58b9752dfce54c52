// Package client talks to the admin REST backend. Authenticated calls take
// their bearer token from a cache.TokenStore.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pilab-dev/shadow-admin/cache"
	serrors "github.com/pilab-dev/shadow-admin/errors"
	"github.com/pilab-dev/shadow-admin/log"
	"github.com/pilab-dev/shadow-admin/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds every HTTP call.
const DefaultTimeout = 30 * time.Second

// RequestIDHeader carries a per-call id for correlating with backend logs.
const RequestIDHeader = "X-Request-ID"

// Client is the REST backend client.
type Client struct {
	http   *resty.Client
	tokens cache.TokenStore
	logger log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTokenStore sets where bearer tokens are read from.
func WithTokenStore(store cache.TokenStore) Option {
	return func(c *Client) { c.tokens = store }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithHTTPClient sends requests through hc (transport, TLS, proxies).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		timeout := c.http.GetClient().Timeout
		c.http = resty.NewWithClient(hc).
			SetBaseURL(c.http.BaseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json")
	}
}

// New creates a Client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(DefaultTimeout).
			SetHeader("Accept", "application/json"),
		logger: log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

// errorBody is what the backend sends on failure.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (b errorBody) text() string {
	if b.Message != "" {
		return b.Message
	}
	return b.Error
}

// call describes one request.
type call struct {
	method string
	path   string
	body   interface{}
	// form and files make the request multipart.
	form  map[string]string
	files []fileField
	auth  bool
	// optionalAuth sends the stored token when there is one.
	optionalAuth bool
	out          interface{}
	// token overrides the store when non-empty.
	token string
}

type fileField struct {
	param    string
	filename string
	reader   io.Reader
}

func (c *Client) bearer(ctx context.Context, cl *call) (string, error) {
	if cl.token != "" {
		return cl.token, nil
	}
	if c.tokens == nil {
		return "", serrors.ErrNotAuthenticated
	}
	tok, ok, err := c.tokens.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	if !ok || tok == "" {
		return "", serrors.ErrNotAuthenticated
	}
	return tok, nil
}

func (c *Client) do(ctx context.Context, cl call) error {
	op := cl.method + " " + cl.path
	ctx, span := tracing.Tracer().Start(ctx, "client "+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	reqID := uuid.NewString()
	req := c.http.R().
		SetContext(ctx).
		SetHeader(RequestIDHeader, reqID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	if cl.auth || cl.optionalAuth {
		tok, err := c.bearer(ctx, &cl)
		switch {
		case err == nil:
			req.SetAuthToken(tok)
		case cl.auth || !errors.Is(err, serrors.ErrNotAuthenticated):
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	switch {
	case len(cl.files) > 0 || cl.form != nil:
		req.SetMultipartFormData(cl.form)
		for _, f := range cl.files {
			req.SetFileReader(f.param, f.filename, f.reader)
		}
	case cl.body != nil:
		req.SetHeader("Content-Type", "application/json").SetBody(cl.body)
	}

	resp, err := req.Execute(cl.method, cl.path)
	if err != nil {
		nerr := &serrors.NetworkError{Op: op, Err: err}
		span.RecordError(nerr)
		span.SetStatus(codes.Error, "transport failure")
		c.logger.Debug(ctx, "backend request failed", log.Fields{"op": op, "request_id": reqID, "error": err.Error()})
		return nerr
	}

	status := resp.StatusCode()
	span.SetAttributes(attribute.Int("http.status_code", status))
	c.logger.Debug(ctx, "backend request", log.Fields{"op": op, "request_id": reqID, "status": status})

	if status >= 200 && status < 300 {
		if cl.out != nil && len(resp.Body()) > 0 {
			if err := json.Unmarshal(resp.Body(), cl.out); err != nil {
				span.RecordError(err)
				return fmt.Errorf("%s: failed to decode response: %w", op, err)
			}
		}
		return nil
	}

	var eb errorBody
	_ = json.Unmarshal(resp.Body(), &eb)
	msg := eb.text()
	if msg == "" && !strings.HasPrefix(strings.TrimSpace(string(resp.Body())), "{") {
		msg = strings.TrimSpace(string(resp.Body()))
	}

	span.SetStatus(codes.Error, http.StatusText(status))
	if status == http.StatusUnauthorized {
		return &serrors.AuthError{Status: status, Message: msg}
	}
	return &serrors.APIError{Status: status, Message: msg}
}
