package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Hemanshudhaduk/Velora/internal/domain"
	"github.com/Hemanshudhaduk/Velora/internal/platform/observability"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxErrorBody      = 1 << 20
)

// HTTPClient matches the subset of http.Client used by Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Client performs JSON calls against the storefront backend and unwraps its
// {success, message, data} envelope.
type Client struct {
	base    *url.URL
	http    HTTPClient
	logger  *zap.Logger
	metrics *observability.ClientMetrics
	now     func() time.Time
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(client HTTPClient) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records request counts and latency.
func WithMetrics(metrics *observability.ClientMetrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// New constructs a Client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("apiclient: base URL is required")
	}
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: parse base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("apiclient: base URL %q must be absolute", baseURL)
	}
	c := &Client{
		base:   parsed,
		http:   http.DefaultClient,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Token is sent as a bearer credential when non-empty.
	Token          string
	IdempotencyKey string
	// Route names the call in spans and metrics, such as /api/cart/{id}. Derived from
	// Path when empty.
	Route string
}

// Envelope is a decoded successful backend response.
type Envelope struct {
	Status  int
	Message string
	Data    domain.Raw
	Body    domain.Raw
}

// Do sends req and returns the decoded envelope. Non-2xx responses and 2xx responses
// carrying success=false become *AuthenticationError or *RequestError.
func (c *Client) Do(ctx context.Context, req Request) (*Envelope, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	route := req.Route
	if route == "" {
		route = RouteTemplate(req.Path)
	}
	ctx, span := observability.StartClientSpan(ctx, method, route)
	start := c.now()
	status := 0
	var callErr error
	defer func() {
		observability.EndClientSpan(span, status, callErr)
		c.metrics.Record(ctx, method, route, status, c.now().Sub(start))
	}()

	httpReq, err := c.newRequest(ctx, method, req)
	if err != nil {
		callErr = err
		return nil, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		callErr = err
		c.logger.Debug("backend request failed", zap.String("method", method), zap.String("path", req.Path), zap.Error(err))
		return nil, &RequestError{Message: "Network error. Please try again.", Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	body, decodeErr := decodeBody(resp.Body)
	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", req.Path),
		zap.Int("status", status),
		zap.Duration("latency", c.now().Sub(start)),
	)

	if status < 200 || status >= 300 {
		callErr = errorFromEnvelope(status, body)
		return nil, callErr
	}
	if decodeErr != nil {
		callErr = &RequestError{Status: status, Message: "Invalid response from server", Err: decodeErr}
		return nil, callErr
	}
	if body != nil {
		if ok, present := body.Bool("success"); present && !ok {
			callErr = errorFromEnvelope(status, body)
			return nil, callErr
		}
	}

	env := &Envelope{Status: status, Body: body}
	if body != nil {
		env.Message = body.String("message")
		env.Data = body.Object("data")
	}
	if env.Data == nil {
		env.Data = domain.Raw{}
	}
	return env, nil
}

func (c *Client) newRequest(ctx context.Context, method string, req Request) (*http.Request, error) {
	endpoint := c.resolve(req.Path, req.Query)

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := strings.TrimSpace(req.Token); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		httpReq.Header.Set(idempotencyHeader, key)
	}
	return httpReq, nil
}

func (c *Client) resolve(endpoint string, query url.Values) string {
	ref := &url.URL{Path: c.base.Path + "/" + strings.TrimLeft(endpoint, "/")}
	u := c.base.ResolveReference(ref)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func decodeBody(r io.Reader) (domain.Raw, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return domain.Raw(out), nil
}
