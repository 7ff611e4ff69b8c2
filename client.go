// Package fetchwire provides a configurable HTTP request client with support
// for request/response interceptor pipelines, timeout-driven cancellation,
// in-flight request tracking and cancellation by key, retry with backoff,
// content-type-aware response normalization, optional circuit breaking,
// rate-limiting, and context-aware structured logging with golog.
package fetchwire

import (
	"context"
	"sync"
	"time"

	"github.com/evdnx/golog"
	"golang.org/x/time/rate"
)

// -----------------------------------------------------------------------------
// Client definition
// -----------------------------------------------------------------------------

// DefaultTimeout bounds a request when neither the call nor the client
// configures one.
const DefaultTimeout = 3000 * time.Millisecond

// Client issues HTTP requests through a Transport, layering the cross-cutting
// concerns on top: interceptor chains, per-request timeouts, cancellation by
// request key, and retry. A Client is safe for concurrent use.
type Client struct {
	baseURL        string
	defaultHeaders map[string]string
	timeout        time.Duration
	credentials    CredentialsMode
	retry          *RetryPolicy
	transport      Transport
	logger         *golog.Logger
	limiter        *rate.Limiter
	breaker        *CircuitBreaker
	idempotency    map[string]bool

	mu        sync.Mutex
	nextID    uint64
	reqChain  []requestEntry
	respChain []responseEntry
	inflight  map[string]context.CancelCauseFunc
}

// Option configures a Client.
type Option func(*Client)

// New creates a Client applying any supplied Options. Defaults: no base URL,
// a JSON content-type default header, a 3-second timeout, same-origin
// credentials, no retry policy, and a net/http-backed transport.
func New(opts ...Option) *Client {
	c := &Client{
		defaultHeaders: map[string]string{"Content-Type": "application/json"},
		timeout:        DefaultTimeout,
		credentials:    CredentialsSameOrigin,
		idempotency:    make(map[string]bool),
		inflight:       make(map[string]context.CancelCauseFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = NewHTTPTransport(nil)
	}
	return c
}

// -----------------------------------------------------------------------------
// Functional options
// -----------------------------------------------------------------------------

// WithBaseURL sets the prefix joined onto every request path.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = base }
}

func WithDefaultHeader(key, value string) Option {
	return func(c *Client) { c.defaultHeaders[key] = value }
}

func WithDefaultHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithTimeout sets the default per-request timeout. Zero or negative disables
// the default timeout entirely.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithCredentials sets the default credentials mode.
func WithCredentials(mode CredentialsMode) Option {
	return func(c *Client) { c.credentials = mode }
}

// WithRetryPolicy sets the client-wide retry policy, used when a call does
// not supply its own.
func WithRetryPolicy(p *RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithTransport replaces the underlying transport.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		if t != nil {
			c.transport = t
		}
	}
}

func WithLogger(logger *golog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRateLimit caps outgoing request rate; the limiter is awaited before
// every attempt, retries included.
func WithRateLimit(limit float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
}

func WithCircuitBreaker(failureThreshold int, resetTimeout time.Duration) Option {
	return func(c *Client) {
		c.breaker = NewCircuitBreaker(failureThreshold, resetTimeout)
	}
}

// WithIdempotencyMethods lists methods that get an Idempotency-Key header
// when the caller has not set one.
func WithIdempotencyMethods(methods ...string) Option {
	return func(c *Client) {
		for _, m := range methods {
			c.idempotency[m] = true
		}
	}
}
