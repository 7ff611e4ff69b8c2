package fetchwire

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/evdnx/golog"
	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Request configuration
// -----------------------------------------------------------------------------

// RequestOptions carries the per-call knobs. Zero values fall back to the
// client defaults; Method defaults to GET.
type RequestOptions struct {
	Method      string
	Headers     map[string]string
	Body        []byte
	Params      map[string]any
	Timeout     time.Duration
	Credentials CredentialsMode
	Retry       *RetryPolicy
}

// RequestConfig is the resolved configuration of one logical request. It is
// immutable once an attempt starts; a retry derives a fresh configuration
// with the budget decremented. URL holds the caller's path; the base URL and
// query parameters are folded in when the transport request is built.
type RequestConfig struct {
	Method      string
	URL         string
	Headers     map[string]string
	Body        []byte
	Params      map[string]any
	Timeout     time.Duration
	Credentials CredentialsMode
	Retry       *RetryPolicy
}

func (cfg *RequestConfig) clone() *RequestConfig {
	cp := *cfg
	if cfg.Headers != nil {
		cp.Headers = make(map[string]string, len(cfg.Headers))
		for k, v := range cfg.Headers {
			cp.Headers[k] = v
		}
	}
	if cfg.Params != nil {
		cp.Params = make(map[string]any, len(cfg.Params))
		for k, v := range cfg.Params {
			cp.Params[k] = v
		}
	}
	return &cp
}

// buildConfig resolves per-call options against the client defaults.
func (c *Client) buildConfig(path string, opts *RequestOptions) *RequestConfig {
	if opts == nil {
		opts = &RequestOptions{}
	}
	cfg := &RequestConfig{
		Method:      opts.Method,
		URL:         path,
		Headers:     opts.Headers,
		Body:        opts.Body,
		Params:      opts.Params,
		Timeout:     opts.Timeout,
		Credentials: opts.Credentials,
		Retry:       opts.Retry,
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	// GET and HEAD never carry a body, even when the caller supplied one.
	if cfg.Method == http.MethodGet || cfg.Method == http.MethodHead {
		cfg.Body = nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = c.timeout
	}
	if cfg.Credentials == "" {
		cfg.Credentials = c.credentials
	}
	if cfg.Retry == nil {
		cfg.Retry = c.retry
	}
	return cfg
}

// resolveURL joins the base URL, the request path, and the serialized query
// parameters.
func (c *Client) resolveURL(path string, params map[string]any) string {
	return appendQuery(c.baseURL+path, params)
}

// RequestKey computes the cancellation key Request would use for this call.
func (c *Client) RequestKey(path string, opts *RequestOptions) string {
	cfg := c.buildConfig(path, opts)
	return buildRequestKey(cfg.Method, c.resolveURL(cfg.URL, cfg.Params), cfg.Credentials, cfg.Body)
}

// -----------------------------------------------------------------------------
// Public API (Request, Get, Post, Put, Delete)
// -----------------------------------------------------------------------------

// Request issues a request for path (joined with the configured base URL) and
// returns the normalized envelope. Every failure is surfaced as a
// *RequestError unless an interceptor deliberately signaled a different
// shape.
func (c *Client) Request(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.dispatch(ctx, c.buildConfig(path, opts))
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Request(ctx, path, withMethod(opts, http.MethodGet))
}

// Post performs a POST request, serializing payload to a JSON body when
// present. A nil payload leaves any opts.Body untouched.
func (c *Client) Post(ctx context.Context, path string, payload any, opts *RequestOptions) (*Response, error) {
	opts, err := withJSONBody(opts, http.MethodPost, payload)
	if err != nil {
		return nil, err
	}
	return c.Request(ctx, path, opts)
}

// Put performs a PUT request, serializing payload to a JSON body when present.
func (c *Client) Put(ctx context.Context, path string, payload any, opts *RequestOptions) (*Response, error) {
	opts, err := withJSONBody(opts, http.MethodPut, payload)
	if err != nil {
		return nil, err
	}
	return c.Request(ctx, path, opts)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Request(ctx, path, withMethod(opts, http.MethodDelete))
}

func withMethod(opts *RequestOptions, method string) *RequestOptions {
	if opts == nil {
		opts = &RequestOptions{}
	} else {
		cp := *opts
		opts = &cp
	}
	opts.Method = method
	return opts
}

func withJSONBody(opts *RequestOptions, method string, payload any) (*RequestOptions, error) {
	opts = withMethod(opts, method)
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, &RequestError{
				Kind:    ErrorKindParse,
				Message: "encoding request body: " + err.Error(),
				Cause:   err,
			}
		}
		opts.Body = body
	}
	return opts, nil
}

// -----------------------------------------------------------------------------
// Dispatch: retry engine, recovery, abort translation
// -----------------------------------------------------------------------------

// dispatch runs one attempt and applies the retry policy to its failure. A
// retry is a full re-entry: interceptor chains re-run and a fresh
// cancellation handle is registered from scratch. The recursion is bounded by
// the policy's initial count, which only ever decrements.
func (c *Client) dispatch(ctx context.Context, cfg *RequestConfig) (*Response, error) {
	resp, err := c.attempt(ctx, cfg)
	if err == nil {
		return resp, nil
	}

	reqErr := err
	if re, ok := AsRequestError(err); ok {
		if p := cfg.Retry; p != nil && p.Count > 0 && p.eligible(re) {
			if delay := p.nextDelay(); delay > 0 {
				// The wait runs on the caller's context, not the expired
				// attempt context, so an outer cancellation still interrupts it.
				timer := time.NewTimer(delay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return nil, &RequestError{
						Kind:    ErrorKindCancel,
						Message: "request canceled",
						Config:  cfg,
						Cause:   context.Cause(ctx),
					}
				}
			}
			if c.logger != nil {
				c.logger.Info("retrying request",
					golog.String("method", cfg.Method),
					golog.String("url", cfg.URL),
					golog.Int("remaining", p.Count-1))
			}
			next := cfg.clone()
			next.Retry = p.next()
			return c.dispatch(ctx, next)
		}
	}

	// Retry declined or exhausted: offer the failure to the response-error
	// chain for recovery before re-signaling it.
	return c.recoverResponseError(reqErr)
}

// -----------------------------------------------------------------------------
// Single attempt
// -----------------------------------------------------------------------------

func (c *Client) attempt(ctx context.Context, cfg *RequestConfig) (*Response, error) {
	// 1️⃣ Compute the request key and register a fresh abortable handle.
	//     A later identical key overwrites this entry (last-writer-wins).
	key := buildRequestKey(cfg.Method, c.resolveURL(cfg.URL, cfg.Params), cfg.Credentials, cfg.Body)

	cctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	c.register(key, cancel)
	defer c.unregister(key)

	// 2️⃣ Arm the timeout. Whichever of timer and transport completes first
	//     wins; the deferred unregister runs exactly once either way.
	tctx := cctx
	if cfg.Timeout > 0 {
		var tcancel context.CancelFunc
		tctx, tcancel = context.WithTimeout(cctx, cfg.Timeout)
		defer tcancel()
	}

	// 3️⃣ Run the request interceptor chain over a copy, so a retry starts
	//     from the original configuration.
	outCfg, err := c.runRequestChain(cfg.clone())
	if err != nil {
		return nil, err
	}

	// 4️⃣ Resolve the final URL and merge headers (defaults first, so
	//     interceptor-set and per-call entries win).
	finalURL := c.resolveURL(outCfg.URL, outCfg.Params)
	headers := c.mergeHeaders(outCfg.Headers)
	if c.idempotency[outCfg.Method] && headers["Idempotency-Key"] == "" {
		headers["Idempotency-Key"] = uuid.New().String()
	}

	// 5️⃣ Circuit-breaker pre-check and rate-limiting.
	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return nil, &RequestError{
				Kind:    ErrorKindTransport,
				Message: err.Error(),
				Config:  outCfg,
				Cause:   err,
			}
		}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(tctx); err != nil {
			return nil, c.classifyTransportError(err, outCfg, tctx)
		}
	}

	// 6️⃣ Invoke the transport with the abort signal attached.
	raw, err := c.transport.Do(tctx, &TransportRequest{
		Method:      outCfg.Method,
		URL:         finalURL,
		Headers:     headers,
		Body:        outCfg.Body,
		Credentials: outCfg.Credentials,
	})
	if err != nil {
		if c.breaker != nil {
			c.breaker.RecordFailure()
		}
		return nil, c.classifyTransportError(err, outCfg, tctx)
	}

	// 7️⃣ Normalize and run the response interceptor chain.
	resp, err := normalizeResponse(raw, outCfg)
	if err != nil {
		if c.breaker != nil {
			c.breaker.RecordFailure()
		}
		return nil, err
	}
	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
	return c.runResponseChain(resp)
}

// mergeHeaders layers per-call headers over the client defaults.
func (c *Client) mergeHeaders(headers map[string]string) map[string]string {
	merged := make(map[string]string, len(c.defaultHeaders)+len(headers))
	for k, v := range c.defaultHeaders {
		merged[k] = v
	}
	for k, v := range headers {
		merged[k] = v
	}
	return merged
}

// classifyTransportError translates a transport-level failure into the error
// record. Context expiry takes precedence: an aborted attempt is reported as
// a cancellation whether the timer fired or CancelRequest was called.
func (c *Client) classifyTransportError(err error, cfg *RequestConfig, ctx context.Context) error {
	if re, ok := AsRequestError(err); ok {
		return re
	}
	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		msg := "request canceled"
		if errors.Is(cause, context.DeadlineExceeded) {
			msg = "request canceled: timed out"
		}
		return &RequestError{
			Kind:    ErrorKindCancel,
			Message: msg,
			Config:  cfg,
			Cause:   cause,
		}
	}
	return &RequestError{
		Kind:    ErrorKindTransport,
		Message: err.Error(),
		Config:  cfg,
		Cause:   err,
	}
}
