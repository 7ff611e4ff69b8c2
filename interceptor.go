package fetchwire

import (
	"github.com/evdnx/golog"
	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Interceptor pipeline
// -----------------------------------------------------------------------------

// RequestInterceptor is a pair of optional functions applied before the
// transport runs. OnRequest may replace the accumulating configuration or
// reject the request by returning an error. OnError observes a chain failure
// purely for side effects; it cannot recover the chain.
type RequestInterceptor struct {
	OnRequest func(cfg *RequestConfig) (*RequestConfig, error)
	OnError   func(err error)
}

// ResponseInterceptor is the response-side pair. OnResponse may replace the
// envelope or reject it. OnError is invoked twice over a failure's lifetime:
// once as a pure observer when a success-path transform rejects, and once as
// a recovery attempt when a failure reaches the chain — returning a non-nil
// envelope with a nil error there short-circuits the whole request into a
// success.
type ResponseInterceptor struct {
	OnResponse func(resp *Response) (*Response, error)
	OnError    func(err error) (*Response, error)
}

// Registered interceptors carry a unique id so unregistration removes by
// identity rather than by index; intervening unregistrations shift positions.
type requestEntry struct {
	id uint64
	in RequestInterceptor
}

type responseEntry struct {
	id uint64
	in ResponseInterceptor
}

// AddRequestInterceptor appends in to the request chain and returns a closure
// that unregisters it. Unregistering twice is a no-op.
func (c *Client) AddRequestInterceptor(in RequestInterceptor) (remove func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.reqChain = append(c.reqChain, requestEntry{id: id, in: in})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, e := range c.reqChain {
			if e.id == id {
				c.reqChain = append(c.reqChain[:i], c.reqChain[i+1:]...)
				return
			}
		}
	}
}

// AddResponseInterceptor appends in to the response chain and returns a
// closure that unregisters it.
func (c *Client) AddResponseInterceptor(in ResponseInterceptor) (remove func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.respChain = append(c.respChain, responseEntry{id: id, in: in})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, e := range c.respChain {
			if e.id == id {
				c.respChain = append(c.respChain[:i], c.respChain[i+1:]...)
				return
			}
		}
	}
}

// Snapshots taken under lock so a chain in flight is unaffected by concurrent
// (un)registrations.
func (c *Client) requestEntries() []requestEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]requestEntry(nil), c.reqChain...)
}

func (c *Client) responseEntries() []responseEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]responseEntry(nil), c.respChain...)
}

// runRequestChain applies every OnRequest in registration order. On the first
// rejection it notifies every registered OnError (all of them, in order,
// regardless of which entry failed), then propagates the original failure.
func (c *Client) runRequestChain(cfg *RequestConfig) (*RequestConfig, error) {
	entries := c.requestEntries()
	cur := cfg
	for _, e := range entries {
		if e.in.OnRequest == nil {
			continue
		}
		next, err := e.in.OnRequest(cur)
		if err != nil {
			for _, o := range entries {
				if o.in.OnError != nil {
					o.in.OnError(err)
				}
			}
			return nil, wrapInterceptorError(err, cfg)
		}
		if next != nil {
			cur = next
		}
	}
	return cur, nil
}

// runResponseChain applies every OnResponse in registration order over the
// success envelope. On rejection, every registered OnError observes the
// failure (recovery is not consulted on this pass) and the failure
// propagates.
func (c *Client) runResponseChain(resp *Response) (*Response, error) {
	entries := c.responseEntries()
	cur := resp
	for _, e := range entries {
		if e.in.OnResponse == nil {
			continue
		}
		next, err := e.in.OnResponse(cur)
		if err != nil {
			wrapped := wrapInterceptorError(err, cur.Config)
			for _, o := range entries {
				if o.in.OnError != nil {
					// Observe only; recovery is not consulted on this pass.
					o.in.OnError(wrapped)
				}
			}
			return nil, wrapped
		}
		if next != nil {
			cur = next
		}
	}
	return cur, nil
}

// recoverResponseError offers a failure to each OnError in registration
// order. The first handler that returns an envelope (rather than an error)
// wins and its envelope becomes the request's result. If every handler that
// ran signaled failure, the last such failure propagates; otherwise the
// original failure does.
func (c *Client) recoverResponseError(reqErr error) (*Response, error) {
	entries := c.responseEntries()
	var lastErr error
	ran := false
	allFailed := true
	for _, e := range entries {
		if e.in.OnError == nil {
			continue
		}
		ran = true
		resp, err := e.in.OnError(reqErr)
		if err == nil && resp != nil {
			return resp, nil
		}
		if err != nil {
			lastErr = err
		} else {
			allFailed = false
		}
	}
	if ran && allFailed && lastErr != nil {
		return nil, lastErr
	}
	return nil, reqErr
}

// wrapInterceptorError preserves a *RequestError an interceptor signaled
// deliberately; anything else is tagged as an interceptor rejection with the
// original error as cause.
func wrapInterceptorError(err error, cfg *RequestConfig) error {
	if re, ok := AsRequestError(err); ok {
		return re
	}
	return &RequestError{
		Kind:    ErrorKindInterceptor,
		Message: err.Error(),
		Config:  cfg,
		Cause:   err,
	}
}

// -----------------------------------------------------------------------------
// Stock interceptors
// -----------------------------------------------------------------------------

// HeaderXRequestID is the header stamped by NewRequestIDInterceptor.
const HeaderXRequestID = "X-Request-ID"

// NewRequestIDInterceptor returns an interceptor that adds an X-Request-ID
// header when none is present.
func NewRequestIDInterceptor() RequestInterceptor {
	return RequestInterceptor{
		OnRequest: func(cfg *RequestConfig) (*RequestConfig, error) {
			if cfg.Headers == nil {
				cfg.Headers = make(map[string]string)
			}
			if cfg.Headers[HeaderXRequestID] == "" {
				cfg.Headers[HeaderXRequestID] = uuid.New().String()
			}
			return cfg, nil
		},
	}
}

// NewLoggingInterceptor returns a request/response interceptor pair that logs
// outbound requests, completed responses, and chain failures through logger.
// Install both halves for full coverage; requests are silent otherwise.
func NewLoggingInterceptor(logger *golog.Logger) (RequestInterceptor, ResponseInterceptor) {
	req := RequestInterceptor{
		OnRequest: func(cfg *RequestConfig) (*RequestConfig, error) {
			if logger != nil {
				logger.Info("sending request",
					golog.String("method", cfg.Method),
					golog.String("url", cfg.URL))
			}
			return cfg, nil
		},
		OnError: func(err error) {
			if logger != nil {
				logger.Error("request interceptor failed",
					golog.String("error", err.Error()))
			}
		},
	}
	resp := ResponseInterceptor{
		OnResponse: func(r *Response) (*Response, error) {
			if logger != nil {
				logger.Info("request completed",
					golog.String("method", r.Config.Method),
					golog.String("url", r.Config.URL),
					golog.Int("status", r.StatusCode))
			}
			return r, nil
		},
		OnError: func(err error) (*Response, error) {
			if logger != nil {
				logger.Error("request failed",
					golog.String("error", err.Error()))
			}
			return nil, err
		},
	}
	return req, resp
}
