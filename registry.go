package fetchwire

import "context"

// -----------------------------------------------------------------------------
// Cancellation registry
// -----------------------------------------------------------------------------

// The registry maps request keys to the cancel handle of the in-flight
// attempt. It is instance-scoped: two clients never see each other's
// in-flight requests.
//
// A later request with an identical key overwrites the entry, orphaning the
// earlier handle's cancel-by-key capability. That last-writer-wins behavior
// is deliberate and documented; callers that need per-call cancellation of
// identical requests should disambiguate through the request (e.g. a
// distinct header folded into the key via an interceptor).

// register records cancel under key, replacing any existing entry without
// aborting it.
func (c *Client) register(key string, cancel context.CancelCauseFunc) {
	c.mu.Lock()
	c.inflight[key] = cancel
	c.mu.Unlock()
}

// unregister drops whatever entry currently holds key. Idempotent.
func (c *Client) unregister(key string) {
	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
}

// CancelRequest aborts the in-flight request registered under key and removes
// its entry. Unknown keys are a no-op; repeated calls are safe.
func (c *Client) CancelRequest(key string) {
	c.mu.Lock()
	cancel, ok := c.inflight[key]
	if ok {
		delete(c.inflight, key)
	}
	c.mu.Unlock()
	if ok {
		cancel(ErrCanceled)
	}
}

// CancelAllRequests aborts and removes every registered in-flight request.
func (c *Client) CancelAllRequests() {
	c.mu.Lock()
	cancels := make([]context.CancelCauseFunc, 0, len(c.inflight))
	for key, cancel := range c.inflight {
		cancels = append(cancels, cancel)
		delete(c.inflight, key)
	}
	c.mu.Unlock()
	for _, cancel := range cancels {
		cancel(ErrCanceled)
	}
}
