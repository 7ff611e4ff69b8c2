package fetchwire

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// -----------------------------------------------------------------------------
// Transport boundary
// -----------------------------------------------------------------------------

// CredentialsMode mirrors the fetch credentials semantics: whether ambient
// credentials (cookies) accompany the request.
type CredentialsMode string

const (
	CredentialsSameOrigin CredentialsMode = "same-origin"
	CredentialsInclude    CredentialsMode = "include"
	CredentialsOmit       CredentialsMode = "omit"
)

// TransportRequest is the provider-agnostic outbound shape handed to a
// Transport. Headers are flat key/value pairs; the abort signal is the
// context passed alongside.
type TransportRequest struct {
	Method      string
	URL         string
	Headers     map[string]string
	Body        []byte
	Credentials CredentialsMode
}

// TransportResponse is the raw inbound shape before normalization.
type TransportResponse struct {
	StatusCode int
	Headers    http.Header
	Body       io.ReadCloser
}

// Transport performs a single HTTP exchange. Implementations observe ctx
// cooperatively: when it is canceled the call resolves into an error as soon
// as possible. The client never retries inside a Transport; retry, timeout
// and interception all live above this boundary.
type Transport interface {
	Do(ctx context.Context, req *TransportRequest) (*TransportResponse, error)
}

// HTTPTransport is the default Transport backed by net/http.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps hc; a nil hc falls back to a plain http.Client.
// Timeouts are enforced by the caller's context, not by hc.Timeout.
func NewHTTPTransport(hc *http.Client) *HTTPTransport {
	if hc == nil {
		hc = &http.Client{}
	}
	return &HTTPTransport{client: hc}
}

func (t *HTTPTransport) Do(ctx context.Context, req *TransportRequest) (*TransportResponse, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	// Cookie handling beyond "omit" is the embedded client's concern (its
	// jar); omit strips any cookie supplied through default headers.
	if req.Credentials == CredentialsOmit {
		httpReq.Header.Del("Cookie")
	}
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	return &TransportResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       resp.Body,
	}, nil
}
