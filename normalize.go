package fetchwire

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// Response normalization
// -----------------------------------------------------------------------------

// Response is the normalized success envelope of a request. Data is nil for
// an empty body, a decoded value for JSON content types, and a string for
// everything else. Each call owns its envelope; envelopes are never shared
// across concurrent requests.
type Response struct {
	Data       any
	StatusCode int
	Headers    http.Header
	Config     *RequestConfig
}

// normalizeResponse converts a raw transport response into an envelope.
//
// Branching order matters: a body that fails to decode produces a parse-kind
// error regardless of status, while a decodable body on a non-2xx status
// produces an http-kind error that still carries the parsed payload.
func normalizeResponse(raw *TransportResponse, cfg *RequestConfig) (*Response, error) {
	var body []byte
	if raw.Body != nil {
		b, err := io.ReadAll(raw.Body)
		raw.Body.Close()
		if err != nil {
			return nil, &RequestError{
				Kind:    ErrorKindTransport,
				Message: "reading response body: " + err.Error(),
				Config:  cfg,
				Cause:   err,
			}
		}
		body = b
	}

	var data any
	empty := raw.Headers.Get("Content-Length") == "0" || len(body) == 0
	if !empty {
		if isJSONContentType(raw.Headers.Get("Content-Type")) {
			if err := json.Unmarshal(body, &data); err != nil {
				return nil, &RequestError{
					Kind:       ErrorKindParse,
					Message:    "invalid response format",
					StatusCode: raw.StatusCode,
					Config:     cfg,
					Cause:      err,
				}
			}
		} else {
			data = string(body)
		}
	}

	if raw.StatusCode < http.StatusOK || raw.StatusCode >= http.StatusMultipleChoices {
		return nil, &RequestError{
			Kind:       ErrorKindHTTP,
			Message:    "request failed with status " + strconv.Itoa(raw.StatusCode),
			StatusCode: raw.StatusCode,
			Data:       data,
			Config:     cfg,
		}
	}

	return &Response{
		Data:       data,
		StatusCode: raw.StatusCode,
		Headers:    raw.Headers,
		Config:     cfg,
	}, nil
}

// isJSONContentType matches application/json plus structured suffixes such as
// application/problem+json.
func isJSONContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mediaType = strings.TrimSpace(strings.ToLower(strings.Split(ct, ";")[0]))
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
