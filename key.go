package fetchwire

import (
	"fmt"
	neturl "net/url"
	"sort"
	"strings"
)

// -----------------------------------------------------------------------------
// Request keys & query serialization
// -----------------------------------------------------------------------------

// buildRequestKey derives the stable identity string for a request from its
// method, fully resolved URL, credentials mode, and serialized body. Equal
// tuples always produce equal keys; the encoding is a plain join, so the key
// is also human-readable in logs.
func buildRequestKey(method, url string, credentials CredentialsMode, body []byte) string {
	return method + ":" + url + ":" + string(credentials) + ":" + string(body)
}

// appendQuery serializes params onto url. Parameters whose value is nil, or
// whose string form is blank after trimming, are omitted. Keys are sorted so
// the result is deterministic. The separator is "&" when the URL already
// carries a query string, "?" otherwise.
func appendQuery(url string, params map[string]any) string {
	if len(params) == 0 {
		return url
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v := params[k]
		if v == nil {
			continue
		}
		s := fmt.Sprint(v)
		if strings.TrimSpace(s) == "" {
			continue
		}
		pairs = append(pairs, queryEscape(k)+"="+queryEscape(s))
	}
	if len(pairs) == 0 {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + strings.Join(pairs, "&")
}

// queryEscape percent-encodes a query component, using %20 for spaces rather
// than the form-encoding "+".
func queryEscape(s string) string {
	return strings.ReplaceAll(neturl.QueryEscape(s), "+", "%20")
}
