package fetchwire

import (
	"strings"
	"testing"
)

func TestRequestKeyDeterminism(t *testing.T) {
	c := New(WithBaseURL("/api"))

	opts := &RequestOptions{
		Method: "POST",
		Body:   []byte(`{"a":1}`),
		Params: map[string]any{"q": "x"},
	}
	k1 := c.RequestKey("/users", opts)
	k2 := c.RequestKey("/users", opts)
	if k1 != k2 {
		t.Fatalf("equal tuples must produce equal keys: %q vs %q", k1, k2)
	}

	variants := []*RequestOptions{
		{Method: "PUT", Body: []byte(`{"a":1}`), Params: map[string]any{"q": "x"}},
		{Method: "POST", Body: []byte(`{"a":2}`), Params: map[string]any{"q": "x"}},
		{Method: "POST", Body: []byte(`{"a":1}`), Params: map[string]any{"q": "y"}},
		{Method: "POST", Body: []byte(`{"a":1}`), Params: map[string]any{"q": "x"}, Credentials: CredentialsInclude},
	}
	for i, v := range variants {
		if got := c.RequestKey("/users", v); got == k1 {
			t.Fatalf("variant %d collided with base key %q", i, got)
		}
	}
}

func TestRequestKeyDefaultsMethodToGet(t *testing.T) {
	c := New()
	key := c.RequestKey("/things", nil)
	if !strings.HasPrefix(key, "GET:") {
		t.Fatalf("expected GET-prefixed key, got %q", key)
	}
}

func TestAppendQuerySkipsBlankParams(t *testing.T) {
	got := appendQuery("/api/users", map[string]any{
		"q":     "a b",
		"empty": "",
		"blank": "   ",
		"nada":  nil,
	})
	if got != "/api/users?q=a%20b" {
		t.Fatalf("unexpected query serialization: %q", got)
	}
}

func TestAppendQueryRespectsExistingQuery(t *testing.T) {
	got := appendQuery("/api/users?page=1", map[string]any{"q": "x"})
	if got != "/api/users?page=1&q=x" {
		t.Fatalf("expected ampersand join, got %q", got)
	}
}

func TestAppendQueryEncodesScalars(t *testing.T) {
	got := appendQuery("/search", map[string]any{
		"limit":  25,
		"active": true,
		"tag":    "a&b",
	})
	if got != "/search?active=true&limit=25&tag=a%26b" {
		t.Fatalf("unexpected encoding: %q", got)
	}
}

func TestAppendQueryNoParams(t *testing.T) {
	if got := appendQuery("/plain", nil); got != "/plain" {
		t.Fatalf("expected URL unchanged, got %q", got)
	}
	if got := appendQuery("/plain", map[string]any{"empty": ""}); got != "/plain" {
		t.Fatalf("expected URL unchanged when all params are skipped, got %q", got)
	}
}
