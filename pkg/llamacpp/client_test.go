package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClient(t *testing.T) {
	c, err := NewClient("")
	if err != nil {
		t.Fatal(err)
	}
	if c.baseURL != DefaultURL {
		t.Errorf("Expected default URL, got %s", c.baseURL)
	}

	c, _ = NewClient("http://host:9000/")
	if c.baseURL != "http://host:9000" {
		t.Errorf("Expected trailing slash trimmed, got %s", c.baseURL)
	}

	if _, err := NewClient("host:9000"); err == nil {
		t.Error("Expected error for URL without scheme")
	}
}

func TestQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "qwen2-vl" || len(req.Messages) != 1 {
			t.Errorf("Unexpected request %+v", req)
		}
		w.Write([]byte(`{"id":"1","choices":[{"index":0,"message":{"role":"assistant","content":"boxes here"}}]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	answer, err := c.Query(context.Background(), "qwen2-vl", "find", "aGVsbG8=")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if answer != "boxes here" {
		t.Errorf("Unexpected answer %q", answer)
	}
}

func TestQueryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	_, err := c.Query(context.Background(), "m", "p", "")
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("Expected status 503 error, got %v", err)
	}
}

func TestQueryNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	if _, err := c.Query(context.Background(), "m", "p", ""); err == nil {
		t.Error("Expected error for empty choices")
	}
}

func TestMessageText(t *testing.T) {
	tests := []struct {
		content  any
		expected string
	}{
		{"plain", "plain"},
		{[]any{map[string]any{"type": "text", "text": "part"}}, "part"},
		{[]any{map[string]any{"type": "image_url"}}, ""},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := messageText(tt.content); got != tt.expected {
			t.Errorf("messageText(%v) = %q, expected %q", tt.content, got, tt.expected)
		}
	}
}
