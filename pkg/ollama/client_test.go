package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient("not a url"); err == nil {
		t.Error("Expected error for URL without scheme and host")
	}
	if _, err := NewClient(""); err != nil {
		t.Errorf("Empty URL should use the default: %v", err)
	}
}

func TestQuery(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llava","message":{"role":"assistant","content":"{\"objects\":[]}"},"done":true}` + "\n"))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL + "/api/chat")
	if err != nil {
		t.Fatal(err)
	}

	img := base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff})
	answer, err := c.Query(context.Background(), "llava", "find boxes", img)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if answer != `{"objects":[]}` {
		t.Errorf("Unexpected answer %q", answer)
	}
	if got["model"] != "llava" {
		t.Errorf("Expected model llava in request, got %v", got["model"])
	}
}

func TestQueryBadBase64(t *testing.T) {
	c, _ := NewClient(DefaultURL)
	if _, err := c.Query(context.Background(), "m", "p", "%%%"); err == nil {
		t.Error("Expected base64 decode error")
	}
}

func TestQueryEmptyAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"m","message":{"role":"assistant","content":""},"done":true}` + "\n"))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	if _, err := c.Query(context.Background(), "m", "p", ""); err == nil {
		t.Error("Expected error for empty answer")
	}
}

func TestModelOptions(t *testing.T) {
	if _, ok := modelOptions("llava:7b")["num_ctx"]; ok {
		t.Error("num_ctx should only be set for MiniCPM-V 4")
	}
	if modelOptions("openbmb/minicpm-v4.5")["num_ctx"] != 4096 {
		t.Error("Expected num_ctx 4096 for MiniCPM-V 4.5")
	}
}
