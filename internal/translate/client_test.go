package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, "test-key", "test-model", 2*time.Second)
}

func okBody(content string) []byte {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return b
}

func TestClient_Translate(t *testing.T) {
	var calls atomic.Int64
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected /chat/completions, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer auth header, got %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("expected model test-model, got %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[1].Content != "Hello" {
			t.Errorf("expected system+user messages with the source text, got %+v", req.Messages)
		}
		w.Write(okBody("  Hallo  "))
	})

	got, err := c.Translate(context.Background(), "Hello", "English", "German")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hallo" {
		t.Errorf("expected trimmed translation %q, got %q", "Hallo", got)
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly one outbound request, got %d", calls.Load())
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, `{}`, KindAuth},
		{"forbidden", http.StatusForbidden, `{}`, KindAuth},
		{"rate limited", http.StatusTooManyRequests, `slow down`, KindRateLimit},
		{"payment required", http.StatusPaymentRequired, `no credits`, KindServer},
		{"internal error", http.StatusInternalServerError, `boom`, KindServer},
		{"garbage body", http.StatusOK, `not json at all`, KindServer},
		{"empty choices", http.StatusOK, `{"choices":[]}`, KindServer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})
			_, err := c.Translate(context.Background(), "x", "", "German")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.Kind != tc.wantKind {
				t.Errorf("expected kind %q, got %q (%v)", tc.wantKind, apiErr.Kind, err)
			}
		})
	}
}

func TestClient_MissingKeyIsAuthError(t *testing.T) {
	c := NewClient("http://localhost:0", "", "", time.Second)
	_, err := c.Translate(context.Background(), "x", "", "German")
	if !IsAuth(err) {
		t.Fatalf("expected auth error for missing key, got %v", err)
	}
}

func TestClient_TimeoutIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write(okBody("late"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "", 50*time.Millisecond)
	_, err := c.Translate(context.Background(), "x", "", "German")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Kind != KindNetwork {
		t.Errorf("expected network error on timeout, got %q", apiErr.Kind)
	}
	if !IsRetryable(err) {
		t.Error("expected timeout to be retryable")
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(&APIError{Kind: KindAuth}) {
		t.Error("auth errors must not be retryable")
	}
	for _, k := range []ErrorKind{KindRateLimit, KindServer, KindNetwork} {
		if !IsRetryable(&APIError{Kind: k}) {
			t.Errorf("expected %q to be retryable", k)
		}
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("unclassified errors must not be retryable")
	}
}
