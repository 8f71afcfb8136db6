package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	syncerrors "github.com/ink-market-sync/internal/errors"
	"github.com/ink-market-sync/internal/retry"
)

func testRetryConfig() *retry.Config {
	return &retry.Config{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"value":42}`))
	}))
	defer server.Close()

	client := New(testRetryConfig())
	var out struct {
		Value int `json:"value"`
	}
	if err := client.GetJSON(context.Background(), server.URL, nil, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if out.Value != 42 {
		t.Errorf("Value = %d, want 42", out.Value)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestGetJSONParseErrorIsFatal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"broken`))
	}))
	defer server.Close()

	client := New(testRetryConfig())
	var out map[string]interface{}
	err := client.GetJSON(context.Background(), server.URL, nil, &out)

	if syncerrors.CategoryOf(err) != syncerrors.CategoryParse {
		t.Errorf("category = %s, want parse", syncerrors.CategoryOf(err))
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on parse error)", calls.Load())
	}
}

func TestGetJSONClassifiesEntitlementDenied(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"status":{"error_message":"plan does not permit this endpoint"}}`))
	}))
	defer server.Close()

	client := New(testRetryConfig())
	err := client.GetJSON(context.Background(), server.URL, nil, nil)

	if !syncerrors.IsEntitlementDenied(err) {
		t.Errorf("expected entitlement error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 403)", calls.Load())
	}
}

func TestGetJSONClassifiesRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(testRetryConfig())
	err := client.GetJSON(context.Background(), server.URL, nil, nil)

	if !syncerrors.IsRateLimited(err) {
		t.Errorf("expected rate limit error, got %v", err)
	}
}

func TestGetJSONExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(testRetryConfig())
	if err := client.GetJSON(context.Background(), server.URL, nil, nil); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3 (1 + 2 retries)", calls.Load())
	}
}

func TestPostJSONSendsHeadersAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("X-Test-Key"); got != "secret" {
			t.Errorf("X-Test-Key = %q, want secret", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := New(testRetryConfig())
	var out struct {
		OK bool `json:"ok"`
	}
	err := client.PostJSON(context.Background(), server.URL,
		map[string]string{"X-Test-Key": "secret"},
		map[string]interface{}{"addresses": []string{"0xabc"}},
		&out)

	if err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if !out.OK {
		t.Error("expected ok response")
	}
}

func TestGetJSONEmptyBodyIsAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := New(testRetryConfig())
	var out map[string]interface{}
	if err := client.GetJSON(context.Background(), server.URL, nil, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
}
