package spark

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/v1/messages/m1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"m1","text":"hi"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret-token", time.Second)
	body, err := c.GetMessage(context.Background(), "m1")
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"id":"m1","text":"hi"}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestGetMessageBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"The requested resource could not be found.","trackingId":"T1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token", time.Second)
	_, err := c.GetMessage(context.Background(), "missing")
	if !IsStatusError(err) {
		t.Fatalf("expected StatusError, got %v", err)
	}

	var se *StatusError
	errors.As(err, &se)
	if se.StatusCode != http.StatusNotFound || se.TrackingID != "T1" {
		t.Fatalf("unexpected status error %+v", se)
	}
}

func TestGetMessageTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, "token", time.Second)
	_, err := c.GetMessage(context.Background(), "m1")
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if IsStatusError(err) {
		t.Fatal("transport failure must not be reported as a status error")
	}
}

func TestGetMessageWithoutToken(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", time.Second)
	if _, err := c.GetMessage(context.Background(), "m1"); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("", "token", 0)
	if c.BaseURL != DefaultBaseURL {
		t.Fatalf("expected default base URL, got %s", c.BaseURL)
	}
	if c.HTTPClient.Timeout != 30*time.Second {
		t.Fatalf("expected default timeout, got %s", c.HTTPClient.Timeout)
	}
}
