package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/sparkbot/internal/config"
	"github.com/eldtechnologies/sparkbot/internal/handlers"
	"github.com/eldtechnologies/sparkbot/internal/models"
	"github.com/eldtechnologies/sparkbot/internal/ratelimit"
	"github.com/eldtechnologies/sparkbot/internal/signature"
	"github.com/eldtechnologies/sparkbot/internal/spark"
)

const messageJSON = `{"id":"m1","roomId":"r1","personId":"p1","personEmail":"alice@example.com","text":"hello","created":"2016-04-21T19:01:55.966Z"}`

const triggerJSON = `{"id":"w1","name":"hook","resource":"messages","event":"created","data":{"id":"m1"}}`

type testServer struct {
	router   http.Handler
	handler  *handlers.Handler
	messages chan *models.Message
}

// newTestServer wires the router against a fake platform API.
func newTestServer(t *testing.T, cfg *config.Config, limiter ratelimit.Limiter) *testServer {
	t.Helper()

	platform := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages/m1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(messageJSON))
	}))
	t.Cleanup(platform.Close)

	cfg.APIURL = platform.URL
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	var fetcher handlers.MessageFetcher
	if cfg.WebhookURI != "" {
		fetcher = spark.NewClient(cfg.APIURL, cfg.Token, time.Second)
	}

	h := handlers.NewHandler(zerolog.Nop(), fetcher, handlers.Options{
		WebhookURI:     cfg.WebhookURI,
		IntegrationURI: cfg.IntegrationURI,
	})
	messages := make(chan *models.Message, 8)
	if err := h.OnMessage(func(ctx context.Context, msg *models.Message) { messages <- msg }); err != nil {
		t.Fatal(err)
	}

	return &testServer{
		router:   NewRouter(zerolog.Nop(), cfg, h, limiter),
		handler:  h,
		messages: messages,
	}
}

func (s *testServer) do(method, path, body string, header http.Header) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) delivered(t *testing.T) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.handler.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	return len(s.messages)
}

func TestRouterBothModes(t *testing.T) {
	s := newTestServer(t, &config.Config{
		WebhookURI:     "/webhook",
		IntegrationURI: "/integration",
		Token:          "token",
		MetricsURI:     "/metrics",
	}, nil)

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/ping", "", http.StatusOK},
		{http.MethodGet, "/webhook", "", http.StatusBadRequest},
		{http.MethodGet, "/integration", "", http.StatusBadRequest},
		{http.MethodPost, "/webhook", triggerJSON, http.StatusOK},
		{http.MethodPost, "/integration", messageJSON, http.StatusOK},
		{http.MethodPost, "/webhook", `{"resource":"messages","event":"deleted","data":{"id":"m1"}}`, http.StatusInternalServerError},
		{http.MethodPost, "/webhook", `{"resource":"messages","event":"created","data":{"id":"unknown"}}`, http.StatusInternalServerError},
		{http.MethodPost, "/integration", `{"id":"m1"}`, http.StatusOK},
	}

	for _, tt := range tests {
		rec := s.do(tt.method, tt.path, tt.body, nil)
		if rec.Code != tt.want {
			t.Fatalf("%s %s %s: expected %d, got %d: %s", tt.method, tt.path, tt.body, tt.want, rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("%s %s: expected JSON response, got %q", tt.method, tt.path, ct)
		}
	}

	if n := s.delivered(t); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}

	rec := s.do(http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "sparkbot_deliveries_total") {
		t.Fatalf("expected metrics exposition, got %d", rec.Code)
	}
}

func TestRouterDefaultIntegrationRoute(t *testing.T) {
	s := newTestServer(t, &config.Config{}, nil)

	if rec := s.do(http.MethodPost, "/", messageJSON, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on default integration route, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/webhook", triggerJSON, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("webhook route should not exist, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/ping", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", rec.Code)
	}
	if n := s.delivered(t); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
}

func TestRouterFreezesListener(t *testing.T) {
	s := newTestServer(t, &config.Config{}, nil)

	err := s.handler.OnMessage(func(context.Context, *models.Message) {})
	if err == nil {
		t.Fatal("registration after the router is built should fail")
	}
}

func TestRouterSignedWebhook(t *testing.T) {
	secret := "s3cr3t"
	s := newTestServer(t, &config.Config{
		WebhookURI: "/webhook",
		Token:      "token",
		Secret:     secret,
	}, nil)

	rec := s.do(http.MethodPost, "/webhook", triggerJSON, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unsigned delivery, got %d", rec.Code)
	}

	bad := http.Header{}
	bad.Set(signature.Header, signature.Sign([]byte("wrong"), []byte(triggerJSON)))
	if rec := s.do(http.MethodPost, "/webhook", triggerJSON, bad); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong signature, got %d", rec.Code)
	}

	if n := s.delivered(t); n != 0 {
		t.Fatalf("expected no deliveries, got %d", n)
	}

	good := http.Header{}
	good.Set(signature.Header, signature.Sign([]byte(secret), []byte(triggerJSON)))
	if rec := s.do(http.MethodPost, "/webhook", triggerJSON, good); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for signed delivery, got %d: %s", rec.Code, rec.Body.String())
	}

	// GET is answered without a signature
	if rec := s.do(http.MethodGet, "/webhook", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for GET, got %d", rec.Code)
	}

	if n := s.delivered(t); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
}

func TestRouterRateLimit(t *testing.T) {
	s := newTestServer(t, &config.Config{IntegrationURI: "/integration"}, ratelimit.NewMemoryLimiter(0.001, 2))

	for i := 0; i < 2; i++ {
		if rec := s.do(http.MethodPost, "/integration", messageJSON, nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := s.do(http.MethodPost, "/integration", messageJSON, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	// Health is never limited
	for i := 0; i < 3; i++ {
		if rec := s.do(http.MethodGet, "/ping", "", nil); rec.Code != http.StatusOK {
			t.Fatalf("health request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	if n := s.delivered(t); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
}

func TestRouterBodyLimit(t *testing.T) {
	s := newTestServer(t, &config.Config{
		WebhookURI:     "/webhook",
		IntegrationURI: "/integration",
		Token:          "token",
		MaxBodyBytes:   16,
	}, nil)

	// Oversized integration bodies are acknowledged like any unsupported message.
	rec := s.do(http.MethodPost, "/integration", messageJSON, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("integration: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "format not supported") {
		t.Fatalf("integration: expected format not supported, got %s", rec.Body.String())
	}

	rec = s.do(http.MethodPost, "/webhook", triggerJSON, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("webhook: expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "malformed payload") {
		t.Fatalf("webhook: expected malformed payload, got %s", rec.Body.String())
	}

	if n := s.delivered(t); n != 0 {
		t.Fatalf("expected no deliveries, got %d", n)
	}
}

func TestRouterCORS(t *testing.T) {
	s := newTestServer(t, &config.Config{CORSOrigins: []string{"https://dashboard.example.com"}}, nil)

	h := http.Header{}
	h.Set("Origin", "https://dashboard.example.com")
	rec := s.do(http.MethodGet, "/ping", "", h)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dashboard.example.com" {
		t.Fatalf("expected CORS header, got %q", got)
	}
}
