package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/sparkbot/internal/metrics"
	"github.com/eldtechnologies/sparkbot/internal/models"
)

// Inbound modes, used in logs, metrics and the health payload.
const (
	ModeWebhook     = "webhook"
	ModeIntegration = "integration"
)

var (
	ErrListenerRegistered = errors.New("a message listener is already registered")
	ErrListenerNil        = errors.New("message listener is nil")
	ErrFrozen             = errors.New("handler is already serving; listeners must be registered before the router is built")
)

// Listener is invoked once per valid inbound message. It runs after the
// HTTP response has been sent; its outcome is not observed.
type Listener func(ctx context.Context, msg *models.Message)

// MessageFetcher retrieves the raw JSON of a message by id.
type MessageFetcher interface {
	GetMessage(ctx context.Context, id string) ([]byte, error)
}

// Options selects which inbound modes are served and where.
type Options struct {
	WebhookURI     string
	IntegrationURI string
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	fetcher  MessageFetcher
	logger   zerolog.Logger
	opts     Options
	started  time.Time
	instance uuid.UUID

	// listener is written once before Freeze and only read afterwards.
	listener Listener
	frozen   bool

	inflight sync.WaitGroup
}

// NewHandler creates a new Handler. fetcher may be nil when the REST webhook
// mode is not served.
func NewHandler(logger zerolog.Logger, fetcher MessageFetcher, opts Options) *Handler {
	return &Handler{
		fetcher:  fetcher,
		logger:   logger,
		opts:     opts,
		started:  time.Now().UTC(),
		instance: uuid.New(),
	}
}

// OnMessage registers the single message listener.
func (h *Handler) OnMessage(fn Listener) error {
	if fn == nil {
		return ErrListenerNil
	}
	if h.frozen {
		return ErrFrozen
	}
	if h.listener != nil {
		return ErrListenerRegistered
	}
	h.listener = fn
	return nil
}

// Freeze prevents further listener registration. The router calls it once
// routes are mounted.
func (h *Handler) Freeze() {
	h.frozen = true
}

// Wait blocks until in-flight listener calls return or ctx is done.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch hands msg to the listener on its own goroutine so the caller's
// response is never held up by it.
func (h *Handler) dispatch(mode string, msg *models.Message) {
	listener := h.listener
	if listener == nil {
		h.logger.Warn().
			Str("mode", mode).
			Str("message_id", msg.ID).
			Msg("no message listener registered, dropping message")
		return
	}

	deliveryID := ulid.Make().String()
	logger := h.logger.With().
		Str("mode", mode).
		Str("delivery_id", deliveryID).
		Str("message_id", msg.ID).
		Logger()

	h.inflight.Add(1)
	metrics.CallbacksInFlight.Inc()

	go func() {
		defer h.inflight.Done()
		defer metrics.CallbacksInFlight.Dec()
		defer func() {
			if rec := recover(); rec != nil {
				metrics.CallbacksTotal.WithLabelValues("panic").Inc()
				logger.Error().Interface("panic", rec).Msg("message listener panicked")
			}
		}()

		ctx := WithDeliveryID(context.Background(), deliveryID)
		ctx = logger.WithContext(ctx)

		start := time.Now()
		listener(ctx, msg)

		metrics.CallbacksTotal.WithLabelValues("ok").Inc()
		logger.Debug().Dur("latency", time.Since(start)).Msg("message listener returned")
	}()
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// Reply sends a JSON informational response with the given status code.
func (h *Handler) Reply(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"message": message})
}

// PostRequired answers non-POST requests on the inbound routes.
func (h *Handler) PostRequired(w http.ResponseWriter, r *http.Request) {
	h.Error(w, http.StatusBadRequest, "bad request: this endpoint only accepts POST requests")
}

type deliveryIDKey struct{}

// WithDeliveryID returns a context carrying the delivery id.
func WithDeliveryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, deliveryIDKey{}, id)
}

// DeliveryIDFromContext returns the id of the delivery a listener is handling.
func DeliveryIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(deliveryIDKey{}).(string)
	return id
}
