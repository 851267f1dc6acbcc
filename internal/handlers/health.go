package handlers

import (
	"net/http"
	"time"
)

const version = "0.2.0"

// ModeStatus describes one inbound mode in the health payload.
type ModeStatus struct {
	Enabled bool   `json:"enabled"`
	URI     string `json:"uri,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Message    string                `json:"message"`
	Version    string                `json:"version"`
	Instance   string                `json:"instance"`
	Since      string                `json:"since"` // process start, RFC 3339
	Uptime     string                `json:"uptime"`
	Modes      map[string]ModeStatus `json:"modes"`
	Processing []string              `json:"processing"` // resource/event pairs handled
	Listener   bool                  `json:"listener"`
	Timestamp  string                `json:"timestamp"`
}

// processedEvents lists the resource/event pairs the webhook mode acts on.
var processedEvents = []string{"messages/created"}

// Health handles the health check endpoint. It always answers 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()

	resp := HealthResponse{
		Message:  "Congrats, your bot is up and running",
		Version:  version,
		Instance: h.instance.String(),
		Since:    h.started.Format(time.RFC3339),
		Uptime:   now.Sub(h.started).Truncate(time.Second).String(),
		Modes: map[string]ModeStatus{
			ModeWebhook:     {Enabled: h.opts.WebhookURI != "", URI: h.opts.WebhookURI},
			ModeIntegration: {Enabled: h.opts.IntegrationURI != "", URI: h.opts.IntegrationURI},
		},
		Processing: processedEvents,
		Listener:   h.listener != nil,
		Timestamp:  now.Format(time.RFC3339),
	}

	h.JSON(w, http.StatusOK, resp)
}
