package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/eldtechnologies/sparkbot/internal/metrics"
	"github.com/eldtechnologies/sparkbot/internal/models"
	"github.com/eldtechnologies/sparkbot/internal/spark"
)

// Webhook handles REST webhook deliveries. Only messages/created triggers are
// acted on: the referenced message is fetched from the platform and, if it is
// a well-formed message, handed to the listener after the response is sent.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		metrics.DeliveriesTotal.WithLabelValues(ModeWebhook, "malformed").Inc()
		h.logger.Warn().Err(err).Msg("failed to read webhook payload")
		h.Error(w, http.StatusBadRequest, "malformed payload: body could not be read")
		return
	}

	var trigger models.Trigger
	if err := json.Unmarshal(body, &trigger); err != nil {
		metrics.DeliveriesTotal.WithLabelValues(ModeWebhook, "malformed").Inc()
		h.Error(w, http.StatusBadRequest, "malformed payload: body is not valid JSON")
		return
	}

	// Envelopes without these fields come from an unexpected API version.
	if trigger.Data == nil || trigger.Resource == "" || trigger.Event == "" {
		metrics.DeliveriesTotal.WithLabelValues(ModeWebhook, "malformed").Inc()
		h.Error(w, http.StatusBadRequest, "unexpected payload: data, resource and event are required, check the platform API version")
		return
	}

	if trigger.Resource == models.ResourceMessages && trigger.Event == models.EventCreated {
		h.processMessageCreated(w, r, &trigger)
		return
	}

	metrics.DeliveriesTotal.WithLabelValues(ModeWebhook, "unsupported").Inc()
	h.logger.Info().
		Str("webhook", trigger.Name).
		Str("kind", trigger.Kind()).
		Msg("resource/event not supported")
	h.Error(w, http.StatusInternalServerError, "resource/event not supported")
}

func (h *Handler) processMessageCreated(w http.ResponseWriter, r *http.Request, trigger *models.Trigger) {
	logger := h.logger.With().
		Str("webhook", trigger.Name).
		Str("trigger_id", trigger.ID).
		Str("kind", trigger.Kind()).
		Logger()

	// A trigger lacking its webhook identity is still usable if it references a message.
	if err := trigger.Validate(); err != nil {
		logger.Debug().Err(err).Msg("incomplete trigger envelope")
	}

	messageID := trigger.MessageID()
	if messageID == "" || h.fetcher == nil {
		metrics.DeliveriesTotal.WithLabelValues(ModeWebhook, "enrichment_failed").Inc()
		logger.Warn().Msg("trigger does not reference a message id")
		h.Error(w, http.StatusInternalServerError, "could not retrieve message contents")
		return
	}

	start := time.Now()
	body, err := h.fetcher.GetMessage(r.Context(), messageID)
	if err != nil {
		metrics.DeliveriesTotal.WithLabelValues(ModeWebhook, "enrichment_failed").Inc()
		if spark.IsStatusError(err) {
			metrics.EnrichmentDuration.WithLabelValues("bad_status").Observe(time.Since(start).Seconds())
			logger.Error().Err(err).Str("message_id", messageID).Msg("bad response retrieving message")
			h.Error(w, http.StatusInternalServerError, "bad response retrieving message")
			return
		}
		metrics.EnrichmentDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		logger.Error().Err(err).Str("message_id", messageID).Msg("could not retrieve message")
		h.Error(w, http.StatusInternalServerError, "could not retrieve message")
		return
	}
	metrics.EnrichmentDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	// Unsupported content is acknowledged so the platform does not redeliver it.
	msg, err := decodeMessage(body)
	if err != nil {
		metrics.DeliveriesTotal.WithLabelValues(ModeWebhook, "ignored").Inc()
		logger.Info().Err(err).Str("message_id", messageID).Msg("retrieved message not supported, nothing to process")
		h.Reply(w, http.StatusOK, "message format not supported, nothing to process")
		return
	}

	metrics.DeliveriesTotal.WithLabelValues(ModeWebhook, "accepted").Inc()
	h.Reply(w, http.StatusOK, "message received, processing")
	h.dispatch(ModeWebhook, msg)
}

// decodeMessage parses and validates a message body.
func decodeMessage(body []byte) (*models.Message, error) {
	var msg models.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
