package handlers

import (
	"io"
	"net/http"

	"github.com/eldtechnologies/sparkbot/internal/metrics"
)

// Integration handles outgoing integration deliveries, whose body is the full
// message. Anything that is not a valid message is acknowledged with 200 so
// the platform does not retry it.
func (h *Handler) Integration(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		metrics.DeliveriesTotal.WithLabelValues(ModeIntegration, "ignored").Inc()
		h.logger.Warn().Err(err).Msg("failed to read integration payload")
		h.Reply(w, http.StatusOK, "message format not supported")
		return
	}

	msg, err := decodeMessage(body)
	if err != nil {
		metrics.DeliveriesTotal.WithLabelValues(ModeIntegration, "ignored").Inc()
		h.logger.Info().Err(err).Msg("integration payload not supported")
		h.Reply(w, http.StatusOK, "message format not supported")
		return
	}

	metrics.DeliveriesTotal.WithLabelValues(ModeIntegration, "accepted").Inc()
	h.Reply(w, http.StatusOK, "message processed")
	h.dispatch(ModeIntegration, msg)
}
