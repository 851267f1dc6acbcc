package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/sparkbot/internal/metrics"
	"github.com/eldtechnologies/sparkbot/internal/signature"
)

// VerifySignature rejects deliveries whose X-Spark-Signature does not match
// the HMAC of the body under secret. Only POST requests are checked.
func VerifySignature(secret []byte, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				jsonError(w, http.StatusBadRequest, "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body)) // Reset for handler

			if err := signature.Verify(secret, body, r.Header.Get(signature.Header)); err != nil {
				metrics.SignatureFailures.Inc()
				logger.Warn().
					Str("type", "security").
					Str("event", "signature_rejected").
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Err(err).
					Msg("webhook signature rejected")
				jsonError(w, http.StatusUnauthorized, err.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
