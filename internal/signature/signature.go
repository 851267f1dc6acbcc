// Package signature computes and verifies webhook delivery signatures.
//
// The platform signs each webhook delivery with the secret registered on the
// webhook: the X-Spark-Signature header carries the lowercase hex HMAC-SHA1
// of the raw request body.
package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
)

// Header is the request header carrying the delivery signature.
const Header = "X-Spark-Signature"

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Sign returns the hex-encoded HMAC-SHA1 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha1.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks sig against the signature of body under secret.
func Verify(secret, body []byte, sig string) error {
	if sig == "" {
		return ErrMissingSignature
	}

	expected, err := hex.DecodeString(sig)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha1.New, secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), expected) {
		return ErrInvalidSignature
	}

	return nil
}
