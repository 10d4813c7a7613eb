package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignaturePrefix precedes the hex digest in the signature header.
const SignaturePrefix = "sha256="

var ErrSignatureMismatch = errors.New("webhook signature mismatch")

// Sign returns the lowercase hex HMAC-SHA256 of body keyed by secret.
func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// SignatureHeader is the full header value, "sha256=<hex>".
func SignatureHeader(secret string, body []byte) string {
	return SignaturePrefix + Sign(secret, body)
}

// Verify checks a received signature header against body. Receivers can use it as-is.
func Verify(secret string, body []byte, header string) error {
	got, ok := strings.CutPrefix(header, SignaturePrefix)
	if !ok {
		return ErrSignatureMismatch
	}
	if !hmac.Equal([]byte(Sign(secret, body)), []byte(got)) {
		return ErrSignatureMismatch
	}
	return nil
}
