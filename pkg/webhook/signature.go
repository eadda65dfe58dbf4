package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// Sign computes the X-Hub-Signature-256 value of body, in the form "sha256=<hex>".
func Sign(body []byte, secret string) string {
	hash := hmac.New(sha256.New, []byte(secret))
	// hash.Hash never returns an error on Write
	_, _ = hash.Write(body)
	return signaturePrefix + hex.EncodeToString(hash.Sum(nil))
}

// Verify the X-Hub-Signature-256 signature of a GitHub webhook request.
// body must be the raw request body, before any decoding.
// The "sha256=" prefix of signature is optional. Malformed input is reported as a mismatch.
func VerifySignature(body []byte, signature string, secret string) bool {
	if len(body) == 0 || signature == "" || secret == "" {
		return false
	}

	expected := strings.TrimPrefix(Sign(body, secret), signaturePrefix)
	received := strings.TrimPrefix(signature, signaturePrefix)

	// ConstantTimeCompare only runs in constant time for equal lengths
	if len(expected) != len(received) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}
