package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// ValidSignature checks the X-Hub-Signature-256 header against an HMAC-SHA256
// of the raw request body. The raw bytes must be used as received; a
// re-serialized body is not guaranteed to reproduce the original sequence.
// Comparison is constant-time. Missing or malformed headers fail closed.
func ValidSignature(appSecret string, body []byte, header string) bool {
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	got := strings.TrimPrefix(header, signaturePrefix)

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(want), []byte(got))
}
