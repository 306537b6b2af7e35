package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const signaturePrefix = "sha256="

// SignatureVerifier checks the X-Hub-Signature-256 header the platform
// sends with every POST: an HMAC-SHA256 of the body under the app secret.
// The hosting HTTP layer owns headers, so it calls Verify before handing
// the body to the dispatcher.
type SignatureVerifier struct {
	Secret string
}

func (v SignatureVerifier) Verify(body []byte, header string) error {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("webhook: signature secret is required")
	}
	signature := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), signaturePrefix))
	if signature == "" {
		return fmt.Errorf("webhook: signature value is required")
	}
	decoded, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("webhook: decode hex signature: %w", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	if subtle.ConstantTimeCompare(decoded, mac.Sum(nil)) != 1 {
		return fmt.Errorf("webhook: signature verification failed")
	}
	return nil
}
