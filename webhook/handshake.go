package webhook

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/goliatone/go-whatsapp/core"
)

// Query parameter names the platform uses for the verification challenge.
const (
	QueryVerifyToken = "hub.verify_token"
	QueryChallenge   = "hub.challenge"
)

const challengeRejectedBody = "Error, invalid verification token"

// Handshake answers the platform's GET challenge proving the endpoint owns
// the shared verify token. Stateless and synchronous; it must resolve well
// inside the platform's verification timeout.
type Handshake struct {
	VerifyToken string
	Logger      core.Logger
	Endpoint    string
}

// Challenge echoes the challenge string when the received token matches,
// and rejects with 403 otherwise.
func (h Handshake) Challenge(ctx context.Context, verifyToken string, challenge string) (string, int) {
	if subtle.ConstantTimeCompare([]byte(verifyToken), []byte(h.VerifyToken)) == 1 {
		core.LogWith(ctx, h.Logger, "info", "webhook passed the verification challenge", map[string]any{
			"endpoint": h.Endpoint,
		})
		return challenge, http.StatusOK
	}
	core.LogWith(ctx, h.Logger, "error", "webhook failed the verification challenge", map[string]any{
		"endpoint": h.Endpoint,
	})
	return challengeRejectedBody, http.StatusForbidden
}
