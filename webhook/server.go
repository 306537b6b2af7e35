package webhook

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-whatsapp/core"
)

// BindRoutes attaches the verification handshake and the delivery intake to
// the hosting mux at the given endpoint. GET answers the challenge; POST
// acknowledges and detaches dispatch.
func BindRoutes(mux core.ServerMux, endpoint string, handshake Handshake, dispatcher *Dispatcher) error {
	if mux == nil {
		return webhookBadInput("webhook: server mux is nil", nil)
	}
	path := normalizeEndpoint(endpoint)

	if err := mux.HandleFunc(http.MethodGet, path, func(_ []byte, query url.Values) (string, int) {
		return handshake.Challenge(
			context.Background(),
			query.Get(QueryVerifyToken),
			query.Get(QueryChallenge),
		)
	}); err != nil {
		return webhookWrapError(
			err,
			goerrors.CategoryOperation,
			"webhook: bind verification route",
			http.StatusInternalServerError,
			core.ErrorInternal,
			map[string]any{"endpoint": path},
		)
	}

	if err := mux.HandleFunc(http.MethodPost, path, func(body []byte, _ url.Values) (string, int) {
		return dispatcher.Accept(context.Background(), body)
	}); err != nil {
		return webhookWrapError(
			err,
			goerrors.CategoryOperation,
			"webhook: bind delivery route",
			http.StatusInternalServerError,
			core.ErrorInternal,
			map[string]any{"endpoint": path},
		)
	}
	return nil
}

func normalizeEndpoint(endpoint string) string {
	path := strings.TrimSpace(endpoint)
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
