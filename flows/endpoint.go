package flows

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-whatsapp/core"
)

// Plaintext bodies the endpoint answers with when it cannot produce an
// encrypted response. The wording is part of the endpoint contract.
const (
	decryptionFailedBody   = "Decryption failed"
	constructionFailedBody = "Failed to construct FlowRequest"
	internalErrorBody      = "An error occurred"
)

// Handler processes one decrypted flow request and returns the response to
// seal back, or an error. A ResponseError controls the HTTP outcome; any
// other error yields the generic 500.
type Handler func(ctx context.Context, request *Request) (*Response, error)

// Endpoint is the encrypted flow endpoint: it unwraps each request with the
// business private key, routes it to the handler and seals the response
// under the request's session key. The session key lives only for the
// duration of one call and is never logged.
type Endpoint struct {
	PrivateKey *rsa.PrivateKey
	Handler    Handler
	// Decryptor and Encryptor override the default RSA-OAEP/AES-GCM
	// implementations, for businesses that keep key material in an HSM.
	Decryptor RequestDecryptor
	Encryptor ResponseEncryptor
	// HandleHealthCheck answers the platform's ping before the handler
	// sees it. AcknowledgeErrors does the same for client error reports.
	HandleHealthCheck bool
	AcknowledgeErrors bool
	Logger            core.Logger
	Endpoint          string
}

// Bind attaches the endpoint to the hosting mux as a POST route.
func (e *Endpoint) Bind(mux core.ServerMux) error {
	if mux == nil {
		return fmt.Errorf("flows: server mux is nil")
	}
	path := strings.TrimSpace(e.Endpoint)
	if path == "" {
		return fmt.Errorf("flows: endpoint path is required")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return mux.HandleFunc(http.MethodPost, path, func(body []byte, _ url.Values) (string, int) {
		return e.Handle(context.Background(), body)
	})
}

// Handle runs one endpoint call end to end and returns the body and status
// to write back.
func (e *Endpoint) Handle(ctx context.Context, body []byte) (string, int) {
	payload, aesKey, iv, ok := e.decrypt(ctx, body)
	if !ok {
		return decryptionFailedBody, StatusDecryptionFailed
	}

	var probe struct {
		Version string `json:"version"`
		Action  string `json:"action"`
	}
	_ = json.Unmarshal(payload, &probe)
	if e.HandleHealthCheck && probe.Action == ActionPing {
		return e.seal(ctx, map[string]any{
			"version": probe.Version,
			"data":    map[string]any{"status": "active"},
		}, aesKey, iv, http.StatusOK)
	}

	request, err := ParseRequest(payload)
	if err != nil {
		core.LogWith(ctx, e.Logger, "error", "failed to construct flow request", map[string]any{
			"endpoint": e.Endpoint,
			"error":    err.Error(),
		})
		return constructionFailedBody, http.StatusInternalServerError
	}

	response, err := e.invoke(ctx, request)
	if err != nil {
		return e.respondError(ctx, request, err, aesKey, iv)
	}

	if e.AcknowledgeErrors && request.HasError() {
		return e.seal(ctx, map[string]any{
			"version": request.Version,
			"data":    map[string]any{"acknowledged": true},
		}, aesKey, iv, http.StatusOK)
	}

	if response == nil {
		core.LogWith(ctx, e.Logger, "error", "flow handler returned no response", map[string]any{
			"endpoint": e.Endpoint,
			"action":   request.Action,
		})
		return internalErrorBody, http.StatusInternalServerError
	}
	return e.seal(ctx, response.Payload(), aesKey, iv, http.StatusOK)
}

func (e *Endpoint) decrypt(ctx context.Context, body []byte) ([]byte, []byte, []byte, bool) {
	var encrypted EncryptedRequest
	if err := json.Unmarshal(body, &encrypted); err != nil {
		core.LogWith(ctx, e.Logger, "error", "flow request decryption failed", map[string]any{
			"endpoint": e.Endpoint,
			"error":    err.Error(),
		})
		return nil, nil, nil, false
	}
	decryptor := e.Decryptor
	if decryptor == nil {
		decryptor = DecryptRequest
	}
	payload, aesKey, iv, err := decryptor(encrypted, e.PrivateKey)
	if err != nil {
		core.LogWith(ctx, e.Logger, "error", "flow request decryption failed", map[string]any{
			"endpoint": e.Endpoint,
			"error":    err.Error(),
		})
		return nil, nil, nil, false
	}
	return payload, aesKey, iv, true
}

// invoke isolates the handler: a panic becomes an error so the endpoint
// still answers the platform.
func (e *Endpoint) invoke(ctx context.Context, request *Request) (response *Response, err error) {
	if e.Handler == nil {
		return nil, fmt.Errorf("flows: no handler registered")
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("flows: handler panicked: %v", recovered)
		}
	}()
	return e.Handler(ctx, request)
}

func (e *Endpoint) respondError(ctx context.Context, request *Request, err error, aesKey []byte, iv []byte) (string, int) {
	var expired *TokenNoLongerValid
	if errors.As(err, &expired) {
		return e.seal(ctx, map[string]any{
			"error_msg": expired.ErrorMessage,
		}, aesKey, iv, expired.StatusCode())
	}
	var denied ResponseError
	if errors.As(err, &denied) {
		body := strings.TrimSpace(denied.ResponseBody())
		if body == "" {
			body = http.StatusText(denied.StatusCode())
		}
		return body, denied.StatusCode()
	}
	core.LogWith(ctx, e.Logger, "error", "flow handler failed", map[string]any{
		"endpoint": e.Endpoint,
		"action":   request.Action,
		"error":    err.Error(),
	})
	return internalErrorBody, http.StatusInternalServerError
}

func (e *Endpoint) seal(ctx context.Context, payload map[string]any, aesKey []byte, iv []byte, status int) (string, int) {
	data, err := json.Marshal(payload)
	if err != nil {
		core.LogWith(ctx, e.Logger, "error", "failed to encode flow response", map[string]any{
			"endpoint": e.Endpoint,
			"error":    err.Error(),
		})
		return internalErrorBody, http.StatusInternalServerError
	}
	encryptor := e.Encryptor
	if encryptor == nil {
		encryptor = EncryptResponse
	}
	sealed, err := encryptor(data, aesKey, iv)
	if err != nil {
		core.LogWith(ctx, e.Logger, "error", "failed to encrypt flow response", map[string]any{
			"endpoint": e.Endpoint,
			"error":    err.Error(),
		})
		return internalErrorBody, http.StatusInternalServerError
	}
	return sealed, status
}
