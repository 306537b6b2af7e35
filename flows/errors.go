package flows

import (
	"fmt"
	"net/http"
	"strings"
)

// Status codes the platform understands for endpoint rejections. The
// decryption failure code tells the platform to re-fetch the public key.
const (
	StatusDecryptionFailed = http.StatusMisdirectedRequest
	StatusTokenExpired     = 427
)

// ResponseError lets a data exchange handler dictate the endpoint response
// instead of the generic 500. The body is sent plaintext; only
// TokenNoLongerValid is answered encrypted so the client can render it.
type ResponseError interface {
	error
	StatusCode() int
	ResponseBody() string
}

// TokenNoLongerValid signals the flow token was invalidated server side.
// The message is encrypted into the response and shown to the user when
// they try to resume the flow.
type TokenNoLongerValid struct {
	ErrorMessage string
}

func (e *TokenNoLongerValid) Error() string {
	message := strings.TrimSpace(e.ErrorMessage)
	if message == "" {
		return "flows: flow token is no longer valid"
	}
	return fmt.Sprintf("flows: flow token is no longer valid: %s", message)
}

func (e *TokenNoLongerValid) StatusCode() int { return StatusTokenExpired }

func (e *TokenNoLongerValid) ResponseBody() string { return e.ErrorMessage }

// RequestDenied rejects a flow request with an explicit status and a short
// plaintext body.
type RequestDenied struct {
	Status int
	Body   string
}

func (e *RequestDenied) Error() string {
	return fmt.Sprintf("flows: request denied (%d): %s", e.StatusCode(), e.Body)
}

func (e *RequestDenied) StatusCode() int {
	if e.Status <= 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

func (e *RequestDenied) ResponseBody() string { return e.Body }

var (
	_ ResponseError = (*TokenNoLongerValid)(nil)
	_ ResponseError = (*RequestDenied)(nil)
)
