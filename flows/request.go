package flows

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Actions a flow client sends to the endpoint.
const (
	ActionPing         = "ping"
	ActionInit         = "INIT"
	ActionBack         = "BACK"
	ActionDataExchange = "data_exchange"
)

const successScreen = "SUCCESS"

// errorDataKeys are the keys a client embeds in the data payload when it
// reports a client-side error to the endpoint.
var errorDataKeys = []string{"error", "error_message", "error_key"}

// Request is one decrypted flow endpoint call.
type Request struct {
	Version   string         `json:"version"`
	Action    string         `json:"action"`
	Screen    string         `json:"screen,omitempty"`
	FlowToken string         `json:"flow_token,omitempty"`
	Data      map[string]any `json:"data,omitempty"`

	raw []byte
}

// ParseRequest decodes a decrypted request payload, keeping the raw bytes
// around for handlers that need fields this module does not model.
func ParseRequest(payload []byte) (*Request, error) {
	request := &Request{}
	if err := json.Unmarshal(payload, request); err != nil {
		return nil, fmt.Errorf("flows: decode request: %w", err)
	}
	if strings.TrimSpace(request.Action) == "" {
		return nil, fmt.Errorf("flows: request action is required")
	}
	request.raw = append([]byte(nil), payload...)
	return request, nil
}

// Raw returns the decrypted payload exactly as received.
func (r *Request) Raw() []byte {
	if r == nil {
		return nil
	}
	return r.raw
}

// HasError reports whether the client flagged a client-side error in the
// data payload.
func (r *Request) HasError() bool {
	if r == nil || len(r.Data) == 0 {
		return false
	}
	for _, key := range errorDataKeys {
		if _, ok := r.Data[key]; ok {
			return true
		}
	}
	return false
}

// Response is what a handler returns for a data exchange or navigation
// request. CloseFlow terminates the flow; the client then delivers a flow
// completion message carrying FlowToken and Data back over the webhook.
type Response struct {
	Version      string
	Screen       string
	Data         map[string]any
	ErrorMessage string
	FlowToken    string
	CloseFlow    bool
}

// Payload shapes the response the way the client expects: a terminal
// response collapses onto the success screen with the completion params,
// a navigation response carries the next screen and its data.
func (r *Response) Payload() map[string]any {
	if r == nil {
		return nil
	}
	if r.CloseFlow {
		params := map[string]any{"flow_token": r.FlowToken}
		for key, value := range r.Data {
			params[key] = value
		}
		return map[string]any{
			"version": r.Version,
			"screen":  successScreen,
			"data": map[string]any{
				"extension_message_response": map[string]any{"params": params},
			},
		}
	}
	data := map[string]any{}
	for key, value := range r.Data {
		data[key] = value
	}
	if strings.TrimSpace(r.ErrorMessage) != "" {
		data["error_message"] = r.ErrorMessage
	}
	return map[string]any{
		"version": r.Version,
		"screen":  r.Screen,
		"data":    data,
	}
}
