package flows

import (
	"bytes"
	"testing"
)

func TestParseRequest(t *testing.T) {
	payload := []byte(`{"version":"3.0","action":"data_exchange","screen":"CART","flow_token":"tok-1","data":{"quantity":2}}`)
	request, err := ParseRequest(payload)
	if err != nil {
		t.Fatalf("parse request: %v", err)
	}
	if request.Action != ActionDataExchange || request.Screen != "CART" || request.FlowToken != "tok-1" {
		t.Fatalf("unexpected request fields: %+v", request)
	}
	if !bytes.Equal(request.Raw(), payload) {
		t.Fatalf("expected raw payload preserved")
	}

	if _, err := ParseRequest([]byte(`{"version":"3.0"}`)); err == nil {
		t.Fatalf("expected error for missing action")
	}
	if _, err := ParseRequest([]byte("{broken")); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

func TestRequest_HasError(t *testing.T) {
	cases := []struct {
		name string
		data map[string]any
		want bool
	}{
		{name: "no data", data: nil, want: false},
		{name: "clean data", data: map[string]any{"quantity": 2}, want: false},
		{name: "error key", data: map[string]any{"error": "boom"}, want: true},
		{name: "error_message key", data: map[string]any{"error_message": "render failed"}, want: true},
		{name: "error_key key", data: map[string]any{"error_key": "INVALID"}, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			request := &Request{Action: ActionDataExchange, Data: tc.data}
			if got := request.HasError(); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
