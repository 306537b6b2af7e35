package webhook

import (
	"context"
	"net/http"
	"testing"
)

func TestHandshake_Challenge(t *testing.T) {
	handshake := Handshake{VerifyToken: "xyzxyz"}

	body, status := handshake.Challenge(context.Background(), "xyzxyz", "1158201444")
	if status != http.StatusOK {
		t.Fatalf("expected 200 for matching token, got %d", status)
	}
	if body != "1158201444" {
		t.Fatalf("expected challenge echoed, got %q", body)
	}

	body, status = handshake.Challenge(context.Background(), "wrong", "1158201444")
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for mismatched token, got %d", status)
	}
	if body != "Error, invalid verification token" {
		t.Fatalf("unexpected rejection body %q", body)
	}

	_, status = handshake.Challenge(context.Background(), "", "1158201444")
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for empty token, got %d", status)
	}
}
