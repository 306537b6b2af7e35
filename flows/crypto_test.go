package flows

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"io"
	"testing"
)

func newTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return key
}

// sealTestRequest builds a request the way the flow client does: a fresh
// AES-128 session key wrapped under the business public key, the payload
// sealed with AES-GCM under a random IV.
func sealTestRequest(t *testing.T, publicKey *rsa.PublicKey, payload []byte) (EncryptedRequest, []byte, []byte) {
	t.Helper()
	aesKey := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, aesKey); err != nil {
		t.Fatalf("generate session key: %v", err)
	}
	iv := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		t.Fatalf("generate iv: %v", err)
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		t.Fatalf("create cipher: %v", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		t.Fatalf("create gcm: %v", err)
	}
	sealed := gcm.Seal(nil, iv, payload, nil)

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, publicKey, aesKey, nil)
	if err != nil {
		t.Fatalf("wrap session key: %v", err)
	}
	return EncryptedRequest{
		EncryptedFlowData: base64.StdEncoding.EncodeToString(sealed),
		EncryptedAESKey:   base64.StdEncoding.EncodeToString(wrapped),
		InitialVector:     base64.StdEncoding.EncodeToString(iv),
	}, aesKey, iv
}

// openTestResponse decrypts a sealed response the way the client does:
// same session key, every IV bit flipped.
func openTestResponse(t *testing.T, body string, aesKey []byte, iv []byte) []byte {
	t.Helper()
	sealed, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	flipped := make([]byte, len(iv))
	for i, b := range iv {
		flipped[i] = ^b
	}
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		t.Fatalf("create cipher: %v", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(flipped))
	if err != nil {
		t.Fatalf("create gcm: %v", err)
	}
	payload, err := gcm.Open(nil, flipped, sealed, nil)
	if err != nil {
		t.Fatalf("open response: %v", err)
	}
	return payload
}

func TestDecryptRequest_RoundTrip(t *testing.T) {
	key := newTestKey(t)
	payload := []byte(`{"version":"3.0","action":"ping"}`)
	request, wantKey, wantIV := sealTestRequest(t, &key.PublicKey, payload)

	got, aesKey, iv, err := DecryptRequest(request, key)
	if err != nil {
		t.Fatalf("decrypt request: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("expected payload round trip, got %q", got)
	}
	if !bytes.Equal(aesKey, wantKey) || !bytes.Equal(iv, wantIV) {
		t.Fatalf("expected session material returned")
	}
}

func TestDecryptRequest_Failures(t *testing.T) {
	key := newTestKey(t)
	otherKey := newTestKey(t)
	request, _, _ := sealTestRequest(t, &key.PublicKey, []byte(`{"action":"ping"}`))

	if _, _, _, err := DecryptRequest(request, otherKey); err == nil {
		t.Fatalf("expected decryption under the wrong private key to fail")
	}
	if _, _, _, err := DecryptRequest(request, nil); err == nil {
		t.Fatalf("expected nil private key to fail")
	}

	tampered := request
	tampered.EncryptedFlowData = base64.StdEncoding.EncodeToString([]byte("garbage"))
	if _, _, _, err := DecryptRequest(tampered, key); err == nil {
		t.Fatalf("expected tampered ciphertext to fail")
	}

	badEncoding := request
	badEncoding.InitialVector = "%%%not-base64%%%"
	if _, _, _, err := DecryptRequest(badEncoding, key); err == nil {
		t.Fatalf("expected invalid base64 to fail")
	}
}

func TestEncryptResponse_FlipsIV(t *testing.T) {
	aesKey := make([]byte, 16)
	iv := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, aesKey); err != nil {
		t.Fatalf("generate session key: %v", err)
	}
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		t.Fatalf("generate iv: %v", err)
	}

	payload := []byte(`{"version":"3.0","data":{"status":"active"}}`)
	body, err := EncryptResponse(payload, aesKey, iv)
	if err != nil {
		t.Fatalf("encrypt response: %v", err)
	}
	if got := openTestResponse(t, body, aesKey, iv); !bytes.Equal(got, payload) {
		t.Fatalf("expected response round trip under flipped iv, got %q", got)
	}

	// The response must not be sealed under the request IV itself.
	sealed, _ := base64.StdEncoding.DecodeString(body)
	block, _ := aes.NewCipher(aesKey)
	gcm, _ := cipher.NewGCMWithNonceSize(block, len(iv))
	if _, err := gcm.Open(nil, iv, sealed, nil); err == nil {
		t.Fatalf("expected response to be undecryptable with the request iv")
	}
}

func TestParsePrivateKey(t *testing.T) {
	key := newTestKey(t)

	pkcs1 := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	parsed, err := ParsePrivateKey(pkcs1, "")
	if err != nil {
		t.Fatalf("parse pkcs1 key: %v", err)
	}
	if parsed.N.Cmp(key.N) != 0 {
		t.Fatalf("expected pkcs1 key round trip")
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal pkcs8: %v", err)
	}
	pkcs8 := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	parsed, err = ParsePrivateKey(pkcs8, "")
	if err != nil {
		t.Fatalf("parse pkcs8 key: %v", err)
	}
	if parsed.N.Cmp(key.N) != 0 {
		t.Fatalf("expected pkcs8 key round trip")
	}

	if _, err := ParsePrivateKey([]byte("not pem"), ""); err == nil {
		t.Fatalf("expected error for invalid pem")
	}
}
