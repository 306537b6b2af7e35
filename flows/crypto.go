package flows

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
)

// EncryptedRequest is the body the platform posts to the flow endpoint: an
// AES session key wrapped under the business RSA key, plus the payload
// sealed under that session key.
type EncryptedRequest struct {
	EncryptedFlowData string `json:"encrypted_flow_data"`
	EncryptedAESKey   string `json:"encrypted_aes_key"`
	InitialVector     string `json:"initial_vector"`
}

// RequestDecryptor opens an encrypted request and returns the plaintext
// payload together with the session key and IV needed to seal the response.
type RequestDecryptor func(request EncryptedRequest, privateKey *rsa.PrivateKey) (payload []byte, aesKey []byte, iv []byte, err error)

// ResponseEncryptor seals a response payload under the request's session
// key and returns the base64 body to send back.
type ResponseEncryptor func(payload []byte, aesKey []byte, iv []byte) (string, error)

// ParsePrivateKey loads a PEM-encoded RSA private key, decrypting the block
// first when a password is given. PKCS#1 and PKCS#8 encodings are accepted.
func ParsePrivateKey(pemData []byte, password string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("flows: private key is not valid PEM")
	}
	der := block.Bytes
	if strings.TrimSpace(password) != "" {
		decrypted, err := x509.DecryptPEMBlock(block, []byte(password))
		if err != nil {
			return nil, fmt.Errorf("flows: decrypt private key: %w", err)
		}
		der = decrypted
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("flows: parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("flows: private key is not an RSA key")
	}
	return key, nil
}

// DecryptRequest is the default RequestDecryptor: RSA-OAEP (SHA-256)
// unwraps the session key, then AES-GCM opens the payload under the
// request IV.
func DecryptRequest(request EncryptedRequest, privateKey *rsa.PrivateKey) ([]byte, []byte, []byte, error) {
	if privateKey == nil {
		return nil, nil, nil, fmt.Errorf("flows: private key is required")
	}
	wrappedKey, err := base64.StdEncoding.DecodeString(strings.TrimSpace(request.EncryptedAESKey))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("flows: decode encrypted aes key: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(request.EncryptedFlowData))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("flows: decode encrypted flow data: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(strings.TrimSpace(request.InitialVector))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("flows: decode initial vector: %w", err)
	}

	aesKey, err := rsa.DecryptOAEP(sha256.New(), nil, privateKey, wrappedKey, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("flows: unwrap session key: %w", err)
	}
	gcm, err := newGCM(aesKey, len(iv))
	if err != nil {
		return nil, nil, nil, err
	}
	payload, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("flows: decrypt payload: %w", err)
	}
	return payload, aesKey, iv, nil
}

// EncryptResponse is the default ResponseEncryptor. The response is sealed
// under the request's session key with every IV bit flipped, which is how
// the client distinguishes response material from its own.
func EncryptResponse(payload []byte, aesKey []byte, iv []byte) (string, error) {
	gcm, err := newGCM(aesKey, len(iv))
	if err != nil {
		return "", err
	}
	flipped := make([]byte, len(iv))
	for i, b := range iv {
		flipped[i] = ^b
	}
	sealed := gcm.Seal(nil, flipped, payload, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func newGCM(aesKey []byte, nonceSize int) (cipher.AEAD, error) {
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("flows: create cipher: %w", err)
	}
	if nonceSize <= 0 {
		return nil, fmt.Errorf("flows: initial vector is required")
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("flows: create gcm: %w", err)
	}
	return gcm, nil
}
