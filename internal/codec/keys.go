package codec

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

// GenerateKeys creates a fresh DES secret and RSA key pair in the configured encoding.
// The public key is the pair's own, so the result can talk to itself.
func GenerateKeys(deviceID string, bits int) (Keys, error) {
	secret := make([]byte, 8)
	if _, err := rand.Read(secret); err != nil {
		return Keys{}, fmt.Errorf("failed to generate secret: %w", err)
	}

	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return Keys{}, fmt.Errorf("failed to generate rsa key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return Keys{}, fmt.Errorf("failed to marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return Keys{}, fmt.Errorf("failed to marshal public key: %w", err)
	}

	return Keys{
		DeviceID:   deviceID,
		SecretKey:  base64.StdEncoding.EncodeToString(secret),
		PrivateKey: base64.StdEncoding.EncodeToString(privDER),
		PublicKey:  base64.StdEncoding.EncodeToString(pubDER),
	}, nil
}
