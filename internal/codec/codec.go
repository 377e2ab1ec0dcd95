// Package codec implements the encrypted and signed envelope spoken by wash machines.
//
// Bodies are DES-ECB encrypted with PKCS7 padding under a shared 8 byte key and
// carried as base64. Headers carry an RSA (PKCS1 v1.5, SHA-1) signature of the
// plaintext JSON.
package codec

import (
	"bytes"
	"crypto"
	"crypto/cipher"
	"crypto/des"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Keys is the key material, all base64 encoded.
type Keys struct {
	DeviceID   string
	SecretKey  string // 8 byte DES key
	PrivateKey string // PKCS8 DER, ours
	PublicKey  string // SPKI DER, the partner's
}

// Header is the clear-text part of an envelope.
type Header struct {
	DevID     string `json:"devId"`
	Sign      string `json:"sign"`
	TimeStamp string `json:"timeStamp"`
}

// Envelope is the outer wire structure in both directions.
type Envelope struct {
	Header *Header `json:"header"`
	Body   string  `json:"body"`
}

// Codec encrypts, decrypts, signs and verifies envelopes. It is safe for concurrent use.
type Codec struct {
	deviceID string
	block    cipher.Block
	priv     *rsa.PrivateKey
	pub      *rsa.PublicKey
	now      func() time.Time
}

// New parses the key material.
func New(k Keys) (*Codec, error) {
	secret, err := base64.StdEncoding.DecodeString(k.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode secret key: %w", err)
	}
	block, err := des.NewCipher(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid secret key: %w", err)
	}

	privDER, err := base64.StdEncoding.DecodeString(k.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(privDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not an RSA key")
	}

	pubDER, err := base64.StdEncoding.DecodeString(k.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	parsedPub, err := x509.ParsePKIXPublicKey(pubDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	pub, ok := parsedPub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not an RSA key")
	}

	return &Codec{
		deviceID: k.DeviceID,
		block:    block,
		priv:     priv,
		pub:      pub,
		now:      time.Now,
	}, nil
}

// Encrypt returns base64(DES-ECB(PKCS7(plain))).
func (c *Codec) Encrypt(plain []byte) (string, error) {
	bs := c.block.BlockSize()
	padded := pkcs7Pad(plain, bs)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += bs {
		c.block.Encrypt(out[i:i+bs], padded[i:i+bs])
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func (c *Codec) Decrypt(body string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	bs := c.block.BlockSize()
	if len(raw) == 0 || len(raw)%bs != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of %d", len(raw), bs)
	}
	out := make([]byte, len(raw))
	for i := 0; i < len(raw); i += bs {
		c.block.Decrypt(out[i:i+bs], raw[i:i+bs])
	}
	return pkcs7Unpad(out, bs)
}

// Sign returns the base64 RSA-SHA1 signature of plain.
func (c *Codec) Sign(plain []byte) (string, error) {
	digest := sha1.Sum(plain)
	sig, err := rsa.SignPKCS1v15(rand.Reader, c.priv, crypto.SHA1, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a base64 signature of plain against the partner key.
func (c *Codec) Verify(plain []byte, sign string) error {
	sig, err := base64.StdEncoding.DecodeString(sign)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	digest := sha1.Sum(plain)
	return rsa.VerifyPKCS1v15(c.pub, crypto.SHA1, digest[:], sig)
}

// EncryptAndSign marshals payload and wraps it in an outbound envelope.
func (c *Codec) EncryptAndSign(payload any) (*Envelope, error) {
	plain, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	body, err := c.Encrypt(plain)
	if err != nil {
		return nil, err
	}
	sign, err := c.Sign(plain)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Header: &Header{
			DevID:     c.deviceID,
			Sign:      sign,
			TimeStamp: strconv.FormatInt(c.now().UnixMilli(), 10),
		},
		Body: body,
	}, nil
}

// VerifyAndDecrypt opens an inbound envelope into out. Every failure is a *ProtocolError.
func (c *Codec) VerifyAndDecrypt(env *Envelope, out any) error {
	if env == nil || env.Body == "" {
		return protocolErr(KindMissingBody, "body is empty", nil)
	}
	if env.Header == nil {
		return protocolErr(KindMissingHeader, "header is empty", nil)
	}
	if env.Header.DevID == "" {
		return protocolErr(KindMissingHeader, "devId is empty", nil)
	}
	if env.Header.Sign == "" {
		return protocolErr(KindMissingHeader, "sign is empty", nil)
	}

	plain, err := c.Decrypt(env.Body)
	if err != nil {
		return protocolErr(KindDecryptionError, "failed to decrypt body", err)
	}
	if err := c.Verify(plain, env.Header.Sign); err != nil {
		return protocolErr(KindInvalidSignature, "signature verification failed", err)
	}
	if err := json.Unmarshal(plain, out); err != nil {
		return protocolErr(KindDecryptionError, "decrypted body is not valid JSON", err)
	}
	return nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, errors.New("invalid padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
