package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ricbatera/credentials-fullstack/internal/core/domain"
)

// KeySize is the fixed RSA modulus size for consumer key pairs.
const KeySize = 2048

// Algorithm is the tag attached to every cipher bundle handed to consumers.
const Algorithm = "RSA"

var (
	pemMarker  = regexp.MustCompile(`-----(BEGIN|END)[A-Z ]*-----`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Transfer implements the per-consumer asymmetric leg of the pipeline:
// RSA-2048 with PKCS#1 v1.5 padding, matching what consumers decrypt with
// off the shelf. Public keys travel as base64 SPKI DER, private keys as
// base64 PKCS#8 DER, optionally PEM-wrapped.
type Transfer struct{}

func NewTransfer() *Transfer {
	return &Transfer{}
}

// GenerateKeyPair creates a fresh 2048-bit key pair.
func (t *Transfer) GenerateKeyPair() (*rsa.PublicKey, *rsa.PrivateKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, KeySize)
	if err != nil {
		return nil, nil, domain.NewCryptoError("generate key pair", err)
	}
	return &priv.PublicKey, priv, nil
}

// EncodePublicKey renders a public key as base64 of its SPKI DER encoding.
func (t *Transfer) EncodePublicKey(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", domain.NewCryptoError("encode public key", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// EncodePrivateKey renders a private key as base64 of its PKCS#8 DER encoding.
func (t *Transfer) EncodePrivateKey(priv *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", domain.NewCryptoError("encode private key", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// DecodePublicKey parses a textual public key. PEM markers and all
// whitespace are stripped first; what remains must be base64 SPKI DER.
func (t *Transfer) DecodePublicKey(text string) (*rsa.PublicKey, error) {
	der, err := decodeKeyText(text)
	if err != nil {
		return nil, domain.NewCryptoError("decode public key", err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, domain.NewCryptoError("decode public key", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, domain.NewCryptoError("decode public key", errors.New("not an RSA key"))
	}
	return pub, nil
}

// DecodePrivateKey parses a textual private key (base64 PKCS#8 DER,
// optionally PEM-wrapped).
func (t *Transfer) DecodePrivateKey(text string) (*rsa.PrivateKey, error) {
	der, err := decodeKeyText(text)
	if err != nil {
		return nil, domain.NewCryptoError("decode private key", err)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, domain.NewCryptoError("decode private key", err)
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, domain.NewCryptoError("decode private key", errors.New("not an RSA key"))
	}
	return priv, nil
}

// Encrypt encrypts a short secret under pub and returns base64 text.
// Plaintext length is bounded by the key size minus padding overhead;
// callers encrypt passwords, not documents.
func (t *Transfer) Encrypt(plaintext string, pub *rsa.PublicKey) (string, error) {
	if strings.TrimSpace(plaintext) == "" {
		return "", domain.NewValidationError("plaintext must not be empty")
	}
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(plaintext))
	if err != nil {
		return "", domain.NewCryptoError("encrypt", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// EncryptWithKeyText is Encrypt against a textual public key.
func (t *Transfer) EncryptWithKeyText(plaintext, publicKeyText string) (string, error) {
	pub, err := t.DecodePublicKey(publicKeyText)
	if err != nil {
		return "", err
	}
	return t.Encrypt(plaintext, pub)
}

// Decrypt reverses Encrypt with the matching private key.
func (t *Transfer) Decrypt(ciphertextB64 string, priv *rsa.PrivateKey) (string, error) {
	if strings.TrimSpace(ciphertextB64) == "" {
		return "", domain.NewValidationError("ciphertext must not be empty")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", domain.NewCryptoError("decrypt", fmt.Errorf("base64 decode: %w", err))
	}
	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, priv, ciphertext)
	if err != nil {
		return "", domain.NewCryptoError("decrypt", errors.New("cipher failure"))
	}
	return string(plaintext), nil
}

// IsValidPublicKey reports whether text decodes into a structurally valid
// RSA public key. It never returns an error.
func (t *Transfer) IsValidPublicKey(text string) bool {
	_, err := t.DecodePublicKey(text)
	return err == nil
}

func decodeKeyText(text string) ([]byte, error) {
	clean := pemMarker.ReplaceAllString(text, "")
	clean = whitespace.ReplaceAllString(clean, "")
	if clean == "" {
		return nil, errors.New("empty key material")
	}
	return base64.StdEncoding.DecodeString(clean)
}
