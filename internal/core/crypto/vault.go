package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ricbatera/credentials-fullstack/internal/core/domain"
)

// Vault performs the internal, reversible encryption of credential
// passwords. Sealing is deterministic: the GCM nonce is derived from the
// plaintext with HMAC-SHA256 instead of a random source, so equal
// plaintexts always produce equal ciphertexts. The ciphertext exists only
// for at-rest recoverability, not to resist correlation by a holder of the
// process key; authentication still rejects truncated, corrupt, or
// wrong-key ciphertexts on Open.
//
// The key is not versioned. Changing it makes previously sealed values
// permanently unrecoverable.
type Vault struct {
	aead    cipher.AEAD
	nonceKey []byte
}

// NewVault builds a Vault from a hex-encoded 32-byte key.
func NewVault(hexKey string) (*Vault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("vault: invalid key encoding: %w", err)
	}
	if len(key) != 32 {
		return nil, errors.New("vault: key must be 32 bytes for AES-256")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: block cipher failure: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: GCM failure: %w", err)
	}

	// Separate derivation key for the synthetic nonce, so the nonce stream
	// is independent of the cipher key proper.
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte("vault/nonce"))
	nonceKey := mac.Sum(nil)

	for i := range key {
		key[i] = 0
	}

	return &Vault{aead: aead, nonceKey: nonceKey}, nil
}

// Seal encrypts plaintext for internal storage and returns base64url text.
func (v *Vault) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", domain.NewCryptoError("seal", errors.New("empty plaintext"))
	}

	nonce := v.deriveNonce([]byte(plaintext))
	ciphertext := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts a ciphertext produced by Seal under the current key.
func (v *Vault) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", domain.NewCryptoError("open", errors.New("empty ciphertext"))
	}

	data, err := base64.URLEncoding.DecodeString(sealed)
	if err != nil {
		return "", domain.NewCryptoError("open", fmt.Errorf("base64 decode: %w", err))
	}

	ns := v.aead.NonceSize()
	if len(data) < ns {
		return "", domain.NewCryptoError("open", errors.New("ciphertext too short"))
	}

	nonce, actual := data[:ns], data[ns:]
	plaintext, err := v.aead.Open(nil, nonce, actual, nil)
	if err != nil {
		// Wrong key or tampered data. Do not leak cipher internals.
		return "", domain.NewCryptoError("open", errors.New("authentication failed"))
	}
	return string(plaintext), nil
}

// deriveNonce maps the plaintext to a stable 12-byte GCM nonce.
func (v *Vault) deriveNonce(plaintext []byte) []byte {
	mac := hmac.New(sha256.New, v.nonceKey)
	mac.Write(plaintext)
	return mac.Sum(nil)[:v.aead.NonceSize()]
}
