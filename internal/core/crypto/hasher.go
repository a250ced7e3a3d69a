package crypto

import (
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ricbatera/credentials-fullstack/internal/core/domain"
)

// hashCost is the bcrypt work factor for stored portal passwords. Higher
// than the library default because these hashes guard third-party access
// data and verification volume is low.
const hashCost = 12

// bcryptShape matches the canonical bcrypt text form: version tag, two-digit
// cost, then 53 characters of salt+digest.
var bcryptShape = regexp.MustCompile(`^\$2[abxy]\$\d{2}\$.{53}$`)

// Hasher produces and checks one-way password digests.
type Hasher struct{}

func NewHasher() *Hasher {
	return &Hasher{}
}

// Hash derives a bcrypt digest from plaintext. The same input hashes to a
// different digest on every call because of bcrypt's embedded random salt.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if strings.TrimSpace(plaintext) == "" {
		return "", domain.NewValidationError("password must not be empty")
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), hashCost)
	if err != nil {
		return "", domain.NewCryptoError("hash", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. It never returns an
// error: empty input or any mismatch is simply false.
func (h *Hasher) Verify(plaintext, digest string) bool {
	if plaintext == "" || digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// LooksHashed reports whether candidate already has bcrypt's textual shape.
// Used to tell stored digests apart from plaintext that still needs the
// ingest treatment.
func (h *Hasher) LooksHashed(candidate string) bool {
	return bcryptShape.MatchString(candidate)
}
