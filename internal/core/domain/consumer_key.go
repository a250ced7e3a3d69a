package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConsumerPublicKey is the registered RSA public key of an external consumer
// entitled to receive credential passwords. ConsumerIdentifier is the stable
// business key; at most one active record may exist per identifier.
type ConsumerPublicKey struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	ConsumerName       string     `json:"consumer_name" db:"consumer_name"`
	ConsumerIdentifier string     `json:"consumer_identifier" db:"consumer_identifier"`
	PublicKey          string     `json:"public_key" db:"public_key"`
	KeyAlgorithm       string     `json:"key_algorithm" db:"key_algorithm"`
	KeySize            int        `json:"key_size" db:"key_size"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	Active             bool       `json:"active" db:"active"`
	Description        string     `json:"description,omitempty" db:"description"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// Valid reports whether the key may still be used for distribution:
// it must be active and not past its expiry timestamp.
func (k *ConsumerPublicKey) Valid() bool {
	if !k.Active {
		return false
	}
	return k.ExpiresAt == nil || k.ExpiresAt.After(time.Now())
}

// ConsumerKeyRepository defines the storage contract for consumer keys.
type ConsumerKeyRepository interface {
	Create(ctx context.Context, k *ConsumerPublicKey) error
	GetByID(ctx context.Context, id uuid.UUID) (*ConsumerPublicKey, error)
	GetByIdentifier(ctx context.Context, identifier string) (*ConsumerPublicKey, error)
	ListActive(ctx context.Context) ([]ConsumerPublicKey, error)
	ListValid(ctx context.Context) ([]ConsumerPublicKey, error)

	// FindValid returns the active, non-expired key for the identifier,
	// or ErrNotFound. This backs the sole authorization gate of the
	// distribution flow.
	FindValid(ctx context.Context, identifier string) (*ConsumerPublicKey, error)

	Update(ctx context.Context, k *ConsumerPublicKey) error
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
	DeactivateByIdentifier(ctx context.Context, identifier string) (bool, error)
}
