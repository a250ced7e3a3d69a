package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Credential represents one set of access data for a shopping-mall extranet.
// The portal password is never stored in usable form: PasswordHash is the
// bcrypt digest used for verification, PasswordSealed is the vault ciphertext
// that lets the service re-encrypt the password for authorized consumers.
type Credential struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	MallName        string     `json:"mall_name" db:"mall_name"`
	CNPJ            string     `json:"cnpj,omitempty" db:"cnpj"`
	PortalURL       string     `json:"portal_url" db:"portal_url"`
	Username        string     `json:"username" db:"username"`
	PasswordHash    string     `json:"-" db:"password_hash"`
	PasswordSealed  string     `json:"-" db:"password_sealed"`
	InvoicePassword string     `json:"invoice_password,omitempty" db:"invoice_password"`
	Active          bool       `json:"active" db:"active"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// CredentialRepository defines the storage contract for credentials.
// Implementations must exclude soft-deleted rows from every read path.
type CredentialRepository interface {
	Create(ctx context.Context, c *Credential) error
	GetByID(ctx context.Context, id uuid.UUID) (*Credential, error)
	GetByCNPJ(ctx context.Context, cnpj string) (*Credential, error)
	ListActive(ctx context.Context) ([]Credential, error)
	FindByMallName(ctx context.Context, mallName string) ([]Credential, error)
	Update(ctx context.Context, c *Credential) error

	// SoftDelete flips the active flag and stamps deleted_at. Rows are never
	// physically removed by the service.
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
}
