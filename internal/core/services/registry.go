package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ricbatera/credentials-fullstack/internal/core/crypto"
	"github.com/ricbatera/credentials-fullstack/internal/core/domain"
)

// RegisterKeyInput carries the caller-supplied fields for a new consumer key.
type RegisterKeyInput struct {
	ConsumerName       string
	ConsumerIdentifier string
	PublicKey          string
	ExpiresAt          *time.Time
	Description        string
}

// UpdateKeyInput carries the mutable fields of an existing consumer key.
// The consumer identifier is immutable after registration.
type UpdateKeyInput struct {
	ConsumerName string
	PublicKey    string
	ExpiresAt    *time.Time
	Description  string
}

// KeyRegistry manages the lifecycle of consumer public keys and is the
// single authorization gate for password distribution. It never caches:
// every decision reads fresh storage state.
type KeyRegistry struct {
	repo     domain.ConsumerKeyRepository
	transfer *crypto.Transfer
	logger   *slog.Logger
}

func NewKeyRegistry(repo domain.ConsumerKeyRepository, transfer *crypto.Transfer, logger *slog.Logger) *KeyRegistry {
	return &KeyRegistry{repo: repo, transfer: transfer, logger: logger}
}

// Register stores a new public key for a consumer. The key text must decode
// into a structurally valid RSA key, and the identifier must not already
// hold an active key.
func (s *KeyRegistry) Register(ctx context.Context, in RegisterKeyInput) (*domain.ConsumerPublicKey, error) {
	if strings.TrimSpace(in.ConsumerIdentifier) == "" {
		return nil, domain.NewValidationError("consumer identifier must not be empty")
	}
	if !s.transfer.IsValidPublicKey(in.PublicKey) {
		return nil, domain.NewValidationError("invalid RSA public key")
	}

	// Check-then-act; the partial unique index on consumer_identifier
	// backs this up against concurrent registrations.
	existing, err := s.repo.GetByIdentifier(ctx, in.ConsumerIdentifier)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, &domain.ConflictError{
			Message: "an active key already exists for consumer " + in.ConsumerIdentifier,
		}
	}

	key := &domain.ConsumerPublicKey{
		ID:                 uuid.New(),
		ConsumerName:       in.ConsumerName,
		ConsumerIdentifier: in.ConsumerIdentifier,
		PublicKey:          in.PublicKey,
		KeyAlgorithm:       crypto.Algorithm,
		KeySize:            crypto.KeySize,
		ExpiresAt:          in.ExpiresAt,
		Active:             true,
		Description:        in.Description,
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return nil, err
	}

	s.logger.Info("consumer key registered",
		slog.String("consumer", key.ConsumerIdentifier),
		slog.String("key_id", key.ID.String()))
	return key, nil
}

// Update replaces the mutable fields of an active key. New key material is
// validated the same way as at registration.
func (s *KeyRegistry) Update(ctx context.Context, id uuid.UUID, in UpdateKeyInput) (*domain.ConsumerPublicKey, error) {
	key, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.transfer.IsValidPublicKey(in.PublicKey) {
		return nil, domain.NewValidationError("invalid RSA public key")
	}

	key.ConsumerName = in.ConsumerName
	key.PublicKey = in.PublicKey
	key.ExpiresAt = in.ExpiresAt
	key.Description = in.Description

	if err := s.repo.Update(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Deactivate flips the active flag of a key by id. The boolean reports
// whether an active key was found; deactivating an already-inactive key is
// not an error.
func (s *KeyRegistry) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	found, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return false, err
	}
	if found {
		s.logger.Info("consumer key deactivated", slog.String("key_id", id.String()))
	}
	return found, nil
}

// DeactivateByIdentifier is Deactivate keyed on the business identifier.
func (s *KeyRegistry) DeactivateByIdentifier(ctx context.Context, identifier string) (bool, error) {
	found, err := s.repo.DeactivateByIdentifier(ctx, identifier)
	if err != nil {
		return false, err
	}
	if found {
		s.logger.Info("consumer key deactivated", slog.String("consumer", identifier))
	}
	return found, nil
}

// FindValid returns the active, non-expired key for the identifier, or
// ErrNotFound. Distribution authorizes exclusively through this lookup.
func (s *KeyRegistry) FindValid(ctx context.Context, identifier string) (*domain.ConsumerPublicKey, error) {
	return s.repo.FindValid(ctx, identifier)
}

// HasValidKey reports whether the consumer currently holds a valid key.
func (s *KeyRegistry) HasValidKey(ctx context.Context, identifier string) (bool, error) {
	_, err := s.repo.FindValid(ctx, identifier)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByID returns an active key by id.
func (s *KeyRegistry) GetByID(ctx context.Context, id uuid.UUID) (*domain.ConsumerPublicKey, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByIdentifier returns the active key for the identifier, expired or not.
func (s *KeyRegistry) GetByIdentifier(ctx context.Context, identifier string) (*domain.ConsumerPublicKey, error) {
	return s.repo.GetByIdentifier(ctx, identifier)
}

// List returns all active keys.
func (s *KeyRegistry) List(ctx context.Context) ([]domain.ConsumerPublicKey, error) {
	return s.repo.ListActive(ctx)
}

// ListValid returns all active, non-expired keys. Order is not significant.
func (s *KeyRegistry) ListValid(ctx context.Context) ([]domain.ConsumerPublicKey, error) {
	return s.repo.ListValid(ctx)
}
