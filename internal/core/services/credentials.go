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

// CredentialInput carries the caller-supplied fields for a credential.
// Password arrives in plaintext and exists only for the duration of the
// call; it is persisted exclusively in derived form.
type CredentialInput struct {
	MallName        string
	CNPJ            string
	PortalURL       string
	Username        string
	Password        string
	InvoicePassword string
	Active          *bool
}

// CipherBundle is the per-consumer output of a distribution call: the
// credential's non-secret fields plus its passwords encrypted under the
// consumer's registered public key.
type CipherBundle struct {
	CredentialID             uuid.UUID `json:"id"`
	MallName                 string    `json:"mall_name"`
	CNPJ                     string    `json:"cnpj,omitempty"`
	PortalURL                string    `json:"portal_url"`
	Username                 string    `json:"username"`
	EncryptedPassword        string    `json:"encrypted_password"`
	EncryptedInvoicePassword string    `json:"encrypted_invoice_password,omitempty"`
	ConsumerIdentifier       string    `json:"consumer_identifier"`
	Algorithm                string    `json:"algorithm"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// CredentialService owns the password pipeline: plaintext in at
// create/update, dual derived form at rest, per-consumer RSA ciphertext
// out. Recovered plaintext lives only inside a single call.
type CredentialService struct {
	repo     domain.CredentialRepository
	keys     *KeyRegistry
	vault    *crypto.Vault
	hasher   *crypto.Hasher
	transfer *crypto.Transfer
	logger   *slog.Logger
}

func NewCredentialService(
	repo domain.CredentialRepository,
	keys *KeyRegistry,
	vault *crypto.Vault,
	hasher *crypto.Hasher,
	transfer *crypto.Transfer,
	logger *slog.Logger,
) *CredentialService {
	return &CredentialService{
		repo:     repo,
		keys:     keys,
		vault:    vault,
		hasher:   hasher,
		transfer: transfer,
		logger:   logger,
	}
}

// Create persists a new credential. The plaintext password is turned into
// its two stored forms and discarded.
func (s *CredentialService) Create(ctx context.Context, in CredentialInput) (*domain.Credential, error) {
	cred := &domain.Credential{
		ID:              uuid.New(),
		MallName:        in.MallName,
		CNPJ:            in.CNPJ,
		PortalURL:       in.PortalURL,
		Username:        in.Username,
		InvoicePassword: in.InvoicePassword,
		Active:          true,
	}
	if in.Active != nil {
		cred.Active = *in.Active
	}

	if err := s.storePassword(cred, in.Password); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, cred); err != nil {
		return nil, err
	}

	s.logger.Info("credential created",
		slog.String("credential_id", cred.ID.String()),
		slog.String("mall", cred.MallName))
	return cred, nil
}

// Update overwrites a credential's fields. A non-empty password that does
// not already carry the stored digest shape is treated as a changed
// plaintext and re-derived; otherwise the stored crypto fields stay intact.
func (s *CredentialService) Update(ctx context.Context, id uuid.UUID, in CredentialInput) (*domain.Credential, error) {
	cred, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	cred.MallName = in.MallName
	cred.CNPJ = in.CNPJ
	cred.PortalURL = in.PortalURL
	cred.Username = in.Username
	cred.InvoicePassword = in.InvoicePassword
	if in.Active != nil {
		cred.Active = *in.Active
	}

	if in.Password != "" && !s.hasher.LooksHashed(in.Password) {
		if err := s.storePassword(cred, in.Password); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// Delete soft-deletes a credential. Returns whether an active record was
// found.
func (s *CredentialService) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	found, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		return false, err
	}
	if found {
		s.logger.Info("credential deleted", slog.String("credential_id", id.String()))
	}
	return found, nil
}

// GetByID returns an active credential.
func (s *CredentialService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Credential, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByCNPJ returns the active credential registered under the tax id.
func (s *CredentialService) GetByCNPJ(ctx context.Context, cnpj string) (*domain.Credential, error) {
	return s.repo.GetByCNPJ(ctx, cnpj)
}

// List returns all active credentials.
func (s *CredentialService) List(ctx context.Context) ([]domain.Credential, error) {
	return s.repo.ListActive(ctx)
}

// FindByMallName returns the active credentials for a mall.
func (s *CredentialService) FindByMallName(ctx context.Context, mallName string) ([]domain.Credential, error) {
	return s.repo.FindByMallName(ctx, mallName)
}

// VerifyPassword checks a candidate plaintext against the stored digest.
// A missing or inactive credential verifies as false, not as an error.
func (s *CredentialService) VerifyPassword(ctx context.Context, id uuid.UUID, candidate string) (bool, error) {
	cred, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.hasher.Verify(candidate, cred.PasswordHash), nil
}

// EncryptForConsumer recovers one credential's password and re-encrypts it
// under the consumer's registered public key. Authorization happens before
// any vault or RSA work; an unauthorized consumer triggers zero crypto
// calls against the stored secret.
func (s *CredentialService) EncryptForConsumer(ctx context.Context, id uuid.UUID, consumerIdentifier string) (*CipherBundle, error) {
	key, err := s.authorize(ctx, consumerIdentifier)
	if err != nil {
		return nil, err
	}

	cred, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.bundleFor(cred, key)
}

// EncryptAllForConsumer applies EncryptForConsumer to every active
// credential. The authorization check runs once up front. A single
// credential's recovery or encryption failure fails the whole call:
// silently dropping entries from a bulk export would hide broken records.
func (s *CredentialService) EncryptAllForConsumer(ctx context.Context, consumerIdentifier string) ([]CipherBundle, error) {
	key, err := s.authorize(ctx, consumerIdentifier)
	if err != nil {
		return nil, err
	}

	creds, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	bundles := make([]CipherBundle, 0, len(creds))
	for i := range creds {
		bundle, err := s.bundleFor(&creds[i], key)
		if err != nil {
			s.logger.Error("bulk distribution aborted",
				slog.String("credential_id", creds[i].ID.String()),
				slog.String("consumer", consumerIdentifier))
			return nil, err
		}
		bundles = append(bundles, *bundle)
	}
	return bundles, nil
}

// EncryptPlaintextForConsumer encrypts caller-held plaintext for a
// consumer without touching stored credentials.
func (s *CredentialService) EncryptPlaintextForConsumer(ctx context.Context, plaintext, consumerIdentifier string) (string, error) {
	if strings.TrimSpace(plaintext) == "" {
		return "", domain.NewValidationError("password must not be empty")
	}
	key, err := s.authorize(ctx, consumerIdentifier)
	if err != nil {
		return "", err
	}
	return s.transfer.EncryptWithKeyText(plaintext, key.PublicKey)
}

// storePassword writes both derived forms of a changed plaintext onto the
// credential. Hash and sealed ciphertext are always set together.
func (s *CredentialService) storePassword(cred *domain.Credential, plaintext string) error {
	digest, err := s.hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	sealed, err := s.vault.Seal(plaintext)
	if err != nil {
		return err
	}
	cred.PasswordHash = digest
	cred.PasswordSealed = sealed
	return nil
}

// authorize resolves the consumer's valid key or fails with
// UnauthorizedError. Unknown, deactivated and expired identifiers are
// indistinguishable to the caller.
func (s *CredentialService) authorize(ctx context.Context, consumerIdentifier string) (*domain.ConsumerPublicKey, error) {
	key, err := s.keys.FindValid(ctx, consumerIdentifier)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("distribution refused", slog.String("consumer", consumerIdentifier))
		return nil, &domain.UnauthorizedError{ConsumerIdentifier: consumerIdentifier}
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

// bundleFor opens the sealed password, encrypts it (and the invoice
// password, when present) under the consumer key, and drops the recovered
// plaintext on return.
func (s *CredentialService) bundleFor(cred *domain.Credential, key *domain.ConsumerPublicKey) (*CipherBundle, error) {
	plaintext, err := s.vault.Open(cred.PasswordSealed)
	if err != nil {
		return nil, err
	}
	encrypted, err := s.transfer.EncryptWithKeyText(plaintext, key.PublicKey)
	if err != nil {
		return nil, err
	}

	bundle := &CipherBundle{
		CredentialID:       cred.ID,
		MallName:           cred.MallName,
		CNPJ:               cred.CNPJ,
		PortalURL:          cred.PortalURL,
		Username:           cred.Username,
		EncryptedPassword:  encrypted,
		ConsumerIdentifier: key.ConsumerIdentifier,
		Algorithm:          crypto.Algorithm,
		CreatedAt:          cred.CreatedAt,
		UpdatedAt:          cred.UpdatedAt,
	}

	if cred.InvoicePassword != "" {
		encryptedInvoice, err := s.transfer.EncryptWithKeyText(cred.InvoicePassword, key.PublicKey)
		if err != nil {
			// Partial bundles are never returned.
			return nil, err
		}
		bundle.EncryptedInvoicePassword = encryptedInvoice
	}
	return bundle, nil
}
