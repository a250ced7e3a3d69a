// Package memory provides map-backed repository implementations. They honor
// the same soft-delete and uniqueness rules as the Postgres repositories and
// back the service tests and local runs without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ricbatera/credentials-fullstack/internal/core/domain"
)

type CredentialRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]domain.Credential
}

func NewCredentialRepo() *CredentialRepo {
	return &CredentialRepo{items: make(map[uuid.UUID]domain.Credential)}
}

func (r *CredentialRepo) Create(ctx context.Context, c *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	r.items[c.ID] = *c
	return nil
}

func (r *CredentialRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.items[id]
	if !ok || !c.Active {
		return nil, domain.ErrNotFound
	}
	out := c
	return &out, nil
}

func (r *CredentialRepo) GetByCNPJ(ctx context.Context, cnpj string) (*domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.items {
		if c.Active && c.CNPJ == cnpj {
			out := c
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *CredentialRepo) ListActive(ctx context.Context) ([]domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Credential, 0, len(r.items))
	for _, c := range r.items {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *CredentialRepo) FindByMallName(ctx context.Context, mallName string) ([]domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Credential
	for _, c := range r.items {
		if c.Active && c.MallName == mallName {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *CredentialRepo) Update(ctx context.Context, c *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[c.ID]
	if !ok || !existing.Active {
		return domain.ErrNotFound
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now()
	r.items[c.ID] = *c
	return nil
}

func (r *CredentialRepo) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.items[id]
	if !ok || !c.Active {
		return false, nil
	}
	now := time.Now()
	c.Active = false
	c.DeletedAt = &now
	c.UpdatedAt = now
	r.items[id] = c
	return true, nil
}
