package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ricbatera/credentials-fullstack/internal/core/domain"
)

type ConsumerKeyRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]domain.ConsumerPublicKey
}

func NewConsumerKeyRepo() *ConsumerKeyRepo {
	return &ConsumerKeyRepo{items: make(map[uuid.UUID]domain.ConsumerPublicKey)}
}

func (r *ConsumerKeyRepo) Create(ctx context.Context, k *domain.ConsumerPublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Mirror the partial unique index on (consumer_identifier) WHERE active.
	for _, existing := range r.items {
		if existing.Active && existing.ConsumerIdentifier == k.ConsumerIdentifier {
			return &domain.ConflictError{
				Message: "an active key already exists for consumer " + k.ConsumerIdentifier,
			}
		}
	}

	now := time.Now()
	k.CreatedAt = now
	k.UpdatedAt = now
	r.items[k.ID] = *k
	return nil
}

func (r *ConsumerKeyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ConsumerPublicKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, ok := r.items[id]
	if !ok || !k.Active {
		return nil, domain.ErrNotFound
	}
	out := k
	return &out, nil
}

func (r *ConsumerKeyRepo) GetByIdentifier(ctx context.Context, identifier string) (*domain.ConsumerPublicKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, k := range r.items {
		if k.Active && k.ConsumerIdentifier == identifier {
			out := k
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *ConsumerKeyRepo) ListActive(ctx context.Context) ([]domain.ConsumerPublicKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ConsumerPublicKey, 0, len(r.items))
	for _, k := range r.items {
		if k.Active {
			out = append(out, k)
		}
	}
	return out, nil
}

func (r *ConsumerKeyRepo) ListValid(ctx context.Context) ([]domain.ConsumerPublicKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.ConsumerPublicKey
	for _, k := range r.items {
		if k.Valid() {
			out = append(out, k)
		}
	}
	return out, nil
}

func (r *ConsumerKeyRepo) FindValid(ctx context.Context, identifier string) (*domain.ConsumerPublicKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, k := range r.items {
		if k.ConsumerIdentifier == identifier && k.Valid() {
			out := k
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *ConsumerKeyRepo) Update(ctx context.Context, k *domain.ConsumerPublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[k.ID]
	if !ok || !existing.Active {
		return domain.ErrNotFound
	}
	k.CreatedAt = existing.CreatedAt
	k.UpdatedAt = time.Now()
	r.items[k.ID] = *k
	return nil
}

func (r *ConsumerKeyRepo) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.items[id]
	if !ok || !k.Active {
		return false, nil
	}
	k.Active = false
	k.UpdatedAt = time.Now()
	r.items[id] = k
	return true, nil
}

func (r *ConsumerKeyRepo) DeactivateByIdentifier(ctx context.Context, identifier string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, k := range r.items {
		if k.Active && k.ConsumerIdentifier == identifier {
			k.Active = false
			k.UpdatedAt = time.Now()
			r.items[id] = k
			return true, nil
		}
	}
	return false, nil
}
