package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/ricbatera/credentials-fullstack/internal/core/domain"
)

// uniqueViolation is the Postgres error code raised by the partial unique
// index on (consumer_identifier) WHERE active.
const uniqueViolation = "23505"

type ConsumerKeyRepo struct {
	db *sqlx.DB
}

func NewConsumerKeyRepo(db *sqlx.DB) *ConsumerKeyRepo {
	return &ConsumerKeyRepo{db: db}
}

func (r *ConsumerKeyRepo) Create(ctx context.Context, k *domain.ConsumerPublicKey) error {
	query := `
		INSERT INTO consumer_public_keys
			(id, consumer_name, consumer_identifier, public_key,
			 key_algorithm, key_size, expires_at, active, description,
			 created_at, updated_at)
		VALUES (:id, :consumer_name, :consumer_identifier, :public_key,
			 :key_algorithm, :key_size, :expires_at, :active, :description,
			 :created_at, :updated_at)
	`
	now := time.Now()
	k.CreatedAt = now
	k.UpdatedAt = now

	_, err := r.db.NamedExecContext(ctx, query, k)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return &domain.ConflictError{
				Message: "an active key already exists for consumer " + k.ConsumerIdentifier,
			}
		}
		return fmt.Errorf("insert consumer key: %w", err)
	}
	return nil
}

func (r *ConsumerKeyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ConsumerPublicKey, error) {
	var k domain.ConsumerPublicKey
	query := `SELECT * FROM consumer_public_keys WHERE id = $1 AND active = true`
	if err := r.db.GetContext(ctx, &k, query, id); err != nil {
		return nil, mapNoRows(err, "get consumer key")
	}
	return &k, nil
}

func (r *ConsumerKeyRepo) GetByIdentifier(ctx context.Context, identifier string) (*domain.ConsumerPublicKey, error) {
	var k domain.ConsumerPublicKey
	query := `SELECT * FROM consumer_public_keys WHERE consumer_identifier = $1 AND active = true`
	if err := r.db.GetContext(ctx, &k, query, identifier); err != nil {
		return nil, mapNoRows(err, "get consumer key by identifier")
	}
	return &k, nil
}

func (r *ConsumerKeyRepo) ListActive(ctx context.Context) ([]domain.ConsumerPublicKey, error) {
	var keys []domain.ConsumerPublicKey
	query := `SELECT * FROM consumer_public_keys WHERE active = true ORDER BY consumer_name`
	if err := r.db.SelectContext(ctx, &keys, query); err != nil {
		return nil, fmt.Errorf("list consumer keys: %w", err)
	}
	return keys, nil
}

func (r *ConsumerKeyRepo) ListValid(ctx context.Context) ([]domain.ConsumerPublicKey, error) {
	var keys []domain.ConsumerPublicKey
	query := `
		SELECT * FROM consumer_public_keys
		WHERE active = true AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY consumer_name
	`
	if err := r.db.SelectContext(ctx, &keys, query); err != nil {
		return nil, fmt.Errorf("list valid consumer keys: %w", err)
	}
	return keys, nil
}

func (r *ConsumerKeyRepo) FindValid(ctx context.Context, identifier string) (*domain.ConsumerPublicKey, error) {
	var k domain.ConsumerPublicKey
	query := `
		SELECT * FROM consumer_public_keys
		WHERE consumer_identifier = $1
		  AND active = true
		  AND (expires_at IS NULL OR expires_at > NOW())
	`
	if err := r.db.GetContext(ctx, &k, query, identifier); err != nil {
		return nil, mapNoRows(err, "find valid consumer key")
	}
	return &k, nil
}

func (r *ConsumerKeyRepo) Update(ctx context.Context, k *domain.ConsumerPublicKey) error {
	query := `
		UPDATE consumer_public_keys
		SET consumer_name = :consumer_name, public_key = :public_key,
		    expires_at = :expires_at, description = :description,
		    updated_at = :updated_at
		WHERE id = :id AND active = true
	`
	k.UpdatedAt = time.Now()

	res, err := r.db.NamedExecContext(ctx, query, k)
	if err != nil {
		return fmt.Errorf("update consumer key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update consumer key: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ConsumerKeyRepo) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE consumer_public_keys
		SET active = false, updated_at = NOW()
		WHERE id = $1 AND active = true
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("deactivate consumer key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate consumer key: %w", err)
	}
	return affected > 0, nil
}

func (r *ConsumerKeyRepo) DeactivateByIdentifier(ctx context.Context, identifier string) (bool, error) {
	query := `
		UPDATE consumer_public_keys
		SET active = false, updated_at = NOW()
		WHERE consumer_identifier = $1 AND active = true
	`
	res, err := r.db.ExecContext(ctx, query, identifier)
	if err != nil {
		return false, fmt.Errorf("deactivate consumer key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate consumer key: %w", err)
	}
	return affected > 0, nil
}

func mapNoRows(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
