package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ricbatera/credentials-fullstack/internal/core/domain"
)

const credentialColumns = `id, mall_name, cnpj, portal_url, username,
	password_hash, password_sealed, invoice_password,
	active, created_at, updated_at, deleted_at`

type CredentialRepo struct {
	pool *pgxpool.Pool
}

func NewCredentialRepo(pool *pgxpool.Pool) *CredentialRepo {
	return &CredentialRepo{pool: pool}
}

func (r *CredentialRepo) Create(ctx context.Context, c *domain.Credential) error {
	query := `
		INSERT INTO credentials
			(id, mall_name, cnpj, portal_url, username,
			 password_hash, password_sealed, invoice_password, active)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, NULLIF($8, ''), $9)
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		c.ID, c.MallName, c.CNPJ, c.PortalURL, c.Username,
		c.PasswordHash, c.PasswordSealed, c.InvoicePassword, c.Active,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (r *CredentialRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Credential, error) {
	query := fmt.Sprintf(`SELECT %s FROM credentials WHERE id = $1 AND active = true`, credentialColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *CredentialRepo) GetByCNPJ(ctx context.Context, cnpj string) (*domain.Credential, error) {
	query := fmt.Sprintf(`SELECT %s FROM credentials WHERE cnpj = $1 AND active = true`, credentialColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query, cnpj))
}

func (r *CredentialRepo) ListActive(ctx context.Context) ([]domain.Credential, error) {
	query := fmt.Sprintf(`SELECT %s FROM credentials WHERE active = true ORDER BY mall_name`, credentialColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *CredentialRepo) FindByMallName(ctx context.Context, mallName string) ([]domain.Credential, error) {
	query := fmt.Sprintf(`SELECT %s FROM credentials WHERE mall_name = $1 AND active = true`, credentialColumns)
	rows, err := r.pool.Query(ctx, query, mallName)
	if err != nil {
		return nil, fmt.Errorf("find credentials by mall: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *CredentialRepo) Update(ctx context.Context, c *domain.Credential) error {
	query := `
		UPDATE credentials
		SET mall_name = $2, cnpj = NULLIF($3, ''), portal_url = $4, username = $5,
		    password_hash = $6, password_sealed = $7, invoice_password = NULLIF($8, ''),
		    active = $9, updated_at = NOW()
		WHERE id = $1 AND active = true
		RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		c.ID, c.MallName, c.CNPJ, c.PortalURL, c.Username,
		c.PasswordHash, c.PasswordSealed, c.InvoicePassword, c.Active,
	).Scan(&c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	return nil
}

func (r *CredentialRepo) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE credentials
		SET active = false, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND active = true
	`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("soft delete credential: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *CredentialRepo) scanOne(row pgx.Row) (*domain.Credential, error) {
	var c domain.Credential
	var cnpj, invoice *string
	err := row.Scan(
		&c.ID, &c.MallName, &cnpj, &c.PortalURL, &c.Username,
		&c.PasswordHash, &c.PasswordSealed, &invoice,
		&c.Active, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan credential: %w", err)
	}
	if cnpj != nil {
		c.CNPJ = *cnpj
	}
	if invoice != nil {
		c.InvoicePassword = *invoice
	}
	return &c, nil
}

func (r *CredentialRepo) scanMany(rows pgx.Rows) ([]domain.Credential, error) {
	var out []domain.Credential
	for rows.Next() {
		c, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
