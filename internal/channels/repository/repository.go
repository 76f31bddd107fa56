// Package repository persists channel accounts.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"opsdesk_backend/internal/channels"
	"opsdesk_backend/platform/phone"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, workspace_id, type, provider, is_active, COALESCE(from_number, ''), config, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindActive returns the active account for (workspace, type, provider).
func (r *Repository) FindActive(ctx context.Context, workspaceID uuid.UUID, accountType channels.AccountType, provider string) (*channels.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM channel_accounts
		WHERE workspace_id = $1 AND type = $2 AND provider = $3 AND is_active = true
		ORDER BY created_at ASC
		LIMIT 1
	`, workspaceID, accountType, provider)

	return scanAccount(row)
}

// UpdateCredentials replaces the credential blob of an account. This is the
// only write path for credentials; callers never overwrite other columns.
func (r *Repository) UpdateCredentials(ctx context.Context, accountID uuid.UUID, config any) error {
	blob, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal account config: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE channel_accounts
		SET config = $2, updated_at = now()
		WHERE id = $1
	`, accountID, blob)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return channels.ErrAccountNotFound
	}

	return nil
}

// FindActiveSMSByNumber matches an inbound webhook's destination number
// against active SMS accounts, trying the raw and +/bare variants.
func (r *Repository) FindActiveSMSByNumber(ctx context.Context, number string) (*channels.Account, error) {
	variants := phone.Variants(number)
	if len(variants) == 0 {
		return nil, channels.ErrAccountNotFound
	}

	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM channel_accounts
		WHERE type = 'SMS' AND is_active = true AND from_number = ANY($1)
		LIMIT 1
	`, variants)

	return scanAccount(row)
}

// FirstActiveSMS returns any active SMS account. Used as a last-resort match
// when the inbound number is the process-wide fallback number.
func (r *Repository) FirstActiveSMS(ctx context.Context) (*channels.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM channel_accounts
		WHERE type = 'SMS' AND is_active = true
		ORDER BY created_at ASC
		LIMIT 1
	`)

	return scanAccount(row)
}

func scanAccount(row pgx.Row) (*channels.Account, error) {
	var account channels.Account
	err := row.Scan(
		&account.ID,
		&account.WorkspaceID,
		&account.Type,
		&account.Provider,
		&account.IsActive,
		&account.FromNumber,
		&account.Config,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, channels.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	return &account, nil
}
