// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kiwitrace/kiwitrace/internal/notify"
	"github.com/kiwitrace/kiwitrace/internal/platform/database/schema"
	"github.com/kiwitrace/kiwitrace/internal/platform/dberr"
	"github.com/kiwitrace/kiwitrace/internal/platform/postgres"
)

// # Account Repository

// PostgresRepository implements [Repository] using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL implementation of [Repository].
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

/*
Create persists a new account row and its confirmation mail in one transaction.

Parameters:
  - ctx: context.Context
  - account: *Account (entity to persist)
  - confirmation: *notify.Message (outbox row)

Returns:
  - error: DUPLICATE_EMAIL on the unique constraint, STORAGE_ERROR otherwise
*/
func (repository *PostgresRepository) Create(ctx context.Context, account *Account, confirmation *notify.Message) error {
	table := schema.UserAccount
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		table.Table, table.SelectList(),
	)

	err := postgres.WithTx(ctx, repository.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			account.ID,
			account.Username,
			account.CredentialHash,
			account.GivenName,
			account.FamilyName,
			account.Phone,
			account.Email,
			account.RegisteredAt,
			account.Verified,
			account.VerifiedAt,
			account.ConfirmationTokenHash,
			account.ConfirmationExpiresAt,
			account.UpdatedAt,
		)
		if err != nil {
			return err
		}
		return notify.EnqueuePostgres(ctx, tx, confirmation)
	})

	if dberr.IsUniqueViolation(err) {
		return ErrDuplicateEmail()
	}
	return dberr.Wrap(err, "postgres_account_create_failed")
}

// FindByEmail retrieves an account by its normalised email.
func (repository *PostgresRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return repository.findOne(ctx, schema.UserAccount.Email, email)
}

// FindByConfirmationHash retrieves the account owning a confirmation token digest.
func (repository *PostgresRepository) FindByConfirmationHash(ctx context.Context, tokenHash string) (*Account, error) {
	return repository.findOne(ctx, schema.UserAccount.ConfirmationTokenHash, tokenHash)
}

func (repository *PostgresRepository) findOne(ctx context.Context, column, value string) (*Account, error) {
	table := schema.UserAccount
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, table.SelectList(), table.Table, column)

	account, err := scanAccount(repository.pool.QueryRow(ctx, query, value))
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_account_find_failed")
	}
	return account, nil
}

// FindByPhone returns up to two accounts sharing phone.
func (repository *PostgresRepository) FindByPhone(ctx context.Context, phone string) ([]*Account, error) {
	table := schema.UserAccount
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s LIMIT 2`,
		table.SelectList(), table.Table, table.Phone, table.RegisteredAt)

	rows, err := repository.pool.Query(ctx, query, phone)
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_account_find_by_phone_failed")
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "postgres_account_scan_failed")
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "postgres_account_rows_failed")
	}
	return accounts, nil
}

// MarkVerified flips verified only while it is still false.
func (repository *PostgresRepository) MarkVerified(ctx context.Context, id string, at time.Time) (bool, error) {
	table := schema.UserAccount
	query := fmt.Sprintf(`
		UPDATE %s SET %s = TRUE, %s = $2, %s = $2
		WHERE %s = $1 AND %s = FALSE`,
		table.Table, table.Verified, table.VerifiedAt, table.UpdatedAt,
		table.ID, table.Verified,
	)

	tag, err := repository.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, dberr.Wrap(err, "postgres_account_mark_verified_failed")
	}
	return tag.RowsAffected() == 1, nil
}

// RotateConfirmation swaps the token digest and enqueues the new mail together.
func (repository *PostgresRepository) RotateConfirmation(ctx context.Context, id, tokenHash string, expiresAt, at time.Time, confirmation *notify.Message) error {
	table := schema.UserAccount
	query := fmt.Sprintf(`
		UPDATE %s SET %s = $2, %s = $3, %s = $4
		WHERE %s = $1 AND %s = FALSE`,
		table.Table, table.ConfirmationTokenHash, table.ConfirmationExpiresAt, table.UpdatedAt,
		table.ID, table.Verified,
	)

	err := postgres.WithTx(ctx, repository.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, id, tokenHash, expiresAt, at)
		if err != nil {
			return err
		}

		// Verified in the meantime: nothing to send.
		if tag.RowsAffected() == 0 {
			return nil
		}
		return notify.EnqueuePostgres(ctx, tx, confirmation)
	})
	return dberr.Wrap(err, "postgres_account_rotate_confirmation_failed")
}

/*
UpdateProfile builds a SET clause from the populated fields only.

Returns:
  - int64: rows updated (0 when no account has email)
  - error: STORAGE_ERROR
*/
func (repository *PostgresRepository) UpdateProfile(ctx context.Context, email string, changes ProfileChanges, at time.Time) (int64, error) {
	table := schema.UserAccount

	var assignments []string
	var args []any
	argID := 1

	set := func(column string, value any) {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, argID))
		args = append(args, value)
		argID++
	}

	if changes.GivenName != nil {
		set(table.GivenName, nullable(*changes.GivenName))
	}
	if changes.FamilyName != nil {
		set(table.FamilyName, nullable(*changes.FamilyName))
	}
	if changes.Phone != nil {
		set(table.Phone, nullable(*changes.Phone))
	}
	if changes.CredentialHash != nil {
		set(table.CredentialHash, *changes.CredentialHash)
	}
	set(table.UpdatedAt, at)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = $%d`,
		table.Table, strings.Join(assignments, ", "), table.Email, argID)
	args = append(args, email)

	tag, err := repository.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, dberr.Wrap(err, "postgres_account_update_profile_failed")
	}
	return tag.RowsAffected(), nil
}

// UpdateCredential replaces the credential hash of one account.
func (repository *PostgresRepository) UpdateCredential(ctx context.Context, id, credentialHash string, at time.Time) error {
	table := schema.UserAccount
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3 WHERE %s = $1`,
		table.Table, table.CredentialHash, table.UpdatedAt, table.ID)

	tag, err := repository.pool.Exec(ctx, query, id, credentialHash, at)
	if err != nil {
		return dberr.Wrap(err, "postgres_account_update_credential_failed")
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound()
	}
	return nil
}

// # Helpers

// scanAccount hydrates an account in [schema.UserAccountTable.Columns] order.
func scanAccount(row pgx.Row) (*Account, error) {
	account := &Account{}
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.CredentialHash,
		&account.GivenName,
		&account.FamilyName,
		&account.Phone,
		&account.Email,
		&account.RegisteredAt,
		&account.Verified,
		&account.VerifiedAt,
		&account.ConfirmationTokenHash,
		&account.ConfirmationExpiresAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// nullable maps "" to SQL NULL.
func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
