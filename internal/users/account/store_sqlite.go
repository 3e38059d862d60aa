// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/kiwitrace/kiwitrace/internal/notify"
	"github.com/kiwitrace/kiwitrace/internal/platform/dberr"
	"github.com/kiwitrace/kiwitrace/pkg/slice"
)

// accountRow is the bun model of the account table.
type accountRow struct {
	bun.BaseModel `bun:"table:account"`

	ID                    string     `bun:"id,pk"`
	Username              string     `bun:"username,notnull"`
	CredentialHash        string     `bun:"credentialhash,notnull"`
	GivenName             *string    `bun:"givenname"`
	FamilyName            *string    `bun:"familyname"`
	Phone                 *string    `bun:"phone"`
	Email                 string     `bun:"email,notnull,unique"`
	RegisteredAt          time.Time  `bun:"registeredat,notnull"`
	Verified              bool       `bun:"verified,notnull"`
	VerifiedAt            *time.Time `bun:"verifiedat"`
	ConfirmationTokenHash string     `bun:"confirmationtokenhash,notnull,unique"`
	ConfirmationExpiresAt time.Time  `bun:"confirmationexpiresat,notnull"`
	UpdatedAt             time.Time  `bun:"updatedat,notnull"`
}

func toAccountRow(account *Account) *accountRow {
	return &accountRow{
		ID:                    account.ID,
		Username:              account.Username,
		CredentialHash:        account.CredentialHash,
		GivenName:             account.GivenName,
		FamilyName:            account.FamilyName,
		Phone:                 account.Phone,
		Email:                 account.Email,
		RegisteredAt:          account.RegisteredAt.UTC(),
		Verified:              account.Verified,
		VerifiedAt:            account.VerifiedAt,
		ConfirmationTokenHash: account.ConfirmationTokenHash,
		ConfirmationExpiresAt: account.ConfirmationExpiresAt.UTC(),
		UpdatedAt:             account.UpdatedAt.UTC(),
	}
}

func (row accountRow) toAccount() *Account {
	return &Account{
		ID:                    row.ID,
		Username:              row.Username,
		CredentialHash:        row.CredentialHash,
		GivenName:             row.GivenName,
		FamilyName:            row.FamilyName,
		Phone:                 row.Phone,
		Email:                 row.Email,
		RegisteredAt:          row.RegisteredAt,
		Verified:              row.Verified,
		VerifiedAt:            row.VerifiedAt,
		ConfirmationTokenHash: row.ConfirmationTokenHash,
		ConfirmationExpiresAt: row.ConfirmationExpiresAt,
		UpdatedAt:             row.UpdatedAt,
	}
}

// CreateSchema creates the account and outbox tables when missing.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*accountRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("sqlite_account_create_table_failed: %w", err)
	}

	_, err := db.NewCreateIndex().
		Model((*accountRow)(nil)).
		Index("idx_account_phone").
		Column("phone").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqlite_account_create_index_failed: %w", err)
	}

	return notify.CreateOutboxSchema(ctx, db)
}

// # Account Repository

// BunRepository implements [Repository] on SQLite through bun.
type BunRepository struct {
	db *bun.DB
}

// NewBunRepository creates a new bun-backed implementation of [Repository].
func NewBunRepository(db *bun.DB) *BunRepository {
	return &BunRepository{db: db}
}

// Create implements [Repository].
func (repository *BunRepository) Create(ctx context.Context, account *Account, confirmation *notify.Message) error {
	err := repository.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(toAccountRow(account)).Exec(ctx); err != nil {
			return err
		}
		return notify.EnqueueBun(ctx, tx, confirmation)
	})

	if dberr.IsUniqueViolation(err) {
		return ErrDuplicateEmail()
	}
	return dberr.Wrap(err, "sqlite_account_create_failed")
}

// FindByEmail implements [Repository].
func (repository *BunRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return repository.findOne(ctx, "email = ?", email)
}

// FindByConfirmationHash implements [Repository].
func (repository *BunRepository) FindByConfirmationHash(ctx context.Context, tokenHash string) (*Account, error) {
	return repository.findOne(ctx, "confirmationtokenhash = ?", tokenHash)
}

func (repository *BunRepository) findOne(ctx context.Context, where string, value string) (*Account, error) {
	row := new(accountRow)
	if err := repository.db.NewSelect().Model(row).Where(where, value).Limit(1).Scan(ctx); err != nil {
		return nil, dberr.Wrap(err, "sqlite_account_find_failed")
	}
	return row.toAccount(), nil
}

// FindByPhone implements [Repository].
func (repository *BunRepository) FindByPhone(ctx context.Context, phone string) ([]*Account, error) {
	var rows []accountRow
	err := repository.db.NewSelect().
		Model(&rows).
		Where("phone = ?", phone).
		Order("registeredat ASC").
		Limit(2).
		Scan(ctx)
	if err != nil {
		return nil, dberr.Wrap(err, "sqlite_account_find_by_phone_failed")
	}

	return slice.Map(rows, accountRow.toAccount), nil
}

// MarkVerified implements [Repository].
func (repository *BunRepository) MarkVerified(ctx context.Context, id string, at time.Time) (bool, error) {
	at = at.UTC()
	result, err := repository.db.NewUpdate().
		Model((*accountRow)(nil)).
		Set("verified = ?", true).
		Set("verifiedat = ?", at).
		Set("updatedat = ?", at).
		Where("id = ?", id).
		Where("verified = ?", false).
		Exec(ctx)
	if err != nil {
		return false, dberr.Wrap(err, "sqlite_account_mark_verified_failed")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, dberr.Wrap(err, "sqlite_account_rows_affected_failed")
	}
	return affected == 1, nil
}

// RotateConfirmation implements [Repository].
func (repository *BunRepository) RotateConfirmation(ctx context.Context, id, tokenHash string, expiresAt, at time.Time, confirmation *notify.Message) error {
	err := repository.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model((*accountRow)(nil)).
			Set("confirmationtokenhash = ?", tokenHash).
			Set("confirmationexpiresat = ?", expiresAt.UTC()).
			Set("updatedat = ?", at.UTC()).
			Where("id = ?", id).
			Where("verified = ?", false).
			Exec(ctx)
		if err != nil {
			return err
		}

		affected, err := result.RowsAffected()
		if err != nil || affected == 0 {
			return err
		}
		return notify.EnqueueBun(ctx, tx, confirmation)
	})
	return dberr.Wrap(err, "sqlite_account_rotate_confirmation_failed")
}

// UpdateProfile implements [Repository].
func (repository *BunRepository) UpdateProfile(ctx context.Context, email string, changes ProfileChanges, at time.Time) (int64, error) {
	query := repository.db.NewUpdate().Model((*accountRow)(nil))

	if changes.GivenName != nil {
		query = query.Set("givenname = ?", nullable(*changes.GivenName))
	}
	if changes.FamilyName != nil {
		query = query.Set("familyname = ?", nullable(*changes.FamilyName))
	}
	if changes.Phone != nil {
		query = query.Set("phone = ?", nullable(*changes.Phone))
	}
	if changes.CredentialHash != nil {
		query = query.Set("credentialhash = ?", *changes.CredentialHash)
	}

	result, err := query.
		Set("updatedat = ?", at.UTC()).
		Where("email = ?", email).
		Exec(ctx)
	if err != nil {
		return 0, dberr.Wrap(err, "sqlite_account_update_profile_failed")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, dberr.Wrap(err, "sqlite_account_rows_affected_failed")
	}
	return affected, nil
}

// UpdateCredential implements [Repository].
func (repository *BunRepository) UpdateCredential(ctx context.Context, id, credentialHash string, at time.Time) error {
	result, err := repository.db.NewUpdate().
		Model((*accountRow)(nil)).
		Set("credentialhash = ?", credentialHash).
		Set("updatedat = ?", at.UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return dberr.Wrap(err, "sqlite_account_update_credential_failed")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return dberr.Wrap(err, "sqlite_account_rows_affected_failed")
	}
	if affected == 0 {
		return ErrAccountNotFound()
	}
	return nil
}
