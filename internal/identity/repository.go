package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the accounts table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id               UUID PRIMARY KEY,
    email            TEXT NOT NULL UNIQUE,
    password_hash    BYTEA,
    display_name     TEXT NOT NULL DEFAULT '',
    phone_number     TEXT NOT NULL DEFAULT '',
    email_verified   BOOLEAN NOT NULL DEFAULT FALSE,
    token_version    INTEGER NOT NULL DEFAULT 0,
    provider         TEXT NOT NULL DEFAULT 'password',
    provider_subject TEXT,
    created_at       TIMESTAMPTZ NOT NULL,
    last_login       TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS accounts_provider_subject_idx
    ON accounts (provider, provider_subject) WHERE provider_subject IS NOT NULL;
`

const uniqueViolation = "23505"

// Repository persists accounts.
type Repository interface {
	Create(ctx context.Context, account Account) error
	FindByID(ctx context.Context, id string) (Account, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByProvider(ctx context.Context, provider, subject string) (Account, error)
	MarkEmailVerified(ctx context.Context, id string) error
	UpdateTokenVersion(ctx context.Context, id string, version int) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed account repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectAccount = `SELECT id, email, password_hash, display_name, phone_number, email_verified,
    token_version, provider, provider_subject, created_at, last_login FROM accounts`

// Create inserts a new account.
func (r *PostgresRepository) Create(ctx context.Context, account Account) error {
	id, err := uuid.Parse(account.ID)
	if err != nil {
		return err
	}
	var subject *string
	if account.ProviderSubject != "" {
		subject = &account.ProviderSubject
	}
	_, err = r.db.Exec(ctx, `INSERT INTO accounts (id, email, password_hash, display_name, phone_number,
        email_verified, token_version, provider, provider_subject, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, account.Email, account.PasswordHash, account.DisplayName, account.PhoneNumber,
		account.EmailVerified, account.TokenVersion, account.Provider, subject, account.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailAlreadyExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// FindByID fetches an account by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrAccountNotFound
	}
	return r.scanOne(r.db.QueryRow(ctx, selectAccount+` WHERE id = $1`, accountID))
}

// FindByEmail fetches an account by its normalized email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectAccount+` WHERE email = $1`, email))
}

// FindByProvider fetches the account linked to a social identity.
func (r *PostgresRepository) FindByProvider(ctx context.Context, provider, subject string) (Account, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectAccount+` WHERE provider = $1 AND provider_subject = $2`, provider, subject))
}

// MarkEmailVerified flags the account email as confirmed.
func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, id string) error {
	return r.update(ctx, `UPDATE accounts SET email_verified = TRUE WHERE id = $1`, id)
}

// UpdateTokenVersion stores a new session token version.
func (r *PostgresRepository) UpdateTokenVersion(ctx context.Context, id string, version int) error {
	return r.update(ctx, `UPDATE accounts SET token_version = $2 WHERE id = $1`, id, version)
}

// TouchLastLogin records a successful sign-in.
func (r *PostgresRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, `UPDATE accounts SET last_login = $2 WHERE id = $1`, id, at.UTC())
}

func (r *PostgresRepository) update(ctx context.Context, sql, id string, args ...any) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrAccountNotFound
	}
	cmd, err := r.db.Exec(ctx, sql, append([]any{accountID}, args...)...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(row pgx.Row) (Account, error) {
	var (
		id        uuid.UUID
		subject   *string
		createdAt time.Time
		account   Account
	)
	err := row.Scan(&id, &account.Email, &account.PasswordHash, &account.DisplayName, &account.PhoneNumber,
		&account.EmailVerified, &account.TokenVersion, &account.Provider, &subject, &createdAt, &account.LastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	account.ID = id.String()
	account.CreatedAt = createdAt.UTC()
	if subject != nil {
		account.ProviderSubject = *subject
	}
	return account, nil
}
