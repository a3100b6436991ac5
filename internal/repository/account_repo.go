package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-contacts-api/internal/model"
)

const uniqueViolation = "23505"

const accountColumns = `id::text, username, email, password_hash, refresh_token, confirmed, avatar, created_at, updated_at`

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func scanAccount(row pgx.Row) (model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.RefreshToken,
		&a.Confirmed, &a.Avatar, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, strings.TrimSpace(email)))

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, model.ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("find account by email: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (model.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Account{}, model.ErrAccountNotFound
	}

	a, err := scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, model.ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("find account by id: %w", err)
	}
	return a, nil
}

// Create stores a new, unconfirmed account. A duplicate email surfaces as
// model.ErrAccountExists.
func (r *AccountRepository) Create(ctx context.Context, a model.Account) (model.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	created, err := scanAccount(r.pool.QueryRow(ctx,
		`INSERT INTO accounts (id, username, email, password_hash, confirmed, avatar, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, false, $5, $6, $6)
		 RETURNING `+accountColumns,
		a.ID, a.Username, a.Email, a.PasswordHash, a.Avatar, now))

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return model.Account{}, model.ErrAccountExists
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("create account: %w", err)
	}
	return created, nil
}

func (r *AccountRepository) SetRefreshToken(ctx context.Context, accountID string, token *string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET refresh_token = $2, updated_at = $3 WHERE id = $1`,
		accountID, token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

// ReplaceRefreshToken swaps current for next in one conditional statement.
// It reports false when the stored token is no longer current.
func (r *AccountRepository) ReplaceRefreshToken(ctx context.Context, accountID string, current string, next string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET refresh_token = $3, updated_at = $4
		 WHERE id = $1 AND refresh_token = $2`,
		accountID, current, next, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("replace refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkConfirmed only writes when the account is still unconfirmed and reports
// whether it did.
func (r *AccountRepository) MarkConfirmed(ctx context.Context, email string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET confirmed = true, updated_at = $2
		 WHERE email = $1 AND NOT confirmed`,
		strings.TrimSpace(email), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark account confirmed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
