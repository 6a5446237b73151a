package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/contactvault/server/internal/model"
)

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	Create(ctx context.Context, username, email, passwordHash string, avatar *string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	UpdateRefreshToken(ctx context.Context, id uuid.UUID, token *string) error
	UpdateResetToken(ctx context.Context, id uuid.UUID, token *string) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ConfirmEmail(ctx context.Context, email string) error
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `id, username, email, password_hash, avatar, refresh_token, reset_token, confirmed, created_at, updated_at`

func scanUser(row *sql.Row) (model.User, error) {
	var user model.User
	var idStr string
	err := row.Scan(
		&idStr,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Avatar,
		&user.RefreshToken,
		&user.ResetToken,
		&user.Confirmed,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to parse user ID: %w", err)
	}
	return user, nil
}

// Create inserts a new unconfirmed user. Returns ErrDuplicateEmail on a unique violation.
func (r *userRepo) Create(ctx context.Context, username, email, passwordHash string, avatar *string) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash, avatar)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		username, email, passwordHash, avatar)
	user, err := scanUser(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return model.User{}, ErrDuplicateEmail
		}
		return model.User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *userRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = $1
	`, email)
	return scanUser(row)
}

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id)
	return scanUser(row)
}

// UpdateRefreshToken sets or clears (nil) the persisted refresh token
func (r *userRepo) UpdateRefreshToken(ctx context.Context, id uuid.UUID, token *string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET refresh_token = $2, updated_at = now() WHERE id = $1
	`, id, token)
	if err != nil {
		return fmt.Errorf("update refresh token: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateResetToken sets or clears (nil) the persisted password-reset token
func (r *userRepo) UpdateResetToken(ctx context.Context, id uuid.UUID, token *string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET reset_token = $2, updated_at = now() WHERE id = $1
	`, id, token)
	if err != nil {
		return fmt.Errorf("update reset token: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the stored password hash
func (r *userRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1
	`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ConfirmEmail marks the user's email as confirmed (one-way)
func (r *userRepo) ConfirmEmail(ctx context.Context, email string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET confirmed = TRUE, updated_at = now() WHERE email = $1
	`, email)
	if err != nil {
		return fmt.Errorf("confirm email: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
