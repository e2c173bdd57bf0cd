package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// User is an operator account. PasswordHash never leaves the process.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"nome"`
	CPF          string     `json:"cpf"`
	PasswordHash string     `json:"-"`
	Registration string     `json:"matricula"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	AvatarURL    string     `json:"avatarUrl,omitempty"`
	FCMToken     string     `json:"fcmToken,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

// UserPatch carries the fields of a partial user update.
type UserPatch struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Registration *string
	Role         *string
	AvatarURL    *string
	FCMToken     *string
}

// Apply returns u with the patch's non-nil fields applied.
func (p UserPatch) Apply(u User) User {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&u.Name, p.Name)
	set(&u.Email, p.Email)
	set(&u.PasswordHash, p.PasswordHash)
	set(&u.Registration, p.Registration)
	set(&u.Role, p.Role)
	set(&u.AvatarURL, p.AvatarURL)
	set(&u.FCMToken, p.FCMToken)
	return u
}

// UserRepository persists users and their refresh tokens.
type UserRepository interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id string, patch UserPatch) (User, error)

	SaveRefreshToken(ctx context.Context, userID, token string) error
	RefreshTokenActive(ctx context.Context, userID, token string) (bool, error)
	// RevokeRefreshTokens deactivates token, or every token of the user when
	// token is empty.
	RevokeRefreshTokens(ctx context.Context, userID, token string) error
}

const userColumns = `id, name, cpf, password_hash, registration, email, role, avatar_url, fcm_token, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.CPF, &u.PasswordHash, &u.Registration, &u.Email, &u.Role,
		&u.AvatarURL, &u.FCMToken, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUser inserts u. A duplicate email or CPF yields ErrConflict.
func (s *Store) CreateUser(ctx context.Context, u User) (User, error) {
	u.CreatedAt = s.now()
	created, err := scanUser(s.pool.QueryRow(ctx,
		`INSERT INTO users (id, name, cpf, password_hash, registration, email, role, avatar_url, fcm_token, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+userColumns,
		u.ID, u.Name, u.CPF, u.PasswordHash, u.Registration, u.Email, u.Role, u.AvatarURL, u.FCMToken, u.CreatedAt))
	if isUniqueViolation(err) {
		return User{}, ErrConflict
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return created, nil
}

// GetUser returns a user by id or ErrNotFound.
func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	return s.getUserWhere(ctx, `id = $1`, id)
}

// GetUserByEmail returns a user by email or ErrNotFound.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUserWhere(ctx, `email = $1`, email)
}

func (s *Store) getUserWhere(ctx context.Context, where string, arg string) (User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by creation.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser applies patch inside a transaction.
func (s *Store) UpdateUser(ctx context.Context, id string, patch UserPatch) (User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return User{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	current, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to load user: %w", err)
	}

	next := patch.Apply(current)
	updated, err := scanUser(tx.QueryRow(ctx,
		`UPDATE users SET name = $2, email = $3, password_hash = $4, registration = $5,
		        role = $6, avatar_url = $7, fcm_token = $8, updated_at = $9
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, next.Name, next.Email, next.PasswordHash, next.Registration, next.Role, next.AvatarURL, next.FCMToken, s.now()))
	if isUniqueViolation(err) {
		return User{}, ErrConflict
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to update user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return updated, nil
}

// SaveRefreshToken records an active refresh token for the user.
func (s *Store) SaveRefreshToken(ctx context.Context, userID, token string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (token, user_id, active, created_at) VALUES ($1, $2, TRUE, $3)
		 ON CONFLICT (token) DO UPDATE SET active = TRUE`,
		token, userID, s.now())
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// RefreshTokenActive reports whether token is stored and active for the user.
func (s *Store) RefreshTokenActive(ctx context.Context, userID, token string) (bool, error) {
	var active bool
	err := s.pool.QueryRow(ctx,
		`SELECT active FROM refresh_tokens WHERE token = $1 AND user_id = $2`, token, userID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check refresh token: %w", err)
	}
	return active, nil
}

// RevokeRefreshTokens deactivates one token or all of the user's tokens.
func (s *Store) RevokeRefreshTokens(ctx context.Context, userID, token string) error {
	var err error
	if token == "" {
		_, err = s.pool.Exec(ctx, `UPDATE refresh_tokens SET active = FALSE WHERE user_id = $1`, userID)
	} else {
		_, err = s.pool.Exec(ctx, `UPDATE refresh_tokens SET active = FALSE WHERE user_id = $1 AND token = $2`, userID, token)
	}
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}
