package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/sledilnik/internal/model"
)

var (
	// ErrUsernameTaken is returned when an active user already has the username.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrUserNotFound is returned when no active user has the ID.
	ErrUserNotFound = errors.New("user not found")
	// ErrLastAdmin is returned when a change would leave no active admin.
	ErrLastAdmin = errors.New("at least one admin must remain")
)

const userColumns = `id, username, password_hash, role, created_at, deleted_at`

// keepsAnAdmin is true for rows whose change leaves another active admin.
const keepsAnAdmin = `(role <> 'admin' OR
	(SELECT COUNT(*) FROM users WHERE role = 'admin' AND deleted_at IS NULL) > 1)`

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.DeletedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser adds an account. The username is what movements record as the
// actor, so it must be unique among active users.
func CreateUser(ctx context.Context, q Querier, username, passwordHash, role string) (*model.User, error) {
	if !model.ValidRole(role) {
		return nil, fmt.Errorf("creating user %s: invalid role %q", username, role)
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		username, passwordHash, role,
	)
	if IsUniqueViolation(err) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("creating user %s: %w", username, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}
	return GetUser(ctx, q, id)
}

// GetUser returns a user by ID, deactivated or not. It returns nil when there
// is no such row.
func GetUser(ctx context.Context, q Querier, id int64) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %d: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername returns the account signing in as username. The active
// account wins over deactivated ones that used the same name.
func GetUserByUsername(ctx context.Context, q Querier, username string) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?
		 ORDER BY deleted_at IS NOT NULL, id DESC LIMIT 1`, username,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", username, err)
	}
	return u, nil
}

// ListUsers returns active users, optionally only those with role.
func ListUsers(ctx context.Context, q Querier, role string) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`
	var args []any
	if role != "" {
		query += ` AND role = ?`
		args = append(args, role)
	}
	query += ` ORDER BY username`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// SetUserRole changes an active user's role. Demoting the last admin fails
// with ErrLastAdmin.
func SetUserRole(ctx context.Context, q Querier, id int64, role string) error {
	if !model.ValidRole(role) {
		return fmt.Errorf("setting role of user %d: invalid role %q", id, role)
	}

	cond := `id = ? AND deleted_at IS NULL`
	if role != model.RoleAdmin {
		cond += ` AND ` + keepsAnAdmin
	}
	result, err := q.ExecContext(ctx, `UPDATE users SET role = ? WHERE `+cond, role, id)
	if err != nil {
		return fmt.Errorf("setting role of user %d: %w", id, err)
	}
	return userChanged(ctx, q, result, id)
}

// SetUserPassword replaces an active user's password hash.
func SetUserPassword(ctx context.Context, q Querier, id int64, passwordHash string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("setting password of user %d: %w", id, err)
	}
	return userChanged(ctx, q, result, id)
}

// DeactivateUser soft-deletes a user. Movements keep the username they were
// signed with. Deactivating the last admin fails with ErrLastAdmin.
func DeactivateUser(ctx context.Context, q Querier, id int64) error {
	result, err := q.ExecContext(ctx,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL AND `+keepsAnAdmin, id,
	)
	if err != nil {
		return fmt.Errorf("deactivating user %d: %w", id, err)
	}
	return userChanged(ctx, q, result, id)
}

// userChanged turns a guarded update that touched no row into ErrUserNotFound
// or ErrLastAdmin.
func userChanged(ctx context.Context, q Querier, result sql.Result, id int64) error {
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("updating user %d: %w", id, err)
	} else if n == 1 {
		return nil
	}

	u, err := GetUser(ctx, q, id)
	if err != nil {
		return err
	}
	if u == nil || u.DeletedAt != nil {
		return fmt.Errorf("user %d: %w", id, ErrUserNotFound)
	}
	return fmt.Errorf("user %d: %w", id, ErrLastAdmin)
}
