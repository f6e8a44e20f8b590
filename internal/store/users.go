// ABOUTME: User credential records and their role assignments in SQLite
// ABOUTME: Create/update run in a transaction so a user and its roles change together

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const userColumns = `id, username, email, password_hash, created_at, updated_at`

// CreateUser inserts a new user and its roles.
// Returns ErrUsernameExists or ErrEmailExists on a uniqueness conflict.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.Username, u.Email, u.PasswordHash, formatTime(u.CreatedAt), formatTime(u.UpdatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return uniqueViolation(err)
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading user id: %w", err)
	}

	if err := insertRoles(ctx, tx, id, u.Roles); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing user: %w", err)
	}

	u.ID = id
	s.logger.Debug("created user", "id", id, "username", u.Username, "roles", u.Roles.Strings())
	return nil
}

func insertRoles(ctx context.Context, tx *sql.Tx, userID int64, roles RoleSet) error {
	for _, r := range roles.Sorted() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role) VALUES (?, ?)`, userID, string(r),
		); err != nil {
			return fmt.Errorf("inserting role %s: %w", r, err)
		}
	}
	return nil
}

// GetUser retrieves a user by ID.
// Returns ErrUserNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return s.loadUser(ctx, row)
}

// GetUserByUsername retrieves a user by exact username.
// Returns ErrUserNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return s.loadUser(ctx, row)
}

func (s *SQLiteStore) loadUser(ctx context.Context, row *sql.Row) (*User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	roles, err := s.rolesFor(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return u, nil
}

func scanUser(scanner interface{ Scan(dest ...any) error }) (*User, error) {
	var u User
	var createdAt, updatedAt string
	if err := scanner.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &u, nil
}

func (s *SQLiteStore) rolesFor(ctx context.Context, userID int64) (RoleSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role FROM user_roles WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying roles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	roles := NewRoleSet()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		r, err := ParseRoleName(name)
		if err != nil {
			return nil, err
		}
		roles.Add(r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}
	return roles, nil
}

// ListUsers returns all users ordered by ID.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}

	users := []*User{}
	byID := make(map[int64]*User)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		u.Roles = NewRoleSet()
		users = append(users, u)
		byID[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	_ = rows.Close()

	roleRows, err := s.db.QueryContext(ctx, `SELECT user_id, role FROM user_roles`)
	if err != nil {
		return nil, fmt.Errorf("querying roles: %w", err)
	}
	defer func() { _ = roleRows.Close() }()

	for roleRows.Next() {
		var userID int64
		var name string
		if err := roleRows.Scan(&userID, &name); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		r, err := ParseRoleName(name)
		if err != nil {
			return nil, err
		}
		if u, ok := byID[userID]; ok {
			u.Roles.Add(r)
		}
	}
	if err := roleRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}

	return users, nil
}

// UpdateUser replaces the username, email and roles of an existing user.
// PasswordHash is rewritten only when non-empty.
// Returns ErrUserNotFound, ErrUsernameExists or ErrEmailExists.
func (s *SQLiteStore) UpdateUser(ctx context.Context, u *User) error {
	u.UpdatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET username = ?, email = ?,
		    password_hash = CASE WHEN ? = '' THEN password_hash ELSE ? END,
		    updated_at = ?
		WHERE id = ?
	`, u.Username, u.Email, u.PasswordHash, u.PasswordHash, formatTime(u.UpdatedAt), u.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return uniqueViolation(err)
		}
		return fmt.Errorf("updating user: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = ?`, u.ID); err != nil {
		return fmt.Errorf("clearing roles: %w", err)
	}
	if err := insertRoles(ctx, tx, u.ID, u.Roles); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing user: %w", err)
	}

	s.logger.Debug("updated user", "id", u.ID, "username", u.Username, "roles", u.Roles.Strings())
	return nil
}

// DeleteUser removes a user; role rows go with it through ON DELETE CASCADE.
// Returns ErrUserNotFound if the user doesn't exist.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}

	s.logger.Debug("deleted user", "id", id)
	return nil
}

// CountUsers returns the number of stored users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}
