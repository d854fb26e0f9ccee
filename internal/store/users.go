package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rollbook/internal/record"
)

const userSelect = `SELECT username, password_hash, role, student_id, must_change_password FROM users`

// CreateUser inserts a user account.
//
// No existence check is made first: a username collision surfaces as
// ErrCodeDuplicateKey from the primary key.
func (s *Store) CreateUser(ctx context.Context, u record.User) error {
	return createUser(ctx, s.db, u)
}

func createUser(ctx context.Context, q querier, u record.User) error {
	if err := record.Validate(u); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, student_id, must_change_password)
		VALUES (?, ?, ?, ?, ?)
	`, u.Username, u.PasswordHash, string(u.Role), nullText(u.StudentID), u.MustChangePassword)
	if err != nil {
		if isPrimaryKeyViolation(err) {
			return record.Errorf(record.ErrCodeDuplicateKey, "user %q already exists", u.Username)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUser returns the account with the given username.
// Returns ErrCodeNotFound if there is none.
func (s *Store) GetUser(ctx context.Context, username string) (record.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, userSelect+` WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return record.User{}, record.Errorf(record.ErrCodeNotFound, "user %q not found", username)
	}
	if err != nil {
		return record.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UserExists reports whether an account with the given username exists.
func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE username = ?`, username).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return count > 0, nil
}

// ListUsers returns every account ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]record.User, error) {
	rows, err := s.db.QueryContext(ctx, userSelect+` ORDER BY username COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []record.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// SetPassword overwrites the stored hash and the must-change flag of a user.
// Returns ErrCodeNotFound if there is no such user.
func (s *Store) SetPassword(ctx context.Context, username, hash string, mustChange bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, must_change_password = ? WHERE username = ?
	`, hash, mustChange, username)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return requireRow(res, "user %q", username)
}

// SeedAdmin inserts u only if the users table is empty.
// Returns true if u was inserted. The check and insert share one transaction.
func (s *Store) SeedAdmin(ctx context.Context, u record.User) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("seed admin: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, fmt.Errorf("seed admin: count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if err := createUser(ctx, tx, u); err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("seed admin: commit: %w", err)
	}
	return true, nil
}

func scanUser(row rowScanner) (record.User, error) {
	var (
		u         record.User
		role      string
		studentID sql.NullString
	)
	if err := row.Scan(&u.Username, &u.PasswordHash, &role, &studentID, &u.MustChangePassword); err != nil {
		return record.User{}, err
	}
	u.Role = record.Role(role)
	u.StudentID = studentID.String
	return u, nil
}
