package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eringen/inkpost/model"
)

const userColumns = `id, name, email, password, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	var createdAt, updatedAt string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdAt, &updatedAt); err != nil {
		return model.User{}, err
	}
	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.User{}, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// GetUserByEmail returns the user with the given email or model.ErrNotFound.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// GetUserByID returns the user with the given id or model.ErrNotFound.
func (s *Store) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}
	return u, nil
}

// CreateUser inserts a user and returns it with its generated id and timestamps.
// A duplicate email yields model.ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, email, password, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		u.Name, u.Email, u.PasswordHash, formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, model.ErrDuplicate
		}
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, fmt.Errorf("failed to read user id: %w", err)
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return u, nil
}
