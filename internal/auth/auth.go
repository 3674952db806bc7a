// Package auth registers accounts and checks credentials. There is no
// server-side session: a successful login only echoes the username.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"askme/internal/apperr"
	"askme/internal/db"
	"askme/internal/models"
)

const (
	msgUsernameTaken = "Username already exists. Please choose a different username."
	msgEmailTaken    = "Email already exists."
)

type Manager struct {
	db   db.Querier
	cost int
	// dummyHash is compared against when the username is unknown so both
	// failure paths pay the same bcrypt cost.
	dummyHash []byte
}

func NewManager(q db.Querier, cost int) (*Manager, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("askme-placeholder"), cost)
	if err != nil {
		return nil, err
	}
	return &Manager{db: q, cost: cost, dummyHash: dummy}, nil
}

// Register creates an account. Username then email are checked before
// the insert; the UNIQUE constraints catch anyone who races past them.
func (m *Manager) Register(ctx context.Context, username, email, password string) error {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return apperr.Validation("All fields are required.")
	}

	taken, err := m.exists(ctx, `SELECT id FROM users WHERE username = ?`, username)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Conflict("username", msgUsernameTaken)
	}
	taken, err = m.exists(ctx, `SELECT id FROM users WHERE email = ?`, email)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Conflict("email", msgEmailTaken)
	}

	hash, err := HashPassword(password, m.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return apperr.Validation("Password must be at most 72 bytes.")
	} else if err != nil {
		return apperr.Store("hash error", err)
	}

	_, err = m.db.Insert(ctx,
		`INSERT INTO users(username, email, password_hash, created_at) VALUES(?, ?, ?, ?) RETURNING id`,
		username, email, hash, time.Now().UTC())
	if detail, ok := db.UniqueViolation(err); ok {
		if strings.Contains(detail, "email") {
			return apperr.Conflict("email", msgEmailTaken)
		}
		return apperr.Conflict("username", msgUsernameTaken)
	} else if err != nil {
		return apperr.Store("Error saving user.", err)
	}
	return nil
}

// Authenticate returns the stored username when password matches. Unknown
// users and wrong passwords fail with the same error.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", apperr.Validation("Username and password are required.")
	}

	var u models.User
	err := m.db.Get(ctx, &u,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		_ = bcrypt.CompareHashAndPassword(m.dummyHash, []byte(password))
		return "", apperr.Auth()
	} else if err != nil {
		return "", apperr.Store("Database error.", err)
	}

	if !CheckPassword(password, u.PasswordHash) {
		return "", apperr.Auth()
	}
	return u.Username, nil
}

func (m *Manager) exists(ctx context.Context, query, arg string) (bool, error) {
	var id int64
	err := m.db.Get(ctx, &id, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	} else if err != nil {
		return false, apperr.Store("Database error.", err)
	}
	return true, nil
}

// --- password helpers (bcrypt) ---
func HashPassword(pw string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	return string(b), err
}

func CheckPassword(pw, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
