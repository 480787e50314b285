// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// User is a local account allowed to log in to the box.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"` // bcrypt
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	userKeyPrefix     = "users:"
	userNameKeyPrefix = "users_name:"
)

// UserRepo provides access to the users collection.
type UserRepo struct {
	store *Store
}

// Insert persists a new user.
func (r *UserRepo) Insert(ctx context.Context, u *User) error {
	if u.Username == "" {
		return fmt.Errorf("insert user: username is required")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	key := []byte(userKeyPrefix + u.ID)
	nameIdx := []byte(userNameKeyPrefix + u.Username)
	return r.store.putDoc(key, u, nameIdx)
}

// GetByUsername resolves a user through the username index.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	var id []byte
	err := r.store.getRaw([]byte(userNameKeyPrefix+username), &id)
	if err != nil {
		return nil, err
	}

	var u User
	if err := r.store.getDoc(id, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns every user account. The collection is small (a household), so
// a full prefix scan per poll pass is fine.
func (r *UserRepo) List(ctx context.Context) ([]User, error) {
	prefix := []byte(userKeyPrefix)

	var users []User
	err := r.store.iteratePrefix(prefix, func(txn *badger.Txn, val []byte) error {
		var u User
		if err := json.Unmarshal(val, &u); err != nil {
			return fmt.Errorf("unmarshal user: %w", err)
		}
		users = append(users, u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Get returns one user by id.
func (r *UserRepo) Get(ctx context.Context, id string) (*User, error) {
	var u User
	if err := r.store.getDoc([]byte(userKeyPrefix+id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}
