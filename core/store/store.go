// Package store persists Profile records keyed by user identity.
package store

import (
	"context"
	"errors"

	"github.com/m3rciful/financebot/core/domain"
)

// ErrNotFound is returned when no profile exists for the identity.
var ErrNotFound = errors.New("store: profile not found")

// RegisterResult reports the outcome of RegisterIfAbsent.
type RegisterResult int

const (
	// Created means this call inserted the profile.
	Created RegisterResult = iota + 1
	// AlreadyExists means a profile was already present and left untouched.
	AlreadyExists
)

func (r RegisterResult) String() string {
	switch r {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	}
	return "unknown"
}

// Store is the durable profile store shared by every identity.
type Store interface {
	// GetProfile returns the profile for userID or ErrNotFound.
	GetProfile(ctx context.Context, userID int64) (domain.Profile, error)
	// RegisterIfAbsent atomically inserts a profile when none exists.
	RegisterIfAbsent(ctx context.Context, id domain.Identity) (RegisterResult, error)
	// Commit replaces the stored answers of a registered profile. It returns
	// ErrNotFound when userID has never registered.
	Commit(ctx context.Context, userID int64, answers domain.Answers) (domain.Profile, error)
	Ping(ctx context.Context) error
	Close() error
}
