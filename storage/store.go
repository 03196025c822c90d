// Package storage holds the account and user record store used by the game
// server.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrInvalidAccount  = errors.New("account does not exist")
	ErrInvalidPassword = errors.New("password does not match")
	ErrDuplicateName   = errors.New("name already in use")
	ErrNotFound        = errors.New("record not found")
)

type Account struct {
	ID   uuid.UUID
	Name string
}

// UserData is the persisted progress of one account.
type UserData struct {
	Money     int32
	PlayCount int32
	WinCount  int32
	LoseCount int32
}

// Store persists accounts and their user data. The password argument is
// the client-side hash; implementations must not store it as given.
type Store interface {
	Login(ctx context.Context, name, password string) (Account, error)
	Register(ctx context.Context, name, password string) (Account, error)
	ChangeName(ctx context.Context, id uuid.UUID, name string) error
	UserData(ctx context.Context, id uuid.UUID) (UserData, error)
	SetUserData(ctx context.Context, id uuid.UUID, data UserData) error
}
