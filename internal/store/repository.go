package store

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrPhoneExists reports a registration attempt with an already
	// registered phone number.
	ErrPhoneExists = errors.New("phone number already registered")

	// ErrUnavailable reports that the backing store could not be reached.
	ErrUnavailable = errors.New("store unreachable")
)

// Repository is the narrow persistence surface the endpoints depend on.
// Lookups return (nil, nil) when no row matches.
type Repository interface {
	CreateUser(ctx context.Context, user *User) (*User, error)
	GetUserByPhone(ctx context.Context, phone string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error)
	UpdateLocation(ctx context.Context, id string, latitude, longitude float64) (*User, error)
	CreateProfileVersion(ctx context.Context, v *ProfileVersion) error
	Close() error
}

// Open picks a backend from the data source name: postgres URLs go to the
// pgx-backed store, anything else is treated as a SQLite file path.
func Open(ctx context.Context, dataSourceName string) (Repository, error) {
	if strings.HasPrefix(dataSourceName, "postgres://") || strings.HasPrefix(dataSourceName, "postgresql://") {
		return NewPostgresStore(ctx, dataSourceName)
	}
	return NewSQLiteStore(dataSourceName)
}
