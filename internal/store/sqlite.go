package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        phone TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        first_name TEXT NOT NULL,
        last_name TEXT NOT NULL,
        photo_data_url TEXT NOT NULL,
        latitude REAL,
        longitude REAL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS user_profile_versions (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        phone TEXT NOT NULL,
        first_name TEXT NOT NULL,
        last_name TEXT NOT NULL,
        photo_data_url TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

const userColumns = "id, phone, password_hash, first_name, last_name, photo_data_url, latitude, longitude, created_at"

func scanUser(row *sql.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Phone, &user.PasswordHash, &user.FirstName,
		&user.LastName, &user.PhotoDataURL, &user.Latitude, &user.Longitude, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) (*User, error) {
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()

	stmt, err := s.db.PrepareContext(ctx,
		"INSERT INTO users (id, phone, password_hash, first_name, last_name, photo_data_url, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare user insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, user.ID, user.Phone, user.PasswordHash,
		user.FirstName, user.LastName, user.PhotoDataURL, user.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrPhoneExists
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return s.GetUserByID(ctx, user.ID)
}

func (s *SQLiteStore) GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE phone = ?", phone)
	return scanUser(row)
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUser(row)
}

func (s *SQLiteStore) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error) {
	query := "UPDATE users SET "
	args := []any{}
	if upd.FirstName != nil {
		query += "first_name = ?, "
		args = append(args, *upd.FirstName)
	}
	if upd.LastName != nil {
		query += "last_name = ?, "
		args = append(args, *upd.LastName)
	}
	if upd.PhotoDataURL != nil {
		query += "photo_data_url = ?, "
		args = append(args, *upd.PhotoDataURL)
	}
	if len(args) == 0 {
		return s.GetUserByID(ctx, id)
	}
	query = query[:len(query)-2] + " WHERE id = ?"
	args = append(args, id)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

func (s *SQLiteStore) UpdateLocation(ctx context.Context, id string, latitude, longitude float64) (*User, error) {
	_, err := s.db.ExecContext(ctx, "UPDATE users SET latitude = ?, longitude = ? WHERE id = ?",
		latitude, longitude, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update location: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

func (s *SQLiteStore) CreateProfileVersion(ctx context.Context, v *ProfileVersion) error {
	v.ID = uuid.NewString()
	v.CreatedAt = time.Now().UTC()

	stmt, err := s.db.PrepareContext(ctx,
		"INSERT INTO user_profile_versions (id, user_id, phone, first_name, last_name, photo_data_url, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare profile version insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, v.ID, v.UserID, v.Phone, v.FirstName, v.LastName, v.PhotoDataURL, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert profile version: %w", err)
	}
	return nil
}

// ProfileVersionsByUserID returns the archived snapshots for a user,
// oldest first.
func (s *SQLiteStore) ProfileVersionsByUserID(ctx context.Context, userID string) ([]ProfileVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, phone, first_name, last_name, photo_data_url, created_at FROM user_profile_versions WHERE user_id = ? ORDER BY created_at ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query profile versions: %w", err)
	}
	defer rows.Close()

	var versions []ProfileVersion
	for rows.Next() {
		var v ProfileVersion
		if err := rows.Scan(&v.ID, &v.UserID, &v.Phone, &v.FirstName, &v.LastName, &v.PhotoDataURL, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile version row: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
