package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/pressly/goose/v3"

	"tanisma/internal/store/migrations"
)

// pgUniqueViolation is the PostgreSQL error code for unique-constraint
// violations.
const pgUniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err = store.runMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, ".")
}

// storeErr maps a driver error onto the repository's sentinel errors.
// Anything that looks like a connectivity problem is ErrUnavailable so
// the API can answer 503 instead of 500.
func storeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrPhoneExists
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return ErrUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrUnavailable
	}
	return fmt.Errorf("%s: %w", op, err)
}

const pgUserColumns = "id, phone, password_hash, first_name, last_name, photo_data_url, latitude, longitude, created_at"

func (s *PostgresStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Phone, &user.PasswordHash, &user.FirstName,
		&user.LastName, &user.PhotoDataURL, &user.Latitude, &user.Longitude, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr("failed to scan user", err)
	}
	return &user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *User) (*User, error) {
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, phone, password_hash, first_name, last_name, photo_data_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Phone, user.PasswordHash, user.FirstName, user.LastName, user.PhotoDataURL, user.CreatedAt)
	if err != nil {
		return nil, storeErr("failed to insert user", err)
	}
	return s.GetUserByID(ctx, user.ID)
}

func (s *PostgresStore) GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+pgUserColumns+" FROM users WHERE phone = $1", phone)
	return s.scanUser(row)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+pgUserColumns+" FROM users WHERE id = $1", id)
	return s.scanUser(row)
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error) {
	query := "UPDATE users SET "
	args := []any{}
	n := 0
	appendSet := func(col string, val any) {
		n++
		query += fmt.Sprintf("%s = $%d, ", col, n)
		args = append(args, val)
	}
	if upd.FirstName != nil {
		appendSet("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		appendSet("last_name", *upd.LastName)
	}
	if upd.PhotoDataURL != nil {
		appendSet("photo_data_url", *upd.PhotoDataURL)
	}
	if n == 0 {
		return s.GetUserByID(ctx, id)
	}
	query = query[:len(query)-2] + fmt.Sprintf(" WHERE id = $%d", n+1)
	args = append(args, id)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, storeErr("failed to update profile", err)
	}
	return s.GetUserByID(ctx, id)
}

func (s *PostgresStore) UpdateLocation(ctx context.Context, id string, latitude, longitude float64) (*User, error) {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET latitude = $1, longitude = $2 WHERE id = $3", latitude, longitude, id)
	if err != nil {
		return nil, storeErr("failed to update location", err)
	}
	return s.GetUserByID(ctx, id)
}

func (s *PostgresStore) CreateProfileVersion(ctx context.Context, v *ProfileVersion) error {
	v.ID = uuid.NewString()
	v.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_profile_versions (id, user_id, phone, first_name, last_name, photo_data_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.ID, v.UserID, v.Phone, v.FirstName, v.LastName, v.PhotoDataURL, v.CreatedAt)
	if err != nil {
		return storeErr("failed to insert profile version", err)
	}
	return nil
}
