package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *SQLiteStore) *User {
	t.Helper()
	user, err := s.CreateUser(context.Background(), &User{
		Phone:        "+905551112233",
		PasswordHash: "$2a$10$hash",
		FirstName:    "Ali",
		LastName:     "Veli",
		PhotoDataURL: "data:image/jpeg;base64,/9j/4AAQ",
	})
	require.NoError(t, err)
	return user
}

func TestCreateUserAssignsIDAndTimestamp(t *testing.T) {
	s := newTestStore(t)

	user := seedUser(t, s)

	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.Nil(t, user.Latitude)
	assert.Nil(t, user.Longitude)
}

func TestCreateUserDuplicatePhone(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s)

	_, err := s.CreateUser(context.Background(), &User{
		Phone:        "+905551112233",
		PasswordHash: "$2a$10$other",
		FirstName:    "Ayşe",
		LastName:     "Fatma",
		PhotoDataURL: "data:image/png;base64,iVBOR",
	})

	assert.ErrorIs(t, err, ErrPhoneExists)
}

func TestLookupsReturnNilWhenMissing(t *testing.T) {
	s := newTestStore(t)

	byPhone, err := s.GetUserByPhone(context.Background(), "+905550000000")
	require.NoError(t, err)
	assert.Nil(t, byPhone)

	byID, err := s.GetUserByID(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, byID)
}

func TestGetUserByPhone(t *testing.T) {
	s := newTestStore(t)
	created := seedUser(t, s)

	found, err := s.GetUserByPhone(context.Background(), "+905551112233")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "$2a$10$hash", found.PasswordHash)
}

func TestUpdateProfilePartial(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s)

	firstName := "Ayşe"
	updated, err := s.UpdateProfile(context.Background(), user.ID, ProfileUpdate{FirstName: &firstName})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, "Ayşe", updated.FirstName)
	assert.Equal(t, "Veli", updated.LastName)
	assert.Equal(t, user.PhotoDataURL, updated.PhotoDataURL)
}

func TestUpdateProfileAllFields(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s)

	firstName, lastName, photo := "Ayşe", "Fatma", "data:image/png;base64,iVBOR"
	updated, err := s.UpdateProfile(context.Background(), user.ID, ProfileUpdate{
		FirstName:    &firstName,
		LastName:     &lastName,
		PhotoDataURL: &photo,
	})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, "Ayşe", updated.FirstName)
	assert.Equal(t, "Fatma", updated.LastName)
	assert.Equal(t, photo, updated.PhotoDataURL)
}

func TestUpdateLocationOverwrites(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s)

	updated, err := s.UpdateLocation(context.Background(), user.ID, 41.0082, 28.9784)
	require.NoError(t, err)
	require.NotNil(t, updated.Latitude)
	assert.InDelta(t, 41.0082, *updated.Latitude, 1e-9)
	assert.InDelta(t, 28.9784, *updated.Longitude, 1e-9)

	updated, err = s.UpdateLocation(context.Background(), user.ID, 39.9208, 32.8541)
	require.NoError(t, err)
	assert.InDelta(t, 39.9208, *updated.Latitude, 1e-9)
}

func TestProfileVersionArchive(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s)

	require.NoError(t, s.CreateProfileVersion(context.Background(), &ProfileVersion{
		UserID:       user.ID,
		Phone:        user.Phone,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		PhotoDataURL: user.PhotoDataURL,
	}))

	firstName := "Ayşe"
	_, err := s.UpdateProfile(context.Background(), user.ID, ProfileUpdate{FirstName: &firstName})
	require.NoError(t, err)

	versions, err := s.ProfileVersionsByUserID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "Ali", versions[0].FirstName)
	assert.NotEmpty(t, versions[0].ID)
}

func TestOpenDispatchesToSQLite(t *testing.T) {
	repo, err := Open(context.Background(), filepath.Join(t.TempDir(), "dispatch.db"))
	require.NoError(t, err)
	defer repo.Close()

	_, ok := repo.(*SQLiteStore)
	assert.True(t, ok)
}
