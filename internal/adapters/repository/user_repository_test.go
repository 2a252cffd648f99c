package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

const (
	userID1       = "0d4e8f2a-6b1c-4c3d-8e5f-7a9b0c1d2e31"
	userID2       = "0d4e8f2a-6b1c-4c3d-8e5f-7a9b0c1d2e32"
	userID3       = "0d4e8f2a-6b1c-4c3d-8e5f-7a9b0c1d2e33"
	missingUserID = "9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b"
)

var userRowColumns = []string{
	"id", "fullname", "email", "password", "phone_number", "age", "country", "address",
	"status", "role", "credential_version", "created_at", "updated_at",
}

func testUser() *domain.User {
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &domain.User{
		ID:                userID1,
		FullName:          "Alice Example",
		Email:             "alice@example.com",
		Password:          "$2a$10$hash",
		Status:            0,
		Role:              domain.RoleUser,
		CredentialVersion: 1,
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}
}

func TestUserRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	u := testUser()

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.FullName, u.Email, u.Password, "", sqlmock.AnyArg(), "", "", 0, "user", 1, u.CreatedAt, u.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), u))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), testUser())
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)
}

func TestUserRepository_CreateDBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`INSERT INTO users`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), testUser())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: db down")
	assert.NotErrorIs(t, err, domain.ErrDuplicateIdentity)
}

func TestUserRepository_FindByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	u := testUser()

	rows := sqlmock.NewRows(userRowColumns).
		AddRow(u.ID, u.FullName, u.Email, u.Password, "", int64(30), "", "", int64(0), "admin", int64(3), u.CreatedAt, u.UpdatedAt)
	mock.ExpectQuery(`(?s)SELECT .+ FROM users WHERE email = \$1`).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	got, err := repo.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, userID1, got.ID)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.Equal(t, 3, got.CredentialVersion)
	require.NotNil(t, got.Age)
	assert.Equal(t, 30, *got.Age)
}

func TestUserRepository_FindByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`(?s)SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(missingUserID).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), missingUserID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepository_NonUUIDIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	_, err := repo.FindByID(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.UpdatePassword(context.Background(), "abc", "hash")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	u := testUser()
	u.ID = "abc"
	assert.ErrorIs(t, repo.UpdateProfile(context.Background(), u), domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`UPDATE users\s+SET password = \$2, credential_version = credential_version \+ 1`).
		WithArgs(userID1, "new-hash", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"credential_version"}).AddRow(int64(2)))

	version, err := repo.UpdatePassword(context.Background(), userID1, "new-hash")
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestUserRepository_UpdatePasswordNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`UPDATE users`).WillReturnError(sql.ErrNoRows)

	_, err := repo.UpdatePassword(context.Background(), missingUserID, "hash")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepository_UpdateProfile(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	u := testUser()

	mock.ExpectExec(`UPDATE users\s+SET fullname = \$2`).
		WithArgs(u.ID, u.FullName, "", sqlmock.AnyArg(), "", "", u.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateProfile(context.Background(), u))

	mock.ExpectExec(`UPDATE users`).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdateProfile(context.Background(), u), domain.ErrNotFound)
}

func TestUserRepository_ListPaginates(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	t1 := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	t3 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(userRowColumns).
		AddRow(userID3, "C", "c@example.com", "h", "", nil, "", "", int64(0), "user", int64(1), t1, t1).
		AddRow(userID2, "B", "b@example.com", "h", "", nil, "", "", int64(0), "user", int64(1), t2, t2).
		AddRow(userID1, "A", "a@example.com", "h", "", nil, "", "", int64(0), "user", int64(1), t3, t3)
	mock.ExpectQuery(`(?s)SELECT .+ FROM users\s+ORDER BY created_at DESC, id DESC\s+LIMIT \$1`).
		WithArgs(3).
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), domain.Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, list.Users, 2)
	assert.Nil(t, list.Users[0].Age)
	require.NotEmpty(t, list.NextCursor)

	next := sqlmock.NewRows(userRowColumns).
		AddRow(userID1, "A", "a@example.com", "h", "", nil, "", "", int64(0), "user", int64(1), t3, t3)
	mock.ExpectQuery(`WHERE \(created_at, id\) < \(\$1, \$2\)`).
		WithArgs(t2, userID2, 3).
		WillReturnRows(next)

	list, err = repo.List(context.Background(), domain.Page{Limit: 2, Cursor: list.NextCursor})
	require.NoError(t, err)
	require.Len(t, list.Users, 1)
	assert.Empty(t, list.NextCursor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ListInvalidCursor(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewUserRepository(db)

	_, err := repo.List(context.Background(), domain.Page{Cursor: "%%%"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
