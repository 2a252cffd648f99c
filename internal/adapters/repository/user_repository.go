package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/domain"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

const userColumns = `id, fullname, email, password, phone_number, age, country, address,
		status, role, credential_version, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, fullname, email, password, phone_number, age, country, address,
		status, role, credential_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		user.ID,
		user.FullName,
		user.Email,
		user.Password,
		user.PhoneNumber,
		nullableAge(user.Age),
		user.Country,
		user.Address,
		user.Status,
		string(user.Role),
		user.CredentialVersion,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateIdentity
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// List returns users newest first, keyed on (created_at, id).
func (r *UserRepository) List(ctx context.Context, page domain.Page) (*domain.UserList, error) {
	page = page.Normalize()
	after, err := decodeCursor(page.Cursor)
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	if after == nil {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+userColumns+` FROM users
			ORDER BY created_at DESC, id DESC
			LIMIT $1`, page.Limit+1)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+userColumns+` FROM users
			WHERE (created_at, id) < ($1, $2)
			ORDER BY created_at DESC, id DESC
			LIMIT $3`, after.CreatedAt, after.ID, page.Limit+1)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, page.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	list := &domain.UserList{Users: users}
	if len(users) > page.Limit {
		last := users[page.Limit-1]
		list.Users = users[:page.Limit]
		list.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return list, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	if !validID(user.ID) {
		return domain.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		SET fullname = $2, phone_number = $3, age = $4, country = $5, address = $6, updated_at = $7
		WHERE id = $1`,
		user.ID,
		user.FullName,
		user.PhoneNumber,
		nullableAge(user.Age),
		user.Country,
		user.Address,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) (int, error) {
	if !validID(id) {
		return 0, domain.ErrNotFound
	}
	var version int
	err := r.db.QueryRowContext(ctx,
		`UPDATE users
		SET password = $2, credential_version = credential_version + 1, updated_at = $3
		WHERE id = $1
		RETURNING credential_version`,
		id, passwordHash, time.Now().UTC(),
	).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return version, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user domain.User
		age  sql.NullInt32
		role string
	)
	err := row.Scan(
		&user.ID,
		&user.FullName,
		&user.Email,
		&user.Password,
		&user.PhoneNumber,
		&age,
		&user.Country,
		&user.Address,
		&user.Status,
		&role,
		&user.CredentialVersion,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	user.Role = domain.Role(role)
	if age.Valid {
		a := int(age.Int32)
		user.Age = &a
	}
	return &user, nil
}

func nullableAge(age *int) sql.NullInt32 {
	if age == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*age), Valid: true}
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
