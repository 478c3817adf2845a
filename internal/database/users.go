package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, email, password_hash, full_name, phone, role, is_active, created_at, updated_at`

// CreateUserParams are the fields of a new user row.
type CreateUserParams struct {
	Email        string
	PasswordHash string
	FullName     string
	Phone        pgtype.Text
	Role         string
}

// CreateUser inserts a user.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, full_name, phone, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		arg.Email, arg.PasswordHash, arg.FullName, arg.Phone, arg.Role,
	)
	return scanUser(row)
}

// GetUser fetches one user by id.
func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByEmail fetches one active-or-not user by email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// ListUsersParams page through users, optionally restricted to one role.
type ListUsersParams struct {
	Role   pgtype.Text
	Limit  int32
	Offset int32
}

// ListUsers returns users ordered by name.
func (q *Queries) ListUsers(ctx context.Context, arg ListUsersParams) ([]User, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE ($1::text IS NULL OR role = $1)
		 ORDER BY full_name, id LIMIT $2 OFFSET $3`,
		arg.Role, arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUserParams replace a user's mutable fields.
type UpdateUserParams struct {
	ID       uuid.UUID
	FullName string
	Phone    pgtype.Text
	Role     string
	IsActive bool
}

// UpdateUser updates name, phone, role and active flag.
func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE users SET full_name = $2, phone = $3, role = $4, is_active = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		arg.ID, arg.FullName, arg.Phone, arg.Role, arg.IsActive,
	)
	return scanUser(row)
}

// DeactivateUser marks a user inactive rather than deleting the row; orders
// keep referencing the account.
func (q *Queries) DeactivateUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var out uuid.UUID
	err := q.db.QueryRow(ctx,
		`UPDATE users SET is_active = false, updated_at = now() WHERE id = $1 RETURNING id`, id,
	).Scan(&out)
	return out, err
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone,
		&u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}
