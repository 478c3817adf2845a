package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const addressColumns = `id, user_id, label, line, city, phone, is_default, created_at, updated_at`

// CreateAddressParams are the fields of a new address row.
type CreateAddressParams struct {
	UserID    uuid.UUID
	Label     string
	Line      string
	City      string
	Phone     string
	IsDefault bool
}

// CreateAddress inserts an address. When the new address is the default, any
// previous default of the same user is cleared first.
func (q *Queries) CreateAddress(ctx context.Context, arg CreateAddressParams) (Address, error) {
	if arg.IsDefault {
		if _, err := q.db.Exec(ctx,
			`UPDATE addresses SET is_default = false WHERE user_id = $1 AND is_default`, arg.UserID,
		); err != nil {
			return Address{}, err
		}
	}
	row := q.db.QueryRow(ctx,
		`INSERT INTO addresses (user_id, label, line, city, phone, is_default)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+addressColumns,
		arg.UserID, arg.Label, arg.Line, arg.City, arg.Phone, arg.IsDefault,
	)
	return scanAddress(row)
}

// GetAddress fetches one address by id.
func (q *Queries) GetAddress(ctx context.Context, id uuid.UUID) (Address, error) {
	row := q.db.QueryRow(ctx, `SELECT `+addressColumns+` FROM addresses WHERE id = $1`, id)
	return scanAddress(row)
}

// ListAddressesByUser returns a user's addresses, default first.
func (q *Queries) ListAddressesByUser(ctx context.Context, userID uuid.UUID) ([]Address, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE user_id = $1
		 ORDER BY is_default DESC, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addrs []Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, a)
	}
	return addrs, rows.Err()
}

// UpdateAddressParams replace an address's mutable fields.
type UpdateAddressParams struct {
	ID        uuid.UUID
	Label     string
	Line      string
	City      string
	Phone     string
	IsDefault bool
}

// UpdateAddress updates an address row.
func (q *Queries) UpdateAddress(ctx context.Context, arg UpdateAddressParams) (Address, error) {
	if arg.IsDefault {
		if _, err := q.db.Exec(ctx,
			`UPDATE addresses SET is_default = false
			 WHERE is_default AND user_id = (SELECT user_id FROM addresses WHERE id = $1) AND id <> $1`,
			arg.ID,
		); err != nil {
			return Address{}, err
		}
	}
	row := q.db.QueryRow(ctx,
		`UPDATE addresses SET label = $2, line = $3, city = $4, phone = $5, is_default = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING `+addressColumns,
		arg.ID, arg.Label, arg.Line, arg.City, arg.Phone, arg.IsDefault,
	)
	return scanAddress(row)
}

// DeleteAddress removes an address. Returns pgx.ErrNoRows when absent.
func (q *Queries) DeleteAddress(ctx context.Context, id uuid.UUID) error {
	var deleted uuid.UUID
	return q.db.QueryRow(ctx,
		`DELETE FROM addresses WHERE id = $1 RETURNING id`, id,
	).Scan(&deleted)
}

func scanAddress(row pgx.Row) (Address, error) {
	var a Address
	err := row.Scan(
		&a.ID, &a.UserID, &a.Label, &a.Line, &a.City, &a.Phone,
		&a.IsDefault, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}
