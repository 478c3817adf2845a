package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const invoiceColumns = `id, order_id, invoice_number, amount, issued_at`

// CreateInvoiceParams are the fields of a new invoice row.
type CreateInvoiceParams struct {
	OrderID       uuid.UUID
	InvoiceNumber string
	Amount        pgtype.Numeric
}

// CreateInvoice records an issued invoice.
func (q *Queries) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (Invoice, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO invoices (order_id, invoice_number, amount)
		 VALUES ($1, $2, $3)
		 RETURNING `+invoiceColumns,
		arg.OrderID, arg.InvoiceNumber, arg.Amount,
	)
	return scanInvoice(row)
}

// GetInvoice fetches one invoice by id.
func (q *Queries) GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error) {
	row := q.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	return scanInvoice(row)
}

// GetInvoiceByOrder fetches the latest invoice issued for an order.
func (q *Queries) GetInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (Invoice, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE order_id = $1
		 ORDER BY issued_at DESC LIMIT 1`,
		orderID,
	)
	return scanInvoice(row)
}

// ListInvoicesParams page through invoices, newest first.
type ListInvoicesParams struct {
	Limit  int32
	Offset int32
}

// ListInvoices returns a page of invoices.
func (q *Queries) ListInvoices(ctx context.Context, arg ListInvoicesParams) ([]Invoice, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 ORDER BY issued_at DESC, id DESC LIMIT $1 OFFSET $2`,
		arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// GetNextInvoiceNumber returns the next sequential invoice number suffix.
// Same caveat as GetNextOrderNumber: transaction plus retry on conflict.
func (q *Queries) GetNextInvoiceNumber(ctx context.Context) (int32, error) {
	var next int32
	err := q.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(CAST(SUBSTRING(invoice_number FROM 5) AS INT)), 0) + 1 FROM invoices`,
	).Scan(&next)
	return next, err
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.OrderID, &inv.InvoiceNumber, &inv.Amount, &inv.IssuedAt)
	return inv, err
}
