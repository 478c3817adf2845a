package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/khana-fast/api/internal/filter"
)

const orderColumns = `id, order_number, customer_id, customer_name, shipping_address,
	shipping_phone, status, items, total_amount, payment, picker, packer,
	order_remark, created_at, updated_at`

// GetNextOrderNumber returns the next sequential order number. Callers must
// run it inside the same transaction as the insert and retry on unique
// violations; concurrent transactions can read the same MAX.
func (q *Queries) GetNextOrderNumber(ctx context.Context) (int32, error) {
	var next int32
	err := q.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(CAST(SUBSTRING(order_number FROM 4) AS INT)), 0) + 1 FROM orders`,
	).Scan(&next)
	return next, err
}

// CreateOrderParams are the fields of a new order row.
type CreateOrderParams struct {
	OrderNumber     string
	CustomerID      uuid.UUID
	CustomerName    string
	ShippingAddress string
	ShippingPhone   string
	Status          string
	Items           []OrderItem
	TotalAmount     pgtype.Numeric
	Payment         PaymentDetails
	Picker          *Assignment
	Packer          *Assignment
	OrderRemark     pgtype.Text
}

// CreateOrder inserts a new order and returns the stored row.
func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	items, err := json.Marshal(arg.Items)
	if err != nil {
		return Order{}, fmt.Errorf("marshal items: %w", err)
	}
	payment, err := json.Marshal(arg.Payment)
	if err != nil {
		return Order{}, fmt.Errorf("marshal payment: %w", err)
	}
	picker, err := marshalAssignment(arg.Picker)
	if err != nil {
		return Order{}, err
	}
	packer, err := marshalAssignment(arg.Packer)
	if err != nil {
		return Order{}, err
	}

	row := q.db.QueryRow(ctx, `INSERT INTO orders (
		order_number, customer_id, customer_name, shipping_address, shipping_phone,
		status, items, total_amount, payment, picker, packer, order_remark
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING `+orderColumns,
		arg.OrderNumber, arg.CustomerID, arg.CustomerName, arg.ShippingAddress,
		arg.ShippingPhone, arg.Status, items, arg.TotalAmount, payment,
		picker, packer, arg.OrderRemark,
	)
	return scanOrder(row)
}

// GetOrder fetches one order by id.
func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// ListOrdersParams select a page of orders matching a compiled filter
// predicate. An empty predicate matches everything.
type ListOrdersParams struct {
	Predicate filter.Predicate
	Limit     int32
	Offset    int32
}

// ListOrders returns the newest-first page of orders matching the predicate.
// Unsupported predicate fields fail with ErrBadPredicate before any query.
func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	where, args, err := predicateWhere(arg.Predicate, 2)
	if err != nil {
		return nil, err
	}

	sql := `SELECT ` + orderColumns + ` FROM orders`
	if where != "" {
		sql += ` WHERE ` + where
	}
	sql += ` ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`

	all := make([]any, 0, len(args)+2)
	all = append(all, arg.Limit, arg.Offset)
	all = append(all, args...)

	rows, err := q.db.Query(ctx, sql, all...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// CountOrders returns the number of orders matching the predicate.
func (q *Queries) CountOrders(ctx context.Context, p filter.Predicate) (int64, error) {
	where, args, err := predicateWhere(p, 0)
	if err != nil {
		return 0, err
	}
	sql := `SELECT COUNT(*) FROM orders`
	if where != "" {
		sql += ` WHERE ` + where
	}
	var n int64
	if err := q.db.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ListOrdersByPicker returns orders whose current picker assignment belongs
// to the given user, newest first.
func (q *Queries) ListOrdersByPicker(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	return q.listByAssignment(ctx, "picker", userID)
}

// ListOrdersByPacker returns orders whose current packer assignment belongs
// to the given user, newest first.
func (q *Queries) ListOrdersByPacker(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	return q.listByAssignment(ctx, "packer", userID)
}

func (q *Queries) listByAssignment(ctx context.Context, column string, userID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+column+`->>'user_id' = $1
		 ORDER BY created_at DESC, id DESC`,
		userID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// UpdateOrderStatusParams move an order between statuses. ExpectedStatus
// makes the update optimistic: no row is touched when the stored status has
// moved on, and callers see pgx.ErrNoRows.
type UpdateOrderStatusParams struct {
	ID             uuid.UUID
	Status         string
	ExpectedStatus string
}

// UpdateOrderStatus applies an optimistic status update.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders SET status = $2, updated_at = now()
		 WHERE id = $1 AND status = $3
		 RETURNING `+orderColumns,
		arg.ID, arg.Status, arg.ExpectedStatus,
	)
	return scanOrder(row)
}

// UpdateOrderAssignmentsParams overwrite the picker/packer sub-documents.
type UpdateOrderAssignmentsParams struct {
	ID     uuid.UUID
	Picker *Assignment
	Packer *Assignment
}

// UpdateOrderAssignments replaces both assignment documents.
func (q *Queries) UpdateOrderAssignments(ctx context.Context, arg UpdateOrderAssignmentsParams) (Order, error) {
	picker, err := marshalAssignment(arg.Picker)
	if err != nil {
		return Order{}, err
	}
	packer, err := marshalAssignment(arg.Packer)
	if err != nil {
		return Order{}, err
	}
	row := q.db.QueryRow(ctx,
		`UPDATE orders SET picker = $2, packer = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING `+orderColumns,
		arg.ID, picker, packer,
	)
	return scanOrder(row)
}

// UpdateOrderPaymentParams replace the payment sub-document.
type UpdateOrderPaymentParams struct {
	ID      uuid.UUID
	Payment PaymentDetails
}

// UpdateOrderPayment replaces the payment document.
func (q *Queries) UpdateOrderPayment(ctx context.Context, arg UpdateOrderPaymentParams) (Order, error) {
	payment, err := json.Marshal(arg.Payment)
	if err != nil {
		return Order{}, fmt.Errorf("marshal payment: %w", err)
	}
	row := q.db.QueryRow(ctx,
		`UPDATE orders SET payment = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+orderColumns,
		arg.ID, payment,
	)
	return scanOrder(row)
}

// UpdateOrderRemarkParams set the free-text internal note.
type UpdateOrderRemarkParams struct {
	ID     uuid.UUID
	Remark pgtype.Text
}

// UpdateOrderRemark sets the order remark, independent of status.
func (q *Queries) UpdateOrderRemark(ctx context.Context, arg UpdateOrderRemarkParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders SET order_remark = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+orderColumns,
		arg.ID, arg.Remark,
	)
	return scanOrder(row)
}

// DeleteOrder hard-deletes an order. Returns pgx.ErrNoRows when it does not
// exist. Distinct from the cancelled status: this is irrecoverable.
func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	var deleted uuid.UUID
	return q.db.QueryRow(ctx,
		`DELETE FROM orders WHERE id = $1 RETURNING id`, id,
	).Scan(&deleted)
}

// --- scanning helpers ---

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var items, payment, picker, packer []byte
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &o.CustomerName, &o.ShippingAddress,
		&o.ShippingPhone, &o.Status, &items, &o.TotalAmount, &payment,
		&picker, &packer, &o.OrderRemark, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return Order{}, fmt.Errorf("unmarshal items: %w", err)
	}
	if err := json.Unmarshal(payment, &o.Payment); err != nil {
		return Order{}, fmt.Errorf("unmarshal payment: %w", err)
	}
	if o.Picker, err = unmarshalAssignment(picker); err != nil {
		return Order{}, err
	}
	if o.Packer, err = unmarshalAssignment(packer); err != nil {
		return Order{}, err
	}
	return o, nil
}

func scanOrders(rows pgx.Rows) ([]Order, error) {
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func marshalAssignment(a *Assignment) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal assignment: %w", err)
	}
	return b, nil
}

func unmarshalAssignment(b []byte) (*Assignment, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var a Assignment
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("unmarshal assignment: %w", err)
	}
	return &a, nil
}
