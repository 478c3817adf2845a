package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/khana-fast/api/internal/database"
	"github.com/khana-fast/api/internal/enum"
	"github.com/khana-fast/api/internal/lifecycle"
	"github.com/shopspring/decimal"
)

const maxNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidQuantity      = errors.New("quantity must be >= 1")
	ErrInvalidUnitPrice     = errors.New("unit price must be >= 0")
	ErrInvalidProductID     = errors.New("invalid product id")
	ErrInvalidPaymentMethod = errors.New("payment method must be cod or online")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidStatus        = errors.New("unknown order status")
	ErrInvalidCustomerID    = errors.New("invalid customer id")
	ErrInvalidUserID        = errors.New("invalid user id")
	ErrInvalidAddressID     = errors.New("invalid address id")
	ErrAddressNotFound      = errors.New("address not found")
	ErrAssigneeNotFound     = errors.New("assignee not found")
	ErrAssigneeRole         = errors.New("assignee does not hold the required role")
	ErrMissingShipping      = errors.New("shipping address and phone are required")
	ErrAssignmentsLocked    = errors.New("assignments are read-only in this status")
	ErrStatusConflict       = errors.New("order status changed, please retry")
	ErrNotInvoiceEligible   = errors.New("order status is not invoice eligible")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetNextOrderNumber(ctx context.Context) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetUser(ctx context.Context, id uuid.UUID) (database.User, error)
	GetAddress(ctx context.Context, id uuid.UUID) (database.Address, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateOrderAssignments(ctx context.Context, arg database.UpdateOrderAssignmentsParams) (database.Order, error)
	UpdateOrderPayment(ctx context.Context, arg database.UpdateOrderPaymentParams) (database.Order, error)
	UpdateOrderRemark(ctx context.Context, arg database.UpdateOrderRemarkParams) (database.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	GetInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (database.Invoice, error)
	GetNextInvoiceNumber(ctx context.Context) (int32, error)
	CreateInvoice(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx), letting the
// service derive store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// EventPublisher receives order events after successful mutations.
// Implemented by the websocket hub adapter; may be nil.
type EventPublisher interface {
	Publish(event string, order database.Order)
}

// Event names delivered to the publisher.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	CustomerID      string
	CustomerName    string
	AddressID       string // optional; resolves shipping address/phone
	ShippingAddress string
	ShippingPhone   string
	Items           []CreateOrderItemRequest
	PaymentMethod   string
	Picker          *AssignmentRequest
	Packer          *AssignmentRequest
	OrderRemark     string
}

// CreateOrderItemRequest is a single line item.
type CreateOrderItemRequest struct {
	ProductID string
	Name      string
	UnitPrice string
	Quantity  int32
}

// AssignmentRequest names a user to assign as picker or packer.
type AssignmentRequest struct {
	UserID string
	Remark string
}

// OrderService handles order business logic.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	store    OrderStore
	events   EventPublisher
}

// NewOrderService creates a new OrderService. events may be nil.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, store OrderStore, events EventPublisher) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, store: store, events: events}
}

// CreateOrder validates, computes the total, and creates an order
// atomically. Retries on order_number unique violations (concurrent
// transactions can read the same MAX).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (database.Order, error) {
	if len(req.Items) == 0 {
		return database.Order{}, ErrEmptyItems
	}
	switch req.PaymentMethod {
	case enum.PaymentMethodCOD, enum.PaymentMethodOnline:
	default:
		return database.Order{}, ErrInvalidPaymentMethod
	}
	if _, err := uuid.Parse(req.CustomerID); err != nil {
		return database.Order{}, ErrInvalidCustomerID
	}

	var lastErr error
	for attempt := 0; attempt < maxNumberRetries; attempt++ {
		order, err := s.createOrderTx(ctx, req)
		if err == nil {
			s.publish(EventOrderCreated, order)
			return order, nil
		}
		if isNumberConflict(err, "orders_order_number_key") {
			lastErr = err
			continue
		}
		return database.Order{}, err
	}
	return database.Order{}, lastErr
}

func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	nextNum, err := store.GetNextOrderNumber(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("get next order number: %w", err)
	}
	orderNumber := fmt.Sprintf("KF-%04d", nextNum)

	customerID := uuid.MustParse(req.CustomerID)

	// Resolve shipping target: explicit fields or the address book.
	shippingAddress := req.ShippingAddress
	shippingPhone := req.ShippingPhone
	if req.AddressID != "" {
		addrID, err := uuid.Parse(req.AddressID)
		if err != nil {
			return database.Order{}, ErrInvalidAddressID
		}
		addr, err := store.GetAddress(ctx, addrID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Order{}, ErrAddressNotFound
			}
			return database.Order{}, fmt.Errorf("get address: %w", err)
		}
		shippingAddress = addr.Line + ", " + addr.City
		shippingPhone = addr.Phone
	}
	if shippingAddress == "" || shippingPhone == "" {
		return database.Order{}, ErrMissingShipping
	}

	// Validate items and compute the total as sum(price * quantity).
	total := decimal.Zero
	items := make([]database.OrderItem, 0, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity < 1 {
			return database.Order{}, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		price, err := decimal.NewFromString(item.UnitPrice)
		if err != nil || price.IsNegative() {
			return database.Order{}, fmt.Errorf("items[%d]: %w", i, ErrInvalidUnitPrice)
		}
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return database.Order{}, fmt.Errorf("items[%d]: %w", i, ErrInvalidProductID)
		}
		total = total.Add(price.Mul(decimal.NewFromInt32(item.Quantity)))
		items = append(items, database.OrderItem{
			ProductID: productID,
			Name:      item.Name,
			UnitPrice: price,
			Quantity:  item.Quantity,
		})
	}

	picker, err := s.buildAssignment(ctx, store, req.Picker, enum.UserRolePicker)
	if err != nil {
		return database.Order{}, err
	}
	packer, err := s.buildAssignment(ctx, store, req.Packer, enum.UserRolePacker)
	if err != nil {
		return database.Order{}, err
	}

	remark := pgtype.Text{}
	if req.OrderRemark != "" {
		remark = pgtype.Text{String: req.OrderRemark, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:     orderNumber,
		CustomerID:      customerID,
		CustomerName:    req.CustomerName,
		ShippingAddress: shippingAddress,
		ShippingPhone:   shippingPhone,
		Status:          enum.OrderStatusPending,
		Items:           items,
		TotalAmount:     decimalToNumeric(total),
		Payment: database.PaymentDetails{
			Method:        req.PaymentMethod,
			Status:        enum.PaymentStatusPending,
			PayableAmount: total,
			PaidAmount:    decimal.Zero,
			Adjustment:    decimal.Zero,
		},
		Picker:      picker,
		Packer:      packer,
		OrderRemark: remark,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("create order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// buildAssignment resolves an assignment request against the user table and
// checks the user holds the required role.
func (s *OrderService) buildAssignment(ctx context.Context, store OrderStore, req *AssignmentRequest, role string) (*database.Assignment, error) {
	if req == nil {
		return nil, nil
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, ErrInvalidUserID
	}
	user, err := store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssigneeNotFound
		}
		return nil, fmt.Errorf("get assignee: %w", err)
	}
	if user.Role != role {
		return nil, fmt.Errorf("%w: %s is not a %s", ErrAssigneeRole, user.Email, role)
	}
	return &database.Assignment{
		UserID: user.ID,
		Name:   user.FullName,
		Phone:  user.Phone.String,
		Status: enum.AssignmentStatusAssigned,
		Remark: req.Remark,
	}, nil
}

// Transition moves an order to the next status on behalf of role. The edge
// is validated locally before any write; a write that matches no row means
// the status moved concurrently and surfaces as ErrStatusConflict, leaving
// the stored status untouched.
func (s *OrderService) Transition(ctx context.Context, id uuid.UUID, rawNext, role, remark string) (database.Order, error) {
	next, err := lifecycle.Normalize(rawNext)
	if err != nil {
		return database.Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, rawNext)
	}

	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return database.Order{}, err
	}
	cur := lifecycle.Status(order.Status)

	if err := lifecycle.ValidateTransitionFor(role, cur, next); err != nil {
		return database.Order{}, err
	}

	updated, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:             id,
		Status:         string(next),
		ExpectedStatus: string(cur),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStatusConflict
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}

	// Picker accept/reject and packer progress are reflected on the
	// assignment record; the history is informational only.
	if noted := noteAssignment(&updated, role, cur, next, remark); noted != nil {
		updated, err = s.store.UpdateOrderAssignments(ctx, *noted)
		if err != nil {
			return database.Order{}, fmt.Errorf("update assignment record: %w", err)
		}
	}

	s.publish(EventOrderStatusChanged, updated)
	return updated, nil
}

// noteAssignment returns the assignment update reflecting a role's own
// transition, or nil when nothing changes.
func noteAssignment(o *database.Order, role string, cur, next lifecycle.Status, remark string) *database.UpdateOrderAssignmentsParams {
	var doc *database.Assignment
	var status string

	switch role {
	case enum.UserRolePicker:
		doc = o.Picker
		switch {
		case next == lifecycle.StatusReady:
			status = enum.AssignmentStatusAccepted
		case cur == lifecycle.StatusPending && next == lifecycle.StatusHold:
			status = enum.AssignmentStatusRejected
		default:
			return nil
		}
	case enum.UserRolePacker:
		if next != lifecycle.StatusShipped && next != lifecycle.StatusDelivered {
			return nil
		}
		doc = o.Packer
		status = enum.AssignmentStatusAccepted
	default:
		return nil
	}
	if doc == nil {
		return nil
	}

	doc.History = append(doc.History, database.AssignmentEvent{
		UserID: doc.UserID,
		Status: doc.Status,
		Remark: doc.Remark,
		At:     time.Now().UTC(),
	})
	doc.Status = status
	if remark != "" {
		doc.Remark = remark
	}

	return &database.UpdateOrderAssignmentsParams{
		ID:     o.ID,
		Picker: o.Picker,
		Packer: o.Packer,
	}
}

// UpdateAssignments overwrites the picker/packer records of an order. A nil
// request leaves the corresponding record unchanged. Rejected once the order
// has reached ready or beyond.
func (s *OrderService) UpdateAssignments(ctx context.Context, id uuid.UUID, picker, packer *AssignmentRequest) (database.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return database.Order{}, err
	}
	if !lifecycle.CanEditAssignments(lifecycle.Status(order.Status)) {
		return database.Order{}, fmt.Errorf("%w: status %s", ErrAssignmentsLocked, order.Status)
	}

	newPicker, err := s.replaceAssignment(ctx, order.Picker, picker, enum.UserRolePicker)
	if err != nil {
		return database.Order{}, err
	}
	newPacker, err := s.replaceAssignment(ctx, order.Packer, packer, enum.UserRolePacker)
	if err != nil {
		return database.Order{}, err
	}

	return s.store.UpdateOrderAssignments(ctx, database.UpdateOrderAssignmentsParams{
		ID:     id,
		Picker: newPicker,
		Packer: newPacker,
	})
}

// replaceAssignment builds the replacement record for one slot, carrying the
// previous holder into the informational history.
func (s *OrderService) replaceAssignment(ctx context.Context, current *database.Assignment, req *AssignmentRequest, role string) (*database.Assignment, error) {
	if req == nil {
		return current, nil
	}
	next, err := s.buildAssignment(ctx, s.store, req, role)
	if err != nil {
		return nil, err
	}
	if current != nil {
		next.History = append(append([]database.AssignmentEvent{}, current.History...), database.AssignmentEvent{
			UserID: current.UserID,
			Status: current.Status,
			Remark: current.Remark,
			At:     time.Now().UTC(),
		})
	}
	return next, nil
}

// SettlePaymentRequest records a payment outcome.
type SettlePaymentRequest struct {
	Status        string
	PaidAmount    string
	TransactionID string
	Gateway       string
	Adjustment    string
}

// SettlePayment records a gateway result on the order's payment document.
func (s *OrderService) SettlePayment(ctx context.Context, id uuid.UUID, req SettlePaymentRequest) (database.Order, error) {
	switch req.Status {
	case enum.PaymentStatusPending, enum.PaymentStatusPaid,
		enum.PaymentStatusFailed, enum.PaymentStatusRefunded:
	default:
		return database.Order{}, fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, req.Status)
	}

	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return database.Order{}, err
	}

	payment := order.Payment
	payment.Status = req.Status
	if req.PaidAmount != "" {
		paid, err := decimal.NewFromString(req.PaidAmount)
		if err != nil || paid.IsNegative() {
			return database.Order{}, fmt.Errorf("paid_amount: %w", ErrInvalidAmount)
		}
		payment.PaidAmount = paid
	}
	if req.Adjustment != "" {
		adj, err := decimal.NewFromString(req.Adjustment)
		if err != nil {
			return database.Order{}, fmt.Errorf("adjustment: %w", ErrInvalidAmount)
		}
		payment.Adjustment = adj
	}
	if req.TransactionID != "" {
		payment.TransactionID = req.TransactionID
	}
	if req.Gateway != "" {
		payment.Gateway = req.Gateway
	}

	return s.store.UpdateOrderPayment(ctx, database.UpdateOrderPaymentParams{
		ID:      id,
		Payment: payment,
	})
}

// UpdateRemark sets the order's internal note, independent of status.
func (s *OrderService) UpdateRemark(ctx context.Context, id uuid.UUID, remark string) (database.Order, error) {
	text := pgtype.Text{}
	if remark != "" {
		text = pgtype.Text{String: remark, Valid: true}
	}
	return s.store.UpdateOrderRemark(ctx, database.UpdateOrderRemarkParams{ID: id, Remark: text})
}

// Delete hard-deletes an order. Irrecoverable and distinct from cancelling.
func (s *OrderService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteOrder(ctx, id)
}

// IssueInvoice returns the order's invoice, creating the row on first
// request. Only invoice-eligible statuses may be invoiced.
func (s *OrderService) IssueInvoice(ctx context.Context, orderID uuid.UUID) (database.Invoice, database.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return database.Invoice{}, database.Order{}, err
	}
	if !lifecycle.CanPrintInvoice(lifecycle.Status(order.Status)) {
		return database.Invoice{}, database.Order{}, fmt.Errorf("%w: %s", ErrNotInvoiceEligible, order.Status)
	}

	inv, err := s.store.GetInvoiceByOrder(ctx, orderID)
	if err == nil {
		return inv, order, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Invoice{}, database.Order{}, fmt.Errorf("get invoice: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxNumberRetries; attempt++ {
		inv, err := s.issueInvoiceTx(ctx, order)
		if err == nil {
			return inv, order, nil
		}
		if isNumberConflict(err, "invoices_invoice_number_key") {
			lastErr = err
			continue
		}
		return database.Invoice{}, database.Order{}, err
	}
	return database.Invoice{}, database.Order{}, lastErr
}

func (s *OrderService) issueInvoiceTx(ctx context.Context, order database.Order) (database.Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Invoice{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	nextNum, err := store.GetNextInvoiceNumber(ctx)
	if err != nil {
		return database.Invoice{}, fmt.Errorf("get next invoice number: %w", err)
	}
	inv, err := store.CreateInvoice(ctx, database.CreateInvoiceParams{
		OrderID:       order.ID,
		InvoiceNumber: fmt.Sprintf("INV-%04d", nextNum),
		Amount:        order.TotalAmount,
	})
	if err != nil {
		return database.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return database.Invoice{}, fmt.Errorf("commit tx: %w", err)
	}
	return inv, nil
}

// --- Helpers ---

func (s *OrderService) publish(event string, order database.Order) {
	if s.events != nil {
		s.events.Publish(event, order)
	}
}

// isNumberConflict checks for a unique violation on the named constraint
// (pgconn error code 23505).
func isNumberConflict(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}

// ItemsTotal recomputes sum(price * quantity) over an order's items.
func ItemsTotal(items []database.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity)))
	}
	return total
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

// NumericToDecimal converts a stored numeric for callers that compare
// stored totals against recomputed ones.
func NumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	return numericToDecimal(n)
}

// DecimalToNumeric converts an amount for storage.
func DecimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	return decimalToNumeric(d)
}
