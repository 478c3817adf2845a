package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Order is the central entity. Items, payment and assignment records are
// JSONB documents on the orders row.
type Order struct {
	ID              uuid.UUID
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
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem is one line entry of an order.
type OrderItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int32           `json:"quantity"`
}

// PaymentDetails is the payment sub-document of an order.
type PaymentDetails struct {
	Method        string          `json:"method"`
	Status        string          `json:"status"`
	PayableAmount decimal.Decimal `json:"payable_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Gateway       string          `json:"gateway,omitempty"`
	Adjustment    decimal.Decimal `json:"adjustment"`
}

// Assignment is the picker/packer sub-document. Each record is owned by
// exactly one user; reassignment overwrites it, the history is informational
// only.
type Assignment struct {
	UserID  uuid.UUID         `json:"user_id"`
	Name    string            `json:"name"`
	Phone   string            `json:"phone,omitempty"`
	Status  string            `json:"status"`
	Remark  string            `json:"remark,omitempty"`
	History []AssignmentEvent `json:"status_history,omitempty"`
}

// AssignmentEvent is one informational entry of an assignment's history.
type AssignmentEvent struct {
	UserID uuid.UUID `json:"user_id"`
	Status string    `json:"status"`
	Remark string    `json:"remark,omitempty"`
	At     time.Time `json:"at"`
}

// User is an operator account (admin, picker or packer).
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Phone        pgtype.Text
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Address is a customer shipping address.
type Address struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Label     string
	Line      string
	City      string
	Phone     string
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Invoice is an issued invoice row referencing an order.
type Invoice struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	InvoiceNumber string
	Amount        pgtype.Numeric
	IssuedAt      time.Time
}
