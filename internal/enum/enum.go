package enum

// ── Order lifecycle (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "pending"
	OrderStatusHold      = "hold"
	OrderStatusReady     = "ready"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
	OrderStatusReturned  = "returned"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// ── Roles (CHECK constrained in DB) ──

const (
	UserRoleAdmin  = "admin"
	UserRolePicker = "picker"
	UserRolePacker = "packer"
)

// ── Configurable labels (no DB constraint) ──

const (
	PaymentMethodCOD    = "cod"
	PaymentMethodOnline = "online"
)

const (
	AssignmentStatusAssigned = "assigned"
	AssignmentStatusAccepted = "accepted"
	AssignmentStatusRejected = "rejected"
)
