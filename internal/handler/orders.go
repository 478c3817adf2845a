package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/khana-fast/api/internal/database"
	"github.com/khana-fast/api/internal/enum"
	"github.com/khana-fast/api/internal/filter"
	"github.com/khana-fast/api/internal/invoice"
	"github.com/khana-fast/api/internal/lifecycle"
	"github.com/khana-fast/api/internal/middleware"
	"github.com/khana-fast/api/internal/service"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// OrderReadStore defines the read-only database methods order handlers need.
// Satisfied by *database.Queries.
type OrderReadStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	CountOrders(ctx context.Context, predicate filter.Predicate) (int64, error)
	ListOrdersByPicker(ctx context.Context, userID uuid.UUID) ([]database.Order, error)
	ListOrdersByPacker(ctx context.Context, userID uuid.UUID) ([]database.Order, error)
}

// OrderService defines the mutations order handlers delegate to.
// Satisfied by *service.OrderService.
type OrderService interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (database.Order, error)
	Transition(ctx context.Context, id uuid.UUID, next, role, remark string) (database.Order, error)
	UpdateAssignments(ctx context.Context, id uuid.UUID, picker, packer *service.AssignmentRequest) (database.Order, error)
	SettlePayment(ctx context.Context, id uuid.UUID, req service.SettlePaymentRequest) (database.Order, error)
	UpdateRemark(ctx context.Context, id uuid.UUID, remark string) (database.Order, error)
	Delete(ctx context.Context, id uuid.UUID) error
	IssueInvoice(ctx context.Context, orderID uuid.UUID) (database.Invoice, database.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	store   OrderReadStore
	service OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(store OrderReadStore, svc OrderService) *OrderHandler {
	return &OrderHandler{store: store, service: svc}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// The router must already run the Authenticate middleware.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.With(middleware.RequireAdmin).Post("/", h.Create)
		r.With(middleware.RequireAdmin).Get("/", h.List)
		r.With(middleware.RequireRole(enum.UserRolePicker)).Get("/my-picks", h.MyPicks)
		r.With(middleware.RequireRole(enum.UserRolePacker)).Get("/my-packs", h.MyPacks)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/status", h.UpdateStatus)
			r.With(middleware.RequireAdmin).Patch("/assignments", h.UpdateAssignments)
			r.With(middleware.RequireAdmin).Patch("/payment", h.UpdatePayment)
			r.With(middleware.RequireAdmin).Patch("/remark", h.UpdateRemark)
			r.With(middleware.RequireAdmin).Delete("/", h.Delete)
			r.Get("/invoice", h.Invoice)
			r.Get("/invoice/print", h.PrintInvoice)
		})
	})
}

// --- Request / Response types ---

type createOrderRequest struct {
	CustomerID      string               `json:"customer_id"`
	CustomerName    string               `json:"customer_name"`
	AddressID       string               `json:"address_id,omitempty"`
	ShippingAddress string               `json:"shipping_address,omitempty"`
	ShippingPhone   string               `json:"shipping_phone,omitempty"`
	Items           []createItemRequest  `json:"items"`
	PaymentMethod   string               `json:"payment_method"`
	Picker          *assignmentRequest   `json:"picker,omitempty"`
	Packer          *assignmentRequest   `json:"packer,omitempty"`
	OrderRemark     string               `json:"order_remark,omitempty"`
}

type createItemRequest struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"price"`
	Quantity  int32  `json:"quantity"`
}

type assignmentRequest struct {
	UserID string `json:"user_id"`
	Remark string `json:"remark,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Remark string `json:"remark,omitempty"`
}

type updateAssignmentsRequest struct {
	Picker *assignmentRequest `json:"picker,omitempty"`
	Packer *assignmentRequest `json:"packer,omitempty"`
}

type updatePaymentRequest struct {
	Status        string `json:"status"`
	PaidAmount    string `json:"paid_amount,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Gateway       string `json:"gateway,omitempty"`
	Adjustment    string `json:"adjustment,omitempty"`
}

type updateRemarkRequest struct {
	Remark string `json:"remark"`
}

type actionResponse struct {
	Status string `json:"status"`
	Label  string `json:"label"`
}

type orderResponse struct {
	ID                 uuid.UUID                `json:"id"`
	OrderNumber        string                   `json:"order_number"`
	CustomerID         uuid.UUID                `json:"customer_id"`
	CustomerName       string                   `json:"customer_name"`
	ShippingAddress    string                   `json:"shipping_address"`
	ShippingPhone      string                   `json:"shipping_phone"`
	Status             string                   `json:"status"`
	Items              []database.OrderItem     `json:"items"`
	TotalAmount        string                   `json:"total_amount"`
	Payment            database.PaymentDetails  `json:"payment"`
	Picker             *database.Assignment     `json:"picker,omitempty"`
	Packer             *database.Assignment     `json:"packer,omitempty"`
	OrderRemark        string                   `json:"order_remark,omitempty"`
	Actions            []actionResponse         `json:"actions"`
	CanEditAssignments bool                     `json:"can_edit_assignments"`
	CanPrintInvoice    bool                     `json:"can_print_invoice"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

type listOrdersResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int64           `json:"total"`
	Limit  int32           `json:"limit"`
	Offset int32           `json:"offset"`
}

type invoiceResponse struct {
	ID            uuid.UUID `json:"id"`
	OrderID       uuid.UUID `json:"order_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Amount        string    `json:"amount"`
	IssuedAt      time.Time `json:"issued_at"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]service.CreateOrderItemRequest, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.CreateOrderItemRequest{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}

	order, err := h.service.CreateOrder(r.Context(), service.CreateOrderRequest{
		CustomerID:      req.CustomerID,
		CustomerName:    req.CustomerName,
		AddressID:       req.AddressID,
		ShippingAddress: req.ShippingAddress,
		ShippingPhone:   req.ShippingPhone,
		Items:           items,
		PaymentMethod:   req.PaymentMethod,
		Picker:          toServiceAssignment(req.Picker),
		Packer:          toServiceAssignment(req.Packer),
		OrderRemark:     req.OrderRemark,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dbOrderToResponse(order, roleFrom(r)))
}

// List handles GET /orders. The filter query parameter carries a
// URL-encoded JSON predicate produced by the filter compiler.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	predicate := filter.Predicate{}
	if raw := r.URL.Query().Get("filter"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &predicate); err != nil {
			writeError(w, http.StatusBadRequest, "invalid filter")
			return
		}
	}

	limit := parseIntParam(r, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := parseIntParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		Predicate: predicate,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	total, err := h.store.CountOrders(r.Context(), predicate)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listOrdersResponse{
		Orders: dbOrdersToResponse(orders, roleFrom(r)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order, roleFrom(r)))
}

// MyPicks handles GET /orders/my-picks for the authenticated picker.
func (h *OrderHandler) MyPicks(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	orders, err := h.store.ListOrdersByPicker(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": dbOrdersToResponse(orders, claims.Role),
	})
}

// MyPacks handles GET /orders/my-packs for the authenticated packer.
func (h *OrderHandler) MyPacks(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	orders, err := h.store.ListOrdersByPacker(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": dbOrdersToResponse(orders, claims.Role),
	})
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	role := roleFrom(r)
	order, err := h.service.Transition(r.Context(), id, req.Status, role, req.Remark)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order, role))
}

// UpdateAssignments handles PATCH /orders/{id}/assignments.
func (h *OrderHandler) UpdateAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req updateAssignmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Picker == nil && req.Packer == nil {
		writeError(w, http.StatusBadRequest, "picker or packer is required")
		return
	}

	order, err := h.service.UpdateAssignments(r.Context(), id,
		toServiceAssignment(req.Picker), toServiceAssignment(req.Packer))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order, roleFrom(r)))
}

// UpdatePayment handles PATCH /orders/{id}/payment.
func (h *OrderHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req updatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.SettlePayment(r.Context(), id, service.SettlePaymentRequest{
		Status:        req.Status,
		PaidAmount:    req.PaidAmount,
		TransactionID: req.TransactionID,
		Gateway:       req.Gateway,
		Adjustment:    req.Adjustment,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order, roleFrom(r)))
}

// UpdateRemark handles PATCH /orders/{id}/remark.
func (h *OrderHandler) UpdateRemark(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req updateRemarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.UpdateRemark(r.Context(), id, req.Remark)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order, roleFrom(r)))
}

// Delete handles DELETE /orders/{id}. Hard delete, distinct from cancelling.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Invoice handles GET /orders/{id}/invoice, issuing the invoice on first call.
func (h *OrderHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	inv, _, err := h.service.IssueInvoice(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoiceResponse{
		ID:            inv.ID,
		OrderID:       inv.OrderID,
		InvoiceNumber: inv.InvoiceNumber,
		Amount:        service.NumericToDecimal(inv.Amount).StringFixed(2),
		IssuedAt:      inv.IssuedAt,
	})
}

// PrintInvoice handles GET /orders/{id}/invoice/print, issuing the invoice
// when needed and responding with a printable HTML page.
func (h *OrderHandler) PrintInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	inv, order, err := h.service.IssueInvoice(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	doc, err := invoice.Build(inv, order)
	if err != nil {
		if errors.Is(err, invoice.ErrTotalMismatch) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := invoice.Render(w, doc); err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// --- Helpers ---

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func parseIntParam(r *http.Request, name string, def int32) int32 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return def
	}
	return int32(n)
}

func roleFrom(r *http.Request) string {
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		return claims.Role
	}
	return ""
}

func toServiceAssignment(req *assignmentRequest) *service.AssignmentRequest {
	if req == nil {
		return nil
	}
	return &service.AssignmentRequest{UserID: req.UserID, Remark: req.Remark}
}

func dbOrderToResponse(o database.Order, role string) orderResponse {
	status := lifecycle.Status(o.Status)
	actions := make([]actionResponse, 0, 2)
	for _, a := range lifecycle.ActionsFor(role, status) {
		actions = append(actions, actionResponse{Status: string(a.Next), Label: a.Label})
	}
	return orderResponse{
		ID:                 o.ID,
		OrderNumber:        o.OrderNumber,
		CustomerID:         o.CustomerID,
		CustomerName:       o.CustomerName,
		ShippingAddress:    o.ShippingAddress,
		ShippingPhone:      o.ShippingPhone,
		Status:             o.Status,
		Items:              o.Items,
		TotalAmount:        service.NumericToDecimal(o.TotalAmount).StringFixed(2),
		Payment:            o.Payment,
		Picker:             o.Picker,
		Packer:             o.Packer,
		OrderRemark:        o.OrderRemark.String,
		Actions:            actions,
		CanEditAssignments: lifecycle.CanEditAssignments(status),
		CanPrintInvoice:    lifecycle.CanPrintInvoice(status),
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

func dbOrdersToResponse(orders []database.Order, role string) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, dbOrderToResponse(o, role))
	}
	return out
}
