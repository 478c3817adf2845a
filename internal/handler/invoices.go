package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/khana-fast/api/internal/database"
	"github.com/khana-fast/api/internal/middleware"
	"github.com/khana-fast/api/internal/service"
)

// InvoiceStore defines the database methods needed by invoice handlers.
type InvoiceStore interface {
	GetInvoice(ctx context.Context, id uuid.UUID) (database.Invoice, error)
	ListInvoices(ctx context.Context, arg database.ListInvoicesParams) ([]database.Invoice, error)
}

// InvoiceHandler handles invoice endpoints.
type InvoiceHandler struct {
	store InvoiceStore
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(store InvoiceStore) *InvoiceHandler {
	return &InvoiceHandler{store: store}
}

// RegisterRoutes registers invoice endpoints on the given Chi router.
func (h *InvoiceHandler) RegisterRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
	})
}

// List handles GET /invoices.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := parseIntParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	invoices, err := h.store.ListInvoices(r.Context(), database.ListInvoicesParams{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, dbInvoiceToResponse(inv))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"invoices": out})
}

// Get handles GET /invoices/{id}.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	inv, err := h.store.GetInvoice(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dbInvoiceToResponse(inv))
}

func dbInvoiceToResponse(inv database.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:            inv.ID,
		OrderID:       inv.OrderID,
		InvoiceNumber: inv.InvoiceNumber,
		Amount:        service.NumericToDecimal(inv.Amount).StringFixed(2),
		IssuedAt:      inv.IssuedAt,
	}
}
