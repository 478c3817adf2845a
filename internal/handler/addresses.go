package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/khana-fast/api/internal/database"
	"github.com/khana-fast/api/internal/middleware"
)

// AddressStore defines the database methods needed by address handlers.
type AddressStore interface {
	CreateAddress(ctx context.Context, arg database.CreateAddressParams) (database.Address, error)
	GetAddress(ctx context.Context, id uuid.UUID) (database.Address, error)
	ListAddressesByUser(ctx context.Context, userID uuid.UUID) ([]database.Address, error)
	UpdateAddress(ctx context.Context, arg database.UpdateAddressParams) (database.Address, error)
	DeleteAddress(ctx context.Context, id uuid.UUID) error
}

// AddressHandler handles customer address book endpoints. Admin only; the
// dashboard manages addresses on behalf of customers.
type AddressHandler struct {
	store AddressStore
}

// NewAddressHandler creates a new AddressHandler.
func NewAddressHandler(store AddressStore) *AddressHandler {
	return &AddressHandler{store: store}
}

// RegisterRoutes registers address endpoints on the given Chi router.
func (h *AddressHandler) RegisterRoutes(r chi.Router) {
	r.Route("/addresses", func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
	r.With(middleware.RequireAdmin).Get("/users/{id}/addresses", h.ListByUser)
}

type addressRequest struct {
	UserID    string `json:"user_id,omitempty"`
	Label     string `json:"label"`
	Line      string `json:"line"`
	City      string `json:"city"`
	Phone     string `json:"phone"`
	IsDefault bool   `json:"is_default"`
}

type addressResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Label     string    `json:"label"`
	Line      string    `json:"line"`
	City      string    `json:"city"`
	Phone     string    `json:"phone"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

// Create handles POST /addresses.
func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}
	if req.Line == "" || req.City == "" || req.Phone == "" {
		writeError(w, http.StatusBadRequest, "line, city and phone are required")
		return
	}

	addr, err := h.store.CreateAddress(r.Context(), database.CreateAddressParams{
		UserID:    userID,
		Label:     req.Label,
		Line:      req.Line,
		City:      req.City,
		Phone:     req.Phone,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dbAddressToResponse(addr))
}

// Get handles GET /addresses/{id}.
func (h *AddressHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	addr, err := h.store.GetAddress(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dbAddressToResponse(addr))
}

// ListByUser handles GET /users/{id}/addresses, default address first.
func (h *AddressHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	addrs, err := h.store.ListAddressesByUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]addressResponse, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, dbAddressToResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"addresses": out})
}

// Update handles PUT /addresses/{id}.
func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Line == "" || req.City == "" || req.Phone == "" {
		writeError(w, http.StatusBadRequest, "line, city and phone are required")
		return
	}

	addr, err := h.store.UpdateAddress(r.Context(), database.UpdateAddressParams{
		ID:        id,
		Label:     req.Label,
		Line:      req.Line,
		City:      req.City,
		Phone:     req.Phone,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dbAddressToResponse(addr))
}

// Delete handles DELETE /addresses/{id}.
func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteAddress(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func dbAddressToResponse(a database.Address) addressResponse {
	return addressResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		Label:     a.Label,
		Line:      a.Line,
		City:      a.City,
		Phone:     a.Phone,
		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt,
	}
}
