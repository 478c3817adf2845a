package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/khana-fast/api/internal/database"
	"github.com/khana-fast/api/internal/lifecycle"
	"github.com/khana-fast/api/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps order service and storage errors onto HTTP codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, lifecycle.ErrIllegalTransition),
		errors.Is(err, service.ErrStatusConflict),
		errors.Is(err, service.ErrAssignmentsLocked),
		errors.Is(err, service.ErrNotInvoiceEligible):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrBadPredicate):
		writeError(w, http.StatusBadRequest, err.Error())
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("ERROR: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		service.ErrEmptyItems,
		service.ErrInvalidQuantity,
		service.ErrInvalidUnitPrice,
		service.ErrInvalidProductID,
		service.ErrInvalidPaymentMethod,
		service.ErrInvalidPaymentStatus,
		service.ErrInvalidAmount,
		service.ErrInvalidStatus,
		service.ErrInvalidCustomerID,
		service.ErrInvalidUserID,
		service.ErrInvalidAddressID,
		service.ErrAddressNotFound,
		service.ErrAssigneeNotFound,
		service.ErrAssigneeRole,
		service.ErrMissingShipping,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
