package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/khana-fast/api/internal/auth"
	"github.com/khana-fast/api/internal/database"
	"github.com/khana-fast/api/internal/filter"
	"github.com/khana-fast/api/internal/handler"
	"github.com/khana-fast/api/internal/lifecycle"
	"github.com/khana-fast/api/internal/middleware"
	"github.com/khana-fast/api/internal/service"
)

const testSecret = "test-secret"

// --- Mocks ---

type mockReadStore struct {
	getOrderFn           func(ctx context.Context, id uuid.UUID) (database.Order, error)
	listOrdersFn         func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	countOrdersFn        func(ctx context.Context, p filter.Predicate) (int64, error)
	listOrdersByPickerFn func(ctx context.Context, userID uuid.UUID) ([]database.Order, error)
	listOrdersByPackerFn func(ctx context.Context, userID uuid.UUID) ([]database.Order, error)
}

func (m *mockReadStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, id)
	}
	return database.Order{}, pgx.ErrNoRows
}
func (m *mockReadStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	if m.listOrdersFn != nil {
		return m.listOrdersFn(ctx, arg)
	}
	return nil, nil
}
func (m *mockReadStore) CountOrders(ctx context.Context, p filter.Predicate) (int64, error) {
	if m.countOrdersFn != nil {
		return m.countOrdersFn(ctx, p)
	}
	return 0, nil
}
func (m *mockReadStore) ListOrdersByPicker(ctx context.Context, userID uuid.UUID) ([]database.Order, error) {
	if m.listOrdersByPickerFn != nil {
		return m.listOrdersByPickerFn(ctx, userID)
	}
	return nil, nil
}
func (m *mockReadStore) ListOrdersByPacker(ctx context.Context, userID uuid.UUID) ([]database.Order, error) {
	if m.listOrdersByPackerFn != nil {
		return m.listOrdersByPackerFn(ctx, userID)
	}
	return nil, nil
}

type mockOrderService struct {
	createOrderFn       func(ctx context.Context, req service.CreateOrderRequest) (database.Order, error)
	transitionFn        func(ctx context.Context, id uuid.UUID, next, role, remark string) (database.Order, error)
	updateAssignmentsFn func(ctx context.Context, id uuid.UUID, picker, packer *service.AssignmentRequest) (database.Order, error)
	settlePaymentFn     func(ctx context.Context, id uuid.UUID, req service.SettlePaymentRequest) (database.Order, error)
	updateRemarkFn      func(ctx context.Context, id uuid.UUID, remark string) (database.Order, error)
	deleteFn            func(ctx context.Context, id uuid.UUID) error
	issueInvoiceFn      func(ctx context.Context, orderID uuid.UUID) (database.Invoice, database.Order, error)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, req service.CreateOrderRequest) (database.Order, error) {
	return m.createOrderFn(ctx, req)
}
func (m *mockOrderService) Transition(ctx context.Context, id uuid.UUID, next, role, remark string) (database.Order, error) {
	return m.transitionFn(ctx, id, next, role, remark)
}
func (m *mockOrderService) UpdateAssignments(ctx context.Context, id uuid.UUID, picker, packer *service.AssignmentRequest) (database.Order, error) {
	return m.updateAssignmentsFn(ctx, id, picker, packer)
}
func (m *mockOrderService) SettlePayment(ctx context.Context, id uuid.UUID, req service.SettlePaymentRequest) (database.Order, error) {
	return m.settlePaymentFn(ctx, id, req)
}
func (m *mockOrderService) UpdateRemark(ctx context.Context, id uuid.UUID, remark string) (database.Order, error) {
	return m.updateRemarkFn(ctx, id, remark)
}
func (m *mockOrderService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}
func (m *mockOrderService) IssueInvoice(ctx context.Context, orderID uuid.UUID) (database.Invoice, database.Order, error) {
	return m.issueInvoiceFn(ctx, orderID)
}

// --- Helpers ---

func newRouter(store *mockReadStore, svc *mockOrderService) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret))
		handler.NewOrderHandler(store, svc).RegisterRoutes(r)
	})
	return r
}

func tokenFor(t *testing.T, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, uuid.New(), role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func doRequest(t *testing.T, r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func numericFromString(t *testing.T, s string) pgtype.Numeric {
	t.Helper()
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		t.Fatalf("scan numeric: %v", err)
	}
	return n
}

// --- Tests ---

func TestCreateOrder_Success(t *testing.T) {
	svc := &mockOrderService{
		createOrderFn: func(ctx context.Context, req service.CreateOrderRequest) (database.Order, error) {
			return database.Order{
				ID:          uuid.New(),
				OrderNumber: "KF-0001",
				Status:      "pending",
				TotalAmount: numericFromString(t, "250.00"),
			}, nil
		},
	}
	r := newRouter(&mockReadStore{}, svc)

	body := map[string]interface{}{
		"customer_id":      uuid.New().String(),
		"customer_name":    "John Carter",
		"shipping_address": "12 Hill Road, Mumbai",
		"shipping_phone":   "+91-9000000000",
		"payment_method":   "cod",
		"items": []map[string]interface{}{
			{"product_id": uuid.New().String(), "name": "Rice", "price": "100", "quantity": 2},
			{"product_id": uuid.New().String(), "name": "Ghee", "price": "50", "quantity": 1},
		},
	}
	rr := doRequest(t, r, "POST", "/orders", tokenFor(t, "admin"), body)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d, body %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["total_amount"] != "250.00" {
		t.Errorf("total_amount: got %v, want 250.00", resp["total_amount"])
	}
	if resp["order_number"] != "KF-0001" {
		t.Errorf("order_number: got %v", resp["order_number"])
	}
}

func TestCreateOrder_ValidationError(t *testing.T) {
	svc := &mockOrderService{
		createOrderFn: func(ctx context.Context, req service.CreateOrderRequest) (database.Order, error) {
			return database.Order{}, service.ErrEmptyItems
		},
	}
	r := newRouter(&mockReadStore{}, svc)

	rr := doRequest(t, r, "POST", "/orders", tokenFor(t, "admin"), map[string]interface{}{
		"customer_id": uuid.New().String(),
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateOrder_ForbiddenForPicker(t *testing.T) {
	r := newRouter(&mockReadStore{}, &mockOrderService{})

	rr := doRequest(t, r, "POST", "/orders", tokenFor(t, "picker"), map[string]interface{}{})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestListOrders_PassesFilterPredicate(t *testing.T) {
	var gotParams database.ListOrdersParams
	store := &mockReadStore{
		listOrdersFn: func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			gotParams = arg
			return []database.Order{{ID: uuid.New(), Status: "pending", TotalAmount: numericFromString(t, "10.00")}}, nil
		},
		countOrdersFn: func(ctx context.Context, p filter.Predicate) (int64, error) {
			return 1, nil
		},
	}
	r := newRouter(store, &mockOrderService{})

	predicate := filter.Compile(filter.Selection{Statuses: []string{"Pending"}})
	raw, err := json.Marshal(predicate)
	if err != nil {
		t.Fatalf("marshal predicate: %v", err)
	}
	path := "/orders?limit=5&offset=10&filter=" + url.QueryEscape(string(raw))

	rr := doRequest(t, r, "GET", path, tokenFor(t, "admin"), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if gotParams.Limit != 5 || gotParams.Offset != 10 {
		t.Errorf("paging: got limit=%d offset=%d", gotParams.Limit, gotParams.Offset)
	}
	if _, ok := gotParams.Predicate["status"]; !ok {
		t.Errorf("predicate not passed through: %v", gotParams.Predicate)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["total"].(float64) != 1 {
		t.Errorf("total: got %v, want 1", resp["total"])
	}
}

func TestListOrders_BadFilter(t *testing.T) {
	r := newRouter(&mockReadStore{}, &mockOrderService{})

	rr := doRequest(t, r, "GET", "/orders?filter=not-json", tokenFor(t, "admin"), nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	r := newRouter(&mockReadStore{}, &mockOrderService{})

	rr := doRequest(t, r, "GET", "/orders/"+uuid.New().String(), tokenFor(t, "admin"), nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestGetOrder_IncludesActions(t *testing.T) {
	id := uuid.New()
	store := &mockReadStore{
		getOrderFn: func(ctx context.Context, got uuid.UUID) (database.Order, error) {
			return database.Order{ID: id, Status: "pending", TotalAmount: numericFromString(t, "10.00")}, nil
		},
	}
	r := newRouter(store, &mockOrderService{})

	rr := doRequest(t, r, "GET", "/orders/"+id.String(), tokenFor(t, "admin"), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	actions := resp["actions"].([]interface{})
	if len(actions) != 3 {
		t.Errorf("pending should offer 3 admin actions, got %v", actions)
	}
	if resp["can_edit_assignments"] != true {
		t.Error("pending should allow assignment edits")
	}
	if resp["can_print_invoice"] != true {
		t.Error("pending should allow invoice printing")
	}
}

func TestUpdateStatus_IllegalTransition(t *testing.T) {
	svc := &mockOrderService{
		transitionFn: func(ctx context.Context, id uuid.UUID, next, role, remark string) (database.Order, error) {
			return database.Order{}, lifecycle.ErrIllegalTransition
		},
	}
	r := newRouter(&mockReadStore{}, svc)

	rr := doRequest(t, r, "PATCH", "/orders/"+uuid.New().String()+"/status", tokenFor(t, "admin"),
		map[string]interface{}{"status": "shipped"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestUpdateStatus_PassesRoleFromToken(t *testing.T) {
	var gotRole string
	svc := &mockOrderService{
		transitionFn: func(ctx context.Context, id uuid.UUID, next, role, remark string) (database.Order, error) {
			gotRole = role
			return database.Order{ID: id, Status: next, TotalAmount: numericFromString(t, "10.00")}, nil
		},
	}
	r := newRouter(&mockReadStore{}, svc)

	rr := doRequest(t, r, "PATCH", "/orders/"+uuid.New().String()+"/status", tokenFor(t, "picker"),
		map[string]interface{}{"status": "ready"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if gotRole != "picker" {
		t.Errorf("role: got %q, want picker", gotRole)
	}
}

func TestUpdateStatus_Conflict(t *testing.T) {
	svc := &mockOrderService{
		transitionFn: func(ctx context.Context, id uuid.UUID, next, role, remark string) (database.Order, error) {
			return database.Order{}, service.ErrStatusConflict
		},
	}
	r := newRouter(&mockReadStore{}, svc)

	rr := doRequest(t, r, "PATCH", "/orders/"+uuid.New().String()+"/status", tokenFor(t, "admin"),
		map[string]interface{}{"status": "ready"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestUpdateAssignments_Locked(t *testing.T) {
	svc := &mockOrderService{
		updateAssignmentsFn: func(ctx context.Context, id uuid.UUID, picker, packer *service.AssignmentRequest) (database.Order, error) {
			return database.Order{}, service.ErrAssignmentsLocked
		},
	}
	r := newRouter(&mockReadStore{}, svc)

	rr := doRequest(t, r, "PATCH", "/orders/"+uuid.New().String()+"/assignments", tokenFor(t, "admin"),
		map[string]interface{}{"picker": map[string]string{"user_id": uuid.New().String()}})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestDeleteOrder_NoContent(t *testing.T) {
	called := false
	svc := &mockOrderService{
		deleteFn: func(ctx context.Context, id uuid.UUID) error {
			called = true
			return nil
		},
	}
	r := newRouter(&mockReadStore{}, svc)

	rr := doRequest(t, r, "DELETE", "/orders/"+uuid.New().String(), tokenFor(t, "admin"), nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if !called {
		t.Fatal("delete was not delegated to the service")
	}
}

func TestInvoice_Ineligible(t *testing.T) {
	svc := &mockOrderService{
		issueInvoiceFn: func(ctx context.Context, orderID uuid.UUID) (database.Invoice, database.Order, error) {
			return database.Invoice{}, database.Order{}, service.ErrNotInvoiceEligible
		},
	}
	r := newRouter(&mockReadStore{}, svc)

	rr := doRequest(t, r, "GET", "/orders/"+uuid.New().String()+"/invoice", tokenFor(t, "admin"), nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestMyPicks_UsesTokenIdentity(t *testing.T) {
	var gotUser uuid.UUID
	store := &mockReadStore{
		listOrdersByPickerFn: func(ctx context.Context, userID uuid.UUID) ([]database.Order, error) {
			gotUser = userID
			return nil, nil
		},
	}
	r := newRouter(store, &mockOrderService{})

	userID := uuid.New()
	token, err := auth.GenerateToken(testSecret, userID, "picker")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	rr := doRequest(t, r, "GET", "/orders/my-picks", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if gotUser != userID {
		t.Errorf("picker id: got %v, want %v", gotUser, userID)
	}
}
