// Package client is a small Go consumer of the Khana Fast API, used by the
// khanactl command and by dashboard-side tooling.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/khana-fast/api/internal/filter"
)

// APIError carries the server's error body alongside the status code.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Client talks to one Khana Fast API server.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// New creates a Client. token may be empty until Login is called.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
}

// TokenPair is the login response.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Order mirrors the API's order representation.
type Order struct {
	ID              string    `json:"id"`
	OrderNumber     string    `json:"order_number"`
	CustomerName    string    `json:"customer_name"`
	ShippingAddress string    `json:"shipping_address"`
	ShippingPhone   string    `json:"shipping_phone"`
	Status          string    `json:"status"`
	TotalAmount     string    `json:"total_amount"`
	Actions         []Action  `json:"actions"`
	CreatedAt       time.Time `json:"created_at"`
}

// Action is one legal next step offered for an order.
type Action struct {
	Status string `json:"status"`
	Label  string `json:"label"`
}

// Page is one page of a filtered order listing.
type Page struct {
	Orders []Order `json:"orders"`
	Total  int64   `json:"total"`
	Limit  int32   `json:"limit"`
	Offset int32   `json:"offset"`
}

// Login authenticates and stores the access token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &pair)
	if err != nil {
		return TokenPair{}, err
	}
	c.token = pair.AccessToken
	return pair, nil
}

// ListOrders fetches one page of orders matching the compiled predicate.
func (c *Client) ListOrders(ctx context.Context, predicate filter.Predicate, limit, offset int32) (Page, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	q.Set("offset", fmt.Sprint(offset))
	if len(predicate) > 0 {
		raw, err := json.Marshal(predicate)
		if err != nil {
			return Page{}, fmt.Errorf("marshal predicate: %w", err)
		}
		q.Set("filter", string(raw))
	}

	var page Page
	if err := c.do(ctx, http.MethodGet, "/orders?"+q.Encode(), nil, &page); err != nil {
		return Page{}, err
	}
	return page, nil
}

// GetOrder fetches one order.
func (c *Client) GetOrder(ctx context.Context, id string) (Order, error) {
	var order Order
	err := c.do(ctx, http.MethodGet, "/orders/"+id, nil, &order)
	return order, err
}

// UpdateStatus moves an order to its next status.
func (c *Client) UpdateStatus(ctx context.Context, id, status, remark string) (Order, error) {
	var order Order
	err := c.do(ctx, http.MethodPatch, "/orders/"+id+"/status", map[string]string{
		"status": status,
		"remark": remark,
	}, &order)
	return order, err
}

// AssignmentUpdate names the staff member to place on an order.
type AssignmentUpdate struct {
	UserID string `json:"user_id"`
	Remark string `json:"remark,omitempty"`
}

// UpdateAssignments replaces the picker and/or packer of an order. A nil
// field leaves that assignment untouched.
func (c *Client) UpdateAssignments(ctx context.Context, id string, picker, packer *AssignmentUpdate) (Order, error) {
	var order Order
	err := c.do(ctx, http.MethodPatch, "/orders/"+id+"/assignments", map[string]interface{}{
		"picker": picker,
		"packer": packer,
	}, &order)
	return order, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return &APIError{Status: resp.StatusCode, Message: errBody.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
