// Package lifecycle is the single source of truth for the order status state
// machine: which transitions exist, which role may take them, and which
// status-derived capabilities (assignment editing, invoice printing) apply.
// Everything here is a pure function of status; callers own all side effects.
package lifecycle

import (
	"fmt"
	"strings"

	"github.com/khana-fast/api/internal/enum"
)

// Status is an order lifecycle status.
type Status string

const (
	StatusPending   Status = enum.OrderStatusPending
	StatusHold      Status = enum.OrderStatusHold
	StatusReady     Status = enum.OrderStatusReady
	StatusShipped   Status = enum.OrderStatusShipped
	StatusDelivered Status = enum.OrderStatusDelivered
	StatusCancelled Status = enum.OrderStatusCancelled
	StatusReturned  Status = enum.OrderStatusReturned
)

// ErrIllegalTransition is wrapped by ValidateTransition failures.
// Callers must check it before issuing any store or network call.
var ErrIllegalTransition = fmt.Errorf("illegal status transition")

// Action is one legal forward step from a status, as exposed to a caller.
type Action struct {
	Next  Status
	Label string
}

// edge is a transition table entry. Roles lists who may take the edge in
// addition to admin, which may take every edge.
type edge struct {
	next  Status
	label string
	roles []string
}

// transitions defines the full forward state machine, in presentation order.
// hold is reachable both from an admin hold and from a picker reject; the
// state itself carries no actor-of-origin marker, so both entry paths land
// on the same row.
var transitions = map[Status][]edge{
	StatusPending: {
		{StatusReady, "accept", []string{enum.UserRolePicker}},
		{StatusHold, "hold", []string{enum.UserRolePicker}},
		{StatusCancelled, "cancel", nil},
	},
	StatusHold: {
		{StatusReady, "accept", []string{enum.UserRolePicker}},
		{StatusCancelled, "cancel", nil},
	},
	StatusReady: {
		{StatusShipped, "ship", []string{enum.UserRolePacker}},
		{StatusCancelled, "cancel", nil},
	},
	StatusShipped: {
		{StatusDelivered, "mark delivered", []string{enum.UserRolePacker}},
	},
	StatusDelivered: {
		{StatusReturned, "mark returned", nil},
	},
	StatusCancelled: nil,
	StatusReturned:  nil,
}

// editEnabled is the set of statuses in which picker/packer assignment
// fields may still be changed. From ready onward they are read-only.
var editEnabled = map[Status]bool{
	StatusPending:   true,
	StatusHold:      true,
	StatusCancelled: true,
}

// invoiceEligible is the set of statuses for which an invoice may be
// rendered. Excludes cancelled, hold and returned.
var invoiceEligible = map[Status]bool{
	StatusPending:   true,
	StatusReady:     true,
	StatusShipped:   true,
	StatusDelivered: true,
}

// Valid reports whether s is one of the seven known statuses.
func Valid(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// Normalize lowercases raw and returns the matching Status.
func Normalize(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !Valid(s) {
		return "", fmt.Errorf("unknown order status %q", raw)
	}
	return s, nil
}

// NextActions returns the ordered list of legal forward steps from s.
// Terminal statuses return an empty list.
func NextActions(s Status) []Action {
	edges := transitions[s]
	actions := make([]Action, 0, len(edges))
	for _, e := range edges {
		actions = append(actions, Action{Next: e.next, Label: e.label})
	}
	return actions
}

// ActionsFor returns the subset of NextActions the given role may take.
// Admin may take every edge; other roles only the edges that name them.
func ActionsFor(role string, s Status) []Action {
	edges := transitions[s]
	actions := make([]Action, 0, len(edges))
	for _, e := range edges {
		if roleAllowed(role, e) {
			actions = append(actions, Action{Next: e.next, Label: e.label})
		}
	}
	return actions
}

// CanTransition reports whether any role may move an order from cur to next.
func CanTransition(cur, next Status) bool {
	for _, e := range transitions[cur] {
		if e.next == next {
			return true
		}
	}
	return false
}

// ValidateTransition rejects edges absent from the transition table.
// The returned error wraps ErrIllegalTransition.
func ValidateTransition(cur, next Status) error {
	if !Valid(cur) {
		return fmt.Errorf("%w: unknown current status %q", ErrIllegalTransition, cur)
	}
	if !Valid(next) {
		return fmt.Errorf("%w: unknown target status %q", ErrIllegalTransition, next)
	}
	if !CanTransition(cur, next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, cur, next)
	}
	return nil
}

// ValidateTransitionFor additionally checks that role may take the edge.
func ValidateTransitionFor(role string, cur, next Status) error {
	if err := ValidateTransition(cur, next); err != nil {
		return err
	}
	for _, e := range transitions[cur] {
		if e.next == next && roleAllowed(role, e) {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s may not move %s -> %s", ErrIllegalTransition, role, cur, next)
}

// CanEditAssignments reports whether picker/packer assignment fields are
// still mutable for an order in status s.
func CanEditAssignments(s Status) bool {
	return editEnabled[s]
}

// CanPrintInvoice reports whether an invoice may be rendered for status s.
func CanPrintInvoice(s Status) bool {
	return invoiceEligible[s]
}

// Terminal reports whether s has no forward transitions at all.
// delivered is not terminal: it keeps its single returned escape.
func Terminal(s Status) bool {
	return Valid(s) && len(transitions[s]) == 0
}

func roleAllowed(role string, e edge) bool {
	if role == enum.UserRoleAdmin {
		return true
	}
	for _, r := range e.roles {
		if r == role {
			return true
		}
	}
	return false
}
