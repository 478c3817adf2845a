package lifecycle

import (
	"errors"
	"testing"

	"github.com/khana-fast/api/internal/enum"
)

var allStatuses = []Status{
	StatusPending, StatusHold, StatusReady, StatusShipped,
	StatusDelivered, StatusCancelled, StatusReturned,
}

func TestNextActions_Table(t *testing.T) {
	want := map[Status][]Action{
		StatusPending: {
			{StatusReady, "accept"},
			{StatusHold, "hold"},
			{StatusCancelled, "cancel"},
		},
		StatusHold: {
			{StatusReady, "accept"},
			{StatusCancelled, "cancel"},
		},
		StatusReady: {
			{StatusShipped, "ship"},
			{StatusCancelled, "cancel"},
		},
		StatusShipped:   {{StatusDelivered, "mark delivered"}},
		StatusDelivered: {{StatusReturned, "mark returned"}},
		StatusCancelled: {},
		StatusReturned:  {},
	}

	for status, expected := range want {
		got := NextActions(status)
		if len(got) != len(expected) {
			t.Fatalf("%s: expected %d actions, got %d (%v)", status, len(expected), len(got), got)
		}
		for i, a := range expected {
			if got[i] != a {
				t.Errorf("%s action[%d]: expected %+v, got %+v", status, i, a, got[i])
			}
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range allStatuses {
		want := s == StatusCancelled || s == StatusReturned
		if Terminal(s) != want {
			t.Errorf("Terminal(%s) = %v, want %v", s, Terminal(s), want)
		}
	}
	if Terminal(Status("bogus")) {
		t.Error("Terminal should be false for unknown statuses")
	}
}

func TestCanEditAssignments_Exhaustive(t *testing.T) {
	editable := map[Status]bool{
		StatusPending:   true,
		StatusHold:      true,
		StatusCancelled: true,
	}
	for _, s := range allStatuses {
		if CanEditAssignments(s) != editable[s] {
			t.Errorf("CanEditAssignments(%s) = %v, want %v", s, CanEditAssignments(s), editable[s])
		}
	}
}

func TestCanPrintInvoice_Exhaustive(t *testing.T) {
	eligible := map[Status]bool{
		StatusPending:   true,
		StatusReady:     true,
		StatusShipped:   true,
		StatusDelivered: true,
	}
	for _, s := range allStatuses {
		if CanPrintInvoice(s) != eligible[s] {
			t.Errorf("CanPrintInvoice(%s) = %v, want %v", s, CanPrintInvoice(s), eligible[s])
		}
	}
}

func TestValidateTransition_SkippingReady(t *testing.T) {
	err := ValidateTransition(StatusPending, StatusShipped)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("pending -> shipped should be illegal, got: %v", err)
	}
}

func TestValidateTransition_SelfTransition(t *testing.T) {
	// hold -> hold is not in the table.
	if err := ValidateTransition(StatusHold, StatusHold); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("hold -> hold should be illegal, got: %v", err)
	}
}

func TestValidateTransition_UnknownStatus(t *testing.T) {
	if err := ValidateTransition(Status("processing"), StatusReady); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("unknown current status should be illegal, got: %v", err)
	}
	if err := ValidateTransition(StatusPending, Status("done")); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("unknown target status should be illegal, got: %v", err)
	}
}

func TestValidateTransition_PostShipmentCancel(t *testing.T) {
	// Cancel is no longer offered once shipped.
	if err := ValidateTransition(StatusShipped, StatusCancelled); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("shipped -> cancelled should be illegal, got: %v", err)
	}
}

func TestValidateTransition_DeliveredEscape(t *testing.T) {
	if err := ValidateTransition(StatusDelivered, StatusReturned); err != nil {
		t.Fatalf("delivered -> returned should be legal, got: %v", err)
	}
}

func TestActionsFor_RoleGating(t *testing.T) {
	tests := []struct {
		role   string
		status Status
		want   []Status
	}{
		{enum.UserRoleAdmin, StatusPending, []Status{StatusReady, StatusHold, StatusCancelled}},
		{enum.UserRolePicker, StatusPending, []Status{StatusReady, StatusHold}},
		{enum.UserRolePicker, StatusHold, []Status{StatusReady}},
		{enum.UserRolePicker, StatusReady, nil},
		{enum.UserRolePacker, StatusReady, []Status{StatusShipped}},
		{enum.UserRolePacker, StatusShipped, []Status{StatusDelivered}},
		{enum.UserRolePacker, StatusPending, nil},
		{enum.UserRoleAdmin, StatusDelivered, []Status{StatusReturned}},
		{enum.UserRolePacker, StatusDelivered, nil},
	}

	for _, tt := range tests {
		got := ActionsFor(tt.role, tt.status)
		if len(got) != len(tt.want) {
			t.Errorf("ActionsFor(%s, %s): expected %v next statuses, got %v", tt.role, tt.status, tt.want, got)
			continue
		}
		for i, next := range tt.want {
			if got[i].Next != next {
				t.Errorf("ActionsFor(%s, %s)[%d]: expected %s, got %s", tt.role, tt.status, i, next, got[i].Next)
			}
		}
	}
}

func TestValidateTransitionFor(t *testing.T) {
	// Picker cannot ship, packer cannot cancel, admin can do both.
	if err := ValidateTransitionFor(enum.UserRolePicker, StatusReady, StatusShipped); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("picker ship should be rejected, got: %v", err)
	}
	if err := ValidateTransitionFor(enum.UserRolePacker, StatusReady, StatusCancelled); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("packer cancel should be rejected, got: %v", err)
	}
	if err := ValidateTransitionFor(enum.UserRoleAdmin, StatusReady, StatusShipped); err != nil {
		t.Errorf("admin ship should be allowed, got: %v", err)
	}
	if err := ValidateTransitionFor(enum.UserRoleAdmin, StatusReady, StatusCancelled); err != nil {
		t.Errorf("admin cancel should be allowed, got: %v", err)
	}
	// Picker reject lands on hold regardless of how hold was last entered.
	if err := ValidateTransitionFor(enum.UserRolePicker, StatusPending, StatusHold); err != nil {
		t.Errorf("picker reject (pending -> hold) should be allowed, got: %v", err)
	}
}

func TestNormalize(t *testing.T) {
	s, err := Normalize("  Pending ")
	if err != nil || s != StatusPending {
		t.Fatalf("Normalize: got (%q, %v)", s, err)
	}
	if _, err := Normalize("PROCESSING"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
