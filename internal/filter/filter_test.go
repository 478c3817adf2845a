package filter

import (
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func TestCompile_EmptySelection(t *testing.T) {
	p := Compile(Selection{})
	if len(p) != 0 {
		t.Fatalf("empty selection must compile to an unconstrained predicate, got: %v", p)
	}
}

func TestCompile_Idempotent(t *testing.T) {
	from := time.Date(2024, 1, 10, 9, 30, 0, 0, time.Local)
	sel := Selection{
		SearchText:       "john",
		DateFrom:         &from,
		Statuses:         []string{"Pending", "Hold"},
		PaymentMethods:   []string{"COD"},
		MinItemCount:     2,
		MinTotalQuantity: 3,
	}
	a := Compile(sel)
	b := Compile(sel)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("compile is not deterministic:\n%v\n%v", a, b)
	}
}

func TestCompile_SearchAndStatuses(t *testing.T) {
	p := Compile(Selection{
		SearchText: "john",
		Statuses:   []string{"Pending", "Hold"},
	})

	or, ok := p["$or"].([]any)
	if !ok {
		t.Fatalf("expected $or clause, got: %v", p)
	}
	wantFields := []string{"order_number", "customer_name", "shipping_address", "shipping_phone"}
	if len(or) != len(wantFields) {
		t.Fatalf("expected %d search branches, got %d", len(wantFields), len(or))
	}
	for i, field := range wantFields {
		branch := or[i].(map[string]any)
		cond, ok := branch[field].(map[string]any)
		if !ok {
			t.Fatalf("branch %d missing field %s: %v", i, field, branch)
		}
		if cond["$regex"] != "john" || cond["$options"] != "i" {
			t.Errorf("field %s: expected case-insensitive regex on %q, got %v", field, "john", cond)
		}
	}

	status := p["status"].(map[string]any)
	if !reflect.DeepEqual(status["$in"], []any{"pending", "hold"}) {
		t.Errorf("statuses not case-normalized: %v", status)
	}
}

func TestCompile_SearchTextQuoted(t *testing.T) {
	p := Compile(Selection{SearchText: "a+b (c)"})
	branch := p["$or"].([]any)[0].(map[string]any)
	cond := branch["order_number"].(map[string]any)
	if cond["$regex"] != `a\+b \(c\)` {
		t.Errorf("regex metacharacters must be quoted, got %q", cond["$regex"])
	}
}

func TestCompile_DateRangeBounds(t *testing.T) {
	from := time.Date(2024, 1, 10, 14, 45, 10, 0, time.Local)
	to := time.Date(2024, 1, 15, 8, 0, 0, 0, time.Local)
	p := Compile(Selection{DateFrom: &from, DateTo: &to})

	created := p["created_at"].(map[string]any)
	gte := created["$gte"].(time.Time)
	lte := created["$lte"].(time.Time)

	wantStart := time.Date(2024, 1, 10, 0, 0, 0, 0, time.Local)
	if !gte.Equal(wantStart) {
		t.Errorf("lower bound: expected %v, got %v", wantStart, gte)
	}
	wantEnd := time.Date(2024, 1, 15, 23, 59, 59, int(999*time.Millisecond), time.Local)
	if !lte.Equal(wantEnd) {
		t.Errorf("upper bound: expected %v, got %v", wantEnd, lte)
	}
	// Off-by-one-day protection: the bound must stay inside Jan 15.
	if lte.Day() != 15 {
		t.Errorf("upper bound rolled over to the next day: %v", lte)
	}
}

func TestCompile_SingleSidedDateRange(t *testing.T) {
	to := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	p := Compile(Selection{DateTo: &to})
	created := p["created_at"].(map[string]any)
	if _, ok := created["$gte"]; ok {
		t.Error("no lower bound was requested")
	}
	if _, ok := created["$lte"]; !ok {
		t.Error("upper bound missing")
	}
}

func TestCompile_ItemConstraints(t *testing.T) {
	p := Compile(Selection{MinItemCount: 3, MinTotalQuantity: 5})

	exists, ok := p["items.2"].(map[string]any)
	if !ok || exists["$exists"] != true {
		t.Errorf("MinItemCount=3 should compile to items.2 $exists, got: %v", p)
	}
	qty, ok := p["items.quantity"].(map[string]any)
	if !ok || qty["$gte"] != 5 {
		t.Errorf("MinTotalQuantity=5 should compile to items.quantity $gte 5, got: %v", p)
	}
}

func TestCompile_NonPositiveThresholdsIgnored(t *testing.T) {
	p := Compile(Selection{MinItemCount: 0, MinTotalQuantity: -1})
	if len(p) != 0 {
		t.Fatalf("non-positive thresholds must impose no constraint, got: %v", p)
	}
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	var calls atomic.Int32
	db := NewDebouncer(30 * time.Millisecond)
	defer db.Stop()

	for i := 0; i < 5; i++ {
		db.Trigger(func() { calls.Add(1) })
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one coalesced call, got %d", got)
	}
}

func TestDebouncer_RestartsOnTrigger(t *testing.T) {
	var first, second atomic.Int32
	db := NewDebouncer(40 * time.Millisecond)
	defer db.Stop()

	db.Trigger(func() { first.Add(1) })
	time.Sleep(20 * time.Millisecond)
	db.Trigger(func() { second.Add(1) })

	time.Sleep(120 * time.Millisecond)
	if first.Load() != 0 {
		t.Error("superseded callback must not fire")
	}
	if second.Load() != 1 {
		t.Errorf("replacement callback should fire once, got %d", second.Load())
	}
}

func TestDebouncer_Stop(t *testing.T) {
	var calls atomic.Int32
	db := NewDebouncer(20 * time.Millisecond)
	db.Trigger(func() { calls.Add(1) })
	db.Stop()
	db.Trigger(func() { calls.Add(1) })

	time.Sleep(80 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("stopped debouncer must not fire, got %d calls", calls.Load())
	}
}
