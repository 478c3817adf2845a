// Package filter turns structured order-list filter selections into the
// Mongo-style predicate shape the list endpoints consume. Compilation is a
// pure, total function: every selection (including the empty one) produces a
// predicate, and equal selections produce structurally equal predicates.
package filter

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// searchFields is the fixed field set free-text search runs over,
// OR-combined.
var searchFields = []string{
	"order_number",
	"customer_name",
	"shipping_address",
	"shipping_phone",
}

// Selection is a transient set of list-filter choices. All fields are
// optional; zero values impose no constraint.
type Selection struct {
	SearchText     string
	DateFrom       *time.Time
	DateTo         *time.Time
	Statuses       []string
	PaymentMethods []string
	// MinItemCount constrains the length of the order's item array.
	MinItemCount int
	// MinTotalQuantity matches orders where at least one single line item
	// has quantity >= the threshold. Whether this should instead constrain
	// the sum of quantities is an open product question; keep the
	// any-single-item reading until that is settled.
	MinTotalQuantity int
}

// Predicate is the compiled query constraint object. It is a serialization
// target ($or, $in, $gte, $lte, $regex vocabulary), not a handle to any
// particular query engine.
type Predicate map[string]any

// Compile builds the predicate for sel. Independent conditions are AND-ed
// by sharing the top-level object; an empty selection compiles to an empty
// predicate that matches everything.
func Compile(sel Selection) Predicate {
	p := Predicate{}

	if text := strings.TrimSpace(sel.SearchText); text != "" {
		pattern := regexp.QuoteMeta(text)
		or := make([]any, 0, len(searchFields))
		for _, field := range searchFields {
			or = append(or, map[string]any{
				field: map[string]any{"$regex": pattern, "$options": "i"},
			})
		}
		p["$or"] = or
	}

	if sel.DateFrom != nil || sel.DateTo != nil {
		created := map[string]any{}
		if sel.DateFrom != nil {
			created["$gte"] = StartOfDay(*sel.DateFrom)
		}
		if sel.DateTo != nil {
			created["$lte"] = EndOfDay(*sel.DateTo)
		}
		p["created_at"] = created
	}

	if len(sel.Statuses) > 0 {
		statuses := make([]any, 0, len(sel.Statuses))
		for _, s := range sel.Statuses {
			statuses = append(statuses, strings.ToLower(strings.TrimSpace(s)))
		}
		p["status"] = map[string]any{"$in": statuses}
	}

	if len(sel.PaymentMethods) > 0 {
		methods := make([]any, 0, len(sel.PaymentMethods))
		for _, m := range sel.PaymentMethods {
			methods = append(methods, strings.ToLower(strings.TrimSpace(m)))
		}
		p["payment.method"] = map[string]any{"$in": methods}
	}

	if sel.MinItemCount > 0 {
		// Array length >= n expressed as "element n-1 exists".
		p[itemIndexField(sel.MinItemCount-1)] = map[string]any{"$exists": true}
	}

	if sel.MinTotalQuantity > 0 {
		p["items.quantity"] = map[string]any{"$gte": sel.MinTotalQuantity}
	}

	return p
}

// StartOfDay returns midnight at the start of t's day, in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of t's day, in t's location. Using the last
// representable instant of the day rather than next midnight keeps an
// end-date of "2024-01-15" from silently excluding the whole of the 15th.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

func itemIndexField(idx int) string {
	return "items." + strconv.Itoa(idx)
}
