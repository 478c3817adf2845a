package database

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/khana-fast/api/internal/filter"
)

// ErrBadPredicate is wrapped by predicate translation failures. Unknown
// fields or operators are rejected instead of silently matching everything.
var ErrBadPredicate = errors.New("unsupported filter predicate")

// regexColumns maps predicate search fields to their order columns.
var regexColumns = map[string]string{
	"order_number":     "order_number",
	"customer_name":    "customer_name",
	"shipping_address": "shipping_address",
	"shipping_phone":   "shipping_phone",
}

// predicateWhere translates a compiled filter predicate into SQL conditions
// and bind arguments. Keys are processed in sorted order so equal predicates
// produce identical SQL. args numbering starts after argOffset.
func predicateWhere(p filter.Predicate, argOffset int) (string, []any, error) {
	if len(p) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conds []string
	var args []any
	next := func() int { return argOffset + len(args) + 1 }

	for _, key := range keys {
		val := p[key]
		switch {
		case key == "$or":
			cond, orArgs, err := orClause(val, next())
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, cond)
			args = append(args, orArgs...)

		case key == "created_at":
			bounds, ok := val.(map[string]any)
			if !ok {
				return "", nil, fmt.Errorf("%w: created_at wants bounds, got %T", ErrBadPredicate, val)
			}
			boundKeys := make([]string, 0, len(bounds))
			for k := range bounds {
				boundKeys = append(boundKeys, k)
			}
			sort.Strings(boundKeys)
			for _, op := range boundKeys {
				t, err := asTime(bounds[op])
				if err != nil {
					return "", nil, err
				}
				switch op {
				case "$gte":
					conds = append(conds, fmt.Sprintf("created_at >= $%d", next()))
				case "$lte":
					conds = append(conds, fmt.Sprintf("created_at <= $%d", next()))
				default:
					return "", nil, fmt.Errorf("%w: created_at operator %q", ErrBadPredicate, op)
				}
				args = append(args, t)
			}

		case key == "status":
			values, err := inValues(val)
			if err != nil {
				return "", nil, fmt.Errorf("status: %w", err)
			}
			conds = append(conds, fmt.Sprintf("status = ANY($%d)", next()))
			args = append(args, values)

		case key == "payment.method":
			values, err := inValues(val)
			if err != nil {
				return "", nil, fmt.Errorf("payment.method: %w", err)
			}
			conds = append(conds, fmt.Sprintf("payment->>'method' = ANY($%d)", next()))
			args = append(args, values)

		case key == "items.quantity":
			n, err := gteNumber(val)
			if err != nil {
				return "", nil, fmt.Errorf("items.quantity: %w", err)
			}
			conds = append(conds, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM jsonb_array_elements(items) AS li WHERE (li->>'quantity')::numeric >= $%d)", next()))
			args = append(args, n)

		case strings.HasPrefix(key, "items."):
			// items.<idx>: {$exists: true} encodes array length >= idx+1.
			idx, err := strconv.Atoi(strings.TrimPrefix(key, "items."))
			if err != nil {
				return "", nil, fmt.Errorf("%w: field %q", ErrBadPredicate, key)
			}
			cond, ok := val.(map[string]any)
			if !ok || cond["$exists"] != true || len(cond) != 1 {
				return "", nil, fmt.Errorf("%w: %s wants {$exists: true}, got %v", ErrBadPredicate, key, val)
			}
			conds = append(conds, fmt.Sprintf("jsonb_array_length(items) >= $%d", next()))
			args = append(args, idx+1)

		default:
			return "", nil, fmt.Errorf("%w: field %q", ErrBadPredicate, key)
		}
	}

	return strings.Join(conds, " AND "), args, nil
}

// orClause translates a $or list of case-insensitive regex matches into a
// parenthesized OR of Postgres ~* conditions.
func orClause(val any, firstArg int) (string, []any, error) {
	branches, ok := val.([]any)
	if !ok || len(branches) == 0 {
		return "", nil, fmt.Errorf("%w: $or wants a non-empty list, got %T", ErrBadPredicate, val)
	}

	var conds []string
	var args []any
	for _, raw := range branches {
		branch, ok := raw.(map[string]any)
		if !ok || len(branch) != 1 {
			return "", nil, fmt.Errorf("%w: $or branch %v", ErrBadPredicate, raw)
		}
		for field, condVal := range branch {
			col, ok := regexColumns[field]
			if !ok {
				return "", nil, fmt.Errorf("%w: $or field %q", ErrBadPredicate, field)
			}
			cond, ok := condVal.(map[string]any)
			if !ok {
				return "", nil, fmt.Errorf("%w: $or condition for %q", ErrBadPredicate, field)
			}
			pattern, ok := cond["$regex"].(string)
			if !ok {
				return "", nil, fmt.Errorf("%w: $or field %q wants $regex", ErrBadPredicate, field)
			}
			// $options "i" maps onto ~* (case-insensitive match).
			conds = append(conds, fmt.Sprintf("%s ~* $%d", col, firstArg+len(args)))
			args = append(args, pattern)
		}
	}

	return "(" + strings.Join(conds, " OR ") + ")", args, nil
}

// inValues extracts the $in member list as strings. Predicates arrive either
// in-process ([]any of string) or through a JSON round-trip, which yields
// the same shape.
func inValues(val any) ([]string, error) {
	cond, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: wants {$in: [...]}, got %T", ErrBadPredicate, val)
	}
	list, ok := cond["$in"].([]any)
	if !ok || len(cond) != 1 {
		return nil, fmt.Errorf("%w: wants {$in: [...]}, got %v", ErrBadPredicate, val)
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: $in member %v", ErrBadPredicate, v)
		}
		out = append(out, s)
	}
	return out, nil
}

// gteNumber extracts a {$gte: n} threshold. JSON decoding hands numbers over
// as float64; in-process predicates carry int.
func gteNumber(val any) (float64, error) {
	cond, ok := val.(map[string]any)
	if !ok || len(cond) != 1 {
		return 0, fmt.Errorf("%w: wants {$gte: n}, got %v", ErrBadPredicate, val)
	}
	switch n := cond["$gte"].(type) {
	case int:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("%w: $gte value %v", ErrBadPredicate, cond["$gte"])
	}
}

// asTime accepts time.Time (in-process) or an RFC3339 string (after a JSON
// round-trip).
func asTime(val any) (time.Time, error) {
	switch t := val.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrBadPredicate, t)
		}
		return parsed, nil
	default:
		return time.Time{}, fmt.Errorf("%w: bad timestamp %v", ErrBadPredicate, val)
	}
}
