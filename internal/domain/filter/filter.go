// Package filter describes attribute constraints applied before vector ranking.
package filter

import (
	"fmt"
	"strings"
)

// Indexed attributes of a stored invoice point.
const (
	FieldCurrency    = "currency"
	FieldVendor      = "vendor_name"
	FieldTotalAmount = "total_amount"
	FieldInvoiceDate = "invoice_date"
)

// MaxConditions bounds a single expression.
const MaxConditions = 16

var tagFields = map[string]bool{FieldCurrency: true, FieldVendor: true}

var numericFields = map[string]bool{FieldTotalAmount: true, FieldInvoiceDate: true}

// Expression is a conjunction of conditions; MustNot conditions are negated.
// The zero value matches everything.
type Expression struct {
	must    []Condition
	mustNot []Condition
}

// NewExpression validates and creates an Expression.
func NewExpression(must, mustNot []Condition) (Expression, error) {
	if len(must)+len(mustNot) > MaxConditions {
		return Expression{}, fmt.Errorf("too many filter conditions (max %d)", MaxConditions)
	}
	return Expression{must: must, mustNot: mustNot}, nil
}

// Must returns the positive conditions.
func (e Expression) Must() []Condition { return e.must }

// MustNot returns the negated conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.must) == 0 && len(e.mustNot) == 0 }

// Eval reports whether a point with the given attributes satisfies e.
// Used by stores that rank in process.
func (e Expression) Eval(tags map[string]string, numbers map[string]float64) bool {
	for _, c := range e.must {
		if !c.eval(tags, numbers) {
			return false
		}
	}
	for _, c := range e.mustNot {
		if c.eval(tags, numbers) {
			return false
		}
	}
	return true
}

// Condition is an exact tag match or a numeric range on one attribute.
type Condition struct {
	key   string
	match string
	rng   *Range
}

// NewMatch creates a tag condition. Matching is case-insensitive.
func NewMatch(key, value string) (Condition, error) {
	if !tagFields[key] {
		return Condition{}, fmt.Errorf("field %q does not support match", key)
	}
	if strings.TrimSpace(value) == "" {
		return Condition{}, fmt.Errorf("match value is required for %q", key)
	}
	return Condition{key: key, match: value}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if !numericFields[key] {
		return Condition{}, fmt.Errorf("field %q does not support range", key)
	}
	return Condition{key: key, rng: &r}, nil
}

// Key returns the attribute name.
func (c Condition) Key() string { return c.key }

// Match returns the tag value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range, nil for tag conditions.
func (c Condition) Range() *Range { return c.rng }

// IsMatch reports whether c is a tag condition.
func (c Condition) IsMatch() bool { return c.rng == nil }

func (c Condition) eval(tags map[string]string, numbers map[string]float64) bool {
	if c.rng == nil {
		v, ok := tags[c.key]
		return ok && strings.EqualFold(v, c.match)
	}
	v, ok := numbers[c.key]
	return ok && c.rng.Contains(v)
}

// Range is a numeric interval; a nil bound is open.
type Range struct {
	gt, gte, lt, lte *float64
}

// NewRangeFilter validates and creates a Range.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the exclusive lower bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the inclusive lower bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the exclusive upper bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the inclusive upper bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether v lies within r.
func (r Range) Contains(v float64) bool {
	switch {
	case r.gt != nil && v <= *r.gt:
		return false
	case r.gte != nil && v < *r.gte:
		return false
	case r.lt != nil && v >= *r.lt:
		return false
	case r.lte != nil && v > *r.lte:
		return false
	}
	return true
}
