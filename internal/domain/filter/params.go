package filter

import "errors"

// Params is the flat filter shape accepted by the HTTP and CLI boundaries.
// Dates are yyyymmdd ordinals.
type Params struct {
	Currency string   `json:"currency,omitempty"`
	Vendor   string   `json:"vendor_name,omitempty"`
	MinTotal *float64 `json:"min_total,omitempty"`
	MaxTotal *float64 `json:"max_total,omitempty"`
	DateFrom *int     `json:"date_from,omitempty"`
	DateTo   *int     `json:"date_to,omitempty"`
}

// Expression converts p into an Expression. Nil or zero params yield the empty expression.
func (p *Params) Expression() (Expression, error) {
	if p == nil {
		return Expression{}, nil
	}

	var must []Condition
	var errs []error
	add := func(c Condition, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		must = append(must, c)
	}

	if p.Currency != "" {
		add(NewMatch(FieldCurrency, p.Currency))
	}
	if p.Vendor != "" {
		add(NewMatch(FieldVendor, p.Vendor))
	}
	if p.MinTotal != nil || p.MaxTotal != nil {
		r, err := NewRangeFilter(nil, p.MinTotal, nil, p.MaxTotal)
		if err != nil {
			errs = append(errs, err)
		} else {
			add(NewRange(FieldTotalAmount, r))
		}
	}
	if p.DateFrom != nil || p.DateTo != nil {
		r, err := NewRangeFilter(nil, intToFloat(p.DateFrom), nil, intToFloat(p.DateTo))
		if err != nil {
			errs = append(errs, err)
		} else {
			add(NewRange(FieldInvoiceDate, r))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Expression{}, err
	}
	return NewExpression(must, nil)
}

func intToFloat(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
