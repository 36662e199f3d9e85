// Package invoice defines the invoice record extracted from free text and
// the normalization rules its JSON form is decoded with.
package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalid signals a record that violates the schema invariants.
var ErrInvalid = errors.New("invalid invoice")

// Item is one invoice line.
type Item struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Invoice is one extracted document.
type Invoice struct {
	VendorName  string          `json:"vendor_name"`
	InvoiceDate Date            `json:"invoice_date"`
	Items       []Item          `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    Currency        `json:"currency"`
}

// Validate checks the schema invariants. All violations are reported at once.
func (inv *Invoice) Validate() error {
	var errs []error

	if strings.TrimSpace(inv.VendorName) == "" {
		errs = append(errs, errors.New("vendor_name is required"))
	}
	if inv.InvoiceDate.IsZero() {
		errs = append(errs, errors.New("invoice_date is required"))
	}
	for i, it := range inv.Items {
		if strings.TrimSpace(it.Name) == "" {
			errs = append(errs, fmt.Errorf("items[%d].name is required", i))
		}
		if it.Quantity < 0 {
			errs = append(errs, fmt.Errorf("items[%d].quantity must be non-negative, got %d", i, it.Quantity))
		}
	}
	if inv.TotalAmount.IsNegative() {
		errs = append(errs, fmt.Errorf("total_amount must be non-negative, got %s", inv.TotalAmount))
	}
	if !inv.Currency.IsValid() {
		errs = append(errs, fmt.Errorf("currency %q is not an ISO 4217 code", string(inv.Currency)))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Decode parses and validates an invoice from its JSON form.
func Decode(data []byte) (Invoice, error) {
	var inv Invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return Invoice{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := inv.Validate(); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// UnmarshalJSON accepts locale-formatted amounts and fractional quantities.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name     string          `json:"name"`
		Quantity json.RawMessage `json:"quantity"`
		Price    json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err //nolint:wrapcheck // surfaced by the caller's decode error
	}

	qty, err := parseQuantity(raw.Quantity)
	if err != nil {
		return fmt.Errorf("item %q quantity: %w", raw.Name, err)
	}
	price, err := parseAmountJSON(raw.Price)
	if err != nil {
		return fmt.Errorf("item %q price: %w", raw.Name, err)
	}

	*it = Item{Name: strings.TrimSpace(raw.Name), Quantity: qty, Price: price}
	return nil
}

// UnmarshalJSON accepts a locale-formatted total_amount.
func (inv *Invoice) UnmarshalJSON(data []byte) error {
	var raw struct {
		VendorName  string          `json:"vendor_name"`
		InvoiceDate Date            `json:"invoice_date"`
		Items       []Item          `json:"items"`
		TotalAmount json.RawMessage `json:"total_amount"`
		Currency    Currency        `json:"currency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err //nolint:wrapcheck // surfaced by the caller's decode error
	}

	total, err := parseAmountJSON(raw.TotalAmount)
	if err != nil {
		return fmt.Errorf("total_amount: %w", err)
	}

	items := raw.Items
	if items == nil {
		items = []Item{}
	}

	*inv = Invoice{
		VendorName:  strings.TrimSpace(raw.VendorName),
		InvoiceDate: raw.InvoiceDate,
		Items:       items,
		TotalAmount: total,
		Currency:    raw.Currency,
	}
	return nil
}

// plainDecimal is the canonical form the strict schema asks for. It is
// never read as grouped thousands: "6.459" is six and a fraction.
var plainDecimal = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

func parseAmountJSON(raw json.RawMessage) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Decimal{}, errors.New("value is required")
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return decimal.Decimal{}, fmt.Errorf("decode string: %w", err)
		}
		if str = strings.TrimSpace(str); plainDecimal.MatchString(str) {
			return decimal.NewFromString(str)
		}
		return ParseAmount(str)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse number %s: %w", s, err)
	}
	return d, nil
}

// parseQuantity rounds half away from zero; a positive amount that would round to 0 counts as 1.
func parseQuantity(raw json.RawMessage) (int, error) {
	d, err := parseAmountJSON(raw)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("must be non-negative, got %s", d)
	}
	rounded := d.Round(0)
	if rounded.IsZero() && d.IsPositive() {
		return 1, nil
	}
	return int(rounded.IntPart()), nil
}
