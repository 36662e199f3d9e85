package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const isoLayout = "2006-01-02"

// Date is a calendar date without time of day, serialized as ISO 8601.
type Date struct {
	t time.Time
}

// NewDate creates a Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Time returns the date at midnight UTC.
func (d Date) Time() time.Time { return d.t }

// String returns the ISO 8601 form.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(isoLayout)
}

// Ordinal returns the date as yyyymmdd, the numeric form used by range filters.
func (d Date) Ordinal() int {
	return d.t.Year()*10000 + int(d.t.Month())*100 + d.t.Day()
}

// MarshalJSON writes "YYYY-MM-DD", or null for an unset date.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts any form ParseDate understands.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invoice_date: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var numericLayouts = []string{
	isoLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"2006.01.02",
	"02.01.2006",
	"2.1.2006",
	"02-01-2006",
	"02/01/2006",
	"2/1/2006",
}

// months is keyed by the first three letters of the month name, lowercased.
// Polish nominative and genitive forms share their first three letters.
var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,

	"sty": time.January, "lut": time.February, "kwi": time.April, "maj": time.May,
	"cze": time.June, "lip": time.July, "sie": time.August, "wrz": time.September,
	"paź": time.October, "paz": time.October, "lis": time.November, "gru": time.December,
}

// ParseDate normalizes an invoice date. Numeric forms are read day-first
// unless they start with a four-digit year; textual forms such as
// "24 sty 2025", "24 stycznia 2025 r." and "January 24, 2025" are accepted.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, errors.New("empty date")
	}

	for _, layout := range numericLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), t.Month(), t.Day()), nil
		}
	}

	d, err := parseTextual(s)
	if err != nil {
		return Date{}, fmt.Errorf("unrecognized date %q: %w", s, err)
	}
	return d, nil
}

func parseTextual(s string) (Date, error) {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '.' || r == '-' || r == '/'
	})

	var (
		month     time.Month
		day, year int
	)
	for _, tok := range tokens {
		if tok == "r" || tok == "roku" {
			continue
		}
		if n, err := strconv.Atoi(tok); err == nil {
			switch {
			case len(tok) == 4 && year == 0:
				year = n
			case day == 0:
				day = n
			default:
				return Date{}, errors.New("too many numbers")
			}
			continue
		}
		runes := []rune(tok)
		if len(runes) < 3 {
			return Date{}, fmt.Errorf("unknown token %q", tok)
		}
		m, ok := months[string(runes[:3])]
		if !ok || month != 0 {
			return Date{}, fmt.Errorf("unknown month %q", tok)
		}
		month = m
	}

	if month == 0 || day == 0 || year == 0 {
		return Date{}, errors.New("day, month and year are required")
	}

	d := NewDate(year, month, day)
	if d.t.Day() != day || d.t.Month() != month {
		return Date{}, fmt.Errorf("day %d out of range for %s", day, month)
	}
	return d, nil
}
