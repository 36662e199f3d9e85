package invoice

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount normalizes a money string to an exact decimal.
//
// Both Polish ("1.000,00", "1 200,50") and international ("1,200.50")
// notations are accepted; currency symbols, codes and spaces are dropped.
// When both separators occur, the last one is the decimal separator. A
// single separator followed by exactly three digits is a thousands
// separator unless the integer part is zero ("0.500").
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := keepNumeric(s)
	cleaned = strings.TrimRight(cleaned, ".,")
	if cleaned == "" || cleaned == "-" || cleaned == "+" {
		return decimal.Decimal{}, fmt.Errorf("no digits in amount %q", s)
	}

	normalized, err := normalizeSeparators(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("amount %q: %w", s, err)
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("amount %q: %w", s, err)
	}
	return d, nil
}

func keepNumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' || r == '+':
			if b.Len() == 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func normalizeSeparators(s string) (string, error) {
	sign := ""
	if s[0] == '-' || s[0] == '+' {
		sign, s = s[:1], s[1:]
	}

	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')

	switch {
	case lastDot >= 0 && lastComma >= 0:
		decSep, thouSep := ".", ","
		if lastComma > lastDot {
			decSep, thouSep = ",", "."
		}
		if strings.Count(s, decSep) > 1 {
			return "", errors.New("ambiguous separators")
		}
		s = strings.ReplaceAll(s, thouSep, "")
		s = strings.Replace(s, decSep, ".", 1)

	case lastDot >= 0:
		s = resolveSingle(s, ".")

	case lastComma >= 0:
		s = resolveSingle(s, ",")
	}

	return sign + s, nil
}

// resolveSingle handles a string where only one kind of separator occurs.
func resolveSingle(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		return strings.ReplaceAll(s, sep, "")
	}
	intPart, frac, _ := strings.Cut(s, sep)
	if len(frac) == 3 && strings.TrimLeft(intPart, "0") != "" {
		return intPart + frac
	}
	if intPart == "" {
		intPart = "0"
	}
	return intPart + "." + frac
}
