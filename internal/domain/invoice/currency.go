package invoice

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Currency is an ISO 4217 alphabetic code.
type Currency string

// IsValid reports whether c is a known ISO 4217 code.
func (c Currency) IsValid() bool {
	_, ok := iso4217[string(c)]
	return ok
}

// UnmarshalJSON accepts codes in any case and common currency symbols.
func (c *Currency) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("currency: %w", err)
	}
	parsed, err := ParseCurrency(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

var symbols = map[string]Currency{
	"zł": "PLN", "zl": "PLN", "złotych": "PLN", "pln": "PLN",
	"€": "EUR", "euro": "EUR", "eur": "EUR",
	"$": "USD", "us$": "USD", "usd": "USD",
	"£": "GBP", "gbp": "GBP",
	"¥": "JPY", "jpy": "JPY",
	"kč": "CZK", "czk": "CZK",
	"ft": "HUF", "huf": "HUF",
	"fr.": "CHF", "chf": "CHF",
	"₴": "UAH", "грн": "UAH",
	"₽": "RUB",
	"₹": "INR",
}

// ParseCurrency resolves a code or symbol to an ISO 4217 currency.
func ParseCurrency(s string) (Currency, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", fmt.Errorf("empty currency")
	}
	if c, ok := symbols[key]; ok {
		return c, nil
	}
	c := Currency(strings.ToUpper(key))
	if !c.IsValid() {
		return "", fmt.Errorf("unknown currency %q", s)
	}
	return c, nil
}

// iso4217 lists active alphabetic codes.
var iso4217 = map[string]struct{}{
	"AED": {}, "AFN": {}, "ALL": {}, "AMD": {}, "ANG": {}, "AOA": {}, "ARS": {}, "AUD": {},
	"AWG": {}, "AZN": {}, "BAM": {}, "BBD": {}, "BDT": {}, "BGN": {}, "BHD": {}, "BIF": {},
	"BMD": {}, "BND": {}, "BOB": {}, "BRL": {}, "BSD": {}, "BTN": {}, "BWP": {}, "BYN": {},
	"BZD": {}, "CAD": {}, "CDF": {}, "CHF": {}, "CLP": {}, "CNY": {}, "COP": {}, "CRC": {},
	"CUP": {}, "CVE": {}, "CZK": {}, "DJF": {}, "DKK": {}, "DOP": {}, "DZD": {}, "EGP": {},
	"ERN": {}, "ETB": {}, "EUR": {}, "FJD": {}, "FKP": {}, "GBP": {}, "GEL": {}, "GHS": {},
	"GIP": {}, "GMD": {}, "GNF": {}, "GTQ": {}, "GYD": {}, "HKD": {}, "HNL": {}, "HTG": {},
	"HUF": {}, "IDR": {}, "ILS": {}, "INR": {}, "IQD": {}, "IRR": {}, "ISK": {}, "JMD": {},
	"JOD": {}, "JPY": {}, "KES": {}, "KGS": {}, "KHR": {}, "KMF": {}, "KPW": {}, "KRW": {},
	"KWD": {}, "KYD": {}, "KZT": {}, "LAK": {}, "LBP": {}, "LKR": {}, "LRD": {}, "LSL": {},
	"LYD": {}, "MAD": {}, "MDL": {}, "MGA": {}, "MKD": {}, "MMK": {}, "MNT": {}, "MOP": {},
	"MRU": {}, "MUR": {}, "MVR": {}, "MWK": {}, "MXN": {}, "MYR": {}, "MZN": {}, "NAD": {},
	"NGN": {}, "NIO": {}, "NOK": {}, "NPR": {}, "NZD": {}, "OMR": {}, "PAB": {}, "PEN": {},
	"PGK": {}, "PHP": {}, "PKR": {}, "PLN": {}, "PYG": {}, "QAR": {}, "RON": {}, "RSD": {},
	"RUB": {}, "RWF": {}, "SAR": {}, "SBD": {}, "SCR": {}, "SDG": {}, "SEK": {}, "SGD": {},
	"SHP": {}, "SLE": {}, "SOS": {}, "SRD": {}, "SSP": {}, "STN": {}, "SVC": {}, "SYP": {},
	"SZL": {}, "THB": {}, "TJS": {}, "TMT": {}, "TND": {}, "TOP": {}, "TRY": {}, "TTD": {},
	"TWD": {}, "TZS": {}, "UAH": {}, "UGX": {}, "USD": {}, "UYU": {}, "UZS": {}, "VES": {},
	"VND": {}, "VUV": {}, "WST": {}, "XAF": {}, "XCD": {}, "XOF": {}, "XPF": {}, "YER": {},
	"ZAR": {}, "ZMW": {}, "ZWL": {},
}
