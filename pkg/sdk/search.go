package invoicedex

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kailas-cloud/invoicedex/internal/domain/filter"
)

// SearchOption narrows a search.
type SearchOption func(*searchRequest)

type searchRequest struct {
	Query  string         `json:"query"`
	Limit  *int           `json:"limit,omitempty"`
	Filter *filter.Params `json:"filter,omitempty"`
}

func (r *searchRequest) params() *filter.Params {
	if r.Filter == nil {
		r.Filter = &filter.Params{}
	}
	return r.Filter
}

type searchResponse struct {
	Points []Hit `json:"points"`
}

// Limit caps the number of hits. The server applies its default when unset.
func Limit(n int) SearchOption {
	return func(r *searchRequest) { r.Limit = &n }
}

// WithCurrency keeps invoices in the given ISO 4217 currency.
func WithCurrency(code string) SearchOption {
	return func(r *searchRequest) { r.params().Currency = strings.ToUpper(code) }
}

// WithVendor keeps invoices from an exact vendor name.
func WithVendor(name string) SearchOption {
	return func(r *searchRequest) { r.params().Vendor = name }
}

// TotalBetween keeps invoices whose total lies in [lo, hi]. A zero bound is
// open.
func TotalBetween(lo, hi float64) SearchOption {
	return func(r *searchRequest) {
		p := r.params()
		if lo != 0 {
			p.MinTotal = &lo
		}
		if hi != 0 {
			p.MaxTotal = &hi
		}
	}
}

// DateBetween keeps invoices dated within [from, to]. A zero time is open.
func DateBetween(from, to time.Time) SearchOption {
	return func(r *searchRequest) {
		p := r.params()
		if !from.IsZero() {
			v := ordinal(from)
			p.DateFrom = &v
		}
		if !to.IsZero() {
			v := ordinal(to)
			p.DateTo = &v
		}
	}
}

// ordinal encodes a date as YYYYMMDD, the form the server filters on.
func ordinal(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// Search returns stored invoices ranked by semantic similarity to query.
func (c *Client) Search(ctx context.Context, query string, opts ...SearchOption) (res *SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("invoicedex: %w: query must not be empty", ErrInvalidInput)
	}

	req := searchRequest{Query: query}
	for _, o := range opts {
		o(&req)
	}

	var body searchResponse
	resp, err := c.do(ctx, http.MethodPost, "/search", nil, req, &body)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Hits: body.Points, Usage: usageFrom(resp.header)}, nil
}
