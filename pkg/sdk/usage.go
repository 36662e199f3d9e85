package invoicedex

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Usage reports token consumption for the current day or month. Servers
// without a token budget answer with ErrNotFound.
func (c *Client) Usage(ctx context.Context, period Period) (rep *UsageReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, err) }()

	q := url.Values{}
	if period != "" {
		q.Set("period", string(period))
	}

	var body UsageReport
	if _, err := c.do(ctx, http.MethodGet, "/usage", q, nil, &body); err != nil {
		return nil, err
	}
	return &body, nil
}
