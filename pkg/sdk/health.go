package invoicedex

import (
	"context"
	"net/http"
	"time"
)

// Health fetches the server's aggregated health. A degraded or unhealthy
// server is reported through the Status field, not as an error.
func (c *Client) Health(ctx context.Context) (rep *HealthReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	var body HealthReport
	if _, err := c.do(ctx, http.MethodGet, "/health", nil, nil, &body, http.StatusServiceUnavailable); err != nil {
		return nil, err
	}
	return &body, nil
}

// Ping reports whether the server is fully healthy.
func (c *Client) Ping(ctx context.Context) error {
	rep, err := c.Health(ctx)
	if err != nil {
		return err
	}
	if rep.Status != Healthy {
		return &APIError{
			StatusCode: http.StatusServiceUnavailable,
			Code:       string(rep.Status),
			Message:    "service is " + string(rep.Status),
		}
	}
	return nil
}
