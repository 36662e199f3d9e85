package invoicedex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// MaxBatchSize is the largest batch the server accepts.
const MaxBatchSize = 100

type extractRequest struct {
	Content string `json:"content"`
}

// Extract turns raw invoice text into a structured invoice and stores it.
//
// When extraction succeeds but embedding or storage fails, the returned
// *APIError carries the extracted invoice.
func (c *Client) Extract(ctx context.Context, content string) (res *ExtractResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("extract", start, err) }()
	return c.extract(ctx, "/extract", content)
}

// Preview extracts an invoice without storing it.
func (c *Client) Preview(ctx context.Context, content string) (res *ExtractResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("preview", start, err) }()
	return c.extract(ctx, "/extract/preview", content)
}

func (c *Client) extract(ctx context.Context, path, content string) (*ExtractResult, error) {
	var inv Invoice
	resp, err := c.do(ctx, http.MethodPost, path, nil, extractRequest{Content: content}, &inv)
	if err != nil {
		return nil, err
	}
	return &ExtractResult{
		ID:      resp.header.Get(headerInvoiceID),
		Invoice: inv,
		Usage:   usageFrom(resp.header),
	}, nil
}

type batchRequest struct {
	Contents []string `json:"contents"`
}

type batchItemBody struct {
	Index   int           `json:"index"`
	ID      string        `json:"id,omitempty"`
	Invoice *Invoice      `json:"invoice,omitempty"`
	Error   *apiErrorBody `json:"error,omitempty"`
}

type batchResponse struct {
	Items     []batchItemBody `json:"items"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
}

// ExtractBatch extracts and stores up to MaxBatchSize documents. Per-item
// failures are reported in the result, not as an error.
func (c *Client) ExtractBatch(ctx context.Context, contents []string) (res *BatchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("extract_batch", start, err) }()

	if len(contents) == 0 {
		return nil, fmt.Errorf("invoicedex: %w: contents must not be empty", ErrInvalidInput)
	}
	if len(contents) > MaxBatchSize {
		return nil, fmt.Errorf("invoicedex: %w: batch size %d exceeds maximum of %d",
			ErrInvalidInput, len(contents), MaxBatchSize)
	}

	var body batchResponse
	resp, err := c.do(ctx, http.MethodPost, "/extract/batch", nil, batchRequest{Contents: contents}, &body)
	if err != nil {
		return nil, err
	}

	out := &BatchResult{
		Items:     make([]BatchItem, len(body.Items)),
		Succeeded: body.Succeeded,
		Failed:    body.Failed,
		Usage:     usageFrom(resp.header),
	}
	for i, it := range body.Items {
		item := BatchItem{Index: it.Index, ID: it.ID, Invoice: it.Invoice}
		if it.Error != nil {
			item.Err = it.Error.toError(http.StatusOK)
		}
		out.Items[i] = item
	}
	return out, nil
}

// Err returns the first item failure, or nil when every item succeeded.
func (r *BatchResult) Err() error {
	for _, it := range r.Items {
		if it.Err != nil {
			return fmt.Errorf("item %d: %w", it.Index, it.Err)
		}
	}
	return nil
}

// IsRefusal reports whether err is a model refusal and returns its reason.
func IsRefusal(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && errors.Is(apiErr, ErrExtractionRefused) {
		return apiErr.Reason, true
	}
	return "", false
}
