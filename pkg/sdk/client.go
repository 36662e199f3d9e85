package invoicedex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 2 * time.Minute

// Response headers set by the server.
const (
	headerEmbeddingTokens  = "X-Embedding-Tokens"
	headerExtractionTokens = "X-Extraction-Tokens"
	headerInvoiceID        = "X-Invoice-ID"
)

// Client talks to an invoicedex server. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	headers http.Header
	obs     *observer
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("invoicedex: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invoicedex: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invoicedex: unsupported scheme %q", base.Scheme)
	}

	cfg := &clientConfig{timeout: defaultTimeout, headers: http.Header{}}
	for _, o := range opts {
		o.apply(cfg)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{base: base, http: hc, headers: cfg.headers, obs: obs}, nil
}

// response is a decoded 2xx reply.
type response struct {
	header http.Header
	status int
}

// do sends a request and decodes a 2xx body into out. Non-2xx replies
// become *APIError unless their status is listed in accept.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any, accept ...int) (*response, error) {
	u := *c.base
	u.Path += path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("invoicedex: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("invoicedex: build request: %w", err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoicedex: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("invoicedex: read response: %w", err)
	}

	if resp.StatusCode/100 != 2 && !accepted(resp.StatusCode, accept) {
		return &response{header: resp.Header, status: resp.StatusCode}, decodeError(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("invoicedex: decode response: %w", err)
		}
	}
	return &response{header: resp.Header, status: resp.StatusCode}, nil
}

func accepted(status int, accept []int) bool {
	for _, s := range accept {
		if s == status {
			return true
		}
	}
	return false
}

func decodeError(status int, data []byte) error {
	var body apiErrorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Code == "" {
		return &APIError{
			StatusCode: status,
			Code:       "",
			Message:    strings.TrimSpace(string(data)),
		}
	}
	return body.toError(status)
}

func usageFrom(h http.Header) Usage {
	return Usage{
		EmbeddingTokens:  headerInt(h, headerEmbeddingTokens),
		ExtractionTokens: headerInt(h, headerExtractionTokens),
	}
}

func headerInt(h http.Header, key string) int {
	n, err := strconv.Atoi(h.Get(key))
	if err != nil {
		return 0
	}
	return n
}
