package biggim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ncats/biggim-gateway/pkg/common/logger"
	"github.com/ncats/biggim-gateway/pkg/gateway/httpclient"
)

const maxErrorBody = 4096

var tracer = otel.Tracer("github.com/ncats/biggim-gateway/pkg/biggim")

// Client talks to the BigGIM REST API. It never retries; failures surface as
// *UpstreamError or *TransportError.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// URL joins the base URL and an endpoint path.
func (c *Client) URL(endpoint string) string {
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

// Get issues a GET with the given query string and decodes the JSON response
// into out.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	target := c.URL(endpoint)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, endpoint, target, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(endpoint, resp.Body, out)
}

// Submit POSTs body as JSON and decodes the JSON response into out.
func (c *Client) Submit(ctx context.Context, endpoint string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", endpoint, err)
	}

	resp, err := c.do(ctx, http.MethodPost, endpoint, c.URL(endpoint), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(endpoint, resp.Body, out)
}

// Fetch opens an absolute location such as a query result file. The caller
// closes the returned body.
func (c *Client) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, location, location, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, target string, body io.Reader) (*http.Response, error) {
	ctx, span := tracer.Start(ctx, "biggim "+method, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("biggim.endpoint", endpoint),
		))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		logger.Log.WithError(err).WithField("endpoint", endpoint).Warn("upstream unreachable")
		return nil, &TransportError{Endpoint: endpoint, Timeout: httpclient.IsTimeout(err), Err: err}
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		upErr := &UpstreamError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
		span.SetStatus(codes.Error, upErr.Error())
		logger.Log.WithFields(map[string]interface{}{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		}).Warn("upstream returned error status")
		return nil, upErr
	}

	logger.Log.WithFields(map[string]interface{}{
		"endpoint": endpoint,
		"method":   method,
		"status":   resp.StatusCode,
	}).Debug("upstream call")
	return resp, nil
}

func decode(endpoint string, body io.Reader, out interface{}) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, body)
		return nil
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return nil
}
