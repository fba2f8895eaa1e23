package biggim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// UpstreamError is a non-2xx response from the upstream API.
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream %s returned %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("upstream %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// TransportError means the upstream API could not be reached at all.
type TransportError struct {
	Endpoint string
	Timeout  bool
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("calling upstream %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ResultFetchError means the result table of a finished query could not be
// retrieved or parsed.
type ResultFetchError struct {
	Location string
	Err      error
}

func (e *ResultFetchError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("fetching query result: %v", e.Err)
	}
	return fmt.Sprintf("fetching query result %s: %v", e.Location, e.Err)
}

func (e *ResultFetchError) Unwrap() error {
	return e.Err
}

// NotFoundError means upstream does not know the named study, table or tissue.
type NotFoundError struct {
	Kind string
	Name string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// TimeoutError means a query was still running when the poll budget ran out.
type TimeoutError struct {
	RequestID string
	Attempts  int
	Waited    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("query %s still running after %d status checks (%s)", e.RequestID, e.Attempts, e.Waited.Round(time.Millisecond))
}

// AsNotFound converts an upstream 404 into a NotFoundError for the named
// resource. Other errors are returned unchanged.
func AsNotFound(err error, kind, name string) error {
	var upErr *UpstreamError
	if errors.As(err, &upErr) && upErr.StatusCode == http.StatusNotFound {
		return &NotFoundError{Kind: kind, Name: name, Err: err}
	}
	return err
}

// Error kinds reported in events, metrics and logs.
const (
	KindNotFound    = "not_found"
	KindUpstream    = "upstream"
	KindTransport   = "transport"
	KindResultFetch = "result_fetch"
	KindTimeout     = "timeout"
	KindCanceled    = "canceled"
	KindInternal    = "internal"
)

// ErrorKind classifies err by the first typed failure in its chain.
func ErrorKind(err error) string {
	var (
		notFound    *NotFoundError
		upstream    *UpstreamError
		transport   *TransportError
		resultFetch *ResultFetchError
		timeout     *TimeoutError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &timeout):
		return KindTimeout
	case errors.As(err, &resultFetch):
		return KindResultFetch
	case errors.As(err, &upstream):
		return KindUpstream
	case errors.As(err, &transport):
		return KindTransport
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}
