package biggim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ncats/biggim-gateway/pkg/common/logger"
	"github.com/ncats/biggim-gateway/pkg/gateway/httpclient"
)

const (
	DefaultPollInterval = time.Second
	DefaultPollMaxWait  = 10 * time.Minute
)

// Poller submits interaction queries and waits for them to leave the
// running state.
type Poller struct {
	client      *Client
	interval    time.Duration
	maxWait     time.Duration
	maxAttempts int
	wait        func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

type PollerOption func(*Poller)

func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxWait bounds the total time spent polling. Zero disables the bound.
func WithMaxWait(d time.Duration) PollerOption {
	return func(p *Poller) { p.maxWait = d }
}

// WithMaxAttempts bounds the number of status checks. Zero disables the bound.
func WithMaxAttempts(n int) PollerOption {
	return func(p *Poller) { p.maxAttempts = n }
}

func WithWaitFunc(fn func(ctx context.Context, d time.Duration) error) PollerOption {
	return func(p *Poller) { p.wait = fn }
}

func WithClock(now func() time.Time) PollerOption {
	return func(p *Poller) { p.now = now }
}

func NewPoller(client *Client, opts ...PollerOption) *Poller {
	p := &Poller{
		client:   client,
		interval: DefaultPollInterval,
		maxWait:  DefaultPollMaxWait,
		wait:     httpclient.Sleep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit starts a query upstream and returns its request id. POST sends the
// parameters as a JSON body, anything else sends them as a query string.
func (p *Poller) Submit(ctx context.Context, method string, params QueryParams) (string, error) {
	var job QueryJob
	var err error
	if method == http.MethodPost {
		err = p.client.Submit(ctx, EndpointQuery, params.Map(), &job)
	} else {
		err = p.client.Get(ctx, EndpointQuery, params.Values(), &job)
	}
	if err != nil {
		return "", err
	}
	if job.RequestID == "" {
		return "", errors.New("upstream accepted the query without a request_id")
	}
	return job.RequestID, nil
}

// Status fetches the current state of a submitted query.
func (p *Poller) Status(ctx context.Context, requestID string) (*QueryJob, error) {
	var job QueryJob
	if err := p.client.Get(ctx, EndpointQueryStatus+url.PathEscape(requestID), nil, &job); err != nil {
		return nil, err
	}
	if job.RequestID == "" {
		job.RequestID = requestID
	}
	return &job, nil
}

// Run submits a query and polls until it is no longer running. Upstream and
// transport failures end the loop immediately; running out of the poll budget
// yields a *TimeoutError.
func (p *Poller) Run(ctx context.Context, method string, params QueryParams) (*QueryJob, error) {
	ctx, span := tracer.Start(ctx, "biggim.poll")
	defer span.End()

	requestID, err := p.Submit(ctx, method, params)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("biggim.request_id", requestID))

	log := logger.Log.WithField("upstream_request_id", requestID)
	log.WithField("table", params.Table).Info("interaction query submitted")

	start := p.now()
	attempts := 0
	for {
		job, err := p.Status(ctx, requestID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		attempts++

		if !job.Running() {
			job.Polls = attempts
			span.SetAttributes(attribute.Int("biggim.polls", attempts), attribute.String("biggim.status", string(job.Status)))
			log.WithFields(map[string]interface{}{
				"status": job.Status,
				"polls":  attempts,
			}).Info("interaction query finished")
			return job, nil
		}

		waited := p.now().Sub(start)
		if (p.maxAttempts > 0 && attempts >= p.maxAttempts) || (p.maxWait > 0 && waited+p.interval > p.maxWait) {
			timeoutErr := &TimeoutError{RequestID: requestID, Attempts: attempts, Waited: waited}
			span.RecordError(timeoutErr)
			log.WithField("polls", attempts).Warn("gave up waiting for interaction query")
			return nil, timeoutErr
		}

		if err := p.wait(ctx, p.interval); err != nil {
			return nil, fmt.Errorf("waiting for query %s: %w", requestID, err)
		}
	}
}
