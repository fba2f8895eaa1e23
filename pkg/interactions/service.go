// Package interactions answers interaction queries: it submits them upstream,
// waits for the result table and returns reshaped records.
package interactions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ncats/biggim-gateway/pkg/biggim"
	"github.com/ncats/biggim-gateway/pkg/common/logger"
	"github.com/ncats/biggim-gateway/pkg/common/models"
	"github.com/ncats/biggim-gateway/pkg/observability/metrics"
	"github.com/ncats/biggim-gateway/pkg/reshape"
)

// Runner submits a query and waits for it to leave the running state.
type Runner interface {
	Run(ctx context.Context, method string, params biggim.QueryParams) (*biggim.QueryJob, error)
}

type Reshaper interface {
	Reshape(ctx context.Context, locations []string) ([]reshape.Record, error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

type Archiver interface {
	Put(ctx context.Context, requestID string, records []reshape.Record) error
}

// Result is an answered query.
type Result struct {
	RequestID string
	Records   []reshape.Record
	Cached    bool
}

type Service struct {
	runner   Runner
	reshaper Reshaper
	cache    Cache
	events   EventPublisher
	archiver Archiver
	now      func() time.Time
}

type Option func(*Service)

func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithEvents(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

func NewService(runner Runner, reshaper Reshaper, opts ...Option) *Service {
	s := &Service{runner: runner, reshaper: reshaper, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query runs params upstream and reshapes the result table. Cache, archive
// and event failures are logged and never fail the query.
func (s *Service) Query(ctx context.Context, method string, params biggim.QueryParams) (*Result, error) {
	start := s.now()
	outcome := models.QueryOutcome{Method: method, Params: params.Map()}
	log := logger.Log.WithFields(logrus.Fields{"method": method, "table": params.Table})

	key := CacheKey(method, params)
	if records, ok := s.cached(ctx, key, log); ok {
		outcome.Status = string(biggim.StatusDone)
		outcome.CacheHit = true
		outcome.RecordCount = len(records)
		s.finish(ctx, outcome, start, nil)
		return &Result{Records: records, Cached: true}, nil
	}

	metrics.ObserveQuerySubmitted()
	job, err := s.runner.Run(ctx, method, params)
	if err != nil {
		s.fail(ctx, outcome, start, err)
		return nil, err
	}
	outcome.RequestID = job.RequestID
	outcome.Status = string(job.Status)
	outcome.ResultURIs = job.RequestURI
	outcome.Polls = job.Polls

	records, err := s.reshaper.Reshape(ctx, job.RequestURI)
	if err != nil {
		s.fail(ctx, outcome, start, err)
		return nil, err
	}
	outcome.RecordCount = len(records)

	s.store(ctx, key, records, log)
	if s.archiver != nil {
		if err := s.archiver.Put(ctx, job.RequestID, records); err != nil {
			log.WithError(err).WithField("upstream_request_id", job.RequestID).Warn("Failed to archive query result")
		}
	}

	metrics.ObserveQueryCompleted(job.Polls, len(records))
	s.finish(ctx, outcome, start, nil)
	return &Result{RequestID: job.RequestID, Records: records}, nil
}

func (s *Service) cached(ctx context.Context, key string, log *logrus.Entry) ([]reshape.Record, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		log.WithError(err).Warn("Result cache lookup failed")
		return nil, false
	}
	if !ok {
		metrics.ObserveCache(false)
		return nil, false
	}
	var records []reshape.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		log.WithError(err).Warn("Discarding undecodable cached result")
		return nil, false
	}
	if records == nil {
		records = []reshape.Record{}
	}
	metrics.ObserveCache(true)
	return records, true
}

func (s *Service) store(ctx context.Context, key string, records []reshape.Record, log *logrus.Entry) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(records)
	if err != nil {
		log.WithError(err).Warn("Failed to encode query result for cache")
		return
	}
	if err := s.cache.Set(ctx, key, raw); err != nil {
		log.WithError(err).Warn("Failed to cache query result")
	}
}

func (s *Service) fail(ctx context.Context, outcome models.QueryOutcome, start time.Time, err error) {
	kind := biggim.ErrorKind(err)
	if timeoutErr, ok := asTimeout(err); ok {
		outcome.RequestID = timeoutErr.RequestID
		outcome.Status = string(biggim.StatusRunning)
		outcome.Polls = timeoutErr.Attempts
	}
	outcome.Error = err.Error()
	outcome.ErrorKind = kind
	metrics.ObserveQueryFailed(kind)
	logger.Log.WithError(err).WithFields(logrus.Fields{
		"upstream_request_id": outcome.RequestID,
		"kind":                kind,
	}).Warn("interaction query failed")
	s.finish(ctx, outcome, start, err)
}

func (s *Service) finish(ctx context.Context, outcome models.QueryOutcome, start time.Time, err error) {
	if s.events == nil {
		return
	}
	outcome.DurationMs = s.now().Sub(start).Milliseconds()
	eventType := models.EventQueryCompleted
	if err != nil {
		eventType = models.EventQueryFailed
	}
	// the caller's context may already be canceled
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.events.PublishEvent(pubCtx, eventType, models.EventSourceGateway, outcome.Data()); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("Failed to publish query event")
	}
}

func asTimeout(err error) (*biggim.TimeoutError, bool) {
	var timeoutErr *biggim.TimeoutError
	ok := errors.As(err, &timeoutErr)
	return timeoutErr, ok
}
