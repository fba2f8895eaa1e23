package interactions

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncats/biggim-gateway/pkg/biggim"
	"github.com/ncats/biggim-gateway/pkg/common/logger"
	"github.com/ncats/biggim-gateway/pkg/common/models"
	"github.com/ncats/biggim-gateway/pkg/reshape"
)

func init() {
	logger.Silence()
}

type fakeRunner struct {
	job   *biggim.QueryJob
	err   error
	calls int
}

func (f *fakeRunner) Run(ctx context.Context, method string, params biggim.QueryParams) (*biggim.QueryJob, error) {
	f.calls++
	return f.job, f.err
}

type fakeReshaper struct {
	records   []reshape.Record
	err       error
	locations []string
}

func (f *fakeReshaper) Reshape(ctx context.Context, locations []string) ([]reshape.Record, error) {
	f.locations = locations
	return f.records, f.err
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
	setErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[key] = value
	return nil
}

type publishedEvent struct {
	eventType string
	source    string
	outcome   models.QueryOutcome
}

type recordingPublisher struct {
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error {
	outcome, _ := models.OutcomeFromEvent(models.Event{ID: "test", Data: data})
	p.events = append(p.events, publishedEvent{eventType: eventType, source: source, outcome: outcome})
	return p.err
}

type recordingArchiver struct {
	requestID string
	records   []reshape.Record
	err       error
}

func (a *recordingArchiver) Put(ctx context.Context, requestID string, records []reshape.Record) error {
	a.requestID = requestID
	a.records = records
	return a.err
}

func sampleRecords() []reshape.Record {
	return []reshape.Record{{Gene1: int64(5111), Gene2: int64(6996), GPID: int64(1)}}
}

func doneJob() *biggim.QueryJob {
	return &biggim.QueryJob{
		RequestID:  "job-1",
		Status:     biggim.StatusDone,
		RequestURI: []string{"http://results.example/job-1.csv"},
		Polls:      3,
	}
}

func TestQueryReturnsReshapedRecords(t *testing.T) {
	runner := &fakeRunner{job: doneJob()}
	reshaper := &fakeReshaper{records: sampleRecords()}
	events := &recordingPublisher{}
	archiver := &recordingArchiver{}
	svc := NewService(runner, reshaper, WithEvents(events), WithArchiver(archiver))

	params := biggim.QueryParams{Table: "BigGIM_70_v1", IDs1: "5111"}
	res, err := svc.Query(context.Background(), "GET", params)
	require.NoError(t, err)

	assert.Equal(t, "job-1", res.RequestID)
	assert.False(t, res.Cached)
	assert.Equal(t, sampleRecords(), res.Records)
	assert.Equal(t, []string{"http://results.example/job-1.csv"}, reshaper.locations)

	assert.Equal(t, "job-1", archiver.requestID)
	assert.Len(t, archiver.records, 1)

	require.Len(t, events.events, 1)
	ev := events.events[0]
	assert.Equal(t, models.EventQueryCompleted, ev.eventType)
	assert.Equal(t, models.EventSourceGateway, ev.source)
	assert.Equal(t, "job-1", ev.outcome.RequestID)
	assert.Equal(t, "done", ev.outcome.Status)
	assert.Equal(t, 3, ev.outcome.Polls)
	assert.Equal(t, 1, ev.outcome.RecordCount)
	assert.Equal(t, map[string]string{"table": "BigGIM_70_v1", "ids1": "5111"}, ev.outcome.Params)
}

func TestQueryServesRepeatsFromCache(t *testing.T) {
	runner := &fakeRunner{job: doneJob()}
	cache := newMemoryCache()
	events := &recordingPublisher{}
	svc := NewService(runner, &fakeReshaper{records: sampleRecords()}, WithCache(cache), WithEvents(events))

	params := biggim.QueryParams{Table: "BigGIM_70_v1", IDs1: "5111"}
	first, err := svc.Query(context.Background(), "GET", params)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Contains(t, cache.entries, CacheKey("GET", params))

	second, err := svc.Query(context.Background(), "GET", params)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, runner.calls)
	require.Len(t, second.Records, 1)
	assert.Equal(t, json.Number("6996"), second.Records[0].Gene2)

	require.Len(t, events.events, 2)
	assert.True(t, events.events[1].outcome.CacheHit)
}

func TestQueryCacheIsKeyedOnMethod(t *testing.T) {
	runner := &fakeRunner{job: doneJob()}
	cache := newMemoryCache()
	svc := NewService(runner, &fakeReshaper{records: sampleRecords()}, WithCache(cache))

	params := biggim.QueryParams{Table: "BigGIM_70_v1", IDs1: "5111"}
	_, err := svc.Query(context.Background(), "GET", params)
	require.NoError(t, err)

	res, err := svc.Query(context.Background(), "POST", params)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 2, runner.calls)
	assert.Contains(t, cache.entries, CacheKey("POST", params))
	assert.Len(t, cache.entries, 2)
}

func TestQueryCachesEmptyResults(t *testing.T) {
	cache := newMemoryCache()
	svc := NewService(&fakeRunner{job: doneJob()}, &fakeReshaper{records: []reshape.Record{}}, WithCache(cache))

	_, err := svc.Query(context.Background(), "GET", biggim.QueryParams{Table: "t"})
	require.NoError(t, err)

	res, err := svc.Query(context.Background(), "GET", biggim.QueryParams{Table: "t"})
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.NotNil(t, res.Records)
	assert.Empty(t, res.Records)
}

func TestQuerySideEffectFailuresAreNotFatal(t *testing.T) {
	cache := newMemoryCache()
	cache.getErr = errors.New("redis down")
	cache.setErr = errors.New("redis down")
	svc := NewService(&fakeRunner{job: doneJob()}, &fakeReshaper{records: sampleRecords()},
		WithCache(cache),
		WithEvents(&recordingPublisher{err: errors.New("broker down")}),
		WithArchiver(&recordingArchiver{err: errors.New("access denied")}),
	)

	res, err := svc.Query(context.Background(), "GET", biggim.QueryParams{Table: "t"})
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)
}

func TestQueryPollTimeout(t *testing.T) {
	timeoutErr := &biggim.TimeoutError{RequestID: "job-9", Attempts: 600, Waited: 10 * time.Minute}
	events := &recordingPublisher{}
	reshaper := &fakeReshaper{}
	svc := NewService(&fakeRunner{err: timeoutErr}, reshaper, WithEvents(events))

	_, err := svc.Query(context.Background(), "GET", biggim.QueryParams{Table: "t"})
	var got *biggim.TimeoutError
	require.True(t, errors.As(err, &got))
	assert.Nil(t, reshaper.locations)

	require.Len(t, events.events, 1)
	ev := events.events[0].outcome
	assert.Equal(t, models.EventQueryFailed, events.events[0].eventType)
	assert.Equal(t, "job-9", ev.RequestID)
	assert.Equal(t, "running", ev.Status)
	assert.Equal(t, 600, ev.Polls)
	assert.Equal(t, biggim.KindTimeout, ev.ErrorKind)
}

func TestQueryResultFetchFailure(t *testing.T) {
	fetchErr := &biggim.ResultFetchError{Location: "http://results.example/job-1.csv", Err: errors.New("connection reset")}
	cache := newMemoryCache()
	events := &recordingPublisher{}
	archiver := &recordingArchiver{}
	svc := NewService(&fakeRunner{job: doneJob()}, &fakeReshaper{err: fetchErr},
		WithCache(cache), WithEvents(events), WithArchiver(archiver))

	res, err := svc.Query(context.Background(), "GET", biggim.QueryParams{Table: "t"})
	assert.Nil(t, res)
	assert.Same(t, fetchErr, err)
	assert.Empty(t, cache.entries)
	assert.Empty(t, archiver.requestID)

	require.Len(t, events.events, 1)
	assert.Equal(t, "job-1", events.events[0].outcome.RequestID)
	assert.Equal(t, biggim.KindResultFetch, events.events[0].outcome.ErrorKind)
}

func TestQueryPublishesAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	events := &recordingPublisher{}
	svc := NewService(&fakeRunner{err: context.Canceled}, &fakeReshaper{}, WithEvents(events))

	_, err := svc.Query(ctx, "GET", biggim.QueryParams{Table: "t"})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, events.events, 1)
	assert.Equal(t, biggim.KindCanceled, events.events[0].outcome.ErrorKind)
}

func TestCacheKeyIgnoresParameterOrder(t *testing.T) {
	a := biggim.QueryParams{Table: "t", IDs1: "1,2", Limit: "10"}
	b := biggim.QueryParams{Limit: "10", IDs1: "1,2", Table: "t"}
	assert.Equal(t, CacheKey("GET", a), CacheKey("GET", b))
	assert.Equal(t, CacheKey("GET", a), CacheKey("get", b))
	assert.NotEqual(t, CacheKey("GET", a), CacheKey("POST", a))
	assert.NotEqual(t, CacheKey("GET", a), CacheKey("GET", biggim.QueryParams{Table: "t", IDs1: "1,2"}))
	assert.Regexp(t, `^biggim:query:[0-9a-f]{64}$`, CacheKey("GET", a))
}

func TestRedisCacheSurfacesConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	defer client.Close()
	cache := NewRedisCache(client, time.Minute)

	_, ok, err := cache.Get(context.Background(), "biggim:query:x")
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Error(t, cache.Set(context.Background(), "biggim:query:x", []byte("[]")))
}
