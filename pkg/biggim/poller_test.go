package biggim

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpstream struct {
	runningPolls int
	statusCode   int
	submitted    atomic.Int32
	statusHits   atomic.Int32
	lastMethod   atomic.Value
	lastTable    atomic.Value
}

func (f *fakeUpstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/interactions/query", func(w http.ResponseWriter, r *http.Request) {
		f.submitted.Add(1)
		f.lastMethod.Store(r.Method)
		if r.Method == http.MethodPost {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.lastTable.Store(body["table"])
		} else {
			f.lastTable.Store(r.URL.Query().Get("table"))
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"request_id": "job-1", "status": "submitted"})
	})
	mux.HandleFunc("/api/interactions/query/status/job-1", func(w http.ResponseWriter, r *http.Request) {
		hit := int(f.statusHits.Add(1))
		if f.statusCode != 0 {
			http.Error(w, "status backend down", f.statusCode)
			return
		}
		if hit <= f.runningPolls {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"request_id": "job-1", "status": "running"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"request_id":  "job-1",
			"status":      "done",
			"request_uri": []string{"http://results.example/job-1.csv"},
		})
	})
	return mux
}

func newTestPoller(t *testing.T, up *fakeUpstream, waits *int, opts ...PollerOption) *Poller {
	t.Helper()
	srv := httptest.NewServer(up.handler())
	t.Cleanup(srv.Close)

	countWaits := WithWaitFunc(func(ctx context.Context, d time.Duration) error {
		*waits++
		return ctx.Err()
	})
	return NewPoller(NewClient(srv.URL+"/api", srv.Client()), append([]PollerOption{countWaits}, opts...)...)
}

func TestRunWaitsOncePerRunningStatus(t *testing.T) {
	for _, n := range []int{0, 1, 4} {
		up := &fakeUpstream{runningPolls: n}
		waits := 0
		p := newTestPoller(t, up, &waits)

		job, err := p.Run(context.Background(), http.MethodGet, QueryParams{Table: "BigGIM_70_v1", IDs1: "5111,6996"})
		require.NoError(t, err)
		assert.Equal(t, n, waits, "running polls %d", n)
		assert.Equal(t, StatusDone, job.Status)
		assert.Equal(t, []string{"http://results.example/job-1.csv"}, job.RequestURI)
		assert.Equal(t, n+1, job.Polls)
		assert.Equal(t, int32(1), up.submitted.Load())
	}
}

func TestRunStopsOnUpstreamErrorWithoutRetry(t *testing.T) {
	up := &fakeUpstream{statusCode: http.StatusInternalServerError}
	waits := 0
	p := newTestPoller(t, up, &waits)

	_, err := p.Run(context.Background(), http.MethodGet, QueryParams{Table: "BigGIM_70_v1"})
	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusInternalServerError, upErr.StatusCode)
	assert.Contains(t, upErr.Body, "status backend down")
	assert.Equal(t, int32(1), up.statusHits.Load())
	assert.Zero(t, waits)
}

func TestRunTimesOutAfterMaxAttempts(t *testing.T) {
	up := &fakeUpstream{runningPolls: 100}
	waits := 0
	p := newTestPoller(t, up, &waits, WithMaxAttempts(3))

	_, err := p.Run(context.Background(), http.MethodGet, QueryParams{Table: "BigGIM_70_v1"})
	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, "job-1", timeoutErr.RequestID)
	assert.Equal(t, 3, timeoutErr.Attempts)
	assert.Equal(t, 2, waits)
}

func TestRunTimesOutAfterMaxWait(t *testing.T) {
	up := &fakeUpstream{runningPolls: 100}
	waits := 0
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := WithClock(func() time.Time { return now })
	advance := WithWaitFunc(func(ctx context.Context, d time.Duration) error {
		waits++
		now = now.Add(d)
		return nil
	})
	p := newTestPoller(t, up, &waits, clock, advance, WithInterval(time.Second), WithMaxWait(5*time.Second))

	_, err := p.Run(context.Background(), http.MethodGet, QueryParams{Table: "BigGIM_70_v1"})
	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, 5, waits)
	assert.Equal(t, 6, timeoutErr.Attempts)
	assert.Equal(t, 5*time.Second, timeoutErr.Waited)
}

func TestRunHonoursCancellation(t *testing.T) {
	up := &fakeUpstream{runningPolls: 100}
	srv := httptest.NewServer(up.handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := NewPoller(NewClient(srv.URL+"/api", srv.Client()), WithInterval(time.Hour), WithMaxWait(0))

	go func() {
		for up.statusHits.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := p.Run(ctx, http.MethodGet, QueryParams{Table: "BigGIM_70_v1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubmitMirrorsMethod(t *testing.T) {
	up := &fakeUpstream{}
	waits := 0
	p := newTestPoller(t, up, &waits)

	_, err := p.Submit(context.Background(), http.MethodPost, QueryParams{Table: "BigGIM_70_v1"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, up.lastMethod.Load())
	assert.Equal(t, "BigGIM_70_v1", up.lastTable.Load())

	_, err = p.Submit(context.Background(), http.MethodGet, QueryParams{Table: "BigGIM_90_v2"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, up.lastMethod.Load())
	assert.Equal(t, "BigGIM_90_v2", up.lastTable.Load())
}
