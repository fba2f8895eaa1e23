package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	queriesSubmitted atomic.Int64
	queriesCompleted atomic.Int64
	queriesFailed    atomic.Int64
	queriesTimedOut  atomic.Int64
	statusPolls      atomic.Int64
	recordsReturned  atomic.Int64
	cacheHits        atomic.Int64
	cacheMisses      atomic.Int64
	metadataRequests atomic.Int64

	failuresMu     sync.Mutex
	failuresByKind = map[string]int64{}
)

func ObserveQuerySubmitted() {
	queriesSubmitted.Add(1)
}

func ObserveQueryCompleted(polls, records int) {
	queriesCompleted.Add(1)
	statusPolls.Add(int64(polls))
	recordsReturned.Add(int64(records))
}

// ObserveQueryFailed counts a failed query under its error kind.
func ObserveQueryFailed(kind string) {
	queriesFailed.Add(1)
	if kind == "timeout" {
		queriesTimedOut.Add(1)
	}
	failuresMu.Lock()
	failuresByKind[kind]++
	failuresMu.Unlock()
}

func ObserveCache(hit bool) {
	if hit {
		cacheHits.Add(1)
		return
	}
	cacheMisses.Add(1)
}

func ObserveMetadataRequest() {
	metadataRequests.Add(1)
}

// Reset zeroes every counter.
func Reset() {
	for _, c := range []*atomic.Int64{
		&queriesSubmitted, &queriesCompleted, &queriesFailed, &queriesTimedOut,
		&statusPolls, &recordsReturned, &cacheHits, &cacheMisses, &metadataRequests,
	} {
		c.Store(0)
	}
	failuresMu.Lock()
	failuresByKind = map[string]int64{}
	failuresMu.Unlock()
}

func counter(w io.Writer, name, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n", name, value)
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	Write(w)
}

func Write(w io.Writer) {
	counter(w, "biggim_gateway_queries_submitted_total", "Interaction queries submitted upstream.", queriesSubmitted.Load())
	counter(w, "biggim_gateway_queries_completed_total", "Interaction queries answered with reshaped records.", queriesCompleted.Load())
	counter(w, "biggim_gateway_queries_failed_total", "Interaction queries that ended in an error.", queriesFailed.Load())
	counter(w, "biggim_gateway_queries_timed_out_total", "Interaction queries abandoned while still running upstream.", queriesTimedOut.Load())
	counter(w, "biggim_gateway_status_polls_total", "Status checks made against the upstream query endpoint.", statusPolls.Load())
	counter(w, "biggim_gateway_records_returned_total", "Reshaped interaction records returned to callers.", recordsReturned.Load())
	counter(w, "biggim_gateway_result_cache_hits_total", "Interaction queries answered from the result cache.", cacheHits.Load())
	counter(w, "biggim_gateway_result_cache_misses_total", "Interaction queries not found in the result cache.", cacheMisses.Load())
	counter(w, "biggim_gateway_metadata_requests_total", "Metadata requests relayed upstream.", metadataRequests.Load())

	failuresMu.Lock()
	kinds := make([]string, 0, len(failuresByKind))
	for kind := range failuresByKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	fmt.Fprintf(w, "# HELP biggim_gateway_query_failures_total Failed interaction queries by error kind.\n")
	fmt.Fprintf(w, "# TYPE biggim_gateway_query_failures_total counter\n")
	for _, kind := range kinds {
		fmt.Fprintf(w, "biggim_gateway_query_failures_total{kind=%q} %d\n", kind, failuresByKind[kind])
	}
	failuresMu.Unlock()
}
