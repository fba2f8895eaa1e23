package biggim

import (
	"net/url"
	"strings"
)

const (
	EndpointQuery       = "interactions/query"
	EndpointQueryStatus = "interactions/query/status/"
)

type JobStatus string

const (
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "done"
	StatusError   JobStatus = "error"
)

// QueryJob is the upstream view of an asynchronous interaction query.
type QueryJob struct {
	RequestID  string    `json:"request_id"`
	Status     JobStatus `json:"status"`
	RequestURI []string  `json:"request_uri,omitempty"`

	// Polls is the number of status checks the poller made.
	Polls int `json:"-"`
}

func (j QueryJob) Running() bool {
	return j.Status == StatusRunning
}

// QueryParams are the interaction query parameters forwarded upstream.
type QueryParams struct {
	Table           string `json:"table,omitempty"`
	Columns         string `json:"columns,omitempty"`
	IDs1            string `json:"ids1,omitempty"`
	IDs2            string `json:"ids2,omitempty"`
	RestrictionBool string `json:"restriction_bool,omitempty"`
	RestrictionLT   string `json:"restriction_lt,omitempty"`
	RestrictionGT   string `json:"restriction_gt,omitempty"`
	RestrictionJoin string `json:"restriction_join,omitempty"`
	Limit           string `json:"limit,omitempty"`
}

// ParamsFromValues keeps the known query parameters and drops everything else.
func ParamsFromValues(v url.Values) QueryParams {
	get := func(key string) string { return strings.TrimSpace(v.Get(key)) }
	return QueryParams{
		Table:           get("table"),
		Columns:         get("columns"),
		IDs1:            get("ids1"),
		IDs2:            get("ids2"),
		RestrictionBool: get("restriction_bool"),
		RestrictionLT:   get("restriction_lt"),
		RestrictionGT:   get("restriction_gt"),
		RestrictionJoin: get("restriction_join"),
		Limit:           get("limit"),
	}
}

// Values returns the non-empty parameters.
func (p QueryParams) Values() url.Values {
	v := url.Values{}
	for key, value := range p.Map() {
		v.Set(key, value)
	}
	return v
}

// Map returns the non-empty parameters keyed by their wire names.
func (p QueryParams) Map() map[string]string {
	out := make(map[string]string)
	set := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}
	set("table", p.Table)
	set("columns", p.Columns)
	set("ids1", p.IDs1)
	set("ids2", p.IDs2)
	set("restriction_bool", p.RestrictionBool)
	set("restriction_lt", p.RestrictionLT)
	set("restriction_gt", p.RestrictionGT)
	set("restriction_join", p.RestrictionJoin)
	set("limit", p.Limit)
	return out
}

// Key is a stable identity for the parameter set.
func (p QueryParams) Key() string {
	return p.Values().Encode()
}
