package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // query.completed, query.failed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

const (
	EventQueryCompleted = "query.completed"
	EventQueryFailed    = "query.failed"

	EventSourceGateway = "biggim-gateway"
)

// QueryOutcome is the payload of a query lifecycle event.
type QueryOutcome struct {
	RequestID   string            `json:"request_id,omitempty"`
	Method      string            `json:"method"`
	Status      string            `json:"status,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
	ResultURIs  []string          `json:"result_uris,omitempty"`
	RecordCount int               `json:"record_count"`
	Polls       int               `json:"polls"`
	CacheHit    bool              `json:"cache_hit"`
	DurationMs  int64             `json:"duration_ms"`
	Error       string            `json:"error,omitempty"`
	ErrorKind   string            `json:"error_kind,omitempty"`
}

func (o QueryOutcome) Data() map[string]interface{} {
	raw, err := json.Marshal(o)
	if err != nil {
		return map[string]interface{}{"request_id": o.RequestID}
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return map[string]interface{}{"request_id": o.RequestID}
	}
	return data
}

// OutcomeFromEvent decodes the payload of a query lifecycle event.
func OutcomeFromEvent(e Event) (QueryOutcome, error) {
	var out QueryOutcome
	if e.Data == nil {
		return out, fmt.Errorf("event %s has no data", e.ID)
	}
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return out, fmt.Errorf("encoding event %s data: %w", e.ID, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding event %s data: %w", e.ID, err)
	}
	return out, nil
}
