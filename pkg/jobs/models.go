package jobs

import (
	"time"

	"gorm.io/datatypes"
)

// Record is one audited query lifecycle event. Cache hits carry no upstream
// request id.
type Record struct {
	ID          string            `gorm:"primaryKey;column:id" json:"id"`
	RequestID   string            `gorm:"column:request_id;index" json:"request_id,omitempty"`
	EventType   string            `gorm:"column:event_type" json:"event_type"`
	Method      string            `gorm:"column:method" json:"method"`
	Status      string            `gorm:"column:status" json:"status,omitempty"`
	Params      datatypes.JSONMap `gorm:"column:params" json:"params,omitempty"`
	ResultURIs  datatypes.JSON    `gorm:"column:result_uris" json:"result_uris,omitempty"`
	RecordCount int               `gorm:"column:record_count" json:"record_count"`
	Polls       int               `gorm:"column:polls" json:"polls"`
	CacheHit    bool              `gorm:"column:cache_hit" json:"cache_hit"`
	DurationMs  int64             `gorm:"column:duration_ms" json:"duration_ms"`
	Error       string            `gorm:"column:error" json:"error,omitempty"`
	ErrorKind   string            `gorm:"column:error_kind" json:"error_kind,omitempty"`
	OccurredAt  time.Time         `gorm:"column:occurred_at;index" json:"occurred_at"`
	CreatedAt   time.Time         `gorm:"column:created_at" json:"created_at"`
}

func (Record) TableName() string {
	return "query_audit_log"
}
