// Package jobs keeps an audit log of interaction queries, fed by the
// gateway's lifecycle events.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/ncats/biggim-gateway/pkg/common/logger"
	"github.com/ncats/biggim-gateway/pkg/common/models"
)

type Service struct {
	repo      *Repository
	retention time.Duration
}

func NewService(repo *Repository, retention time.Duration) *Service {
	return &Service{repo: repo, retention: retention}
}

// HandleEvent records query.completed and query.failed events and skips
// everything else.
func (s *Service) HandleEvent(ctx context.Context, event models.Event) error {
	if event.Type != models.EventQueryCompleted && event.Type != models.EventQueryFailed {
		logger.Log.WithField("event_type", event.Type).Debug("Skipping event")
		return nil
	}

	outcome, err := models.OutcomeFromEvent(event)
	if err != nil {
		return err
	}
	rec, err := recordFromOutcome(event, outcome)
	if err != nil {
		return err
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		return fmt.Errorf("saving event %s: %w", event.ID, err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"event_id":            event.ID,
		"upstream_request_id": outcome.RequestID,
		"status":              outcome.Status,
	}).Debug("Recorded query event")
	return nil
}

// Cleanup applies the retention window. It is run on the cleanup schedule.
func (s *Service) Cleanup(ctx context.Context) {
	removed, err := s.repo.CleanupExpired(ctx, s.retention)
	if err != nil {
		logger.Log.WithError(err).Error("Audit log cleanup failed")
		return
	}
	logger.Log.WithField("removed", removed).Info("Audit log cleanup finished")
}

func recordFromOutcome(event models.Event, outcome models.QueryOutcome) (*Record, error) {
	params := datatypes.JSONMap{}
	for k, v := range outcome.Params {
		params[k] = v
	}
	var uris datatypes.JSON
	if len(outcome.ResultURIs) > 0 {
		raw, err := json.Marshal(outcome.ResultURIs)
		if err != nil {
			return nil, fmt.Errorf("encoding result uris of event %s: %w", event.ID, err)
		}
		uris = datatypes.JSON(raw)
	}
	occurred := event.Timestamp
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return &Record{
		ID:          event.ID,
		RequestID:   outcome.RequestID,
		EventType:   event.Type,
		Method:      outcome.Method,
		Status:      outcome.Status,
		Params:      params,
		ResultURIs:  uris,
		RecordCount: outcome.RecordCount,
		Polls:       outcome.Polls,
		CacheHit:    outcome.CacheHit,
		DurationMs:  outcome.DurationMs,
		Error:       outcome.Error,
		ErrorKind:   outcome.ErrorKind,
		OccurredAt:  occurred.UTC(),
	}, nil
}
