// Package activity ingests user actions: it scores each event, records it and
// materialises an alert when the policy asks for one.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/insiderwatch/insiderwatch/internal/risk"
)

const (
	// StatusProcessed marks a fully handled event.
	StatusProcessed = "processed"
	// StatusAlertFailed marks an event that was recorded but whose alert
	// could not be written.
	StatusAlertFailed = "alert_failed"
)

// Assessor scores an event.
type Assessor interface {
	Assess(ctx context.Context, ev risk.Event) (risk.Assessment, error)
}

// Store is the write side of the behavior store.
type Store interface {
	InsertActivity(ctx context.Context, ev risk.Event) (risk.Activity, error)
	InsertAlert(ctx context.Context, alert risk.Alert) (risk.Alert, error)
}

// Notifier hands a stored alert to the delivery pipeline.
type Notifier interface {
	NotifyAlert(ctx context.Context, alert risk.Alert) error
}

// PostureInvalidator drops cached postures.
type PostureInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// Recorder receives ingestion metrics.
type Recorder interface {
	ObserveAssessment(outcome string, score int)
	AlertWritten(level string)
}

// Deps wires the service collaborators. Notifier, Postures and Metrics are
// optional.
type Deps struct {
	Assessor Assessor
	Store    Store
	Notifier Notifier
	Postures PostureInvalidator
	Metrics  Recorder
	Logger   *slog.Logger
}

// Result is the outcome of one ingestion.
type Result struct {
	Status         string
	RiskScore      int
	AlertGenerated bool
	Alert          *risk.Alert
	Assessment     risk.Assessment
}

// Service orchestrates scoring and recording.
type Service struct {
	assessor Assessor
	store    Store
	notifier Notifier
	postures PostureInvalidator
	metrics  Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the ingestion service.
func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		assessor: deps.Assessor,
		store:    deps.Store,
		notifier: deps.Notifier,
		postures: deps.Postures,
		metrics:  deps.Metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Ingest scores ev against prior history, records it and writes an alert
// when the score clears the threshold. Scoring happens before the event is
// recorded, so the same-day count excludes ev itself.
func (s *Service) Ingest(ctx context.Context, ev risk.Event) (Result, error) {
	assessment, err := s.assessor.Assess(ctx, ev)
	if err != nil {
		return Result{}, fmt.Errorf("activity: assess: %w", err)
	}
	if _, err := s.store.InsertActivity(ctx, ev); err != nil {
		return Result{}, fmt.Errorf("activity: record: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveAssessment(string(assessment.Outcome), assessment.Score)
	}

	result := Result{
		Status:     StatusProcessed,
		RiskScore:  assessment.Score,
		Assessment: assessment,
	}
	policy := assessment.Policy
	if !policy.ShouldAlert(assessment.Score) {
		return result, nil
	}

	alert, err := s.store.InsertAlert(ctx, risk.Alert{
		UserID:      ev.UserID,
		RiskScore:   assessment.Score,
		Level:       policy.Classify(assessment.Score),
		Reasons:     risk.JoinReasons(assessment.Reasons),
		GeneratedAt: s.now(),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "alert write failed",
			slog.String("user_id", ev.UserID),
			slog.Int("risk_score", assessment.Score),
			slog.Any("error", err),
		)
		result.Status = StatusAlertFailed
		return result, nil
	}

	result.AlertGenerated = true
	result.Alert = &alert
	if s.metrics != nil {
		s.metrics.AlertWritten(string(alert.Level))
	}
	s.logger.WarnContext(ctx, "alert generated",
		slog.Int64("alert_id", alert.ID),
		slog.String("user_id", alert.UserID),
		slog.Int("risk_score", alert.RiskScore),
		slog.String("alert_level", string(alert.Level)),
		slog.String("reasons", alert.Reasons),
	)

	if s.postures != nil {
		if err := s.postures.Invalidate(ctx, alert.UserID); err != nil {
			s.logger.WarnContext(ctx, "posture cache invalidation failed",
				slog.String("user_id", alert.UserID),
				slog.Any("error", err),
			)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyAlert(ctx, alert); err != nil {
			s.logger.WarnContext(ctx, "alert notification enqueue failed",
				slog.Int64("alert_id", alert.ID),
				slog.Any("error", err),
			)
		}
	}
	return result, nil
}
