package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/insiderwatch/insiderwatch/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AlertNotifyJob delivers alert notifications. Delivery is a structured WARN
// log line that log shippers route to the security channel.
type AlertNotifyJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAlertNotifyJob initialises the notification handler.
func NewAlertNotifyJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *AlertNotifyJob {
	return &AlertNotifyJob{Logger: logger, Metrics: metrics}
}

// Handle processes TaskAlertNotify tasks.
func (j *AlertNotifyJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("alert notify: handler not configured")
	}
	var payload AlertNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskAlertNotify)
	if payload.AlertID <= 0 || payload.UserID == "" {
		j.logger().Error("alert notification missing identifiers",
			slog.String("notification_id", payload.NotificationID),
		)
		_ = tracker.End(errors.New("alert notify: missing identifiers"))
		return asynq.SkipRetry
	}

	j.logger().WarnContext(ctx, "insider threat alert",
		slog.String("notification_id", payload.NotificationID),
		slog.Int64("alert_id", payload.AlertID),
		slog.String("user_id", payload.UserID),
		slog.Int("risk_score", payload.RiskScore),
		slog.String("alert_level", string(payload.Level)),
		slog.String("reasons", payload.Reasons),
		slog.Time("generated_at", payload.GeneratedAt.UTC().Truncate(time.Second)),
	)
	j.metrics().AddNotification(string(payload.Level))
	return tracker.End(nil)
}

func (j *AlertNotifyJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAlertNotify))
	}
	return slog.Default().With(slog.String("job", TaskAlertNotify))
}

func (j *AlertNotifyJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
