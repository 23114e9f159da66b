package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/insiderwatch/insiderwatch/internal/risk"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAlertNotify delivers a single generated alert.
	TaskAlertNotify = "alerts:notify"
	// TaskAlertDigest summarises recent alerts per level.
	TaskAlertDigest = "alerts:digest"
)

// AlertNotifyPayload describes one alert to deliver.
type AlertNotifyPayload struct {
	NotificationID string     `json:"notification_id"`
	AlertID        int64      `json:"alert_id"`
	UserID         string     `json:"user_id"`
	RiskScore      int        `json:"risk_score"`
	Level          risk.Level `json:"alert_level"`
	Reasons        string     `json:"reasons"`
	GeneratedAt    time.Time  `json:"generated_at"`
}

// NewAlertNotifyPayload builds the payload for a stored alert.
func NewAlertNotifyPayload(notificationID string, alert risk.Alert) AlertNotifyPayload {
	return AlertNotifyPayload{
		NotificationID: notificationID,
		AlertID:        alert.ID,
		UserID:         alert.UserID,
		RiskScore:      alert.RiskScore,
		Level:          alert.Level,
		Reasons:        alert.Reasons,
		GeneratedAt:    alert.GeneratedAt,
	}
}

// NewAlertNotifyTask constructs the notification task. The notification id
// doubles as the asynq task id so a duplicate enqueue is rejected.
func NewAlertNotifyTask(payload AlertNotifyPayload) (*asynq.Task, error) {
	if payload.NotificationID == "" {
		return nil, fmt.Errorf("jobs: notification id required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAlertNotify, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID(payload.NotificationID),
		asynq.MaxRetry(5),
	), nil
}

// AlertDigestPayload configures the digest window.
type AlertDigestPayload struct {
	WindowHours int `json:"window_hours"`
}

// NewAlertDigestTask constructs the digest task.
func NewAlertDigestTask(windowHours int) (*asynq.Task, error) {
	body, err := json.Marshal(AlertDigestPayload{WindowHours: windowHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAlertDigest, body, asynq.Queue(QueueDefault)), nil
}
