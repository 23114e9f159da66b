package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/insiderwatch/insiderwatch/internal/jobs"
	"github.com/insiderwatch/insiderwatch/internal/risk"
)

const defaultDigestWindowHours = 24

// AlertCounter is the store query the digest needs.
type AlertCounter interface {
	CountAlertsByLevel(ctx context.Context, from, to time.Time) (map[risk.Level]int, error)
}

// AlertDigestJob counts alerts per level over a trailing window.
type AlertDigestJob struct {
	Store   AlertCounter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAlertDigestJob initialises the digest handler.
func NewAlertDigestJob(store AlertCounter, logger *slog.Logger, metrics *jobmetrics.Metrics) *AlertDigestJob {
	return &AlertDigestJob{
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the digest.
func (j *AlertDigestJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("alert digest: handler not configured")
	}
	var payload AlertDigestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowHours <= 0 {
		payload.WindowHours = defaultDigestWindowHours
	}

	tracker := j.metrics().Track(TaskAlertDigest)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	to := j.now()
	from := to.Add(-time.Duration(payload.WindowHours) * time.Hour)
	logger := j.logger().With(
		slog.Int("window_hours", payload.WindowHours),
		slog.Time("from", from),
		slog.Time("to", to),
	)

	counts, err := j.Store.CountAlertsByLevel(ctx, from, to)
	if err != nil {
		resultErr = err
		logger.Error("digest failed", slog.Any("error", err))
		return resultErr
	}

	window := make(map[string]int, len(counts))
	total := 0
	for level, n := range counts {
		window[string(level)] = n
		total += n
	}
	j.metrics().SetWindow(window)

	logger.Info("alert digest",
		slog.Int("total", total),
		slog.Int("low", counts[risk.LevelLow]),
		slog.Int("medium", counts[risk.LevelMedium]),
		slog.Int("high", counts[risk.LevelHigh]),
	)
	return resultErr
}

func (j *AlertDigestJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAlertDigest))
	}
	return slog.Default().With(slog.String("job", TaskAlertDigest))
}

func (j *AlertDigestJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AlertDigestJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
