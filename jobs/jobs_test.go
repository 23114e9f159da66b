package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/insiderwatch/insiderwatch/internal/jobs"
	"github.com/insiderwatch/insiderwatch/internal/risk"
)

type recordingEnqueuer struct {
	tasks  []*asynq.Task
	err    error
	closed bool
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Queue: QueueDefault}, nil
}

func (r *recordingEnqueuer) Close() error {
	r.closed = true
	return nil
}

func sampleAlert() risk.Alert {
	return risk.Alert{
		ID:          42,
		UserID:      "staff001",
		RiskScore:   85,
		Level:       risk.LevelMedium,
		Reasons:     "Unauthorized READ access to Finance_Reports; Severe off-hour access at 22:00",
		GeneratedAt: time.Date(2026, 2, 2, 22, 0, 0, 0, time.UTC),
	}
}

func TestClientEnqueuesAlertNotification(t *testing.T) {
	rec := &recordingEnqueuer{}
	client := newClient(rec)
	client.newID = func() string { return "notif-1" }

	require.NoError(t, client.NotifyAlert(context.Background(), sampleAlert()))
	require.Len(t, rec.tasks, 1)
	assert.Equal(t, TaskAlertNotify, rec.tasks[0].Type())

	var payload AlertNotifyPayload
	require.NoError(t, json.Unmarshal(rec.tasks[0].Payload(), &payload))
	assert.Equal(t, "notif-1", payload.NotificationID)
	assert.Equal(t, int64(42), payload.AlertID)
	assert.Equal(t, risk.LevelMedium, payload.Level)

	require.NoError(t, client.Close())
	assert.True(t, rec.closed)
}

func TestClientPropagatesEnqueueError(t *testing.T) {
	boom := errors.New("redis down")
	client := newClient(&recordingEnqueuer{err: boom})
	assert.ErrorIs(t, client.NotifyAlert(context.Background(), sampleAlert()), boom)
}

func TestNewAlertNotifyTaskRequiresID(t *testing.T) {
	_, err := NewAlertNotifyTask(AlertNotifyPayload{AlertID: 1})
	assert.Error(t, err)
}

func TestAlertNotifyJobLogsAndCounts(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewAlertNotifyJob(logger, metrics)

	task, err := NewAlertNotifyTask(NewAlertNotifyPayload("notif-2", sampleAlert()))
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "insider threat alert", line["msg"])
	assert.Equal(t, "staff001", line["user_id"])
	assert.Equal(t, "MEDIUM", line["alert_level"])
	assert.Equal(t, TaskAlertNotify, line["job"])
}

func TestAlertNotifyJobSkipsBadPayloads(t *testing.T) {
	job := NewAlertNotifyJob(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), asynq.NewTask(TaskAlertNotify, []byte("not-json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	body, _ := json.Marshal(AlertNotifyPayload{NotificationID: "x"})
	err = job.Handle(context.Background(), asynq.NewTask(TaskAlertNotify, body))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type fakeCounter struct {
	from, to time.Time
	counts   map[risk.Level]int
	err      error
}

func (f *fakeCounter) CountAlertsByLevel(_ context.Context, from, to time.Time) (map[risk.Level]int, error) {
	f.from, f.to = from, to
	return f.counts, f.err
}

func TestAlertDigestJobUsesWindow(t *testing.T) {
	now := time.Date(2026, 2, 3, 7, 0, 0, 0, time.UTC)
	store := &fakeCounter{counts: map[risk.Level]int{risk.LevelLow: 2, risk.LevelMedium: 1, risk.LevelHigh: 0}}
	job := NewAlertDigestJob(store, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return now }

	task, err := NewAlertDigestTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, now.Add(-24*time.Hour), store.from)
	assert.Equal(t, now, store.to)

	task, err = NewAlertDigestTask(6)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, now.Add(-6*time.Hour), store.from)
}

func TestAlertDigestJobReturnsStoreError(t *testing.T) {
	boom := errors.New("query failed")
	job := NewAlertDigestJob(&fakeCounter{err: boom}, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewAlertDigestTask(24)
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), task), boom)

	var nilJob *AlertDigestJob
	assert.Error(t, nilJob.Handle(context.Background(), task))
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestHandlerHealth(t *testing.T) {
	serve := func(h *Handler) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		h.MountRoutes(r)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		return rec
	}

	rec := serve(NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3}}, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body queueHealth
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 3, body.Pending)

	rec = serve(NewHandler(stubInspector{err: errors.New("no redis")}, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(NewHandler(nil, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
