package perf

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/insiderwatch/insiderwatch/internal/jobs"
	"github.com/insiderwatch/insiderwatch/internal/risk"
	"github.com/insiderwatch/insiderwatch/jobs"
)

func notifyTask(t testing.TB, id string, alert risk.Alert) *asynq.Task {
	t.Helper()
	task, err := jobs.NewAlertNotifyTask(jobs.NewAlertNotifyPayload(id, alert))
	if err != nil {
		t.Fatalf("build notify task: %v", err)
	}
	return task
}

func TestAlertNotificationThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	job := jobs.NewAlertNotifyJob(slog.New(slog.NewTextHandler(io.Discard, nil)), metrics)
	ctx := context.Background()

	levels := []risk.Level{risk.LevelLow, risk.LevelMedium, risk.LevelHigh}
	for i := 0; i < 90; i++ {
		alert := risk.Alert{ID: int64(i + 1), UserID: "staff001", RiskScore: 70 + i%30, Level: levels[i%3], GeneratedAt: time.Now()}
		if err := job.Handle(ctx, notifyTask(t, "n-"+strconv.Itoa(i), alert)); err != nil {
			t.Fatalf("notify %d: %v", i, err)
		}
	}

	// Payloads without an alert id are dropped and counted as failures.
	for i := 0; i < 3; i++ {
		body, _ := json.Marshal(jobs.AlertNotifyPayload{NotificationID: "broken", UserID: "staff001"})
		if err := job.Handle(ctx, asynq.NewTask(jobs.TaskAlertNotify, body)); err == nil {
			t.Fatal("expected malformed notification to be rejected")
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "insiderwatch_jobs_total", map[string]string{"job": jobs.TaskAlertNotify, "status": "success"})
	failure := metricValue(t, families, "insiderwatch_jobs_total", map[string]string{"job": jobs.TaskAlertNotify, "status": "failure"})
	if success != 90 || failure != 3 {
		t.Fatalf("unexpected run counts: success=%v failure=%v", success, failure)
	}
	for _, level := range levels {
		if got := metricValue(t, families, "insiderwatch_alert_notifications_total", map[string]string{"level": string(level)}); got != 30 {
			t.Fatalf("%s notifications = %v, want 30", level, got)
		}
	}

	mean := histogramMean(t, families, "insiderwatch_job_duration_seconds", map[string]string{"job": jobs.TaskAlertNotify})
	if mean > 0.05 {
		t.Fatalf("notification duration above budget: %f", mean)
	}
}

func BenchmarkAlertNotifyJob(b *testing.B) {
	job := jobs.NewAlertNotifyJob(slog.New(slog.NewTextHandler(io.Discard, nil)), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task := notifyTask(b, "bench", risk.Alert{ID: 1, UserID: "staff001", RiskScore: 85, Level: risk.LevelMedium, GeneratedAt: time.Now()})
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := job.Handle(ctx, task); err != nil {
			b.Fatal(err)
		}
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
