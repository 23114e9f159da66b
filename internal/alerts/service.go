// Package alerts serves filtered, newest-first alert listings.
package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/insiderwatch/insiderwatch/internal/platform/httpx"
	"github.com/insiderwatch/insiderwatch/internal/risk"
)

// InvalidLevelMessage is returned for alert_level values outside the enum.
const InvalidLevelMessage = "Invalid alert_level. Must be LOW, MEDIUM, or HIGH"

// Store lists alerts.
type Store interface {
	ListAlerts(ctx context.Context, filter risk.AlertFilter) ([]risk.Alert, error)
}

// Query holds the raw filter values. Empty strings disable a filter.
type Query struct {
	UserID string
	Level  string
	From   string
	To     string
}

// Service validates queries and reads alerts.
type Service struct {
	store Store
}

// NewService constructs the alert query service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Filter validates q into a store filter.
func (q Query) Filter() (risk.AlertFilter, error) {
	filter := risk.AlertFilter{UserID: strings.TrimSpace(q.UserID)}
	if q.Level != "" {
		level, err := risk.ParseLevel(q.Level)
		if err != nil {
			return risk.AlertFilter{}, httpx.Invalid(InvalidLevelMessage)
		}
		filter.Level = level
	}
	var err error
	if filter.From, err = parseTime("from_time", q.From); err != nil {
		return risk.AlertFilter{}, err
	}
	if filter.To, err = parseTime("to_time", q.To); err != nil {
		return risk.AlertFilter{}, err
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return risk.AlertFilter{}, httpx.Invalid("from_time must not be after to_time")
	}
	return filter, nil
}

// List returns matching alerts, newest first. No match yields an empty slice.
func (s *Service) List(ctx context.Context, q Query) ([]risk.Alert, error) {
	filter, err := q.Filter()
	if err != nil {
		return nil, err
	}
	alerts, err := s.store.ListAlerts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("alerts: list: %w", err)
	}
	if alerts == nil {
		alerts = []risk.Alert{}
	}
	return alerts, nil
}

// parseTime accepts RFC 3339 and zone-less ISO timestamps; the latter are
// read as UTC. An empty value disables the bound.
func parseTime(field, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	t, err := httpx.ParseTimestamp(value)
	if err != nil {
		return time.Time{}, httpx.Invalid(fmt.Sprintf("%s must be an RFC 3339 timestamp", field))
	}
	return t, nil
}
