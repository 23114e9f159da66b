package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDerivePostureWithoutAlerts(t *testing.T) {
	p := DerivePosture(User{ID: "staff002"}, &Role{ID: 3, Name: "staff"}, nil)
	assert.Equal(t, Posture{UserID: "staff002", Role: "staff", RiskScore: 0, Level: LevelLow}, p)
	assert.Nil(t, p.LastAlertTime)
}

func TestDerivePostureFromLatestAlert(t *testing.T) {
	generated := time.Date(2026, 1, 15, 22, 0, 0, 0, time.UTC)
	alert := &Alert{ID: 9, UserID: "staff001", RiskScore: 85, Level: LevelMedium, GeneratedAt: generated}
	p := DerivePosture(User{ID: "staff001"}, nil, alert)
	assert.Equal(t, UnknownRole, p.Role)
	assert.Equal(t, 85, p.RiskScore)
	assert.Equal(t, LevelMedium, p.Level)
	if assert.NotNil(t, p.LastAlertTime) {
		assert.True(t, p.LastAlertTime.Equal(generated))
	}

	alert.GeneratedAt = generated.Add(time.Hour)
	assert.True(t, p.LastAlertTime.Equal(generated), "posture must not alias the alert")
}
