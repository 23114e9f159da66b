package risk

import "time"

// UnknownRole is reported when a user's role row is missing.
const UnknownRole = "unknown"

// Posture is a user's current risk as defined by their latest alert.
type Posture struct {
	UserID        string     `json:"user_id"`
	Role          string     `json:"role"`
	RiskScore     int        `json:"current_risk_score"`
	Level         Level      `json:"risk_level"`
	LastAlertTime *time.Time `json:"last_alert_time"`
}

// DerivePosture projects the latest alert into a posture. A nil role yields
// the unknown role name and a nil alert yields the baseline-low posture.
func DerivePosture(user User, role *Role, latest *Alert) Posture {
	p := Posture{UserID: user.ID, Role: UnknownRole, Level: LevelLow}
	if role != nil {
		p.Role = role.Name
	}
	if latest == nil {
		return p
	}
	at := latest.GeneratedAt
	p.RiskScore = latest.RiskScore
	p.Level = latest.Level
	p.LastAlertTime = &at
	return p
}
