package activity

import (
	"github.com/insiderwatch/insiderwatch/internal/platform/httpx"
	"github.com/insiderwatch/insiderwatch/internal/risk"
)

// LogActivityRequest is the ingestion body. access_time may omit its offset,
// in which case it is taken as UTC.
type LogActivityRequest struct {
	UserID          string           `json:"user_id" validate:"required,max=50"`
	Action          string           `json:"action" validate:"required,max=10"`
	Resource        string           `json:"resource" validate:"required,max=100"`
	RecordsAccessed int              `json:"records_accessed" validate:"min=0"`
	AccessTime      *httpx.Timestamp `json:"access_time" validate:"required"`
	SourceIP        string           `json:"source_ip,omitempty" validate:"omitempty,max=45"`
}

// Event converts a validated request.
func (r LogActivityRequest) Event() risk.Event {
	ev := risk.Event{
		UserID:          r.UserID,
		Action:          r.Action,
		Resource:        r.Resource,
		RecordsAccessed: r.RecordsAccessed,
		SourceIP:        r.SourceIP,
	}
	if r.AccessTime != nil {
		ev.AccessTime = r.AccessTime.Time
	}
	return ev
}

// LogActivityResponse is returned for every ingested event.
type LogActivityResponse struct {
	Status         string `json:"status"`
	RiskScore      int    `json:"risk_score"`
	AlertGenerated bool   `json:"alert_generated"`
}
