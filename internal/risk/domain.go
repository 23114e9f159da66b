package risk

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound indicates that a behavior store record does not exist.
var ErrNotFound = errors.New("risk: not found")

// StatusActive is the only user status that is scored normally.
const StatusActive = "active"

// WildcardResource in a grant matches every resource for its action.
const WildcardResource = "*"

// Role groups users that share permissions and a behavioral baseline.
type Role struct {
	ID          int64
	Name        string
	Description string
}

// User is an identity whose activity is scored.
type User struct {
	ID     string
	RoleID int64
	Status string
}

// Grant allows a role to perform an action on a resource.
type Grant struct {
	RoleID   int64
	Action   string
	Resource string
}

// Allows reports whether the grant covers the action/resource pair, either
// exactly or through the wildcard resource.
func (g Grant) Allows(action, resource string) bool {
	if g.Action != action {
		return false
	}
	return g.Resource == resource || g.Resource == WildcardResource
}

// Baseline is the expected behavior envelope of a role.
type Baseline struct {
	RoleID              int64
	AvgRecordsPerAccess float64
	AvgAccessPerDay     int
	NormalStartHour     int
	NormalEndHour       int
}

// Event is a single user action submitted for scoring.
type Event struct {
	UserID          string
	Action          string
	Resource        string
	RecordsAccessed int
	AccessTime      time.Time
	SourceIP        string
}

// Activity is a recorded event.
type Activity struct {
	ID int64
	Event
}

// Alert is materialised when a score clears the alerting threshold.
type Alert struct {
	ID          int64
	UserID      string
	RiskScore   int
	Level       Level
	Reasons     string
	GeneratedAt time.Time
}

// ReasonSeparator joins assessment reasons into an alert's reasons text.
const ReasonSeparator = "; "

// JoinReasons renders assessment reasons for an alert.
func JoinReasons(reasons []string) string {
	return strings.Join(reasons, ReasonSeparator)
}

// AlertFilter narrows alert listings. Zero values disable a filter.
type AlertFilter struct {
	UserID string
	Level  Level
	From   time.Time
	To     time.Time
}
