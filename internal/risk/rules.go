package risk

import (
	"fmt"
	"strconv"
	"time"
)

// Factor names a detection rule.
type Factor string

const (
	FactorPermission Factor = "permission"
	FactorVolume     Factor = "volume"
	FactorOffHours   Factor = "off_hours"
	FactorFrequency  Factor = "frequency"
)

// Finding is the outcome of one detection rule. A zero Score always comes
// with an empty Reason.
type Finding struct {
	Factor Factor
	Score  int
	Reason string
}

// Triggered reports whether the rule contributed to the score.
func (f Finding) Triggered() bool {
	return f.Score > 0
}

// pct truncates toward zero so tier boundaries score reproducibly.
func pct(weight, percent int) int {
	return weight * percent / 100
}

// CheckPermission flags an action/resource pair the role holds no grant for.
func CheckPermission(granted bool, action, resource string, w Weights) Finding {
	if granted {
		return Finding{Factor: FactorPermission}
	}
	return Finding{
		Factor: FactorPermission,
		Score:  w.PolicyViolation,
		Reason: fmt.Sprintf("Unauthorized %s access to %s", action, resource),
	}.normalize()
}

// CheckVolume compares records accessed against the role's average.
func CheckVolume(b *Baseline, records int, w Weights) Finding {
	f := Finding{Factor: FactorVolume}
	if b == nil || b.AvgRecordsPerAccess <= 0 {
		return f
	}
	ratio := float64(records) / b.AvgRecordsPerAccess
	avg := formatAverage(b.AvgRecordsPerAccess)
	switch {
	case ratio > 10:
		f.Score = w.ExcessiveRecords
		f.Reason = fmt.Sprintf("Extreme records access (%d vs baseline %s)", records, avg)
	case ratio > 5:
		f.Score = pct(w.ExcessiveRecords, 80)
		f.Reason = fmt.Sprintf("Excessive records access (%d vs baseline %s)", records, avg)
	case ratio > 2:
		f.Score = pct(w.ExcessiveRecords, 50)
		f.Reason = fmt.Sprintf("Elevated records access (%d vs baseline %s)", records, avg)
	}
	return f.normalize()
}

// CheckOffHours flags access outside the role's normal hours. The hour is
// taken in the location carried by at.
func CheckOffHours(b *Baseline, at time.Time, w Weights) Finding {
	f := Finding{Factor: FactorOffHours}
	if b == nil {
		return f
	}
	hour := at.Hour()
	var outside int
	switch {
	case hour < b.NormalStartHour:
		outside = b.NormalStartHour - hour
	case hour > b.NormalEndHour:
		outside = hour - b.NormalEndHour
	default:
		return f
	}
	clock := at.Format("15:04")
	switch {
	case outside >= 4:
		f.Score = w.OffHourAccess
		f.Reason = "Severe off-hour access at " + clock
	case outside >= 2:
		f.Score = pct(w.OffHourAccess, 70)
		f.Reason = "Off-hour access at " + clock
	default:
		f.Score = pct(w.OffHourAccess, 50)
		f.Reason = "Early/late access at " + clock
	}
	return f.normalize()
}

// CheckFrequency compares the user's same-day activity count with the role's
// daily average.
func CheckFrequency(b *Baseline, todayCount int, w Weights) Finding {
	f := Finding{Factor: FactorFrequency}
	if b == nil || b.AvgAccessPerDay <= 0 {
		return f
	}
	ratio := float64(todayCount) / float64(b.AvgAccessPerDay)
	switch {
	case ratio > 3:
		f.Score = w.HighFrequency
		f.Reason = fmt.Sprintf("Extremely high access frequency (%d today)", todayCount)
	case ratio > 2:
		f.Score = pct(w.HighFrequency, 70)
		f.Reason = fmt.Sprintf("Elevated access frequency (%d today)", todayCount)
	case ratio > 1.5:
		f.Score = pct(w.HighFrequency, 50)
		f.Reason = fmt.Sprintf("Increased access frequency (%d today)", todayCount)
	}
	return f.normalize()
}

// normalize drops the reason of a tier whose weight truncated to zero.
func (f Finding) normalize() Finding {
	if f.Score <= 0 {
		return Finding{Factor: f.Factor}
	}
	return f
}

// DayWindow returns [local midnight, next local midnight) around at.
func DayWindow(at time.Time) (time.Time, time.Time) {
	y, m, d := at.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, at.Location())
	return start, start.AddDate(0, 0, 1)
}

func formatAverage(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
