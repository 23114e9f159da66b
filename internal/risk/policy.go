package risk

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Level is the severity attached to an alert.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// ErrInvalidLevel is returned by ParseLevel for values outside LOW/MEDIUM/HIGH.
var ErrInvalidLevel = errors.New("invalid alert_level. Must be LOW, MEDIUM, or HIGH")

var upper = cases.Upper(language.Und)

// ParseLevel accepts a level name in any letter case.
func ParseLevel(value string) (Level, error) {
	switch lvl := Level(upper.String(strings.TrimSpace(value))); lvl {
	case LevelLow, LevelMedium, LevelHigh:
		return lvl, nil
	default:
		return "", ErrInvalidLevel
	}
}

// Weights are the full contributions of each detection rule.
type Weights struct {
	PolicyViolation  int `yaml:"policy_violation"`
	ExcessiveRecords int `yaml:"excessive_records"`
	OffHourAccess    int `yaml:"off_hour_access"`
	HighFrequency    int `yaml:"high_frequency"`
}

// Band is an inclusive score range.
type Band struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Contains reports whether score lies within the band.
func (b Band) Contains(score int) bool {
	return b.Min <= score && score <= b.Max
}

// Decode parses "min-max" so bands can be supplied through envconfig.
func (b *Band) Decode(value string) error {
	lo, hi, ok := strings.Cut(strings.TrimSpace(value), "-")
	if !ok {
		return fmt.Errorf("risk: band %q must look like min-max", value)
	}
	minV, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return fmt.Errorf("risk: band %q: %w", value, err)
	}
	maxV, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return fmt.Errorf("risk: band %q: %w", value, err)
	}
	b.Min, b.Max = minV, maxV
	return nil
}

func (b Band) String() string {
	return fmt.Sprintf("%d-%d", b.Min, b.Max)
}

// Bands maps scores to alert levels.
type Bands struct {
	Low    Band `yaml:"low"`
	Medium Band `yaml:"medium"`
	High   Band `yaml:"high"`
}

// Policy holds the tunable scoring and alerting parameters.
type Policy struct {
	Threshold int     `yaml:"threshold"`
	Weights   Weights `yaml:"weights"`
	Bands     Bands   `yaml:"bands"`
}

// DefaultPolicy returns the reference tuning.
func DefaultPolicy() Policy {
	return Policy{
		Threshold: 70,
		Weights: Weights{
			PolicyViolation:  40,
			ExcessiveRecords: 20,
			OffHourAccess:    25,
			HighFrequency:    15,
		},
		Bands: Bands{
			Low:    Band{Min: 70, Max: 79},
			Medium: Band{Min: 80, Max: 89},
			High:   Band{Min: 90, Max: 100},
		},
	}
}

// Validate rejects policies that cannot produce sane scores.
func (p Policy) Validate() error {
	// A zero threshold would alert on scores without reasons.
	if p.Threshold < 1 || p.Threshold > MaxScore {
		return fmt.Errorf("risk: threshold %d outside 1-%d", p.Threshold, MaxScore)
	}
	for name, w := range map[string]int{
		"policy_violation":  p.Weights.PolicyViolation,
		"excessive_records": p.Weights.ExcessiveRecords,
		"off_hour_access":   p.Weights.OffHourAccess,
		"high_frequency":    p.Weights.HighFrequency,
	} {
		if w < 0 {
			return fmt.Errorf("risk: weight %s must not be negative", name)
		}
	}
	for name, b := range map[Level]Band{LevelLow: p.Bands.Low, LevelMedium: p.Bands.Medium, LevelHigh: p.Bands.High} {
		if b.Min > b.Max {
			return fmt.Errorf("risk: band %s has min %d above max %d", name, b.Min, b.Max)
		}
	}
	return nil
}

// ShouldAlert reports whether a score materialises an alert.
func (p Policy) ShouldAlert(score int) bool {
	return score >= p.Threshold
}

// Classify maps an alerting score to a level. Bands are checked in LOW,
// MEDIUM, HIGH order; scores no band covers fall back to HIGH from 90 up and
// to MEDIUM below that.
func (p Policy) Classify(score int) Level {
	bands := [...]struct {
		level Level
		band  Band
	}{
		{LevelLow, p.Bands.Low},
		{LevelMedium, p.Bands.Medium},
		{LevelHigh, p.Bands.High},
	}
	for _, b := range bands {
		if b.band.Contains(score) {
			return b.level
		}
	}
	if score >= 90 {
		return LevelHigh
	}
	return LevelMedium
}
