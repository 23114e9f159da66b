package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// MaxScore caps the aggregate risk score.
const MaxScore = 100

// Reader is the read side of the behavior store used for scoring.
type Reader interface {
	UserByID(ctx context.Context, userID string) (User, error)
	BaselineByRole(ctx context.Context, roleID int64) (Baseline, error)
	HasGrant(ctx context.Context, roleID int64, action, resource string) (bool, error)
	CountActivity(ctx context.Context, userID string, from, to time.Time) (int, error)
}

// PolicySource yields the policy in force at call time.
type PolicySource interface {
	Current() Policy
}

// StaticPolicy is a PolicySource that never changes.
type StaticPolicy Policy

// Current implements PolicySource.
func (p StaticPolicy) Current() Policy { return Policy(p) }

// Outcome tells which branch of the engine produced an assessment.
type Outcome string

const (
	OutcomeEvaluated    Outcome = "evaluated"
	OutcomeUnknownUser  Outcome = "unknown_user"
	OutcomeInactiveUser Outcome = "inactive_user"
)

// Assessment is the scored result for one event.
type Assessment struct {
	Score    int
	Reasons  []string
	Findings []Finding
	Outcome  Outcome
	// Policy is the snapshot the score was computed with.
	Policy Policy
}

// Engine runs the detection rules for incoming events.
type Engine struct {
	store    Reader
	policies PolicySource
}

// NewEngine constructs an Engine.
func NewEngine(store Reader, policies PolicySource) *Engine {
	if policies == nil {
		policies = StaticPolicy(DefaultPolicy())
	}
	return &Engine{store: store, policies: policies}
}

// Assess scores an event against prior history. It never writes.
func (e *Engine) Assess(ctx context.Context, ev Event) (Assessment, error) {
	policy := e.policies.Current()

	user, err := e.store.UserByID(ctx, ev.UserID)
	if errors.Is(err, ErrNotFound) {
		return failSafe(policy, OutcomeUnknownUser, "User not found"), nil
	}
	if err != nil {
		return Assessment{}, fmt.Errorf("risk: load user: %w", err)
	}
	if user.Status != StatusActive {
		return failSafe(policy, OutcomeInactiveUser, "User account is "+user.Status), nil
	}

	var (
		baseline *Baseline
		granted  bool
		today    int
	)
	from, to := DayWindow(ev.AccessTime)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := e.store.BaselineByRole(gctx, user.RoleID)
		switch {
		case errors.Is(err, ErrNotFound):
			return nil
		case err != nil:
			return fmt.Errorf("risk: load baseline: %w", err)
		}
		baseline = &b
		return nil
	})
	g.Go(func() error {
		ok, err := e.store.HasGrant(gctx, user.RoleID, ev.Action, ev.Resource)
		if err != nil {
			return fmt.Errorf("risk: check grant: %w", err)
		}
		granted = ok
		return nil
	})
	g.Go(func() error {
		n, err := e.store.CountActivity(gctx, ev.UserID, from, to)
		if err != nil {
			return fmt.Errorf("risk: count activity: %w", err)
		}
		today = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return Assessment{}, err
	}

	findings := []Finding{
		CheckPermission(granted, ev.Action, ev.Resource, policy.Weights),
		CheckVolume(baseline, ev.RecordsAccessed, policy.Weights),
		CheckOffHours(baseline, ev.AccessTime, policy.Weights),
		CheckFrequency(baseline, today, policy.Weights),
	}
	return aggregate(policy, findings), nil
}

func aggregate(policy Policy, findings []Finding) Assessment {
	a := Assessment{Outcome: OutcomeEvaluated, Findings: findings, Policy: policy, Reasons: []string{}}
	for _, f := range findings {
		if !f.Triggered() {
			continue
		}
		a.Score += f.Score
		a.Reasons = append(a.Reasons, f.Reason)
	}
	a.Score = clamp(a.Score)
	return a
}

func failSafe(policy Policy, outcome Outcome, reason string) Assessment {
	return Assessment{Score: MaxScore, Reasons: []string{reason}, Outcome: outcome, Policy: policy}
}

func clamp(score int) int {
	switch {
	case score > MaxScore:
		return MaxScore
	case score < 0:
		return 0
	}
	return score
}
