// Package behavior persists identities, role norms, activity and alerts in
// PostgreSQL.
package behavior

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insiderwatch/insiderwatch/internal/platform/db"
	"github.com/insiderwatch/insiderwatch/internal/risk"
)

// DBTX is the subset of pgx used by the repository. *pgxpool.Pool and pgx.Tx
// both satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db   DBTX
	pool db.TxBeginner
}

// NewRepository constructs a repository over the pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// WithTx runs fn with a repository bound to a single transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, *Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Repository{db: tx, pool: r.pool})
	})
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return risk.ErrNotFound
	}
	return err
}

// UserByID loads a user.
func (r *Repository) UserByID(ctx context.Context, userID string) (risk.User, error) {
	var u risk.User
	err := r.db.QueryRow(ctx,
		`SELECT user_id, role_id, status FROM users WHERE user_id = $1`, userID,
	).Scan(&u.ID, &u.RoleID, &u.Status)
	if err != nil {
		return risk.User{}, notFound(err)
	}
	return u, nil
}

// RoleByID loads a role.
func (r *Repository) RoleByID(ctx context.Context, roleID int64) (risk.Role, error) {
	var role risk.Role
	err := r.db.QueryRow(ctx,
		`SELECT role_id, role_name, description FROM roles WHERE role_id = $1`, roleID,
	).Scan(&role.ID, &role.Name, &role.Description)
	if err != nil {
		return risk.Role{}, notFound(err)
	}
	return role, nil
}

// BaselineByRole loads the behavioral baseline of a role.
func (r *Repository) BaselineByRole(ctx context.Context, roleID int64) (risk.Baseline, error) {
	var b risk.Baseline
	err := r.db.QueryRow(ctx, `
		SELECT role_id, avg_records_per_access::float8, avg_access_per_day,
		       normal_start_hour::int, normal_end_hour::int
		FROM role_baselines
		WHERE role_id = $1`, roleID,
	).Scan(&b.RoleID, &b.AvgRecordsPerAccess, &b.AvgAccessPerDay, &b.NormalStartHour, &b.NormalEndHour)
	if err != nil {
		return risk.Baseline{}, notFound(err)
	}
	return b, nil
}

// HasGrant reports whether the role may perform action on resource, either
// through an exact grant or the wildcard resource.
func (r *Repository) HasGrant(ctx context.Context, roleID int64, action, resource string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM role_policies
			WHERE role_id = $1 AND action = $2 AND (resource = $3 OR resource = $4)
		)`, roleID, action, resource, risk.WildcardResource,
	).Scan(&ok)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// CountActivity counts the user's activity with from <= access_time < to.
func (r *Repository) CountActivity(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM activity_logs
		WHERE user_id = $1 AND access_time >= $2 AND access_time < $3`,
		userID, from, to,
	).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// InsertActivity appends an activity row and returns it with its id.
func (r *Repository) InsertActivity(ctx context.Context, ev risk.Event) (risk.Activity, error) {
	a := risk.Activity{Event: ev}
	err := r.db.QueryRow(ctx, `
		INSERT INTO activity_logs (user_id, action, resource, records_accessed, access_time, source_ip)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING log_id`,
		ev.UserID, ev.Action, ev.Resource, ev.RecordsAccessed, ev.AccessTime, ev.SourceIP,
	).Scan(&a.ID)
	if err != nil {
		return risk.Activity{}, fmt.Errorf("behavior: insert activity: %w", err)
	}
	return a, nil
}

// InsertAlert stores an alert. A zero GeneratedAt takes the database clock.
func (r *Repository) InsertAlert(ctx context.Context, alert risk.Alert) (risk.Alert, error) {
	var generatedAt *time.Time
	if !alert.GeneratedAt.IsZero() {
		generatedAt = &alert.GeneratedAt
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO alerts (user_id, risk_score, alert_level, reasons, generated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5::timestamptz, NOW()))
		RETURNING alert_id, generated_at`,
		alert.UserID, alert.RiskScore, string(alert.Level), alert.Reasons, generatedAt,
	).Scan(&alert.ID, &alert.GeneratedAt)
	if err != nil {
		return risk.Alert{}, fmt.Errorf("behavior: insert alert: %w", err)
	}
	return alert, nil
}

const alertColumns = `alert_id, user_id, risk_score::int, alert_level, reasons, generated_at`

func scanAlert(row pgx.Row) (risk.Alert, error) {
	var (
		a     risk.Alert
		level string
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.RiskScore, &level, &a.Reasons, &a.GeneratedAt); err != nil {
		return risk.Alert{}, err
	}
	a.Level = risk.Level(level)
	return a, nil
}

// LatestAlert returns the user's most recent alert or risk.ErrNotFound.
func (r *Repository) LatestAlert(ctx context.Context, userID string) (risk.Alert, error) {
	a, err := scanAlert(r.db.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM alerts
		WHERE user_id = $1
		ORDER BY generated_at DESC, alert_id DESC
		LIMIT 1`, userID,
	))
	if err != nil {
		return risk.Alert{}, notFound(err)
	}
	return a, nil
}

// ListAlerts returns alerts matching every set filter, newest first. Time
// bounds are inclusive.
func (r *Repository) ListAlerts(ctx context.Context, filter risk.AlertFilter) ([]risk.Alert, error) {
	query, args := buildAlertQuery(filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("behavior: list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]risk.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("behavior: scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("behavior: list alerts: %w", err)
	}
	return alerts, nil
}

func buildAlertQuery(filter risk.AlertFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Level != "" {
		add("alert_level = $%d", string(filter.Level))
	}
	if !filter.From.IsZero() {
		add("generated_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("generated_at <= $%d", filter.To)
	}

	var b strings.Builder
	b.WriteString("SELECT " + alertColumns + " FROM alerts")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY generated_at DESC, alert_id DESC")
	return b.String(), args
}

// CountAlertsByLevel counts alerts generated in [from, to) per level. Levels
// without alerts are reported as zero.
func (r *Repository) CountAlertsByLevel(ctx context.Context, from, to time.Time) (map[risk.Level]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT alert_level, COUNT(*)
		FROM alerts
		WHERE generated_at >= $1 AND generated_at < $2
		GROUP BY alert_level`, from, to)
	if err != nil {
		return nil, fmt.Errorf("behavior: count alerts: %w", err)
	}
	defer rows.Close()

	counts := map[risk.Level]int{risk.LevelLow: 0, risk.LevelMedium: 0, risk.LevelHigh: 0}
	for rows.Next() {
		var (
			level string
			n     int
		)
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("behavior: scan alert count: %w", err)
		}
		counts[risk.Level(level)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("behavior: count alerts: %w", err)
	}
	return counts, nil
}

// CountRoles returns the number of roles.
func (r *Repository) CountRoles(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM roles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("behavior: count roles: %w", err)
	}
	return n, nil
}

// InsertRole stores a role and returns its id.
func (r *Repository) InsertRole(ctx context.Context, name, description string) (int64, error) {
	var id int64
	if err := r.db.QueryRow(ctx,
		`INSERT INTO roles (role_name, description) VALUES ($1, $2) RETURNING role_id`,
		name, description,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("behavior: insert role %s: %w", name, err)
	}
	return id, nil
}

// InsertUser stores an active user.
func (r *Repository) InsertUser(ctx context.Context, userID string, roleID int64) error {
	if _, err := r.db.Exec(ctx,
		`INSERT INTO users (user_id, role_id, status) VALUES ($1, $2, $3)`,
		userID, roleID, risk.StatusActive,
	); err != nil {
		return fmt.Errorf("behavior: insert user %s: %w", userID, err)
	}
	return nil
}

// InsertGrant stores one role permission.
func (r *Repository) InsertGrant(ctx context.Context, roleID int64, g risk.Grant) error {
	if _, err := r.db.Exec(ctx,
		`INSERT INTO role_policies (role_id, action, resource) VALUES ($1, $2, $3)`,
		roleID, g.Action, g.Resource,
	); err != nil {
		return fmt.Errorf("behavior: insert grant %s %s: %w", g.Action, g.Resource, err)
	}
	return nil
}

// InsertBaseline stores the behavioral norm of a role.
func (r *Repository) InsertBaseline(ctx context.Context, roleID int64, b risk.Baseline) error {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO role_baselines
			(role_id, avg_records_per_access, avg_access_per_day, normal_start_hour, normal_end_hour)
		VALUES ($1, $2, $3, $4, $5)`,
		roleID, b.AvgRecordsPerAccess, b.AvgAccessPerDay, b.NormalStartHour, b.NormalEndHour,
	); err != nil {
		return fmt.Errorf("behavior: insert baseline for role %d: %w", roleID, err)
	}
	return nil
}
