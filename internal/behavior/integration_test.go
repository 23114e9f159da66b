package behavior

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insiderwatch/insiderwatch/internal/platform/db"
	"github.com/insiderwatch/insiderwatch/internal/risk"
)

// Runs against a disposable database: the schema is dropped and recreated.
const integrationDSNEnv = "INSIDERWATCH_TEST_PG_DSN"

func setupRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv(integrationDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set; skipping postgres integration test", integrationDSNEnv)
	}
	require.NoError(t, db.Migrate(dsn, db.MigrateDown, nil))
	require.NoError(t, db.Migrate(dsn, db.MigrateUp, nil))

	ctx := context.Background()
	pool, err := db.New(ctx, dsn, db.PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewRepository(pool)
	res, err := repo.Seed(ctx, ReferenceData())
	require.NoError(t, err)
	require.False(t, res.Skipped)
	assert.Equal(t, SeedResult{Roles: 3, Users: 4, Grants: 11}, res)

	again, err := repo.Seed(ctx, ReferenceData())
	require.NoError(t, err)
	require.True(t, again.Skipped)

	return repo
}

func TestRepositoryAgainstPostgres(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	user, err := repo.UserByID(ctx, "staff001")
	require.NoError(t, err)
	assert.Equal(t, risk.StatusActive, user.Status)

	_, err = repo.UserByID(ctx, "ghost001")
	assert.ErrorIs(t, err, risk.ErrNotFound)

	role, err := repo.RoleByID(ctx, user.RoleID)
	require.NoError(t, err)
	assert.Equal(t, "staff", role.Name)

	baseline, err := repo.BaselineByRole(ctx, user.RoleID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, baseline.AvgRecordsPerAccess)
	assert.Equal(t, 9, baseline.NormalStartHour)

	ok, err := repo.HasGrant(ctx, user.RoleID, "READ", "General_Documents")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.HasGrant(ctx, user.RoleID, "READ", "Finance_Reports")
	require.NoError(t, err)
	assert.False(t, ok)

	admin, err := repo.UserByID(ctx, "admin001")
	require.NoError(t, err)
	ok, err = repo.HasGrant(ctx, admin.RoleID, "DELETE", "Anything")
	require.NoError(t, err)
	assert.True(t, ok)

	day := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{day.Add(-time.Minute), day, day.Add(12 * time.Hour), day.Add(24 * time.Hour)} {
		_, err := repo.InsertActivity(ctx, risk.Event{UserID: "staff001", Action: "READ", Resource: "General_Documents", AccessTime: at})
		require.NoError(t, err)
	}
	n, err := repo.CountActivity(ctx, "staff001", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = repo.LatestAlert(ctx, "staff001")
	assert.ErrorIs(t, err, risk.ErrNotFound)

	older, err := repo.InsertAlert(ctx, risk.Alert{UserID: "staff001", RiskScore: 75, Level: risk.LevelLow, Reasons: "a", GeneratedAt: day.Add(time.Hour)})
	require.NoError(t, err)
	newer, err := repo.InsertAlert(ctx, risk.Alert{UserID: "staff001", RiskScore: 95, Level: risk.LevelHigh, Reasons: "a; b", GeneratedAt: day.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.NotZero(t, newer.ID)

	latest, err := repo.LatestAlert(ctx, "staff001")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)
	assert.Equal(t, risk.LevelHigh, latest.Level)

	all, err := repo.ListAlerts(ctx, risk.AlertFilter{UserID: "staff001"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)
	assert.Equal(t, older.ID, all[1].ID)

	inclusive, err := repo.ListAlerts(ctx, risk.AlertFilter{From: older.GeneratedAt, To: older.GeneratedAt})
	require.NoError(t, err)
	require.Len(t, inclusive, 1)

	none, err := repo.ListAlerts(ctx, risk.AlertFilter{UserID: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	counts, err := repo.CountAlertsByLevel(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[risk.Level]int{risk.LevelLow: 1, risk.LevelMedium: 0, risk.LevelHigh: 1}, counts)
}
