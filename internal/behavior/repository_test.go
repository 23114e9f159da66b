package behavior

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/insiderwatch/insiderwatch/internal/risk"
)

func TestBuildAlertQueryWithoutFilters(t *testing.T) {
	query, args := buildAlertQuery(risk.AlertFilter{})
	assert.NotContains(t, query, "WHERE")
	assert.Contains(t, query, "ORDER BY generated_at DESC, alert_id DESC")
	assert.Empty(t, args)
}

func TestBuildAlertQueryNumbersPlaceholdersInOrder(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	query, args := buildAlertQuery(risk.AlertFilter{
		UserID: "staff001",
		Level:  risk.LevelHigh,
		From:   from,
		To:     to,
	})
	assert.Contains(t, query, "WHERE user_id = $1 AND alert_level = $2 AND generated_at >= $3 AND generated_at <= $4")
	assert.Equal(t, []any{"staff001", "HIGH", from, to}, args)

	query, args = buildAlertQuery(risk.AlertFilter{To: to})
	assert.Contains(t, query, "WHERE generated_at <= $1")
	assert.Equal(t, []any{to}, args)
}

func TestReferenceDataMatchesBootstrapSet(t *testing.T) {
	data := ReferenceData()
	byName := map[string]SeedRole{}
	users := 0
	for _, r := range data {
		byName[r.Name] = r
		users += len(r.Users)
	}
	assert.Len(t, data, 3)
	assert.Equal(t, 4, users)
	assert.Equal(t, 5.0, byName["staff"].Baseline.AvgRecordsPerAccess)
	assert.Equal(t, 9, byName["staff"].Baseline.NormalStartHour)
	assert.Equal(t, 17, byName["staff"].Baseline.NormalEndHour)

	admin := byName["admin"]
	for _, action := range []string{"READ", "WRITE", "UPDATE", "DELETE"} {
		allowed := false
		for _, g := range admin.Grants {
			allowed = allowed || g.Allows(action, "Anything")
		}
		assert.True(t, allowed, action)
	}
}
