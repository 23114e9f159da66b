package behavior

import (
	"context"
	"fmt"

	"github.com/insiderwatch/insiderwatch/internal/risk"
)

// SeedRole is one role of the reference data set with its grants, baseline
// and members.
type SeedRole struct {
	Name        string
	Description string
	Grants      []risk.Grant
	Baseline    risk.Baseline
	Users       []string
}

// ReferenceData is the bootstrap data set. RoleIDs inside grants and
// baselines are ignored; the inserted role id is used.
func ReferenceData() []SeedRole {
	return []SeedRole{
		{
			Name:        "admin",
			Description: "System administrator with full access",
			Grants: []risk.Grant{
				{Action: "READ", Resource: risk.WildcardResource},
				{Action: "WRITE", Resource: risk.WildcardResource},
				{Action: "UPDATE", Resource: risk.WildcardResource},
				{Action: "DELETE", Resource: risk.WildcardResource},
			},
			Baseline: risk.Baseline{AvgRecordsPerAccess: 100.0, AvgAccessPerDay: 50, NormalStartHour: 0, NormalEndHour: 23},
			Users:    []string{"admin001"},
		},
		{
			Name:        "manager",
			Description: "Manager with elevated privileges",
			Grants: []risk.Grant{
				{Action: "READ", Resource: "Finance_Reports"},
				{Action: "READ", Resource: "Employee_Records"},
				{Action: "WRITE", Resource: "Finance_Reports"},
				{Action: "UPDATE", Resource: "Finance_Reports"},
			},
			Baseline: risk.Baseline{AvgRecordsPerAccess: 50.0, AvgAccessPerDay: 30, NormalStartHour: 7, NormalEndHour: 19},
			Users:    []string{"manager001"},
		},
		{
			Name:        "staff",
			Description: "Regular staff member",
			Grants: []risk.Grant{
				{Action: "READ", Resource: "General_Documents"},
				{Action: "READ", Resource: "Public_Reports"},
				{Action: "WRITE", Resource: "Own_Work"},
			},
			Baseline: risk.Baseline{AvgRecordsPerAccess: 5.0, AvgAccessPerDay: 20, NormalStartHour: 9, NormalEndHour: 17},
			Users:    []string{"staff001", "staff002"},
		},
	}
}

// SeedResult summarises a Seed run.
type SeedResult struct {
	Skipped bool
	Roles   int
	Users   int
	Grants  int
}

// Seed inserts data in one transaction unless roles already exist.
func (r *Repository) Seed(ctx context.Context, data []SeedRole) (SeedResult, error) {
	var result SeedResult
	err := r.WithTx(ctx, func(ctx context.Context, repo *Repository) error {
		existing, err := repo.CountRoles(ctx)
		if err != nil {
			return err
		}
		if existing > 0 {
			result.Skipped = true
			return nil
		}
		for _, role := range data {
			roleID, err := repo.InsertRole(ctx, role.Name, role.Description)
			if err != nil {
				return err
			}
			result.Roles++

			for _, userID := range role.Users {
				if err := repo.InsertUser(ctx, userID, roleID); err != nil {
					return err
				}
				result.Users++
			}
			for _, g := range role.Grants {
				if err := repo.InsertGrant(ctx, roleID, g); err != nil {
					return err
				}
				result.Grants++
			}
			if err := repo.InsertBaseline(ctx, roleID, role.Baseline); err != nil {
				return fmt.Errorf("behavior: seed %s: %w", role.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	return result, nil
}
