package rules

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expensehub/claimflow/internal/domain/claim"
	"github.com/expensehub/claimflow/internal/domain/risk"
)

func testEngine() *Engine {
	return NewEngine(Config{
		HRThreshold:         decimal.NewFromInt(5000),
		AdminThreshold:      decimal.NewFromInt(15000),
		CriticalScore:       70,
		SensitiveCategories: []string{"Entertainment"},
	})
}

func TestBuildSteps(t *testing.T) {
	engine := testEngine()

	tests := []struct {
		name      string
		amount    int64
		category  string
		risk      risk.Result
		wantRoles []claim.Role
	}{
		{
			name:      "small clean claim needs only manager",
			amount:    300,
			category:  "Office Supplies",
			wantRoles: []claim.Role{claim.RoleManager},
		},
		{
			name:      "amount above hr threshold adds hr step",
			amount:    8000,
			category:  "Travel",
			wantRoles: []claim.Role{claim.RoleManager, claim.RoleHR},
		},
		{
			name:      "amount above admin threshold adds hr and admin steps",
			amount:    20000,
			category:  "Travel",
			wantRoles: []claim.Role{claim.RoleManager, claim.RoleHR, claim.RoleAdministrator},
		},
		{
			name:      "amount at hr threshold stays manager only",
			amount:    5000,
			category:  "Travel",
			wantRoles: []claim.Role{claim.RoleManager},
		},
		{
			name:      "sensitive category adds hr step",
			amount:    200,
			category:  "Entertainment",
			wantRoles: []claim.Role{claim.RoleManager, claim.RoleHR},
		},
		{
			name:      "critical risk score adds admin step",
			amount:    200,
			category:  "Travel",
			risk:      risk.Result{Score: 70},
			wantRoles: []claim.Role{claim.RoleManager, claim.RoleAdministrator},
		},
		{
			name:      "flagged small claim requires hr and admin",
			amount:    300,
			category:  "Travel",
			risk:      risk.Result{Score: 45, Flagged: true},
			wantRoles: []claim.Role{claim.RoleManager, claim.RoleHR, claim.RoleAdministrator},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &claim.Claim{
				Amount:   decimal.NewFromInt(tt.amount),
				Category: tt.category,
			}

			steps := engine.BuildSteps(c, tt.risk)

			require.Len(t, steps, len(tt.wantRoles))
			for i, role := range tt.wantRoles {
				assert.Equal(t, role, steps[i].RequiredRole)
				assert.Equal(t, i+1, steps[i].Number)
				assert.Equal(t, claim.StepPending, steps[i].Status)
			}
		})
	}
}

func TestBuildStepsIsDeterministic(t *testing.T) {
	engine := testEngine()
	c := &claim.Claim{
		Amount:   decimal.NewFromInt(20000),
		Category: "Entertainment",
	}
	r := risk.Result{Score: 80, Flagged: true}

	first := engine.BuildSteps(c, r)
	second := engine.BuildSteps(c, r)

	assert.Equal(t, first, second)
}

func TestBuildStepsRecordsThresholds(t *testing.T) {
	engine := testEngine()
	c := &claim.Claim{
		Amount:   decimal.NewFromInt(20000),
		Category: "Travel",
	}

	steps := engine.BuildSteps(c, risk.Result{})

	require.Len(t, steps, 3)
	assert.True(t, steps[1].AmountThreshold.Equal(decimal.NewFromInt(5000)))
	assert.True(t, steps[2].AmountThreshold.Equal(decimal.NewFromInt(15000)))
}
