// Package rules decides which approval steps a claim requires. BuildSteps
// is a pure function: the same claim, risk result, and thresholds always
// yield the same ordered step list.
package rules

import (
	"github.com/shopspring/decimal"

	"github.com/expensehub/claimflow/internal/domain/claim"
	"github.com/expensehub/claimflow/internal/domain/risk"
)

// Config holds the routing thresholds. HR and administrator thresholds are
// total-ordered in application: an HR step, if present, always precedes the
// administrator step.
type Config struct {
	HRThreshold         decimal.Decimal
	AdminThreshold      decimal.Decimal
	CriticalScore       int
	SensitiveCategories []string
}

// Engine builds approval step plans from claim attributes and risk input.
type Engine struct {
	cfg       Config
	sensitive map[string]bool
}

// NewEngine creates a rule engine with the given thresholds.
func NewEngine(cfg Config) *Engine {
	sensitive := make(map[string]bool, len(cfg.SensitiveCategories))
	for _, c := range cfg.SensitiveCategories {
		sensitive[c] = true
	}
	return &Engine{cfg: cfg, sensitive: sensitive}
}

// BuildSteps returns the ordered approval steps the claim requires.
//
// Step 1 is always a manager step. An HR step follows when the amount
// exceeds the HR threshold, the category is sensitive, or risk flagged the
// claim. An administrator step follows when the amount exceeds the admin
// threshold or the score reaches the critical mark. Flagged claims never
// resolve at manager level alone: both HR and administrator steps are
// inserted even when no threshold would otherwise require them.
func (e *Engine) BuildSteps(c *claim.Claim, riskResult risk.Result) []claim.ApprovalStep {
	steps := []claim.ApprovalStep{
		{
			Number:       1,
			RequiredRole: claim.RoleManager,
			Status:       claim.StepPending,
		},
	}

	needHR := c.Amount.GreaterThan(e.cfg.HRThreshold) ||
		e.sensitive[c.Category] ||
		riskResult.Flagged

	needAdmin := c.Amount.GreaterThan(e.cfg.AdminThreshold) ||
		riskResult.Score >= e.cfg.CriticalScore

	if riskResult.Flagged {
		needHR = true
		needAdmin = true
	}

	if needHR {
		steps = append(steps, claim.ApprovalStep{
			Number:          len(steps) + 1,
			RequiredRole:    claim.RoleHR,
			Status:          claim.StepPending,
			AmountThreshold: e.cfg.HRThreshold,
		})
	}

	if needAdmin {
		steps = append(steps, claim.ApprovalStep{
			Number:          len(steps) + 1,
			RequiredRole:    claim.RoleAdministrator,
			Status:          claim.StepPending,
			AmountThreshold: e.cfg.AdminThreshold,
		})
	}

	return steps
}
