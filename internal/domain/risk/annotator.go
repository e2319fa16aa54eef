// Package risk scores expense claims for fraud indicators. The annotator is
// pure: everything it needs, including the employee's recent claims for
// duplicate detection, is passed in. The score is advisory input to step
// routing, not a blocking gate.
package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/expensehub/claimflow/internal/domain/claim"
)

// Flag values attached to a scored claim.
const (
	FlagMissingReceipt    = "missing_receipt"
	FlagHighValue         = "high_value"
	FlagLateSubmission    = "late_submission"
	FlagSensitiveCategory = "sensitive_category"
	FlagDuplicateClaim    = "duplicate_claim"
)

// Additive score weights, capped at 100.
const (
	scoreMissingReceipt    = 25
	scoreHighValue         = 20
	scoreLateSubmission    = 15
	scoreSensitiveCategory = 10
	scoreDuplicateClaim    = 30

	maxScore = 100
)

// Config holds the scoring thresholds. All values are configuration, not
// constants of the annotator.
type Config struct {
	HighValueThreshold  decimal.Decimal
	SensitiveCategories []string
	LateSubmissionDays  int
	DuplicateLookback   time.Duration
	FlagScoreThreshold  int
}

// Result is the outcome of scoring one claim.
type Result struct {
	Score   int
	Flags   []string
	Flagged bool
}

// HasFlag returns true if the result carries the given flag.
func (r Result) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Annotator computes risk scores for claims.
type Annotator struct {
	cfg       Config
	sensitive map[string]bool
}

// NewAnnotator creates an annotator with the given thresholds.
func NewAnnotator(cfg Config) *Annotator {
	sensitive := make(map[string]bool, len(cfg.SensitiveCategories))
	for _, c := range cfg.SensitiveCategories {
		sensitive[c] = true
	}
	return &Annotator{cfg: cfg, sensitive: sensitive}
}

// Assess scores a claim against its attributes and the same employee's
// recent claims. The same inputs always yield the same result.
func (a *Annotator) Assess(c *claim.Claim, recent []*claim.Claim) Result {
	var result Result

	missingReceipt := !c.HasReceipt()
	if missingReceipt {
		result.Score += scoreMissingReceipt
		result.Flags = append(result.Flags, FlagMissingReceipt)
	}

	highValue := c.Amount.GreaterThan(a.cfg.HighValueThreshold)
	if highValue {
		result.Score += scoreHighValue
		result.Flags = append(result.Flags, FlagHighValue)
	}

	if a.isLate(c) {
		result.Score += scoreLateSubmission
		result.Flags = append(result.Flags, FlagLateSubmission)
	}

	if a.sensitive[c.Category] {
		result.Score += scoreSensitiveCategory
		result.Flags = append(result.Flags, FlagSensitiveCategory)
	}

	if a.hasDuplicate(c, recent) {
		result.Score += scoreDuplicateClaim
		result.Flags = append(result.Flags, FlagDuplicateClaim)
	}

	if result.Score > maxScore {
		result.Score = maxScore
	}

	// A missing receipt on a high-value claim is high severity on its own.
	result.Flagged = result.Score >= a.cfg.FlagScoreThreshold || (missingReceipt && highValue)

	return result
}

// isLate reports whether the claim was submitted more than the configured
// number of days after the expense date.
func (a *Annotator) isLate(c *claim.Claim) bool {
	cutoff := c.ExpenseDate.AddDate(0, 0, a.cfg.LateSubmissionDays)
	return c.SubmittedAt.After(cutoff)
}

// hasDuplicate reports whether another claim by the same employee matches
// on vendor, expense date, and amount within the lookback window.
func (a *Annotator) hasDuplicate(c *claim.Claim, recent []*claim.Claim) bool {
	windowStart := c.SubmittedAt.Add(-a.cfg.DuplicateLookback)
	for _, other := range recent {
		if other.ID == c.ID || other.EmployeeID != c.EmployeeID {
			continue
		}
		if other.SubmittedAt.Before(windowStart) {
			continue
		}
		if other.Vendor != c.Vendor {
			continue
		}
		if !sameDay(other.ExpenseDate, c.ExpenseDate) {
			continue
		}
		if other.Amount.Equal(c.Amount) {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
