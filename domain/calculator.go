/*
calculator.go - Point formulas for both reward pathways

PURPOSE:
  Pure functions mapping a waste weight to point amounts. No state, no
  side effects: the same weight always yields the same result.

TWO FORMULAS, KEPT APART:
  The system has two divergent bonus rules for the same physical action.

  Exchange pathway (balance ledger):
    base  = weight * 10
    bonus = weight          when weight >= 10 (the FULL weight, not the
                            excess over the threshold)
    total = floor(base + bonus)

  Submission pathway (administrative workflow):
    base  = weight * 10
    bonus = (weight - 10)   when weight >= 10 (only the excess)
    total = floor(base + bonus)
    earnings = total * 1000 (1 point = 1000 VND)

  They are exposed as separately named functions and never call each
  other. Merging them would change the reward economics; the product
  owners have not resolved which rule is canonical.
*/
package domain

import "github.com/shopspring/decimal"

// Canonical rates. These are business constants, not tunables: both
// pathways hard-code them in the reward contract.
var (
	pointsPerKg      = decimal.NewFromInt(10)
	bonusThresholdKg = decimal.NewFromInt(10)
)

// EarningsPerPoint is the VND value of one point in the submission pathway.
const EarningsPerPoint = 1000

// PointsCalculation is the result of the exchange-pathway formula.
type PointsCalculation struct {
	BasePoints  decimal.Decimal
	BonusPoints decimal.Decimal
	TotalPoints int64
	HasBonus    bool
}

// CalculateExchangePoints computes points for the balance-ledger pathway.
// Bonus rule: at or above 10 kg the bonus equals the full weight.
func CalculateExchangePoints(weight decimal.Decimal) PointsCalculation {
	if weight.IsNegative() {
		weight = decimal.Zero
	}

	base := weight.Mul(pointsPerKg)
	bonus := decimal.Zero
	hasBonus := false
	if weight.GreaterThanOrEqual(bonusThresholdKg) {
		bonus = weight
		hasBonus = true
	}

	return PointsCalculation{
		BasePoints:  base,
		BonusPoints: bonus,
		TotalPoints: base.Add(bonus).Floor().IntPart(),
		HasBonus:    hasBonus,
	}
}

// SubmissionCalculation is the result of the submission-pathway formula.
type SubmissionCalculation struct {
	Points        int64
	BonusPoints   int64
	TotalPoints   int64
	TotalEarnings int64
	HasBonus      bool
}

// CalculateSubmissionPoints computes points and earnings for the
// waste-submission workflow. Bonus rule: +1 point per kg ABOVE 10 kg.
// Amounts are floored to whole points, matching what the workflow stores.
func CalculateSubmissionPoints(weight decimal.Decimal) SubmissionCalculation {
	if weight.IsNegative() {
		weight = decimal.Zero
	}

	base := weight.Mul(pointsPerKg)
	bonus := decimal.Zero
	hasBonus := false
	if weight.GreaterThanOrEqual(bonusThresholdKg) {
		bonus = weight.Sub(bonusThresholdKg)
		hasBonus = true
	}
	total := base.Add(bonus).Floor().IntPart()

	return SubmissionCalculation{
		Points:        base.Floor().IntPart(),
		BonusPoints:   bonus.Floor().IntPart(),
		TotalPoints:   total,
		TotalEarnings: total * EarningsPerPoint,
		HasBonus:      hasBonus,
	}
}

// ValidWeight reports whether the weight is inside the accepted
// [0.1, 1000] kg range shared by both pathways.
func ValidWeight(weight decimal.Decimal) bool {
	return weight.GreaterThanOrEqual(MinWeight) && weight.LessThanOrEqual(MaxWeight)
}
