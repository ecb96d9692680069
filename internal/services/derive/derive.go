// Package derive computes financial ratios, anomaly flags and a data quality
// score from aggregated policy groups.
package derive

import (
	"fmt"
	"strconv"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
	"github.com/j-veylop/policy-analytics-tui/internal/safemath"
)

// Quality score penalties.
const (
	penaltyPerWarning       = 10
	penaltyPerAnomaly       = 15
	penaltyNoSignedPremium  = 20
	penaltyNoMaturedPremium = 15
	penaltyNoPolicies       = 25
)

// Rounding precision of derived fields.
const (
	averagePlaces int32 = 0
	percentPlaces int32 = 1
	factorPlaces  int32 = 4
)

// Deriver turns aggregated groups into metric results. It is safe for
// concurrent use.
type Deriver struct {
	thresholds models.Thresholds
}

// New creates a Deriver that flags ratios outside the given ranges.
func New(thresholds models.Thresholds) *Deriver {
	return &Deriver{thresholds: thresholds}
}

// Thresholds returns the plausible ranges in use.
func (d *Deriver) Thresholds() models.Thresholds {
	return d.thresholds
}

// calc accumulates warnings while formulas are evaluated.
type calc struct {
	t        models.Amounts
	warnings []string
}

func (c *calc) div(field string, num models.Measure, den models.Measure) float64 {
	q, ok := safemath.Divide(c.t.Get(num), c.t.Get(den))
	if !ok {
		c.warn(field, den)
	}
	return q
}

func (c *calc) pct(field string, num models.Measure, den models.Measure) float64 {
	return c.div(field, num, den) * 100
}

func (c *calc) warn(field string, den models.Measure) {
	c.warnings = append(c.warnings, fmt.Sprintf("%s: %s is zero", field, den))
}

// Derive computes the derived metrics of one group. It never fails: a zero
// denominator yields 0 plus a warning naming the field. All formulas run on
// unrounded intermediates and rounding happens once at the end.
func (d *Deriver) Derive(g models.AggregatedGroup) models.MetricResult {
	c := &calc{t: g.Totals}
	for i, v := range c.t {
		c.t[i] = safemath.Finite(v)
	}

	avgPremium := c.div("average_premium_per_policy_yuan", models.MeasureSignedPremium, models.MeasurePolicyCount)
	avgClaim := c.div("average_claim_payment_yuan", models.MeasureReportedClaimPayment, models.MeasureClaimCaseCount)
	expense := c.pct("expense_ratio_percent", models.MeasureExpenseAmount, models.MeasureSignedPremium)
	loss := c.pct("matured_loss_ratio_percent", models.MeasureReportedClaimPayment, models.MeasureMaturedPremium)
	frequency := c.frequency()
	variable := c.variableCost()
	margin := c.pct("marginal_contribution_rate_percent", models.MeasureMarginalContributionAmount, models.MeasureMaturedPremium)
	factor := c.div("commercial_auto_underwriting_factor", models.MeasureSignedPremium, models.MeasureCommercialPremiumBeforeDiscount)
	combined := expense + loss
	profit := 100 - combined

	metrics := models.DerivedMetrics{
		AveragePremiumPerPolicy:          safemath.Round(avgPremium, averagePlaces),
		AverageClaimPayment:              safemath.Round(avgClaim, averagePlaces),
		ExpenseRatio:                     safemath.Round(expense, percentPlaces),
		MaturedLossRatio:                 safemath.Round(loss, percentPlaces),
		MaturedClaimFrequency:            safemath.Round(frequency, percentPlaces),
		VariableCostRatio:                safemath.Round(variable, percentPlaces),
		MarginalContributionRate:         safemath.Round(margin, percentPlaces),
		CommercialAutoUnderwritingFactor: safemath.Round(factor, factorPlaces),
		CombinedRatio:                    safemath.Round(combined, percentPlaces),
		ProfitMargin:                     safemath.Round(profit, percentPlaces),
	}

	anomalies := d.anomalies(metrics)

	return models.MetricResult{
		AggregatedGroup: g,
		Metrics:         metrics,
		Warnings:        c.warnings,
		Anomalies:       anomalies,
		QualityScore:    qualityScore(c.t, len(c.warnings), len(anomalies)),
	}
}

// DeriveAll derives every group, preserving order.
func (d *Deriver) DeriveAll(groups []models.AggregatedGroup) []models.MetricResult {
	out := make([]models.MetricResult, len(groups))
	for i, g := range groups {
		out[i] = d.Derive(g)
	}
	return out
}

// frequency is (claim cases / policies) x (matured / signed premium) x 100.
func (c *calc) frequency() float64 {
	const field = "matured_claim_frequency_percent"
	perPolicy, ok1 := safemath.Divide(c.t.Get(models.MeasureClaimCaseCount), c.t.Get(models.MeasurePolicyCount))
	maturity, ok2 := safemath.Divide(c.t.Get(models.MeasureMaturedPremium), c.t.Get(models.MeasureSignedPremium))
	switch {
	case !ok1:
		c.warn(field, models.MeasurePolicyCount)
		return 0
	case !ok2:
		c.warn(field, models.MeasureSignedPremium)
		return 0
	}
	return perPolicy * maturity * 100
}

// variableCost is (expense / signed + claims / matured) x 100.
func (c *calc) variableCost() float64 {
	const field = "variable_cost_ratio_percent"
	exp, ok1 := safemath.Divide(c.t.Get(models.MeasureExpenseAmount), c.t.Get(models.MeasureSignedPremium))
	claims, ok2 := safemath.Divide(c.t.Get(models.MeasureReportedClaimPayment), c.t.Get(models.MeasureMaturedPremium))
	switch {
	case !ok1:
		c.warn(field, models.MeasureSignedPremium)
		return 0
	case !ok2:
		c.warn(field, models.MeasureMaturedPremium)
		return 0
	}
	return (exp + claims) * 100
}

func (d *Deriver) anomalies(m models.DerivedMetrics) []string {
	checks := []struct {
		name  string
		value float64
		rng   models.Range
	}{
		{"variable_cost_ratio_percent", m.VariableCostRatio, d.thresholds.VariableCostRatio},
		{"matured_loss_ratio_percent", m.MaturedLossRatio, d.thresholds.MaturedLossRatio},
		{"expense_ratio_percent", m.ExpenseRatio, d.thresholds.ExpenseRatio},
		{"marginal_contribution_rate_percent", m.MarginalContributionRate, d.thresholds.MarginalContributionRate},
	}
	var flags []string
	for _, c := range checks {
		if !c.rng.Contains(c.value) {
			flags = append(flags, fmt.Sprintf("%s %s outside plausible range [%s, %s]",
				c.name, formatNum(c.value), formatNum(c.rng.Min), formatNum(c.rng.Max)))
		}
	}
	return flags
}

func qualityScore(t models.Amounts, warnings, anomalies int) int {
	score := 100 - penaltyPerWarning*warnings - penaltyPerAnomaly*anomalies
	if t.Get(models.MeasureSignedPremium) == 0 {
		score -= penaltyNoSignedPremium
	}
	if t.Get(models.MeasureMaturedPremium) == 0 {
		score -= penaltyNoMaturedPremium
	}
	if t.Get(models.MeasurePolicyCount) == 0 {
		score -= penaltyNoPolicies
	}
	return safemath.Clamp(score, 0, 100)
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
