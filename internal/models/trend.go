package models

import (
	"fmt"
	"strings"
)

// TrendMetric selects the derived ratio plotted over time.
type TrendMetric int

const (
	TrendLossRatio TrendMetric = iota
	TrendExpenseRatio
	TrendCombinedRatio
	TrendVariableCostRatio
	TrendMarginalContributionRate
	TrendClaimFrequency
)

var trendMetricNames = []string{
	"matured_loss_ratio_percent",
	"expense_ratio_percent",
	"combined_ratio_percent",
	"variable_cost_ratio_percent",
	"marginal_contribution_rate_percent",
	"matured_claim_frequency_percent",
}

var trendMetricLabels = []string{
	"Loss Ratio",
	"Expense Ratio",
	"Combined Ratio",
	"Variable Cost Ratio",
	"Marginal Contribution",
	"Claim Frequency",
}

// AllTrendMetrics returns the selectable metrics in display order.
func AllTrendMetrics() []TrendMetric {
	out := make([]TrendMetric, len(trendMetricNames))
	for i := range out {
		out[i] = TrendMetric(i)
	}
	return out
}

func (m TrendMetric) String() string {
	if m >= 0 && int(m) < len(trendMetricNames) {
		return trendMetricNames[m]
	}
	return "unknown"
}

// Label returns a short human-readable name.
func (m TrendMetric) Label() string {
	if m >= 0 && int(m) < len(trendMetricLabels) {
		return trendMetricLabels[m]
	}
	return "Unknown"
}

// Next cycles to the following metric.
func (m TrendMetric) Next() TrendMetric {
	return TrendMetric((int(m) + 1) % len(trendMetricNames))
}

// Value extracts the metric from a derived result.
func (m TrendMetric) Value(d DerivedMetrics) float64 {
	switch m {
	case TrendExpenseRatio:
		return d.ExpenseRatio
	case TrendCombinedRatio:
		return d.CombinedRatio
	case TrendVariableCostRatio:
		return d.VariableCostRatio
	case TrendMarginalContributionRate:
		return d.MarginalContributionRate
	case TrendClaimFrequency:
		return d.MaturedClaimFrequency
	default:
		return d.MaturedLossRatio
	}
}

// ParseTrendMetric resolves a metric by identifier.
func ParseTrendMetric(name string) (TrendMetric, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range trendMetricNames {
		if n == name {
			return TrendMetric(i), nil
		}
	}
	return 0, fmt.Errorf("unknown trend metric %q", name)
}

// TrendPoint is one week of a trend series.
type TrendPoint struct {
	Week     int64   `json:"week"`
	Value    float64 `json:"value"`
	Count    int     `json:"count"`
	Warnings int     `json:"warnings"`
}

// TrendSeries is a metric over consecutive weeks, oldest first.
type TrendSeries struct {
	Metric     TrendMetric  `json:"-"`
	Points     []TrendPoint `json:"points"`
	Comparison string       `json:"comparison"`
}

// Latest returns the most recent point.
func (s TrendSeries) Latest() (TrendPoint, bool) {
	if len(s.Points) == 0 {
		return TrendPoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Values returns the series values in order.
func (s TrendSeries) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}
