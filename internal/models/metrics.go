package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// DimensionPair is one (dimension, value) entry of a group.
type DimensionPair struct {
	Dimension Dimension
	Value     DimensionValue
}

// DimensionMap is an ordered dimension-to-value mapping. It encodes to a JSON
// object whose keys keep the grouping order.
type DimensionMap []DimensionPair

// Get looks up the value of a dimension.
func (m DimensionMap) Get(d Dimension) (DimensionValue, bool) {
	for _, p := range m {
		if p.Dimension == d {
			return p.Value, true
		}
	}
	return NullValue(), false
}

// Label joins the values for display, e.g. "Chengdu / auto".
func (m DimensionMap) Label() string {
	if len(m) == 0 {
		return "All"
	}
	var buf bytes.Buffer
	for i, p := range m {
		if i > 0 {
			buf.WriteString(" / ")
		}
		buf.WriteString(p.Value.String())
	}
	return buf.String()
}

// MarshalJSON encodes the map as an object in grouping order.
func (m DimensionMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:", p.Dimension.String())
		b, err := p.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// AggregatedGroup holds the summed measures of all records sharing a key.
type AggregatedGroup struct {
	Dimensions DimensionMap `json:"dimensions"`
	Totals     Amounts      `json:"totals"`
	Count      int          `json:"count"`
}

// DerivedMetrics are the ratios computed from a group's totals.
type DerivedMetrics struct {
	AveragePremiumPerPolicy          float64 `json:"average_premium_per_policy_yuan"`
	AverageClaimPayment              float64 `json:"average_claim_payment_yuan"`
	ExpenseRatio                     float64 `json:"expense_ratio_percent"`
	MaturedLossRatio                 float64 `json:"matured_loss_ratio_percent"`
	MaturedClaimFrequency            float64 `json:"matured_claim_frequency_percent"`
	VariableCostRatio                float64 `json:"variable_cost_ratio_percent"`
	MarginalContributionRate         float64 `json:"marginal_contribution_rate_percent"`
	CommercialAutoUnderwritingFactor float64 `json:"commercial_auto_underwriting_factor"`
	CombinedRatio                    float64 `json:"combined_ratio_percent"`
	ProfitMargin                     float64 `json:"profit_margin_percent"`
}

// MetricResult is an aggregated group enriched with derived metrics and
// quality diagnostics. It is never persisted.
type MetricResult struct {
	AggregatedGroup
	Metrics      DerivedMetrics `json:"metrics"`
	Warnings     []string       `json:"warnings"`
	Anomalies    []string       `json:"anomalies"`
	QualityScore int            `json:"quality_score"`
}

// Clone returns a copy that shares no slices with r.
func (r MetricResult) Clone() MetricResult {
	r.Dimensions = slices.Clone(r.Dimensions)
	r.Warnings = slices.Clone(r.Warnings)
	r.Anomalies = slices.Clone(r.Anomalies)
	return r
}

// MarshalJSON flattens the embedded group and never emits null slices.
func (r MetricResult) MarshalJSON() ([]byte, error) {
	type wire struct {
		Dimensions   DimensionMap   `json:"dimensions"`
		Totals       Amounts        `json:"totals"`
		Count        int            `json:"count"`
		Metrics      DerivedMetrics `json:"metrics"`
		Warnings     []string       `json:"warnings"`
		Anomalies    []string       `json:"anomalies"`
		QualityScore int            `json:"quality_score"`
	}
	warnings, anomalies := r.Warnings, r.Anomalies
	if warnings == nil {
		warnings = []string{}
	}
	if anomalies == nil {
		anomalies = []string{}
	}
	return json.Marshal(wire{
		Dimensions:   r.Dimensions,
		Totals:       r.Totals,
		Count:        r.Count,
		Metrics:      r.Metrics,
		Warnings:     warnings,
		Anomalies:    anomalies,
		QualityScore: r.QualityScore,
	})
}

// Range is an inclusive plausible interval for a ratio.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Thresholds are the plausible ranges used to flag anomalous ratios.
type Thresholds struct {
	VariableCostRatio        Range `yaml:"variable_cost_ratio_percent" json:"variable_cost_ratio_percent"`
	MaturedLossRatio         Range `yaml:"matured_loss_ratio_percent" json:"matured_loss_ratio_percent"`
	ExpenseRatio             Range `yaml:"expense_ratio_percent" json:"expense_ratio_percent"`
	MarginalContributionRate Range `yaml:"marginal_contribution_rate_percent" json:"marginal_contribution_rate_percent"`
}

// DefaultThresholds returns the standard plausible ranges.
func DefaultThresholds() Thresholds {
	return Thresholds{
		VariableCostRatio:        Range{Min: 0, Max: 150},
		MaturedLossRatio:         Range{Min: 0, Max: 100},
		ExpenseRatio:             Range{Min: 0, Max: 50},
		MarginalContributionRate: Range{Min: -50, Max: 100},
	}
}
