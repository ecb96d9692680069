package derive

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
)

func group(vals map[models.Measure]float64) models.AggregatedGroup {
	var g models.AggregatedGroup
	for m, v := range vals {
		g.Totals[m] = v
	}
	g.Count = 1
	return g
}

func exampleGroup() models.AggregatedGroup {
	return group(map[models.Measure]float64{
		models.MeasureSignedPremium:                   1000,
		models.MeasurePolicyCount:                     2,
		models.MeasureMaturedPremium:                  900,
		models.MeasureClaimCaseCount:                  1,
		models.MeasureReportedClaimPayment:            300,
		models.MeasureExpenseAmount:                   100,
		models.MeasureMarginalContributionAmount:      200,
		models.MeasureCommercialPremiumBeforeDiscount: 1200,
	})
}

func TestDerive_Example(t *testing.T) {
	d := New(models.DefaultThresholds())
	got := d.Derive(exampleGroup())

	want := models.DerivedMetrics{
		AveragePremiumPerPolicy:          500,
		AverageClaimPayment:              300,
		ExpenseRatio:                     10.0,
		MaturedLossRatio:                 33.3,
		MaturedClaimFrequency:            45.0,
		VariableCostRatio:                43.3,
		MarginalContributionRate:         22.2,
		CommercialAutoUnderwritingFactor: 0.8333,
		CombinedRatio:                    43.3,
		ProfitMargin:                     56.7,
	}
	if got.Metrics != want {
		t.Errorf("Derive() metrics =\n%+v\nwant\n%+v", got.Metrics, want)
	}
	if len(got.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", got.Warnings)
	}
	if len(got.Anomalies) != 0 {
		t.Errorf("unexpected anomalies: %v", got.Anomalies)
	}
	if got.QualityScore != 100 {
		t.Errorf("quality = %d, want 100", got.QualityScore)
	}
	if got.Count != 1 {
		t.Errorf("group not carried through: %+v", got.AggregatedGroup)
	}
}

func TestDerive_ZeroPolicies(t *testing.T) {
	g := exampleGroup()
	g.Totals[models.MeasurePolicyCount] = 0

	got := New(models.DefaultThresholds()).Derive(g)

	if got.Metrics.AveragePremiumPerPolicy != 0 {
		t.Errorf("average premium = %v, want 0", got.Metrics.AveragePremiumPerPolicy)
	}
	if got.Metrics.MaturedClaimFrequency != 0 {
		t.Errorf("frequency = %v, want 0", got.Metrics.MaturedClaimFrequency)
	}
	wantWarnings := []string{
		"average_premium_per_policy_yuan: policy_count is zero",
		"matured_claim_frequency_percent: policy_count is zero",
	}
	if !reflect.DeepEqual(got.Warnings, wantWarnings) {
		t.Errorf("warnings = %v, want %v", got.Warnings, wantWarnings)
	}
	// 100 - 2*10 - 25
	if got.QualityScore != 55 {
		t.Errorf("quality = %d, want 55", got.QualityScore)
	}
}

func TestDerive_AllZeroClampsScore(t *testing.T) {
	got := New(models.DefaultThresholds()).Derive(models.AggregatedGroup{})
	if len(got.Warnings) != 8 {
		t.Errorf("expected 8 warnings, got %d: %v", len(got.Warnings), got.Warnings)
	}
	if got.QualityScore != 0 {
		t.Errorf("quality = %d, want 0", got.QualityScore)
	}
	if got.Metrics.ProfitMargin != 100 {
		t.Errorf("profit margin = %v, want 100", got.Metrics.ProfitMargin)
	}
	if got.Metrics.CombinedRatio != 0 {
		t.Errorf("combined = %v, want 0", got.Metrics.CombinedRatio)
	}
}

func TestDerive_WarningOrderFollowsFormulas(t *testing.T) {
	g := exampleGroup()
	g.Totals[models.MeasureSignedPremium] = 0

	got := New(models.DefaultThresholds()).Derive(g)
	var fields []string
	for _, w := range got.Warnings {
		fields = append(fields, strings.SplitN(w, ":", 2)[0])
	}
	want := []string{
		"expense_ratio_percent",
		"matured_claim_frequency_percent",
		"variable_cost_ratio_percent",
	}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("warning fields = %v, want %v", fields, want)
	}
}

func TestDerive_Anomalies(t *testing.T) {
	g := exampleGroup()
	g.Totals[models.MeasureReportedClaimPayment] = 1800 // loss 200%, vcr 210%
	g.Totals[models.MeasureExpenseAmount] = 600         // expense 60%

	got := New(models.DefaultThresholds()).Derive(g)

	if len(got.Anomalies) != 3 {
		t.Fatalf("expected 3 anomalies, got %v", got.Anomalies)
	}
	prefixes := []string{"variable_cost_ratio_percent", "matured_loss_ratio_percent", "expense_ratio_percent"}
	for i, p := range prefixes {
		if !strings.HasPrefix(got.Anomalies[i], p) {
			t.Errorf("anomaly %d = %q, want prefix %q", i, got.Anomalies[i], p)
		}
	}
	if !strings.Contains(got.Anomalies[1], "[0, 100]") {
		t.Errorf("anomaly should name the range: %q", got.Anomalies[1])
	}
	if got.QualityScore != 100-3*15 {
		t.Errorf("quality = %d, want %d", got.QualityScore, 100-3*15)
	}
}

func TestDerive_CustomThresholds(t *testing.T) {
	th := models.DefaultThresholds()
	th.ExpenseRatio = models.Range{Min: 0, Max: 5}

	got := New(th).Derive(exampleGroup())
	if len(got.Anomalies) != 1 || !strings.HasPrefix(got.Anomalies[0], "expense_ratio_percent 10 ") {
		t.Errorf("anomalies = %v", got.Anomalies)
	}
}

func TestDerive_NonFiniteTotals(t *testing.T) {
	g := exampleGroup()
	g.Totals[models.MeasureExpenseAmount] = math.NaN()

	got := New(models.DefaultThresholds()).Derive(g)
	if got.Metrics.ExpenseRatio != 0 {
		t.Errorf("expense ratio = %v, want 0", got.Metrics.ExpenseRatio)
	}
	if math.IsNaN(got.Metrics.CombinedRatio) {
		t.Error("combined ratio is NaN")
	}
}

func TestDerive_Pure(t *testing.T) {
	d := New(models.DefaultThresholds())
	g := exampleGroup()
	g.Totals[models.MeasurePolicyCount] = 0
	a, b := d.Derive(g), d.Derive(g)
	if !reflect.DeepEqual(a, b) {
		t.Error("Derive is not deterministic")
	}
}

func TestDeriveAll_PreservesOrder(t *testing.T) {
	groups := []models.AggregatedGroup{exampleGroup(), {}, exampleGroup()}
	groups[1].Count = 7
	got := New(models.DefaultThresholds()).DeriveAll(groups)
	if len(got) != 3 || got[1].Count != 7 {
		t.Errorf("DeriveAll lost order: %+v", got)
	}
}

func TestDerive_CombinedRatioIsSumOfParts(t *testing.T) {
	d := New(models.DefaultThresholds())
	const eps = 1e-9

	premiums := []float64{1, 3, 7.5, 999.99, 123456.78}
	for _, signed := range premiums {
		for _, maturedShare := range []float64{0.1, 0.37, 0.9, 1, 1.3} {
			for _, expenseShare := range []float64{0, 0.013, 0.0549, 0.25, 0.333, 0.77} {
				for _, lossShare := range []float64{0, 0.0051, 0.145, 0.6666, 1.05, 2.5} {
					matured := signed * maturedShare
					got := d.Derive(group(map[models.Measure]float64{
						models.MeasureSignedPremium:        signed,
						models.MeasureMaturedPremium:       matured,
						models.MeasurePolicyCount:          1,
						models.MeasureExpenseAmount:        signed * expenseShare,
						models.MeasureReportedClaimPayment: matured * lossShare,
					})).Metrics

					if diff := math.Abs(got.CombinedRatio - (got.ExpenseRatio + got.MaturedLossRatio)); diff > 0.1+eps {
						t.Errorf("signed=%v matured=%v expense=%v loss=%v: combined %v vs %v + %v",
							signed, matured, expenseShare, lossShare, got.CombinedRatio, got.ExpenseRatio, got.MaturedLossRatio)
					}
					if diff := math.Abs(got.ProfitMargin - (100 - got.CombinedRatio)); diff > 0.1+eps {
						t.Errorf("profit margin %v does not complement combined ratio %v", got.ProfitMargin, got.CombinedRatio)
					}
					if diff := math.Abs(got.VariableCostRatio - got.CombinedRatio); diff > 0.1+eps {
						t.Errorf("variable cost ratio %v differs from combined ratio %v", got.VariableCostRatio, got.CombinedRatio)
					}
				}
			}
		}
	}
}
