package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Measure identifies one of the absolute-value numeric attributes of a record.
type Measure uint8

// Measures in canonical column order.
const (
	MeasureSignedPremium Measure = iota
	MeasureMaturedPremium
	MeasureCommercialPremiumBeforeDiscount
	MeasurePolicyCount
	MeasureClaimCaseCount
	MeasureReportedClaimPayment
	MeasureExpenseAmount
	MeasureMarginalContributionAmount
	MeasureVariableCostAmount

	// NumMeasures is the number of absolute-value attributes.
	NumMeasures = int(iota)
)

var measureNames = [NumMeasures]string{
	"signed_premium_yuan",
	"matured_premium_yuan",
	"commercial_premium_before_discount_yuan",
	"policy_count",
	"claim_case_count",
	"reported_claim_payment_yuan",
	"expense_amount_yuan",
	"marginal_contribution_amount_yuan",
	"variable_cost_amount_yuan",
}

var measureByName = func() map[string]Measure {
	m := make(map[string]Measure, NumMeasures)
	for i, name := range measureNames {
		m[name] = Measure(i)
	}
	return m
}()

// AllMeasures returns every measure in canonical order.
func AllMeasures() []Measure {
	ms := make([]Measure, NumMeasures)
	for i := range ms {
		ms[i] = Measure(i)
	}
	return ms
}

// String returns the field identifier of the measure.
func (m Measure) String() string {
	if int(m) < NumMeasures {
		return measureNames[m]
	}
	return "unknown"
}

// ParseMeasure resolves a field identifier to a measure.
func ParseMeasure(name string) (Measure, error) {
	m, ok := measureByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown measure %q", name)
	}
	return m, nil
}

// Amounts holds one value per measure.
type Amounts [NumMeasures]float64

// Get returns the amount for a measure.
func (a Amounts) Get(m Measure) float64 { return a[m] }

// Add accumulates b into a. Non-finite inputs count as zero.
func (a *Amounts) Add(b Amounts) {
	for i, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		a[i] += v
	}
}

// MarshalJSON encodes the amounts as an object keyed by measure identifier.
func (a Amounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		fmt.Fprintf(&buf, "%q:", measureNames[i])
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Record is a single policy observation. Records are immutable once ingested.
type Record struct {
	Dims    [NumDimensions]DimensionValue
	Amounts Amounts
}

// Dim returns the value of a dimension.
func (r *Record) Dim(d Dimension) DimensionValue { return r.Dims[d] }

// Amount returns the value of a measure.
func (r *Record) Amount(m Measure) float64 { return r.Amounts[m] }

// MarshalJSON encodes the record as a flat object keyed by field identifier.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range r.Dims {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:", dimensionNames[i])
		b, err := v.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	amounts, err := r.Amounts.MarshalJSON()
	if err != nil {
		return nil, err
	}
	if len(amounts) > 2 {
		buf.WriteByte(',')
		buf.Write(amounts[1 : len(amounts)-1])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// GroupKey is the composite key of one aggregation group. It holds the values
// of the grouped dimensions in request order and is comparable, so it can be
// used as a map key without string encoding. Null values stay distinct from
// every real value, including the empty string.
type GroupKey struct {
	n    uint8
	vals [NumDimensions]DimensionValue
}

// KeyOf builds the group key of a record for the given dimensions.
func KeyOf(r *Record, dims []Dimension) GroupKey {
	var k GroupKey
	k.n = uint8(len(dims))
	for i, d := range dims {
		k.vals[i] = r.Dims[d]
	}
	return k
}

// Len returns the number of values in the key.
func (k GroupKey) Len() int { return int(k.n) }

// At returns the i-th value of the key.
func (k GroupKey) At(i int) DimensionValue { return k.vals[i] }
