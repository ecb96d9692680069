// Package models defines data structures and domain types.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind identifies which member of a DimensionValue is set.
type ValueKind uint8

const (
	// KindNull marks a missing value.
	KindNull ValueKind = iota
	// KindString marks a text value.
	KindString
	// KindInt marks an integer value.
	KindInt
	// KindBool marks a boolean value.
	KindBool
)

// String returns the display name for a value kind.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindBool:
		return "boolean"
	default:
		return "unknown"
	}
}

// NullToken is the printable form of a missing dimension value.
const NullToken = "__null__"

// DimensionValue is a tagged union over the scalar types a dimension can hold.
// The zero value is the null value. Values are comparable and can be used in
// map keys directly.
type DimensionValue struct {
	Kind ValueKind
	Str  string
	Int  int64
	Bool bool
}

// NullValue returns the missing value.
func NullValue() DimensionValue { return DimensionValue{} }

// StringValue wraps a text value.
func StringValue(s string) DimensionValue { return DimensionValue{Kind: KindString, Str: s} }

// IntValue wraps an integer value.
func IntValue(i int64) DimensionValue { return DimensionValue{Kind: KindInt, Int: i} }

// BoolValue wraps a boolean value.
func BoolValue(b bool) DimensionValue { return DimensionValue{Kind: KindBool, Bool: b} }

// IsNull reports whether the value is missing.
func (v DimensionValue) IsNull() bool { return v.Kind == KindNull }

// String returns the display form of the value.
func (v DimensionValue) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return NullToken
	}
}

// Any returns the value as a plain Go value (nil for null).
func (v DimensionValue) Any() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return v.Int
	case KindBool:
		return v.Bool
	default:
		return nil
	}
}

// MarshalJSON encodes the value as its natural JSON scalar.
func (v DimensionValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON decodes a JSON scalar into the matching kind.
func (v *DimensionValue) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = NullValue()
	case string:
		*v = StringValue(x)
	case bool:
		*v = BoolValue(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return fmt.Errorf("dimension value %s is not an integer", x)
		}
		*v = IntValue(i)
	default:
		return fmt.Errorf("unsupported dimension value %s", string(data))
	}
	return nil
}

// CompareValues orders two values: null first, then by kind, then by value.
func CompareValues(a, b DimensionValue) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case KindString:
		return strings.Compare(a.Str, b.Str)
	case KindInt:
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		}
	case KindBool:
		switch {
		case a.Bool == b.Bool:
			return 0
		case !a.Bool:
			return -1
		default:
			return 1
		}
	}
	return 0
}

// Dimension identifies one of the categorical attributes of a record.
type Dimension uint8

// Dimensions in canonical column order.
const (
	DimSnapshotDate Dimension = iota
	DimPolicyStartYear
	DimWeekNumber
	DimChengduBranch
	DimThirdLevelOrganization
	DimCustomerCategory3
	DimBusinessTypeCategory
	DimInsuranceType
	DimCoverageType
	DimRenewalStatus
	DimIsNewEnergyVehicle
	DimIsTransferredVehicle
	DimVehicleInsuranceGrade
	DimHighwayRiskGrade
	DimLargeTruckScore
	DimSmallTruckScore
	DimTerminalSource

	// NumDimensions is the number of dimension attributes.
	NumDimensions = int(iota)
)

var dimensionNames = [NumDimensions]string{
	"snapshot_date",
	"policy_start_year",
	"week_number",
	"chengdu_branch",
	"third_level_organization",
	"customer_category_3",
	"business_type_category",
	"insurance_type",
	"coverage_type",
	"renewal_status",
	"is_new_energy_vehicle",
	"is_transferred_vehicle",
	"vehicle_insurance_grade",
	"highway_risk_grade",
	"large_truck_score",
	"small_truck_score",
	"terminal_source",
}

var dimensionByName = func() map[string]Dimension {
	m := make(map[string]Dimension, NumDimensions)
	for i, name := range dimensionNames {
		m[name] = Dimension(i)
	}
	return m
}()

// AllDimensions returns every dimension in canonical order.
func AllDimensions() []Dimension {
	dims := make([]Dimension, NumDimensions)
	for i := range dims {
		dims[i] = Dimension(i)
	}
	return dims
}

// String returns the field identifier of the dimension.
func (d Dimension) String() string {
	if int(d) < NumDimensions {
		return dimensionNames[d]
	}
	return "unknown"
}

// Valid reports whether d names a known dimension.
func (d Dimension) Valid() bool { return int(d) < NumDimensions }

// Kind returns the scalar kind a non-null value of this dimension carries.
func (d Dimension) Kind() ValueKind {
	switch d {
	case DimPolicyStartYear, DimWeekNumber:
		return KindInt
	case DimIsNewEnergyVehicle, DimIsTransferredVehicle:
		return KindBool
	default:
		return KindString
	}
}

// MarshalText encodes the dimension as its field identifier.
func (d Dimension) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid dimension %d", d)
	}
	return []byte(d.String()), nil
}

// UnmarshalText decodes a field identifier.
func (d *Dimension) UnmarshalText(text []byte) error {
	parsed, err := ParseDimension(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDimension resolves a field identifier to a dimension.
func ParseDimension(name string) (Dimension, error) {
	d, ok := dimensionByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown dimension %q", name)
	}
	return d, nil
}

// ParseValue converts loosely-typed text into a value of the dimension's kind.
// Empty text parses to the null value; any other text, NullToken included, is
// taken literally.
func (d Dimension) ParseValue(raw string) (DimensionValue, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return NullValue(), nil
	}
	switch d.Kind() {
	case KindInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return NullValue(), fmt.Errorf("%s expects an integer, got %q", d, raw)
		}
		return IntValue(i), nil
	case KindBool:
		b, ok := ParseBool(s)
		if !ok {
			return NullValue(), fmt.Errorf("%s expects a boolean, got %q", d, raw)
		}
		return BoolValue(b), nil
	default:
		return StringValue(s), nil
	}
}

// ParseBool accepts the boolean spellings found in exported spreadsheets.
func ParseBool(s string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1", "是":
		return true, true
	case "false", "f", "no", "n", "0", "否":
		return false, true
	default:
		return false, false
	}
}
