package models

import (
	"fmt"
	"strings"
)

// Field names either a dimension or a measure of a record.
type Field struct {
	Dimension Dimension
	Measure   Measure
	IsMeasure bool
}

// DimensionField wraps a dimension as a field.
func DimensionField(d Dimension) Field { return Field{Dimension: d} }

// MeasureField wraps a measure as a field.
func MeasureField(m Measure) Field { return Field{Measure: m, IsMeasure: true} }

// ParseField resolves any record field identifier.
func ParseField(name string) (Field, error) {
	if d, err := ParseDimension(name); err == nil {
		return DimensionField(d), nil
	}
	if m, err := ParseMeasure(name); err == nil {
		return MeasureField(m), nil
	}
	return Field{}, fmt.Errorf("unknown field %q", name)
}

// String returns the field identifier.
func (f Field) String() string {
	if f.IsMeasure {
		return f.Measure.String()
	}
	return f.Dimension.String()
}

// Filter constrains a dimension to one or more accepted values. A record
// matches when its value equals any of them.
type Filter struct {
	Dimension Dimension        `json:"field"`
	Values    []DimensionValue `json:"values"`
}

// Matches reports whether the record satisfies the filter.
func (f Filter) Matches(r *Record) bool {
	v := r.Dims[f.Dimension]
	for _, want := range f.Values {
		if v == want {
			return true
		}
	}
	return false
}

// SortDirection orders query results.
type SortDirection int

const (
	// SortAsc sorts smallest first.
	SortAsc SortDirection = iota
	// SortDesc sorts largest first.
	SortDesc
)

// String returns the direction keyword.
func (d SortDirection) String() string {
	if d == SortDesc {
		return "desc"
	}
	return "asc"
}

// Sort describes the ordering of a record query.
type Sort struct {
	Field     Field
	Direction SortDirection
}

// String renders the sort as "field:direction".
func (s Sort) String() string {
	return s.Field.String() + ":" + s.Direction.String()
}

// ParseSortDirection accepts asc/desc in any case.
func ParseSortDirection(s string) (SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return SortAsc, nil
	case "desc", "descending":
		return SortDesc, nil
	default:
		return SortAsc, fmt.Errorf("unknown sort direction %q", s)
	}
}

// Page is one slice of an ordered result set.
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}
