package query

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
)

// Errors returned for malformed requests. They are wrapped with the offending
// field or value; use errors.Is to test for them.
var (
	ErrUnknownField = errors.New("unknown field")
	ErrInvalidValue = errors.New("invalid value")
	ErrInvalidPage  = errors.New("invalid page")
)

// ParseFilters converts loosely-typed field/value pairs into validated
// filters. Values are parsed according to each dimension's type.
func ParseFilters(raw map[string][]string) ([]models.Filter, error) {
	filters := make([]models.Filter, 0, len(raw))
	for name, values := range raw {
		d, err := models.ParseDimension(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a filterable dimension", ErrUnknownField, name)
		}
		f := models.Filter{Dimension: d}
		for _, s := range values {
			v, err := parseFilterValue(d, s)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
			}
			f.Values = append(f.Values, v)
		}
		filters = append(filters, f)
	}
	return canonicalFilters(filters)
}

// parseFilterValue reads one filter value. An empty value or models.NullToken
// selects records where the dimension is missing; a leading backslash makes
// the rest literal, so `\__null__` matches the text "__null__".
func parseFilterValue(d models.Dimension, raw string) (models.DimensionValue, error) {
	s := strings.TrimSpace(raw)
	if s == models.NullToken {
		return models.NullValue(), nil
	}
	if rest, ok := strings.CutPrefix(s, `\`); ok {
		s = rest
	}
	return d.ParseValue(s)
}

// ParseFilterArgs parses "field=v1,v2" arguments as used on the command line.
func ParseFilterArgs(args []string) ([]models.Filter, error) {
	raw := make(map[string][]string)
	for _, arg := range args {
		name, values, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("%w: filter %q must look like field=value", ErrInvalidValue, arg)
		}
		name = strings.TrimSpace(name)
		raw[name] = append(raw[name], strings.Split(values, ",")...)
	}
	return ParseFilters(raw)
}

// ParseGroupBy resolves grouping dimension names, keeping request order and
// dropping repeats.
func ParseGroupBy(names []string) ([]models.Dimension, error) {
	dims := make([]models.Dimension, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		d, err := models.ParseDimension(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a groupable dimension", ErrUnknownField, name)
		}
		dims = append(dims, d)
	}
	return canonicalGroupBy(dims)
}

// ParseSort reads "field" or "field:asc|desc". An empty string means no sort.
func ParseSort(s string) (*models.Sort, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	name, dir, _ := strings.Cut(s, ":")
	f, err := models.ParseField(name)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot sort by %q", ErrUnknownField, name)
	}
	direction, err := models.ParseSortDirection(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return &models.Sort{Field: f, Direction: direction}, nil
}

// canonicalFilters validates filters and returns them sorted by dimension
// with sorted, de-duplicated values. Filters with no values are dropped since
// an absent constraint means unconstrained. Repeated dimensions stay separate
// and are combined with AND.
func canonicalFilters(filters []models.Filter) ([]models.Filter, error) {
	out := make([]models.Filter, 0, len(filters))
	for _, f := range filters {
		if !f.Dimension.Valid() {
			return nil, fmt.Errorf("%w: dimension #%d", ErrUnknownField, f.Dimension)
		}
		if len(f.Values) == 0 {
			continue
		}
		want := f.Dimension.Kind()
		values := make([]models.DimensionValue, 0, len(f.Values))
		for _, v := range f.Values {
			if !v.IsNull() && v.Kind != want {
				return nil, fmt.Errorf("%w: %s expects %s, got %s %q",
					ErrInvalidValue, f.Dimension, want, v.Kind, v.String())
			}
			values = append(values, v)
		}
		slices.SortFunc(values, models.CompareValues)
		values = slices.Compact(values)
		out = append(out, models.Filter{Dimension: f.Dimension, Values: values})
	}
	slices.SortStableFunc(out, func(a, b models.Filter) int {
		return int(a.Dimension) - int(b.Dimension)
	})
	return out, nil
}

func canonicalGroupBy(dims []models.Dimension) ([]models.Dimension, error) {
	out := make([]models.Dimension, 0, len(dims))
	for _, d := range dims {
		if !d.Valid() {
			return nil, fmt.Errorf("%w: dimension #%d", ErrUnknownField, d)
		}
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	return out, nil
}

func canonicalSort(s *models.Sort) error {
	if s == nil {
		return nil
	}
	if s.Field.IsMeasure {
		if int(s.Field.Measure) >= models.NumMeasures {
			return fmt.Errorf("%w: measure #%d", ErrUnknownField, s.Field.Measure)
		}
		return nil
	}
	if !s.Field.Dimension.Valid() {
		return fmt.Errorf("%w: dimension #%d", ErrUnknownField, s.Field.Dimension)
	}
	return nil
}

// cacheParams is the serialized form of an analyze request. The dataset
// version keeps a result computed against an older snapshot from being
// served after a reload.
type cacheParams struct {
	Version uint64          `json:"dataset_version"`
	Filters []models.Filter `json:"filters"`
	GroupBy []string        `json:"group_by"`
	Limit   int             `json:"limit"`
}

func newCacheParams(version uint64, filters []models.Filter, groupBy []models.Dimension, limit int) cacheParams {
	names := make([]string, len(groupBy))
	for i, d := range groupBy {
		names[i] = d.String()
	}
	return cacheParams{Version: version, Filters: filters, GroupBy: names, Limit: limit}
}
