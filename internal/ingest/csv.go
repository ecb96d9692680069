// Package ingest turns exported policy spreadsheets (CSV) into typed records.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
)

// ErrMissingColumns is returned when the header lacks a required column.
var ErrMissingColumns = errors.New("missing required columns")

// RowError describes a problem with one data row. Row numbers are 1-based
// and count the header as row 1, matching what a spreadsheet shows.
type RowError struct {
	Row     int
	Field   string
	Message string
}

func (e RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Message)
	}
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
}

// Result is the outcome of parsing one file.
type Result struct {
	Records []models.Record
	// Rejected rows failed validation and were skipped.
	Rejected []RowError
	// Warnings were recovered locally, e.g. an unparsable amount read as 0.
	Warnings []RowError
	Rows     int
}

// row is the validated shape of one CSV line before conversion.
type row struct {
	SnapshotDate    string `csv:"snapshot_date" validate:"required"`
	PolicyStartYear *int64 `csv:"policy_start_year" validate:"omitempty,min=1990,max=2100"`
	WeekNumber      *int64 `csv:"week_number" validate:"omitempty,min=1,max=53"`

	SignedPremium        float64 `csv:"signed_premium_yuan" validate:"min=0"`
	MaturedPremium       float64 `csv:"matured_premium_yuan" validate:"min=0"`
	CommercialPremium    float64 `csv:"commercial_premium_before_discount_yuan" validate:"min=0"`
	PolicyCount          float64 `csv:"policy_count" validate:"min=0"`
	ClaimCaseCount       float64 `csv:"claim_case_count" validate:"min=0"`
	ReportedClaimPayment float64 `csv:"reported_claim_payment_yuan" validate:"min=0"`
	ExpenseAmount        float64 `csv:"expense_amount_yuan" validate:"min=0"`
	MarginalContribution float64 `csv:"marginal_contribution_amount_yuan"`
	VariableCostAmount   float64 `csv:"variable_cost_amount_yuan" validate:"min=0"`
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("csv"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}()

// requiredColumns must appear in the header.
var requiredColumns = []string{models.DimSnapshotDate.String(), models.MeasureSignedPremium.String()}

// ParseFile parses the CSV file at path.
func ParseFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open import file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ParseCSV(f)
}

// ParseCSV reads a header row followed by data rows. Columns are matched by
// field identifier, case-insensitively; unknown columns are ignored and
// missing optional columns read as null or zero.
func ParseCSV(r io.Reader) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumns)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := mapHeader(header)
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	res := &Result{}
	line := 1
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			res.Rejected = append(res.Rejected, RowError{Row: line, Message: err.Error()})
			continue
		}
		if blank(fields) {
			continue
		}
		res.Rows++
		rec, ok := parseRow(fields, cols, line, res)
		if ok {
			res.Records = append(res.Records, rec)
		}
	}
	return res, nil
}

func mapHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func cell(fields []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

func parseRow(fields []string, cols map[string]int, line int, res *Result) (models.Record, bool) {
	var rec models.Record
	var rejected bool
	reject := func(field, msg string) {
		res.Rejected = append(res.Rejected, RowError{Row: line, Field: field, Message: msg})
		rejected = true
	}

	for _, d := range models.AllDimensions() {
		v, err := d.ParseValue(cell(fields, cols, d.String()))
		if err != nil {
			reject(d.String(), err.Error())
			continue
		}
		rec.Dims[d] = v
	}
	for _, m := range models.AllMeasures() {
		raw := cell(fields, cols, m.String())
		amount, err := parseAmount(raw)
		if err != nil {
			res.Warnings = append(res.Warnings, RowError{Row: line, Field: m.String(),
				Message: fmt.Sprintf("unparsable amount %q read as 0", raw)})
		}
		rec.Amounts[m] = amount
	}
	if rejected {
		return rec, false
	}

	if err := validate.Struct(toRow(&rec)); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				reject(fe.Field(), describe(fe))
			}
		} else {
			reject("", err.Error())
		}
		return rec, false
	}
	return rec, true
}

func toRow(rec *models.Record) row {
	r := row{
		SnapshotDate:         rec.Dims[models.DimSnapshotDate].Str,
		SignedPremium:        rec.Amounts[models.MeasureSignedPremium],
		MaturedPremium:       rec.Amounts[models.MeasureMaturedPremium],
		CommercialPremium:    rec.Amounts[models.MeasureCommercialPremiumBeforeDiscount],
		PolicyCount:          rec.Amounts[models.MeasurePolicyCount],
		ClaimCaseCount:       rec.Amounts[models.MeasureClaimCaseCount],
		ReportedClaimPayment: rec.Amounts[models.MeasureReportedClaimPayment],
		ExpenseAmount:        rec.Amounts[models.MeasureExpenseAmount],
		MarginalContribution: rec.Amounts[models.MeasureMarginalContributionAmount],
		VariableCostAmount:   rec.Amounts[models.MeasureVariableCostAmount],
	}
	if v := rec.Dims[models.DimPolicyStartYear]; !v.IsNull() {
		r.PolicyStartYear = &v.Int
	}
	if v := rec.Dims[models.DimWeekNumber]; !v.IsNull() {
		r.WeekNumber = &v.Int
	}
	return r
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "value is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// parseAmount reads a number that may carry thousands separators or a
// currency sign. Empty cells are zero.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, nil
	}
	s = strings.NewReplacer(",", "", "¥", "", "￥", "", " ", "").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("amount %q is not finite", s)
	}
	return v, nil
}
