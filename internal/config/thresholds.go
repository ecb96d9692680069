package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
)

// thresholdsFile is the on-disk layout. Ranges left out of the file keep
// their defaults.
type thresholdsFile struct {
	Thresholds map[string]*models.Range `yaml:"thresholds"`
}

// LoadThresholds reads anomaly ranges from a YAML file. A missing file yields
// the defaults.
//
//	thresholds:
//	  matured_loss_ratio_percent: {min: 0, max: 90}
func LoadThresholds(path string) (models.Thresholds, error) {
	t := models.DefaultThresholds()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("failed to read thresholds file: %w", err)
	}
	return ParseThresholds(data)
}

// ParseThresholds decodes YAML threshold overrides on top of the defaults.
func ParseThresholds(data []byte) (models.Thresholds, error) {
	t := models.DefaultThresholds()
	var file thresholdsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return t, fmt.Errorf("failed to parse thresholds file: %w", err)
	}

	targets := map[string]*models.Range{
		"variable_cost_ratio_percent":        &t.VariableCostRatio,
		"matured_loss_ratio_percent":         &t.MaturedLossRatio,
		"expense_ratio_percent":              &t.ExpenseRatio,
		"marginal_contribution_rate_percent": &t.MarginalContributionRate,
	}
	for name, r := range file.Thresholds {
		dst, ok := targets[name]
		if !ok {
			return t, fmt.Errorf("unknown threshold %q", name)
		}
		if r == nil {
			continue
		}
		if r.Min > r.Max {
			return t, fmt.Errorf("threshold %s has min %v above max %v", name, r.Min, r.Max)
		}
		*dst = *r
	}
	return t, nil
}
