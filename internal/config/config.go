package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTimeZone = "Asia/Jakarta"

	// OTA payout dates and the bank value date for the transfer commonly
	// differ by a few business days.
	DefaultMatchWindowDays = 4

	// Bank amounts can drift from statement amounts by transfer rounding.
	DefaultAmountTolerance = "0.10"

	// Leakage above this fraction of expected revenue is flagged by the
	// nightly scan.
	DefaultLeakageAlertPercent = 1.0

	DefaultLeakageScanSchedule = "0 2 * * *"
)

// ReconConfig carries the tunables the matching engine and leakage scan are
// built from. Everything has a working default; the YAML file only overrides.
type ReconConfig struct {
	MatchWindowDays     int                 `yaml:"match_window_days"`
	AmountTolerance     string              `yaml:"amount_tolerance"`
	LeakageAlertPercent float64             `yaml:"leakage_alert_percent"`
	PlatformKeywords    map[string][]string `yaml:"platform_keywords"`
	CommissionRates     map[string]float64  `yaml:"commission_rates"`
	Categories          map[string][]string `yaml:"categories"`
}

// DefaultReconConfig returns the built-in platform economics: the bank
// description aliases each OTA transfers under, and their headline
// commission rates.
func DefaultReconConfig() *ReconConfig {
	return &ReconConfig{
		MatchWindowDays:     DefaultMatchWindowDays,
		AmountTolerance:     DefaultAmountTolerance,
		LeakageAlertPercent: DefaultLeakageAlertPercent,
		PlatformKeywords: map[string][]string{
			"booking": {"booking.com", "booking com", "bookingcom", "bv booking"},
			"airbnb":  {"airbnb", "airbnb payments"},
			"agoda":   {"agoda", "agoda company", "agoda international"},
		},
		CommissionRates: map[string]float64{
			"booking": 15.0,
			"airbnb":  3.0,
			"agoda":   17.0,
		},
	}
}

// LoadReconConfig reads the YAML override file when present and merges it
// over the defaults. A missing file is not an error.
func LoadReconConfig(path string) (*ReconConfig, error) {
	cfg := DefaultReconConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	var file ReconConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if file.MatchWindowDays > 0 {
		cfg.MatchWindowDays = file.MatchWindowDays
	}
	if file.AmountTolerance != "" {
		cfg.AmountTolerance = file.AmountTolerance
	}
	if file.LeakageAlertPercent > 0 {
		cfg.LeakageAlertPercent = file.LeakageAlertPercent
	}
	for k, v := range file.PlatformKeywords {
		cfg.PlatformKeywords[k] = v
	}
	for k, v := range file.CommissionRates {
		cfg.CommissionRates[k] = v
	}
	if file.Categories != nil {
		cfg.Categories = file.Categories
	}
	return cfg, nil
}
