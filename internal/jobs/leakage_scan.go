package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"StayLedger/api/recon"
	"StayLedger/internal/config"
	"StayLedger/internal/logger"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// LeakageScanConfig holds the nightly leakage scan settings.
type LeakageScanConfig struct {
	Schedule     string  // cron schedule, default 02:00 daily
	LookbackDays int     // how far back to recompute
	AlertPercent float64 // shortfall percent worth an audit entry
	TimeZone     string
}

func NewDefaultLeakageScanConfig() *LeakageScanConfig {
	cfg := &LeakageScanConfig{
		Schedule:     config.DefaultLeakageScanSchedule,
		LookbackDays: 45,
		AlertPercent: config.DefaultLeakageAlertPercent,
		TimeZone:     config.DefaultTimeZone,
	}
	if s := os.Getenv("LEAKAGE_SCAN_SCHEDULE"); s != "" {
		cfg.Schedule = s
	}
	if d := os.Getenv("LEAKAGE_SCAN_DAYS"); d != "" {
		if n, err := strconv.Atoi(d); err == nil && n > 0 {
			cfg.LookbackDays = n
		}
	}
	if p := os.Getenv("LEAKAGE_ALERT_PERCENT"); p != "" {
		if f, err := strconv.ParseFloat(p, 64); err == nil && f > 0 {
			cfg.AlertPercent = f
		}
	}
	return cfg
}

// RunLeakageScanScheduler schedules the nightly recomputation of leakage
// over recently confirmed payouts. Matching never runs here; this only reads
// persisted state and flags shortfalls the import itself could not see yet
// (a booking re-priced after confirm, a bank line edited by hand).
func RunLeakageScanScheduler(cfg *LeakageScanConfig, db *sql.DB) error {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.Schedule, func() {
		if err := scanLeakage(cfg, db); err != nil {
			log.Printf("[LEAKAGE-SCAN] failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid leakage scan schedule %q: %w", cfg.Schedule, err)
	}
	c.Start()
	log.Printf("[LEAKAGE-SCAN] scheduled %q, lookback %d days", cfg.Schedule, cfg.LookbackDays)
	return nil
}

func scanLeakage(cfg *LeakageScanConfig, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT organisation_id, property_id
		FROM payouts
		WHERE payout_date >= now() - make_interval(days => $1)
	`, cfg.LookbackDays)
	if err != nil {
		return err
	}
	type scope struct{ orgID, propertyID string }
	var scopes []scope
	for rows.Next() {
		var s scope
		if err := rows.Scan(&s.orgID, &s.propertyID); err != nil {
			rows.Close()
			return err
		}
		scopes = append(scopes, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	reporter := recon.NewReporter(db)
	threshold := decimal.NewFromFloat(cfg.AlertPercent)
	to := time.Now()
	from := to.AddDate(0, 0, -cfg.LookbackDays)

	flagged := 0
	for _, s := range scopes {
		reports, err := reporter.LeakageByProperty(ctx, s.orgID, s.propertyID, from, to)
		if err != nil {
			log.Printf("[LEAKAGE-SCAN] property %s: %v", s.propertyID, err)
			continue
		}
		for _, r := range reports {
			if !r.Report.Shortfall || r.Report.LeakagePercent.LessThan(threshold) {
				continue
			}
			flagged++
			if logger.GlobalLogger != nil {
				logger.GlobalLogger.LogAudit(fmt.Sprintf(
					"leakage shortfall: property=%s payout=%s platform=%s expected=%s actual=%s leakage=%s (%s%%)",
					s.propertyID, r.StatementKey, r.Platform,
					r.Report.ExpectedAmount.StringFixed(2), r.Report.ActualAmount.StringFixed(2),
					r.Report.Leakage.StringFixed(2), r.Report.LeakagePercent.StringFixed(2)))
			}
		}
	}
	log.Printf("[LEAKAGE-SCAN] done: %d properties, %d shortfalls flagged", len(scopes), flagged)
	return nil
}
