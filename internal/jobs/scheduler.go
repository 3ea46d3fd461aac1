package jobs

import (
	"database/sql"
	"fmt"
	"log"

	"StayLedger/internal/logger"
	"StayLedger/internal/serviceiface"
)

type CronService struct {
	config map[string]interface{}
	db     *sql.DB
}

func NewCronService(cfg map[string]interface{}, db *sql.DB) serviceiface.Service {
	return &CronService{
		config: cfg,
		db:     db,
	}
}

func (s *CronService) Name() string {
	return "cron"
}

func (s *CronService) Start() error {
	scanConfig := NewDefaultLeakageScanConfig()

	// services.yaml overrides env/defaults when present.
	if s.config != nil {
		if schedule, ok := s.config["leakage_scan_schedule"].(string); ok && schedule != "" {
			scanConfig.Schedule = schedule
		}
		if days, ok := s.config["leakage_scan_days"].(int); ok && days > 0 {
			scanConfig.LookbackDays = days
		}
		if pct, ok := s.config["leakage_alert_percent"].(float64); ok && pct > 0 {
			scanConfig.AlertPercent = pct
		}
	}

	if err := RunLeakageScanScheduler(scanConfig, s.db); err != nil {
		return fmt.Errorf("failed to start leakage scan scheduler: %v", err)
	}

	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit("Cron service started with leakage scan")
	}
	log.Println("Cron service started, leakage scan scheduled")
	return nil
}

func (s *CronService) Stop() error {
	return nil
}
