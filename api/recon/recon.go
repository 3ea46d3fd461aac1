package recon

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"

	"StayLedger/api/booking"
	"StayLedger/internal/config"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultPort = 6301

// StartReconService wires the reconciliation workflow and serves its
// endpoints. Runs in its own goroutine, one router, one port.
func StartReconService(cfg map[string]interface{}, pool *pgxpool.Pool, db *sql.DB) {
	configPath := os.Getenv("RECON_CONFIG")
	if configPath == "" {
		if p, ok := cfg["config_path"].(string); ok {
			configPath = p
		}
	}
	rc, err := config.LoadReconConfig(configPath)
	if err != nil {
		log.Printf("Recon config %s unreadable (%v), using defaults", configPath, err)
		rc = config.DefaultReconConfig()
	}

	wf := NewWorkflow(NewPGStore(pool), booking.NewPGFinder(pool), rc)
	rep := NewReporter(db)

	router := mux.NewRouter()
	router.HandleFunc("/recon/import/preview", ImportPreviewHandler(wf)).Methods("POST")
	router.HandleFunc("/recon/import/confirm", ImportConfirmHandler(wf)).Methods("POST")
	router.HandleFunc("/recon/leakage", LeakageReportHandler(rep)).Methods("GET")

	port := defaultPort
	if p, ok := cfg["port"].(int); ok && p > 0 {
		port = p
	}
	log.Printf("Recon Service started on :%d", port)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), router); err != nil {
		log.Fatalf("Recon Service failed: %v", err)
	}
}
