package recon

import (
	"database/sql"

	"StayLedger/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ReconService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
	db     *sql.DB
}

func NewReconService(cfg map[string]interface{}, pool *pgxpool.Pool, db *sql.DB) serviceiface.Service {
	return &ReconService{config: cfg, pool: pool, db: db}
}

func (s *ReconService) Name() string {
	return "recon"
}

func (s *ReconService) Start() error {
	go StartReconService(s.config, s.pool, s.db)
	return nil
}

func (s *ReconService) Stop() error {
	return nil
}
