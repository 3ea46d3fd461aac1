package recon

import (
	"context"
	"errors"
	"strings"
	"time"

	"StayLedger/api/recon/match"
	"StayLedger/api/recon/parser"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrDuplicatePayout is the authoritative "already exists" signal: the
// unique constraint on (organisation_id, property_id, platform,
// statement_key) fired inside the confirm transaction. Trusting the
// constraint instead of a prior read closes the preview->confirm race.
var ErrDuplicatePayout = errors.New("payout already recorded for this statement key")

// Store is the durable side of reconciliation. Bookings, bank transactions
// and the transaction ledger are owned elsewhere; reconciliation only reads
// them, except for the one field it may flip: a bank transaction's status.
type Store interface {
	// CandidateBankTransactions returns the property's unreconciled income
	// transactions.
	CandidateBankTransactions(ctx context.Context, orgID, propertyID string) ([]parser.BankTransaction, error)

	// ExistingPayouts returns persisted payout summaries for the platform,
	// feeding the preview idempotency index.
	ExistingPayouts(ctx context.Context, orgID, propertyID string, platform parser.Platform) ([]match.StoredPayout, error)

	// SavePayout atomically writes the payout row, all its line items, and
	// (when bankTxnID is set) flips that bank transaction to reconciled.
	// All three succeed or none do. Returns ErrDuplicatePayout when the
	// statement key is already persisted.
	SavePayout(ctx context.Context, orgID, propertyID string, p parser.Payout, bankTxnID string) (string, error)

	// FindDuplicates implements parser.DuplicateChecker for commit-mode
	// bank imports.
	FindDuplicates(ctx context.Context, orgID, propertyID string, date time.Time, amount decimal.Decimal, description string) []parser.DuplicateCandidate

	// SaveTransactions appends classified bank/bookkeeping rows to the
	// ledger.
	SaveTransactions(ctx context.Context, orgID, propertyID string, txs []parser.ParsedTransaction) (int, error)
}

// PGStore is the pgx implementation of Store.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) CandidateBankTransactions(ctx context.Context, orgID, propertyID string) ([]parser.BankTransaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, amount, txn_date, description, status
		FROM bank_transactions
		WHERE organisation_id = $1 AND property_id = $2
		  AND direction = 'income' AND status = 'unreconciled'
		ORDER BY txn_date, id
	`, orgID, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []parser.BankTransaction
	for rows.Next() {
		var tx parser.BankTransaction
		if err := rows.Scan(&tx.ID, &tx.Amount, &tx.Date, &tx.Description, &tx.Status); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *PGStore) ExistingPayouts(ctx context.Context, orgID, propertyID string, platform parser.Platform) ([]match.StoredPayout, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT statement_key, platform, payout_date, net_amount
		FROM payouts
		WHERE organisation_id = $1 AND property_id = $2 AND platform = $3
	`, orgID, propertyID, string(platform))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []match.StoredPayout
	for rows.Next() {
		var p match.StoredPayout
		var platformStr string
		if err := rows.Scan(&p.StatementKey, &platformStr, &p.PayoutDate, &p.NetAmount); err != nil {
			return nil, err
		}
		p.Platform = parser.Platform(platformStr)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) SavePayout(ctx context.Context, orgID, propertyID string, p parser.Payout, bankTxnID string) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	payoutID := uuid.New().String()
	_, err = tx.Exec(ctx, `
		INSERT INTO payouts (id, organisation_id, property_id, platform, statement_key,
			gross_amount, net_amount, total_commission, payout_date, period_start, period_end,
			bank_transaction_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULLIF($12,''),now())
	`, payoutID, orgID, propertyID, string(p.Platform), p.StatementKey,
		p.GrossAmount, p.NetAmount, p.TotalCommission, nullableDate(p.PayoutDate),
		nullableDate(p.PeriodStart), nullableDate(p.PeriodEnd), bankTxnID)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicatePayout
		}
		return "", err
	}

	if len(p.LineItems) > 0 {
		itemRows := make([][]interface{}, 0, len(p.LineItems))
		for _, it := range p.LineItems {
			itemRows = append(itemRows, []interface{}{
				uuid.New().String(), payoutID, it.ExternalRef, it.GuestName,
				nullableDate(it.CheckIn), nullableDate(it.CheckOut),
				it.GrossAmount, it.Commission, it.NetAmount,
				it.IsMatched, nullIfEmpty(it.MatchedBookingID),
			})
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"payout_items"},
			[]string{"id", "payout_id", "external_ref", "guest_name", "check_in", "check_out",
				"gross_amount", "commission", "net_amount", "is_matched", "matched_booking_id"},
			pgx.CopyFromRows(itemRows),
		)
		if err != nil {
			return "", err
		}
	}

	if bankTxnID != "" {
		_, err = tx.Exec(ctx, `
			UPDATE bank_transactions SET status = 'reconciled'
			WHERE id = $1 AND organisation_id = $2 AND property_id = $3
		`, bankTxnID, orgID, propertyID)
		if err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return payoutID, nil
}

func (s *PGStore) FindDuplicates(ctx context.Context, orgID, propertyID string, date time.Time, amount decimal.Decimal, description string) []parser.DuplicateCandidate {
	rows, err := s.pool.Query(ctx, `
		SELECT id, description
		FROM transactions
		WHERE organisation_id = $1 AND property_id = $2
		  AND txn_date::date = $3::date AND amount = $4
	`, orgID, propertyID, date, amount)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []parser.DuplicateCandidate
	for rows.Next() {
		var c parser.DuplicateCandidate
		if err := rows.Scan(&c.TransactionID, &c.Description); err != nil {
			continue
		}
		if descriptionSimilar(description, c.Description) {
			out = append(out, c)
		}
	}
	return out
}

func (s *PGStore) SaveTransactions(ctx context.Context, orgID, propertyID string, txs []parser.ParsedTransaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}
	copyRows := make([][]interface{}, 0, len(txs))
	for _, t := range txs {
		copyRows = append(copyRows, []interface{}{
			uuid.New().String(), orgID, propertyID, t.Date, t.Description,
			t.Amount, string(t.Direction), t.Category, t.SourceHint,
		})
	}
	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"transactions"},
		[]string{"id", "organisation_id", "property_id", "txn_date", "description",
			"amount", "direction", "category", "source_hint"},
		pgx.CopyFromRows(copyRows),
	)
	return int(n), err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullableDate(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// descriptionSimilar is the duplicate-candidate similarity check: after
// lower-casing, one description containing the other counts, as does sharing
// more than half of the shorter description's words.
func descriptionSimilar(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	if len(wordsA) > len(wordsB) {
		wordsA, wordsB = wordsB, wordsA
	}
	set := make(map[string]struct{}, len(wordsB))
	for _, w := range wordsB {
		set[w] = struct{}{}
	}
	shared := 0
	for _, w := range wordsA {
		if _, ok := set[w]; ok {
			shared++
		}
	}
	return shared*2 > len(wordsA)
}
