package recon

import (
	"context"
	"database/sql"
	"time"

	"StayLedger/api/recon/parser"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// PayoutLeakage is one row of the on-demand leakage report.
type PayoutLeakage struct {
	PayoutID     string          `json:"payout_id"`
	StatementKey string          `json:"statement_key"`
	Platform     parser.Platform `json:"platform"`
	PayoutDate   time.Time       `json:"payout_date"`
	Report       LeakageReport   `json:"report"`
}

// Reporter reads persisted payouts back into canonical records and runs the
// leakage calculation over them.
type Reporter struct {
	db *sql.DB
}

func NewReporter(db *sql.DB) *Reporter {
	return &Reporter{db: db}
}

// LeakageByProperty computes leakage for every payout of the property in the
// date range.
func (r *Reporter) LeakageByProperty(ctx context.Context, orgID, propertyID string, from, to time.Time) ([]PayoutLeakage, error) {
	payouts, err := r.loadPayouts(ctx, orgID, propertyID, from, to)
	if err != nil {
		return nil, err
	}

	var bookingIDs []string
	for _, p := range payouts {
		for _, it := range p.payout.LineItems {
			if it.MatchedBookingID != "" {
				bookingIDs = append(bookingIDs, it.MatchedBookingID)
			}
		}
	}
	bookingNet, err := r.loadBookingNets(ctx, bookingIDs)
	if err != nil {
		return nil, err
	}

	out := make([]PayoutLeakage, 0, len(payouts))
	for _, p := range payouts {
		out = append(out, PayoutLeakage{
			PayoutID:     p.id,
			StatementKey: p.payout.StatementKey,
			Platform:     p.payout.Platform,
			PayoutDate:   p.payout.PayoutDate,
			Report:       CalculateLeakage(p.payout, bookingNet),
		})
	}
	return out, nil
}

type storedPayoutRow struct {
	id     string
	payout parser.Payout
}

func (r *Reporter) loadPayouts(ctx context.Context, orgID, propertyID string, from, to time.Time) ([]storedPayoutRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.statement_key, p.platform, p.payout_date, p.net_amount,
		       i.id, COALESCE(i.external_ref, ''), COALESCE(i.net_amount, 0),
		       COALESCE(i.is_matched, false), COALESCE(i.matched_booking_id::text, '')
		FROM payouts p
		LEFT JOIN payout_items i ON i.payout_id = p.id
		WHERE p.organisation_id = $1 AND p.property_id = $2
		  AND p.payout_date >= $3 AND p.payout_date <= $4
		ORDER BY p.payout_date, p.id
	`, orgID, propertyID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storedPayoutRow
	index := make(map[string]int)
	for rows.Next() {
		var (
			id, key, platform, ref, bookingID string
			itemID                            sql.NullString
			payoutDate                        sql.NullTime
			netStr, itemNetStr                string
			isMatched                         bool
		)
		if err := rows.Scan(&id, &key, &platform, &payoutDate, &netStr, &itemID, &ref, &itemNetStr, &isMatched, &bookingID); err != nil {
			return nil, err
		}
		pos, ok := index[id]
		if !ok {
			net, _ := decimal.NewFromString(netStr)
			p := parser.Payout{
				StatementKey: key,
				Platform:     parser.Platform(platform),
				NetAmount:    net,
			}
			if payoutDate.Valid {
				p.PayoutDate = payoutDate.Time
			}
			out = append(out, storedPayoutRow{id: id, payout: p})
			pos = len(out) - 1
			index[id] = pos
		}
		// The join column decides item presence; a payout without items
		// yields one row with a NULL item id.
		if itemID.Valid {
			itemNet, _ := decimal.NewFromString(itemNetStr)
			out[pos].payout.LineItems = append(out[pos].payout.LineItems, parser.PayoutLineItem{
				ExternalRef:      ref,
				NetAmount:        itemNet,
				IsMatched:        isMatched,
				MatchedBookingID: bookingID,
			})
		}
	}
	return out, rows.Err()
}

func (r *Reporter) loadBookingNets(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	nets := make(map[string]decimal.Decimal)
	if len(ids) == 0 {
		return nets, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, net_amount FROM bookings WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, netStr string
		if err := rows.Scan(&id, &netStr); err != nil {
			return nil, err
		}
		net, err := decimal.NewFromString(netStr)
		if err != nil {
			continue
		}
		nets[id] = net
	}
	return nets, rows.Err()
}
