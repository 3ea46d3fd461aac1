package match

import (
	"time"

	"StayLedger/api/recon/parser"

	"github.com/shopspring/decimal"
)

// StoredPayout is the slice of a persisted payout the idempotency check
// needs.
type StoredPayout struct {
	StatementKey string
	Platform     parser.Platform
	PayoutDate   time.Time
	NetAmount    decimal.Decimal
}

// Index answers "is this payout already persisted?". Exact statement keys
// are authoritative; payouts with synthesized keys fall back to a platform +
// date-window + amount-window comparison, since two exports of the same
// statement can synthesize slightly different keys.
//
// This is a read-then-act check and therefore not race-safe across two
// concurrent confirms; the storage uniqueness constraint is the real guard.
type Index struct {
	keys     map[string]struct{}
	byWindow map[parser.Platform][]StoredPayout
}

func NewIndex(existing []StoredPayout) *Index {
	idx := &Index{
		keys:     make(map[string]struct{}, len(existing)),
		byWindow: make(map[parser.Platform][]StoredPayout),
	}
	for _, p := range existing {
		if p.StatementKey != "" {
			idx.keys[p.StatementKey] = struct{}{}
		}
		idx.byWindow[p.Platform] = append(idx.byWindow[p.Platform], p)
	}
	return idx
}

func (idx *Index) Contains(p parser.Payout, cfg Config) bool {
	if _, ok := idx.keys[p.StatementKey]; ok {
		return true
	}
	if !p.Synthetic {
		return false
	}
	window := time.Duration(cfg.WindowDays) * 24 * time.Hour
	for _, stored := range idx.byWindow[p.Platform] {
		if stored.NetAmount.Sub(p.NetAmount).Abs().GreaterThanOrEqual(cfg.AmountTolerance) {
			continue
		}
		if dateDistance(stored.PayoutDate, p.PayoutDate) <= window {
			return true
		}
	}
	return false
}
