// Package match pairs parsed OTA payouts with candidate bank transactions.
//
// Matching is tiered, not scored: the first tier that produces any candidate
// wins. Within a tier the pick is deterministic (closest date to the payout,
// then lowest transaction id) so repository iteration order never decides a
// match.
package match

import (
	"strings"
	"time"

	"StayLedger/api/recon/parser"
	"StayLedger/internal/config"

	"github.com/shopspring/decimal"
)

// Confidence grades how trustworthy an automatic match is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceNone   Confidence = "NONE"
)

// Match methods reported back to the caller.
const (
	MethodDescriptor        = "descriptor"
	MethodAmountDateKeyword = "amount_date_keyword"
	MethodNone              = "none"
)

// Result is the outcome of matching one payout against the candidate pool.
// It carries no persisted identity; confirm consumes it as-is.
type Result struct {
	PayoutKey         string     `json:"payout_key"`
	BankTransactionID string     `json:"bank_transaction_id,omitempty"`
	Confidence        Confidence `json:"confidence"`
	Method            string     `json:"method"`
	AlreadyReconciled bool       `json:"already_reconciled"`
}

// Config is injected rather than baked into conditionals so platform
// economics can change without code edits.
type Config struct {
	WindowDays      int
	AmountTolerance decimal.Decimal
	Keywords        map[parser.Platform][]string
}

// ConfigFrom lifts the app-level recon configuration into engine terms.
func ConfigFrom(rc *config.ReconConfig) Config {
	tol, err := decimal.NewFromString(rc.AmountTolerance)
	if err != nil || tol.IsZero() {
		tol, _ = decimal.NewFromString(config.DefaultAmountTolerance)
	}
	keywords := make(map[parser.Platform][]string, len(rc.PlatformKeywords))
	for platform, kws := range rc.PlatformKeywords {
		keywords[parser.Platform(platform)] = kws
	}
	return Config{
		WindowDays:      rc.MatchWindowDays,
		AmountTolerance: tol,
		Keywords:        keywords,
	}
}

// Engine matches one payout at a time against a caller-supplied candidate
// pool. It holds no state between calls and is safe for concurrent use.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = config.DefaultMatchWindowDays
	}
	if cfg.AmountTolerance.IsZero() {
		cfg.AmountTolerance, _ = decimal.NewFromString(config.DefaultAmountTolerance)
	}
	return &Engine{cfg: cfg}
}

// Match returns the best bank transaction for the payout, or a NONE result.
// Candidates are expected to be pre-filtered to the right property, income
// direction, and unreconciled status.
func (e *Engine) Match(p parser.Payout, candidates []parser.BankTransaction, existing *Index) Result {
	res := Result{
		PayoutKey:  p.StatementKey,
		Confidence: ConfidenceNone,
		Method:     MethodNone,
	}
	if existing != nil && existing.Contains(p, e.cfg) {
		res.AlreadyReconciled = true
	}

	// Tier 1: vendor-provided statement descriptor inside the bank
	// description. Exact and stable, so it is preferred outright.
	if !p.Synthetic && p.StatementKey != "" {
		descriptor := strings.ToLower(p.StatementKey)
		var hits []parser.BankTransaction
		for _, tx := range candidates {
			if strings.Contains(strings.ToLower(tx.Description), descriptor) {
				hits = append(hits, tx)
			}
		}
		if best, ok := e.pick(p, hits); ok {
			res.BankTransactionID = best.ID
			res.Confidence = ConfidenceHigh
			res.Method = MethodDescriptor
			return res
		}
	}

	// Tier 2: amount within tolerance, date within the window, and the bank
	// description naming the platform.
	var hits []parser.BankTransaction
	for _, tx := range candidates {
		if !e.amountClose(tx.Amount, p.NetAmount) {
			continue
		}
		if !e.dateClose(tx.Date, p.PayoutDate) {
			continue
		}
		if !e.hasKeyword(p.Platform, tx.Description) {
			continue
		}
		hits = append(hits, tx)
	}
	if best, ok := e.pick(p, hits); ok {
		res.BankTransactionID = best.ID
		res.Confidence = ConfidenceMedium
		res.Method = MethodAmountDateKeyword
	}
	return res
}

func (e *Engine) amountClose(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(e.cfg.AmountTolerance)
}

func (e *Engine) dateClose(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(e.cfg.WindowDays)*24*time.Hour
}

func (e *Engine) hasKeyword(platform parser.Platform, description string) bool {
	desc := strings.ToLower(description)
	for _, kw := range e.cfg.Keywords[platform] {
		if strings.Contains(desc, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// pick applies the tie-break: smallest date distance to the payout date,
// then lowest id.
func (e *Engine) pick(p parser.Payout, hits []parser.BankTransaction) (parser.BankTransaction, bool) {
	if len(hits) == 0 {
		return parser.BankTransaction{}, false
	}
	best := hits[0]
	bestDiff := dateDistance(best.Date, p.PayoutDate)
	for _, tx := range hits[1:] {
		diff := dateDistance(tx.Date, p.PayoutDate)
		if diff < bestDiff || (diff == bestDiff && tx.ID < best.ID) {
			best = tx
			bestDiff = diff
		}
	}
	return best, true
}

func dateDistance(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
