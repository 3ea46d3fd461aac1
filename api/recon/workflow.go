package recon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"StayLedger/api/booking"
	"StayLedger/api/recon/match"
	"StayLedger/api/recon/parser"
	"StayLedger/internal/config"

	"github.com/shopspring/decimal"
)

// BadFileError is a structural parse failure (header not found, nothing
// parseable). The caller can only fix it by re-exporting the file, so the
// message is meant to be shown verbatim.
type BadFileError struct {
	Msg string
}

func (e *BadFileError) Error() string { return e.Msg }

// Workflow owns the two-phase import: Preview parses and matches without
// writing anything; Confirm persists the payouts the caller selected. The
// client holds the file and the selection between phases; no intermediate
// state lives server-side.
type Workflow struct {
	store    Store
	bookings booking.Finder
	engine   *match.Engine
	cfg      *config.ReconConfig
}

func NewWorkflow(store Store, bookings booking.Finder, cfg *config.ReconConfig) *Workflow {
	if cfg == nil {
		cfg = config.DefaultReconConfig()
	}
	return &Workflow{
		store:    store,
		bookings: bookings,
		engine:   match.NewEngine(match.ConfigFrom(cfg)),
		cfg:      cfg,
	}
}

// parseOptions translates the service configuration into parser options.
func (w *Workflow) parseOptions() parser.ParseOptions {
	rates := make(map[parser.Platform]float64, len(w.cfg.CommissionRates))
	for name, rate := range w.cfg.CommissionRates {
		rates[parser.Platform(name)] = rate
	}
	return parser.ParseOptions{
		Categories:      w.cfg.Categories,
		CommissionRates: rates,
	}
}

// PreviewResult is everything the caller needs to render the selection
// screen and drive a later confirm.
type PreviewResult struct {
	Platform     parser.Platform            `json:"platform"`
	Payouts      []parser.Payout            `json:"payouts,omitempty"`
	Matches      []match.Result             `json:"matches,omitempty"`
	Transactions []parser.ParsedTransaction `json:"transactions,omitempty"`
	SkippedRows  int                        `json:"skipped_rows"`
	Warnings     []string                   `json:"warnings,omitempty"`
	PeriodStart  time.Time                  `json:"period_start,omitempty"`
	PeriodEnd    time.Time                  `json:"period_end,omitempty"`
	TotalGross   decimal.Decimal            `json:"total_gross"`
	TotalNet     decimal.Decimal            `json:"total_net"`
	BookingCount int                        `json:"booking_count"`
}

// KeyOutcome reports what confirm did with one selected payout key, so the
// caller can retry exactly the failures.
type KeyOutcome struct {
	Key    string `json:"key"`
	Status string `json:"status"` // saved | duplicate | failed
	Reason string `json:"reason,omitempty"`
}

// ConfirmResult aggregates a confirm call. The period and totals cover the
// selected payouts (the saved ledger rows on the bank path), so the client
// can show the same summary it showed at preview without re-parsing.
type ConfirmResult struct {
	PayoutsCreated      int             `json:"payouts_created"`
	ItemsCreated        int             `json:"items_created"`
	ItemsMatched        int             `json:"items_matched"`
	TransactionsCreated int             `json:"transactions_created"`
	PeriodStart         time.Time       `json:"period_start,omitempty"`
	PeriodEnd           time.Time       `json:"period_end,omitempty"`
	TotalGross          decimal.Decimal `json:"total_gross"`
	TotalNet            decimal.Decimal `json:"total_net"`
	BookingCount        int             `json:"booking_count"`
	Outcomes            []KeyOutcome    `json:"results"`
	Warnings            []string        `json:"warnings,omitempty"`
}

// Preview runs the read-only pass. Safe to call repeatedly and concurrently;
// it never writes.
func (w *Workflow) Preview(ctx context.Context, orgID, propertyID string, platform parser.Platform, rows [][]string) (*PreviewResult, error) {
	if !parser.IsOTA(platform) {
		return w.previewLedger(platform, rows)
	}

	parsed := parser.Parse(platform, rows, w.parseOptions())
	if len(parsed.Payouts) == 0 && len(parsed.Errors) > 0 {
		return nil, &BadFileError{Msg: strings.Join(parsed.Errors, "; ")}
	}

	res := &PreviewResult{
		Platform:    platform,
		SkippedRows: parsed.SkippedRows,
		Warnings:    parsed.Errors,
		TotalGross:  decimal.Zero,
		TotalNet:    decimal.Zero,
	}

	candidates, err := w.store.CandidateBankTransactions(ctx, orgID, propertyID)
	if err != nil {
		return nil, fmt.Errorf("loading bank transactions: %w", err)
	}
	existing, err := w.store.ExistingPayouts(ctx, orgID, propertyID, platform)
	if err != nil {
		return nil, fmt.Errorf("loading existing payouts: %w", err)
	}
	idx := match.NewIndex(existing)

	for i := range parsed.Payouts {
		p := &parsed.Payouts[i]
		w.linkLineItems(ctx, orgID, propertyID, p)
		res.Matches = append(res.Matches, w.engine.Match(*p, candidates, idx))
		res.TotalGross = res.TotalGross.Add(p.GrossAmount)
		res.TotalNet = res.TotalNet.Add(p.NetAmount)
		res.BookingCount += len(p.LineItems)
		if res.PeriodStart.IsZero() || (!p.PeriodStart.IsZero() && p.PeriodStart.Before(res.PeriodStart)) {
			res.PeriodStart = p.PeriodStart
		}
		if p.PeriodEnd.After(res.PeriodEnd) {
			res.PeriodEnd = p.PeriodEnd
		}
	}
	res.Payouts = parsed.Payouts
	return res, nil
}

// previewLedger handles bank and bookkeeping formats. No duplicate checker
// is wired in preview, so parsing costs zero database round-trips per row.
func (w *Workflow) previewLedger(platform parser.Platform, rows [][]string) (*PreviewResult, error) {
	parsed := parser.Parse(platform, rows, w.parseOptions())
	if len(parsed.Transactions) == 0 && len(parsed.Errors) > 0 {
		return nil, &BadFileError{Msg: strings.Join(parsed.Errors, "; ")}
	}
	res := &PreviewResult{
		Platform:     platform,
		Transactions: parsed.Transactions,
		SkippedRows:  parsed.SkippedRows,
		Warnings:     parsed.Errors,
		TotalGross:   decimal.Zero,
		TotalNet:     decimal.Zero,
	}
	for _, t := range parsed.Transactions {
		if t.Direction == parser.Income {
			res.TotalGross = res.TotalGross.Add(t.Amount)
		}
		if res.PeriodStart.IsZero() || t.Date.Before(res.PeriodStart) {
			res.PeriodStart = t.Date
		}
		if t.Date.After(res.PeriodEnd) {
			res.PeriodEnd = t.Date
		}
	}
	res.TotalNet = res.TotalGross
	return res, nil
}

// Confirm runs the mutating pass. Each selected payout gets its own
// transaction: one bad payout never blocks the rest of the batch, and a
// half-written payout is never observable. Caller-supplied bank transaction
// ids are trusted, the caller saw them in preview; the duplicate statement
// key constraint inside SavePayout is what guards the stale-preview race.
func (w *Workflow) Confirm(ctx context.Context, orgID, propertyID string, platform parser.Platform, rows [][]string, selectedKeys []string, matchMap map[string]string) (*ConfirmResult, error) {
	if !parser.IsOTA(platform) {
		return w.confirmLedger(ctx, orgID, propertyID, platform, rows)
	}

	parsed := parser.Parse(platform, rows, w.parseOptions())
	if len(parsed.Payouts) == 0 && len(parsed.Errors) > 0 {
		return nil, &BadFileError{Msg: strings.Join(parsed.Errors, "; ")}
	}

	selected := make(map[string]struct{}, len(selectedKeys))
	for _, k := range selectedKeys {
		selected[k] = struct{}{}
	}

	res := &ConfirmResult{Warnings: parsed.Errors, TotalGross: decimal.Zero, TotalNet: decimal.Zero}
	seen := make(map[string]struct{}, len(selectedKeys))
	for i := range parsed.Payouts {
		p := &parsed.Payouts[i]
		if _, ok := selected[p.StatementKey]; !ok {
			continue
		}
		seen[p.StatementKey] = struct{}{}
		w.linkLineItems(ctx, orgID, propertyID, p)

		res.TotalGross = res.TotalGross.Add(p.GrossAmount)
		res.TotalNet = res.TotalNet.Add(p.NetAmount)
		res.BookingCount += len(p.LineItems)
		if res.PeriodStart.IsZero() || (!p.PeriodStart.IsZero() && p.PeriodStart.Before(res.PeriodStart)) {
			res.PeriodStart = p.PeriodStart
		}
		if p.PeriodEnd.After(res.PeriodEnd) {
			res.PeriodEnd = p.PeriodEnd
		}

		_, err := w.store.SavePayout(ctx, orgID, propertyID, *p, matchMap[p.StatementKey])
		switch {
		case err == nil:
			res.PayoutsCreated++
			res.ItemsCreated += len(p.LineItems)
			for _, it := range p.LineItems {
				if it.IsMatched {
					res.ItemsMatched++
				}
			}
			res.Outcomes = append(res.Outcomes, KeyOutcome{Key: p.StatementKey, Status: "saved"})
		case errors.Is(err, ErrDuplicatePayout):
			res.Outcomes = append(res.Outcomes, KeyOutcome{Key: p.StatementKey, Status: "duplicate", Reason: err.Error()})
		default:
			res.Outcomes = append(res.Outcomes, KeyOutcome{Key: p.StatementKey, Status: "failed", Reason: err.Error()})
		}
	}
	// A selected key the file no longer contains must still get an outcome;
	// the client would otherwise take silence for success.
	for _, k := range selectedKeys {
		if _, ok := seen[k]; !ok {
			res.Outcomes = append(res.Outcomes, KeyOutcome{Key: k, Status: "failed", Reason: "statement key not found in file"})
		}
	}
	return res, nil
}

// confirmLedger persists classified bank/bookkeeping rows, discarding rows
// that already look present in the ledger.
func (w *Workflow) confirmLedger(ctx context.Context, orgID, propertyID string, platform parser.Platform, rows [][]string) (*ConfirmResult, error) {
	opts := w.parseOptions()
	opts.Checker = &storeDuplicateChecker{ctx: ctx, store: w.store, orgID: orgID, propertyID: propertyID}
	parsed := parser.Parse(platform, rows, opts)
	if len(parsed.Transactions) == 0 && len(parsed.Errors) > 0 {
		return nil, &BadFileError{Msg: strings.Join(parsed.Errors, "; ")}
	}

	res := &ConfirmResult{Warnings: parsed.Errors, TotalGross: decimal.Zero, TotalNet: decimal.Zero}
	fresh := make([]parser.ParsedTransaction, 0, len(parsed.Transactions))
	dropped := 0
	for _, t := range parsed.Transactions {
		if len(t.Duplicates) > 0 {
			dropped++
			continue
		}
		if t.Direction == parser.Income {
			res.TotalGross = res.TotalGross.Add(t.Amount)
		}
		if res.PeriodStart.IsZero() || t.Date.Before(res.PeriodStart) {
			res.PeriodStart = t.Date
		}
		if t.Date.After(res.PeriodEnd) {
			res.PeriodEnd = t.Date
		}
		fresh = append(fresh, t)
	}
	res.TotalNet = res.TotalGross
	if dropped > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d rows skipped as duplicates of stored transactions", dropped))
	}
	n, err := w.store.SaveTransactions(ctx, orgID, propertyID, fresh)
	if err != nil {
		return nil, fmt.Errorf("saving transactions: %w", err)
	}
	res.TransactionsCreated = n
	return res, nil
}

// linkLineItems attaches payout line items to the property's bookings: by
// the OTA reservation reference first, then by guest name over an
// overlapping stay. A booking is linked at most once per payout, and a
// booking whose stay conflicts with an already-linked booking on the same
// room is not linked; that double-sold room needs a human decision, not a
// silent pick.
func (w *Workflow) linkLineItems(ctx context.Context, orgID, propertyID string, p *parser.Payout) {
	if w.bookings == nil {
		return
	}
	used := make(map[string]struct{})
	var linked []booking.Booking
	for i := range p.LineItems {
		it := &p.LineItems[i]
		b, err := w.bookings.ByExternalRef(ctx, orgID, propertyID, it.ExternalRef)
		if err == nil && b == nil && it.GuestName != "" && !it.CheckIn.IsZero() {
			b = w.findByGuest(ctx, orgID, propertyID, it)
		}
		if err != nil || b == nil {
			continue
		}
		if _, taken := used[b.ID]; taken {
			continue
		}
		if len(booking.FindConflicts(*b, linked)) > 0 {
			continue
		}
		used[b.ID] = struct{}{}
		linked = append(linked, *b)
		it.IsMatched = true
		it.MatchedBookingID = b.ID
	}
}

func (w *Workflow) findByGuest(ctx context.Context, orgID, propertyID string, it *parser.PayoutLineItem) *booking.Booking {
	checkOut := it.CheckOut
	if checkOut.IsZero() {
		checkOut = it.CheckIn.AddDate(0, 0, 1)
	}
	pool, err := w.bookings.ByGuestAndStay(ctx, orgID, propertyID, it.CheckIn, checkOut)
	if err != nil {
		return nil
	}
	guest := strings.ToLower(strings.TrimSpace(it.GuestName))
	for i := range pool {
		name := strings.ToLower(strings.TrimSpace(pool[i].GuestName))
		if name == "" {
			continue
		}
		if name == guest || strings.Contains(name, guest) || strings.Contains(guest, name) {
			return &pool[i]
		}
	}
	return nil
}

// storeDuplicateChecker adapts the Store to the parser's per-row duplicate
// check for commit-mode ledger imports.
type storeDuplicateChecker struct {
	ctx        context.Context
	store      Store
	orgID      string
	propertyID string
}

func (c *storeDuplicateChecker) FindDuplicates(date time.Time, amount decimal.Decimal, description string) []parser.DuplicateCandidate {
	return c.store.FindDuplicates(c.ctx, c.orgID, c.propertyID, date, amount, description)
}
