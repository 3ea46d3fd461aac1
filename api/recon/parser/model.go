package parser

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Platform identifies a supported source file format.
type Platform string

const (
	PlatformBooking     Platform = "booking"
	PlatformAirbnb      Platform = "airbnb"
	PlatformAgoda       Platform = "agoda"
	PlatformBankBCA     Platform = "bca"
	PlatformBankMandiri Platform = "mandiri"
	PlatformXero        Platform = "xero"
)

// Direction classifies a ledger row as money in or money out.
type Direction string

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

// ParsedTransaction is one classified row from a bank or bookkeeping export.
// It is ephemeral: consumed into ledger rows or discarded as a duplicate.
type ParsedTransaction struct {
	Date        time.Time            `json:"date"`
	Description string               `json:"description"`
	Amount      decimal.Decimal      `json:"amount"`
	Direction   Direction            `json:"direction"`
	Category    string               `json:"category"`
	SourceHint  string               `json:"source_hint"`
	Duplicates  []DuplicateCandidate `json:"duplicates,omitempty"`
}

// DuplicateCandidate points at an already-stored transaction that looks like
// the same money (same date, same amount, similar description).
type DuplicateCandidate struct {
	TransactionID string `json:"transaction_id"`
	Description   string `json:"description"`
}

// PayoutLineItem is one reservation inside an OTA payout batch.
type PayoutLineItem struct {
	ExternalRef      string          `json:"external_ref"`
	GuestName        string          `json:"guest_name"`
	CheckIn          time.Time       `json:"check_in"`
	CheckOut         time.Time       `json:"check_out"`
	GrossAmount      decimal.Decimal `json:"gross_amount"`
	Commission       decimal.Decimal `json:"commission"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	IsMatched        bool            `json:"is_matched"`
	MatchedBookingID string          `json:"matched_booking_id,omitempty"`
}

// Payout is a single batch deposit from an OTA covering one or more
// reservations. StatementKey is the best available natural key: the
// platform's own statement descriptor when it has one, otherwise a
// synthesized platform|date|amount key (Synthetic = true).
type Payout struct {
	StatementKey    string           `json:"statement_key"`
	Platform        Platform         `json:"platform"`
	GrossAmount     decimal.Decimal  `json:"gross_amount"`
	NetAmount       decimal.Decimal  `json:"net_amount"`
	TotalCommission decimal.Decimal  `json:"total_commission"`
	PayoutDate      time.Time        `json:"payout_date"`
	PeriodStart     time.Time        `json:"period_start"`
	PeriodEnd       time.Time        `json:"period_end"`
	LineItems       []PayoutLineItem `json:"line_items"`
	Synthetic       bool             `json:"synthetic"`
}

// BankTransaction is the read model of a stored bank ledger row. Status is
// the only field reconciliation is allowed to flip (unreconciled -> reconciled).
type BankTransaction struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
}

const (
	BankStatusUnreconciled = "unreconciled"
	BankStatusReconciled   = "reconciled"
)

// ParseResult is the diagnostics bag every parser returns. Row-level faults
// never abort a file; they land in SkippedRows. A file-fatal fault (header
// not found) leaves Payouts/Transactions empty and appends to Errors.
type ParseResult struct {
	Payouts      []Payout            `json:"payouts,omitempty"`
	Transactions []ParsedTransaction `json:"transactions,omitempty"`
	SkippedRows  int                 `json:"skipped_rows"`
	Errors       []string            `json:"errors,omitempty"`
}

// SynthesizeKey builds a statement key for platforms whose exports carry no
// descriptor. Pinned to the calendar date so re-imports of the same file
// produce the same key.
func SynthesizeKey(p Platform, date time.Time, amount decimal.Decimal) string {
	return fmt.Sprintf("%s|%s|%s", p, date.Format("2006-01-02"), amount.StringFixed(2))
}

// RecomputeTotals refreshes the payout aggregates from its line items. Used
// after out-of-order assembly merges a placeholder with its header row.
func (p *Payout) RecomputeTotals() {
	gross := decimal.Zero
	commission := decimal.Zero
	for _, it := range p.LineItems {
		gross = gross.Add(it.GrossAmount)
		commission = commission.Add(it.Commission)
	}
	p.GrossAmount = gross
	p.TotalCommission = commission
	if p.NetAmount.IsZero() {
		p.NetAmount = gross.Sub(commission)
	}
}

// PeriodFromItems derives the covered period from line-item stay dates when
// the file itself does not state one.
func (p *Payout) PeriodFromItems() {
	for _, it := range p.LineItems {
		if it.CheckIn.IsZero() {
			continue
		}
		if p.PeriodStart.IsZero() || it.CheckIn.Before(p.PeriodStart) {
			p.PeriodStart = it.CheckIn
		}
		if it.CheckOut.After(p.PeriodEnd) {
			p.PeriodEnd = it.CheckOut
		}
	}
}
