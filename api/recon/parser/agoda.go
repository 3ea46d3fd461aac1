package parser

import (
	"time"

	"github.com/shopspring/decimal"
)

// Agoda remits one transfer per statement period, so the whole file is one
// payout. Rows carry a reference sell rate and either a commission amount or
// only a commission percentage; the net per row is what Agoda actually pays.

type agodaColumns struct {
	reference     int
	guestName     int
	checkIn       int
	checkOut      int
	sellRate      int
	commission    int
	commissionPct int
	paymentDate   int
}

// ParseAgodaStatement parses an Agoda property statement export. When a row
// carries neither a commission amount nor a percentage, the configured Agoda
// rate from opts.CommissionRates fills in.
func ParseAgodaStatement(rows [][]string, opts ParseOptions) ParseResult {
	res := ParseResult{}
	headerIdx, cols := findHeaderRow(rows, "reference", "sell rate", "commission")
	if headerIdx < 0 {
		res.Errors = append(res.Errors, "agoda: header row not found (need Reference, Sell Rate, Commission columns)")
		return res
	}
	gc := agodaColumns{
		reference:     colContaining(cols, "reference"),
		guestName:     colContaining(cols, "guest"),
		checkIn:       colContaining(cols, "check-in"),
		checkOut:      colContaining(cols, "check-out"),
		sellRate:      colContaining(cols, "sell rate"),
		commissionPct: colContaining(cols, "commission %"),
		paymentDate:   colContaining(cols, "payment date"),
	}
	// Resolve the commission amount column away from the percentage column:
	// only an exact name counts, a substring would hit "commission %".
	gc.commission = -1
	if idx, ok := cols["commission"]; ok {
		gc.commission = idx
	} else if idx, ok := cols["commission amount"]; ok {
		gc.commission = idx
	}

	payout := &Payout{Platform: PlatformAgoda, Synthetic: true}
	var payoutDate time.Time

	for _, row := range rows[headerIdx+1:] {
		if allEmptyRow(row) {
			continue
		}
		gross := cleanAmount(cellAt(row, gc.sellRate))
		ref := cellAt(row, gc.reference)
		if ref == "" || gross.IsZero() {
			res.SkippedRows++
			continue
		}
		item := PayoutLineItem{
			ExternalRef: ref,
			GuestName:   cellAt(row, gc.guestName),
			GrossAmount: gross,
		}
		item.Commission = cleanAmount(cellAt(row, gc.commission))
		if item.Commission.IsZero() && gc.commissionPct >= 0 {
			pct := cleanAmount(cellAt(row, gc.commissionPct))
			item.Commission = gross.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)
		}
		if item.Commission.IsZero() {
			if rate, ok := opts.CommissionRates[PlatformAgoda]; ok && rate > 0 {
				item.Commission = gross.Mul(decimal.NewFromFloat(rate)).Div(decimal.NewFromInt(100)).Round(2)
			}
		}
		item.NetAmount = item.GrossAmount.Sub(item.Commission)
		if t, err := parseDate(cellAt(row, gc.checkIn)); err == nil {
			item.CheckIn = t
		}
		if t, err := parseDate(cellAt(row, gc.checkOut)); err == nil {
			item.CheckOut = t
		}
		if gc.paymentDate >= 0 {
			if t, err := parseDate(cellAt(row, gc.paymentDate)); err == nil && t.After(payoutDate) {
				payoutDate = t
			}
		}
		payout.LineItems = append(payout.LineItems, item)
	}

	if len(payout.LineItems) == 0 {
		return res
	}
	payout.RecomputeTotals()
	payout.PeriodFromItems()
	if payoutDate.IsZero() {
		payoutDate = payout.PeriodEnd
	}
	payout.PayoutDate = payoutDate
	payout.StatementKey = SynthesizeKey(PlatformAgoda, payoutDate, payout.NetAmount)
	res.Payouts = append(res.Payouts, *payout)
	return res
}
