package recon

import (
	"StayLedger/api/recon/parser"

	"github.com/shopspring/decimal"
)

// LeakageReport is derived on demand and never stored. Positive leakage is a
// shortfall: the property received less than its own booking ledger says it
// should have. Negative leakage is reported as a plain difference, not an
// alert.
type LeakageReport struct {
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	ActualAmount   decimal.Decimal `json:"actual_amount"`
	Leakage        decimal.Decimal `json:"leakage"`
	LeakagePercent decimal.Decimal `json:"leakage_percent"`
	Shortfall      bool            `json:"shortfall"`
}

var hundred = decimal.NewFromInt(100)

// CalculateLeakage compares what the payout should have delivered against
// what it did. Expected is the sum over line items of the linked booking's
// net amount, falling back to the item's own net amount when unlinked;
// bookingNet maps booking id to its ledger net amount.
func CalculateLeakage(p parser.Payout, bookingNet map[string]decimal.Decimal) LeakageReport {
	expected := decimal.Zero
	for _, it := range p.LineItems {
		if it.IsMatched {
			if net, ok := bookingNet[it.MatchedBookingID]; ok {
				expected = expected.Add(net)
				continue
			}
		}
		expected = expected.Add(it.NetAmount)
	}

	actual := p.NetAmount
	leakage := expected.Sub(actual)
	percent := decimal.Zero
	if !expected.IsZero() {
		percent = leakage.Div(expected).Mul(hundred).Round(2)
	}
	return LeakageReport{
		ExpectedAmount: expected,
		ActualAmount:   actual,
		Leakage:        leakage,
		LeakagePercent: percent,
		Shortfall:      leakage.IsPositive(),
	}
}
