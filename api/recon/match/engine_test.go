package match

import (
	"testing"
	"time"

	"StayLedger/api/recon/parser"
	"StayLedger/internal/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func amt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testConfig() Config {
	return Config{
		WindowDays:      4,
		AmountTolerance: amt("0.10"),
		Keywords: map[parser.Platform][]string{
			parser.PlatformBooking: {"booking.com", "bv booking"},
			parser.PlatformAirbnb:  {"airbnb"},
		},
	}
}

func bookingPayout() parser.Payout {
	return parser.Payout{
		StatementKey: "STMT-001",
		Platform:     parser.PlatformBooking,
		NetAmount:    amt("870.00"),
		PayoutDate:   day(2024, time.March, 10),
	}
}

func TestMatchDescriptorTier(t *testing.T) {
	e := NewEngine(testConfig())
	candidates := []parser.BankTransaction{
		{ID: "tx-1", Amount: amt("500.00"), Date: day(2024, time.March, 1), Description: "TRSF OTHER"},
		{ID: "tx-2", Amount: amt("870.00"), Date: day(2024, time.March, 11), Description: "TRSF STMT-001 BOOKING.COM"},
	}

	res := e.Match(bookingPayout(), candidates, nil)
	assert.Equal(t, "tx-2", res.BankTransactionID)
	assert.Equal(t, ConfidenceHigh, res.Confidence)
	assert.Equal(t, MethodDescriptor, res.Method)
	assert.False(t, res.AlreadyReconciled)
}

func TestMatchDescriptorCaseInsensitive(t *testing.T) {
	e := NewEngine(testConfig())
	candidates := []parser.BankTransaction{
		{ID: "tx-1", Amount: amt("870.00"), Date: day(2024, time.March, 11), Description: "trsf stmt-001 inward"},
	}
	res := e.Match(bookingPayout(), candidates, nil)
	assert.Equal(t, ConfidenceHigh, res.Confidence)
}

func TestMatchAmountDateKeywordTier(t *testing.T) {
	e := NewEngine(testConfig())
	// Descriptor nowhere in the description, but amount, date and the
	// platform keyword line up.
	candidates := []parser.BankTransaction{
		{ID: "tx-1", Amount: amt("870.05"), Date: day(2024, time.March, 12), Description: "TRSF E-BANKING BOOKING.COM BV"},
	}
	res := e.Match(bookingPayout(), candidates, nil)
	assert.Equal(t, "tx-1", res.BankTransactionID)
	assert.Equal(t, ConfidenceMedium, res.Confidence)
	assert.Equal(t, MethodAmountDateKeyword, res.Method)
}

func TestMatchSecondTierNeedsKeyword(t *testing.T) {
	e := NewEngine(testConfig())
	candidates := []parser.BankTransaction{
		{ID: "tx-1", Amount: amt("870.00"), Date: day(2024, time.March, 10), Description: "TRANSFER MASUK"},
	}
	res := e.Match(bookingPayout(), candidates, nil)
	assert.Equal(t, ConfidenceNone, res.Confidence)
	assert.Equal(t, MethodNone, res.Method)
	assert.Empty(t, res.BankTransactionID)
}

func TestMatchWindowAndToleranceEdges(t *testing.T) {
	e := NewEngine(testConfig())
	tests := []struct {
		name    string
		tx      parser.BankTransaction
		matched bool
	}{
		{
			name:    "four days out still inside window",
			tx:      parser.BankTransaction{ID: "a", Amount: amt("870.00"), Date: day(2024, time.March, 14), Description: "booking.com"},
			matched: true,
		},
		{
			name:    "five days out is outside",
			tx:      parser.BankTransaction{ID: "b", Amount: amt("870.00"), Date: day(2024, time.March, 15), Description: "booking.com"},
			matched: false,
		},
		{
			name:    "nine cents off still inside tolerance",
			tx:      parser.BankTransaction{ID: "c", Amount: amt("870.09"), Date: day(2024, time.March, 10), Description: "booking.com"},
			matched: true,
		},
		{
			name:    "ten cents off is outside",
			tx:      parser.BankTransaction{ID: "d", Amount: amt("870.10"), Date: day(2024, time.March, 10), Description: "booking.com"},
			matched: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := bookingPayout()
			p.Synthetic = true // force tier 2
			res := e.Match(p, []parser.BankTransaction{tt.tx}, nil)
			if tt.matched {
				assert.Equal(t, ConfidenceMedium, res.Confidence)
			} else {
				assert.Equal(t, ConfidenceNone, res.Confidence)
			}
		})
	}
}

func TestMatchTieBreak(t *testing.T) {
	e := NewEngine(testConfig())
	p := bookingPayout()

	// Closest date wins.
	candidates := []parser.BankTransaction{
		{ID: "tx-far", Amount: amt("870.00"), Date: day(2024, time.March, 13), Description: "STMT-001"},
		{ID: "tx-near", Amount: amt("870.00"), Date: day(2024, time.March, 11), Description: "STMT-001"},
	}
	res := e.Match(p, candidates, nil)
	assert.Equal(t, "tx-near", res.BankTransactionID)

	// Same date distance: lowest id wins, regardless of slice order.
	candidates = []parser.BankTransaction{
		{ID: "tx-9", Amount: amt("870.00"), Date: day(2024, time.March, 11), Description: "STMT-001"},
		{ID: "tx-2", Amount: amt("870.00"), Date: day(2024, time.March, 11), Description: "STMT-001"},
	}
	res = e.Match(p, candidates, nil)
	assert.Equal(t, "tx-2", res.BankTransactionID)

	candidates[0], candidates[1] = candidates[1], candidates[0]
	res = e.Match(p, candidates, nil)
	assert.Equal(t, "tx-2", res.BankTransactionID)
}

func TestMatchSyntheticSkipsDescriptorTier(t *testing.T) {
	e := NewEngine(testConfig())
	p := parser.Payout{
		StatementKey: parser.SynthesizeKey(parser.PlatformAirbnb, day(2024, time.March, 6), amt("768.00")),
		Platform:     parser.PlatformAirbnb,
		NetAmount:    amt("768.00"),
		PayoutDate:   day(2024, time.March, 6),
		Synthetic:    true,
	}
	candidates := []parser.BankTransaction{
		{ID: "tx-1", Amount: amt("768.00"), Date: day(2024, time.March, 7), Description: "AIRBNB PAYMENTS LUX"},
	}
	res := e.Match(p, candidates, nil)
	assert.Equal(t, ConfidenceMedium, res.Confidence)
	assert.Equal(t, MethodAmountDateKeyword, res.Method)
}

func TestMatchFlagsAlreadyReconciled(t *testing.T) {
	e := NewEngine(testConfig())
	p := bookingPayout()
	idx := NewIndex([]StoredPayout{
		{StatementKey: "STMT-001", Platform: parser.PlatformBooking, PayoutDate: p.PayoutDate, NetAmount: p.NetAmount},
	})
	res := e.Match(p, nil, idx)
	assert.True(t, res.AlreadyReconciled)
	assert.Equal(t, ConfidenceNone, res.Confidence)
}

func TestIndexSyntheticWindowFallback(t *testing.T) {
	cfg := testConfig()
	stored := StoredPayout{
		StatementKey: parser.SynthesizeKey(parser.PlatformAirbnb, day(2024, time.March, 6), amt("768.00")),
		Platform:     parser.PlatformAirbnb,
		PayoutDate:   day(2024, time.March, 6),
		NetAmount:    amt("768.00"),
	}
	idx := NewIndex([]StoredPayout{stored})

	// Same statement re-exported with the payout date shifted a day: the
	// synthesized key differs but the window check still catches it.
	p := parser.Payout{
		StatementKey: parser.SynthesizeKey(parser.PlatformAirbnb, day(2024, time.March, 7), amt("768.00")),
		Platform:     parser.PlatformAirbnb,
		PayoutDate:   day(2024, time.March, 7),
		NetAmount:    amt("768.00"),
		Synthetic:    true,
	}
	assert.True(t, idx.Contains(p, cfg))

	// Far outside the window is a new payout.
	p.PayoutDate = day(2024, time.April, 7)
	p.StatementKey = parser.SynthesizeKey(parser.PlatformAirbnb, p.PayoutDate, p.NetAmount)
	assert.False(t, idx.Contains(p, cfg))

	// Non-synthetic keys never fall back to the window.
	exact := parser.Payout{
		StatementKey: "STMT-NEW",
		Platform:     parser.PlatformAirbnb,
		PayoutDate:   day(2024, time.March, 6),
		NetAmount:    amt("768.00"),
	}
	assert.False(t, idx.Contains(exact, cfg))
}

func TestConfigFrom(t *testing.T) {
	rc := config.DefaultReconConfig()
	rc.AmountTolerance = "0.25"
	rc.MatchWindowDays = 7
	cfg := ConfigFrom(rc)
	assert.Equal(t, 7, cfg.WindowDays)
	assert.Equal(t, "0.25", cfg.AmountTolerance.String())
	assert.Contains(t, cfg.Keywords[parser.PlatformBooking], "booking.com")

	rc.AmountTolerance = "not a number"
	cfg = ConfigFrom(rc)
	assert.Equal(t, config.DefaultAmountTolerance, cfg.AmountTolerance.StringFixed(2))
}
