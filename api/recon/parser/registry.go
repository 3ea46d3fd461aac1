package parser

import "strings"

// ResolvePlatform maps a caller-supplied platform string onto a supported
// Platform. Format selection is always explicit; nothing is sniffed from the
// file contents.
func ResolvePlatform(s string) (Platform, bool) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformBooking:
		return PlatformBooking, true
	case PlatformAirbnb:
		return PlatformAirbnb, true
	case PlatformAgoda:
		return PlatformAgoda, true
	case PlatformBankBCA:
		return PlatformBankBCA, true
	case PlatformBankMandiri:
		return PlatformBankMandiri, true
	case PlatformXero:
		return PlatformXero, true
	}
	return "", false
}

// IsOTA reports whether the platform produces payout batches rather than
// plain ledger rows.
func IsOTA(p Platform) bool {
	switch p {
	case PlatformBooking, PlatformAirbnb, PlatformAgoda:
		return true
	}
	return false
}

// ParseOptions tunes a parse. The zero value is valid everywhere: no
// duplicate lookups, built-in categories, no commission fallback.
type ParseOptions struct {
	// Checker, when non-nil, is consulted for every parsed ledger row.
	Checker DuplicateChecker
	// Categories maps a category name to description keywords. Nil means
	// DefaultCategories.
	Categories map[string][]string
	// CommissionRates gives a per-platform commission percentage used when a
	// statement row carries neither a commission amount nor a percentage.
	CommissionRates map[Platform]float64
}

// Parse dispatches to the platform's parser.
func Parse(platform Platform, rows [][]string, opts ParseOptions) ParseResult {
	switch platform {
	case PlatformBooking:
		return ParseBookingPayouts(rows)
	case PlatformAirbnb:
		return ParseAirbnbPayouts(rows)
	case PlatformAgoda:
		return ParseAgodaStatement(rows, opts)
	case PlatformBankBCA, PlatformBankMandiri, PlatformXero:
		return ParseBankStatement(platform, rows, opts)
	}
	return ParseResult{Errors: []string{"unsupported platform: " + string(platform)}}
}
