package parser

import (
	"strings"

	"github.com/shopspring/decimal"
)

const nbsp = " "

// normalizeCell collapses whitespace and strips non-breaking spaces that
// Excel exports love to hide inside header cells.
func normalizeCell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, nbsp, " ")
	return strings.Join(strings.Fields(s), " ")
}

func allEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// cleanAmount parses a currency cell defensively. Vendors ship amounts with
// currency symbols, thousands separators, trailing percent signs, blank
// cells, bare dashes, and accounting-style (1,234.56) negatives. Anything
// that still fails to parse becomes zero, never an error.
func cleanAmount(s string) decimal.Decimal {
	s = normalizeCell(s)
	if s == "" || s == "-" || s == "--" {
		return decimal.Zero
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	// Decide which separator is the decimal point. When both appear the one
	// further right wins; a lone comma with exactly two trailing digits is a
	// decimal comma, otherwise a thousands separator.
	decimalSep := byte('.')
	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')
	if lastComma > lastDot {
		if lastDot >= 0 || len(s)-lastComma == 3 {
			decimalSep = ','
		}
	} else if lastDot >= 0 && strings.Count(s, ".") > 1 {
		// 1.234.567 style: dots are grouping only.
		decimalSep = 0
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		r := s[i]
		switch {
		case r >= '0' && r <= '9':
			b.WriteByte(r)
		case r == decimalSep && (r == '.' || r == ','):
			b.WriteByte('.')
		case r == '-' && b.Len() == 0:
			b.WriteByte(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		d = d.Neg()
	}
	return d
}

// cellAt is a bounds-safe row accessor; short rows read as empty cells.
func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return normalizeCell(row[idx])
}
