package parser

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DuplicateChecker answers whether a parsed row looks like money that is
// already in the ledger. Commit-mode parsing consults it per row; preview
// passes nil so a preview never costs a database round-trip per row.
type DuplicateChecker interface {
	FindDuplicates(date time.Time, amount decimal.Decimal, description string) []DuplicateCandidate
}

// DefaultCategories is the built-in description-keyword table used when no
// per-property configuration overrides it.
var DefaultCategories = map[string][]string{
	"accommodation":  {"booking", "airbnb", "agoda", "reservation", "payout"},
	"utilities":      {"pln", "electric", "water", "internet", "wifi"},
	"payroll":        {"salary", "payroll", "gaji", "wages"},
	"supplies":       {"supplies", "laundry", "amenities", "toiletries"},
	"maintenance":    {"repair", "maintenance", "service", "cleaning"},
	"bank charges":   {"admin", "fee", "charge", "biaya"},
	"food and drink": {"restaurant", "cafe", "breakfast", "grocery"},
}

// bankFormat describes one vendor's column vocabulary. Column resolution is
// name-driven so reordered exports keep parsing.
type bankFormat struct {
	dateCols   []string
	descCols   []string
	amountCols []string
	debitCols  []string
	creditCols []string
	typeCols   []string
	sourceHint string
}

var bankFormats = map[Platform]bankFormat{
	PlatformBankBCA: {
		dateCols:   []string{"tanggal", "date"},
		descCols:   []string{"keterangan", "description"},
		amountCols: []string{"mutasi", "amount"},
		typeCols:   []string{"db/cr", "cr/db", "type"},
		sourceHint: "bca",
	},
	PlatformBankMandiri: {
		dateCols:   []string{"tanggal", "date"},
		descCols:   []string{"keterangan", "description"},
		debitCols:  []string{"debet", "debit"},
		creditCols: []string{"kredit", "credit"},
		sourceHint: "mandiri",
	},
	PlatformXero: {
		dateCols:   []string{"date"},
		descCols:   []string{"description", "memo"},
		amountCols: []string{"amount"},
		typeCols:   []string{"type"},
		sourceHint: "xero",
	},
}

func resolveAny(cols map[string]int, names []string) int {
	for _, n := range names {
		if idx := colContaining(cols, n); idx >= 0 {
			return idx
		}
	}
	return -1
}

// ParseBankStatement parses a bank or bookkeeping export in the named
// format, classifying each row into income/expense with a category guess.
func ParseBankStatement(platform Platform, rows [][]string, opts ParseOptions) ParseResult {
	res := ParseResult{}
	format, ok := bankFormats[platform]
	if !ok {
		res.Errors = append(res.Errors, "unsupported bank format: "+string(platform))
		return res
	}
	categories := opts.Categories
	if categories == nil {
		categories = DefaultCategories
	}

	headerIdx := -1
	var cols map[string]int
	limit := headerScanLimit
	if len(rows) < limit {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		c := headerIndex(rows[i])
		if resolveAny(c, format.dateCols) >= 0 && resolveAny(c, format.descCols) >= 0 &&
			(resolveAny(c, format.amountCols) >= 0 || resolveAny(c, format.debitCols) >= 0) {
			headerIdx, cols = i, c
			break
		}
	}
	if headerIdx < 0 {
		res.Errors = append(res.Errors, string(platform)+": header row not found")
		return res
	}

	dateIdx := resolveAny(cols, format.dateCols)
	descIdx := resolveAny(cols, format.descCols)
	amountIdx := resolveAny(cols, format.amountCols)
	debitIdx := resolveAny(cols, format.debitCols)
	creditIdx := resolveAny(cols, format.creditCols)
	typeIdx := resolveAny(cols, format.typeCols)

	for _, row := range rows[headerIdx+1:] {
		if allEmptyRow(row) {
			continue
		}
		date, err := parseDate(cellAt(row, dateIdx))
		if err != nil {
			res.SkippedRows++
			continue
		}
		desc := cellAt(row, descIdx)

		var amount decimal.Decimal
		var direction Direction
		switch {
		case debitIdx >= 0 || creditIdx >= 0:
			debit := cleanAmount(cellAt(row, debitIdx))
			credit := cleanAmount(cellAt(row, creditIdx))
			if credit.IsPositive() {
				amount, direction = credit, Income
			} else if debit.IsPositive() {
				amount, direction = debit, Expense
			} else {
				res.SkippedRows++
				continue
			}
		default:
			amount = cleanAmount(cellAt(row, amountIdx))
			if amount.IsZero() {
				res.SkippedRows++
				continue
			}
			direction = classifyDirection(amount, cellAt(row, typeIdx))
			amount = amount.Abs()
		}

		tx := ParsedTransaction{
			Date:        date,
			Description: desc,
			Amount:      amount,
			Direction:   direction,
			Category:    guessCategory(desc, categories),
			SourceHint:  format.sourceHint,
		}
		if opts.Checker != nil {
			tx.Duplicates = opts.Checker.FindDuplicates(date, amount, desc)
		}
		res.Transactions = append(res.Transactions, tx)
	}
	return res
}

func classifyDirection(amount decimal.Decimal, typeCell string) Direction {
	switch strings.ToLower(typeCell) {
	case "cr", "credit", "c", "income", "receive money":
		return Income
	case "db", "dr", "debit", "d", "expense", "spend money":
		return Expense
	}
	if amount.IsNegative() {
		return Expense
	}
	return Income
}

func guessCategory(description string, categories map[string][]string) string {
	desc := strings.ToLower(description)
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	// Stable order so a description matching two tables always lands in the
	// same category.
	sort.Strings(names)
	for _, category := range names {
		for _, kw := range categories[category] {
			if strings.Contains(desc, kw) {
				return category
			}
		}
	}
	return "uncategorized"
}
