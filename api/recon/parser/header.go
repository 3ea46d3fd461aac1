package parser

import "strings"

// headerScanLimit caps how deep we look for the header row. Real exports
// prepend a handful of metadata lines (account holder, export date, filters)
// above the actual column header.
const headerScanLimit = 10

// findHeaderRow scans the first few rows for one containing every required
// token (case-insensitive substring per cell). Returns the row index and a
// lower-cased header-name -> column-index map, or -1 when no row qualifies.
func findHeaderRow(rows [][]string, required ...string) (int, map[string]int) {
	limit := headerScanLimit
	if len(rows) < limit {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		cols := headerIndex(rows[i])
		if len(cols) == 0 {
			continue
		}
		found := 0
		for _, tok := range required {
			if colContaining(cols, tok) >= 0 {
				found++
			}
		}
		if found == len(required) {
			return i, cols
		}
	}
	return -1, nil
}

func headerIndex(row []string) map[string]int {
	cols := make(map[string]int, len(row))
	for idx, c := range row {
		name := strings.ToLower(normalizeCell(c))
		if name == "" {
			continue
		}
		if _, dup := cols[name]; !dup {
			cols[name] = idx
		}
	}
	return cols
}

// colContaining resolves a column by substring so "payout amount (idr)" still
// answers for "payout amount". Exact name wins over substring.
func colContaining(cols map[string]int, token string) int {
	token = strings.ToLower(token)
	if idx, ok := cols[token]; ok {
		return idx
	}
	best := -1
	for name, idx := range cols {
		if strings.Contains(name, token) {
			if best == -1 || idx < best {
				best = idx
			}
		}
	}
	return best
}
