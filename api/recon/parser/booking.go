package parser

import (
	"strings"
)

// Booking.com payout exports interleave two physical row shapes in one file:
// a "(Payout)" row carrying the actual bank deposit (statement descriptor,
// payout amount, payout date) and N "Reservation" rows for the stays that
// deposit covers, joined by the shared descriptor. Reservation rows are not
// guaranteed to follow their payout row, so parsing is two passes: tokenize
// every row into a typed variant, then assemble by descriptor.

type bookingRowKind int

const (
	bookingRowUnknown bookingRowKind = iota
	bookingRowPayout
	bookingRowReservation
)

type bookingRow struct {
	kind       bookingRowKind
	descriptor string
	payout     Payout         // kind == bookingRowPayout
	item       PayoutLineItem // kind == bookingRowReservation
}

type bookingColumns struct {
	rowType      int
	descriptor   int
	reference    int
	guestName    int
	checkIn      int
	checkOut     int
	gross        int
	commission   int
	serviceFee   int
	vat          int
	payoutAmount int
	payoutDate   int
}

// ParseBookingPayouts parses a Booking.com partner payout export.
func ParseBookingPayouts(rows [][]string) ParseResult {
	res := ParseResult{}
	headerIdx, cols := findHeaderRow(rows, "statement descriptor", "payout amount", "payout date")
	if headerIdx < 0 {
		res.Errors = append(res.Errors, "booking: header row not found (need Statement Descriptor, Payout Amount, Payout Date columns)")
		return res
	}
	bc := bookingColumns{
		rowType:      colContaining(cols, "type"),
		descriptor:   colContaining(cols, "statement descriptor"),
		reference:    colContaining(cols, "reference number"),
		guestName:    colContaining(cols, "guest name"),
		checkIn:      colContaining(cols, "check-in"),
		checkOut:     colContaining(cols, "check-out"),
		gross:        colContaining(cols, "gross amount"),
		commission:   colContaining(cols, "commission"),
		serviceFee:   colContaining(cols, "service fee"),
		vat:          colContaining(cols, "vat"),
		payoutAmount: colContaining(cols, "payout amount"),
		payoutDate:   colContaining(cols, "payout date"),
	}
	if bc.checkIn < 0 {
		bc.checkIn = colContaining(cols, "check in")
	}
	if bc.checkOut < 0 {
		bc.checkOut = colContaining(cols, "check out")
	}

	var tokens []bookingRow
	for _, row := range rows[headerIdx+1:] {
		if allEmptyRow(row) {
			continue
		}
		tok, ok := tokenizeBookingRow(row, bc)
		if !ok {
			res.SkippedRows++
			continue
		}
		tokens = append(tokens, tok)
	}

	res.Payouts = assembleBookingPayouts(tokens)
	return res
}

func tokenizeBookingRow(row []string, bc bookingColumns) (bookingRow, bool) {
	kindCell := strings.ToLower(cellAt(row, bc.rowType))
	descriptor := cellAt(row, bc.descriptor)
	if descriptor == "" {
		return bookingRow{}, false
	}

	switch {
	case strings.Contains(kindCell, "(payout)"):
		date, err := parseDate(cellAt(row, bc.payoutDate))
		if err != nil {
			return bookingRow{}, false
		}
		return bookingRow{
			kind:       bookingRowPayout,
			descriptor: descriptor,
			payout: Payout{
				StatementKey: descriptor,
				Platform:     PlatformBooking,
				NetAmount:    cleanAmount(cellAt(row, bc.payoutAmount)),
				PayoutDate:   date,
			},
		}, true
	case strings.Contains(kindCell, "reservation"):
		item := PayoutLineItem{
			ExternalRef: cellAt(row, bc.reference),
			GuestName:   cellAt(row, bc.guestName),
			GrossAmount: cleanAmount(cellAt(row, bc.gross)),
		}
		// All platform deductions count as commission: base commission,
		// payment service fee, and VAT charged on top of them.
		item.Commission = cleanAmount(cellAt(row, bc.commission)).
			Add(cleanAmount(cellAt(row, bc.serviceFee))).
			Add(cleanAmount(cellAt(row, bc.vat)))
		item.NetAmount = item.GrossAmount.Sub(item.Commission)
		if t, err := parseDate(cellAt(row, bc.checkIn)); err == nil {
			item.CheckIn = t
		}
		if t, err := parseDate(cellAt(row, bc.checkOut)); err == nil {
			item.CheckOut = t
		}
		return bookingRow{kind: bookingRowReservation, descriptor: descriptor, item: item}, true
	default:
		return bookingRow{}, false
	}
}

// assembleBookingPayouts merges tokenized rows by descriptor. A reservation
// whose payout row has not been seen yet creates a placeholder that the real
// payout row fills in later; payouts keep first-appearance order.
func assembleBookingPayouts(tokens []bookingRow) []Payout {
	byKey := make(map[string]*Payout)
	var order []string

	get := func(descriptor string) *Payout {
		if p, ok := byKey[descriptor]; ok {
			return p
		}
		p := &Payout{StatementKey: descriptor, Platform: PlatformBooking}
		byKey[descriptor] = p
		order = append(order, descriptor)
		return p
	}

	for _, tok := range tokens {
		p := get(tok.descriptor)
		switch tok.kind {
		case bookingRowPayout:
			p.NetAmount = tok.payout.NetAmount
			p.PayoutDate = tok.payout.PayoutDate
		case bookingRowReservation:
			p.LineItems = append(p.LineItems, tok.item)
		}
	}

	out := make([]Payout, 0, len(order))
	for _, key := range order {
		p := byKey[key]
		p.RecomputeTotals()
		p.PeriodFromItems()
		out = append(out, *p)
	}
	return out
}
