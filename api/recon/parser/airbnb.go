package parser

// Airbnb exports are flat: one row per booking, each repeating the payout
// date and payout amount of the batch transfer it was paid in. Rows are
// grouped into payouts by (payout date, payout amount); the statement key is
// synthesized because the file carries no descriptor.

type airbnbColumns struct {
	confirmation int
	guestName    int
	checkIn      int
	checkOut     int
	guestPayment int
	commission   int
	handlingFee  int
	payoutDate   int
	payoutAmount int
}

// ParseAirbnbPayouts parses an Airbnb host transaction export.
func ParseAirbnbPayouts(rows [][]string) ParseResult {
	res := ParseResult{}
	headerIdx, cols := findHeaderRow(rows, "guest payment", "payout date", "payout amount")
	if headerIdx < 0 {
		res.Errors = append(res.Errors, "airbnb: header row not found (need Guest Payment, Payout Date, Payout Amount columns)")
		return res
	}
	ac := airbnbColumns{
		confirmation: colContaining(cols, "confirmation"),
		guestName:    colContaining(cols, "guest name"),
		checkIn:      colContaining(cols, "check-in"),
		checkOut:     colContaining(cols, "check-out"),
		guestPayment: colContaining(cols, "guest payment"),
		commission:   colContaining(cols, "commission"),
		handlingFee:  colContaining(cols, "handling fee"),
		payoutDate:   colContaining(cols, "payout date"),
		payoutAmount: colContaining(cols, "payout amount"),
	}
	if ac.commission < 0 {
		ac.commission = colContaining(cols, "service fee")
	}
	if ac.guestName < 0 {
		ac.guestName = colContaining(cols, "guest")
	}
	if ac.guestName == ac.guestPayment {
		// "guest" matched the payment column; no separate name column.
		ac.guestName = -1
	}

	byKey := make(map[string]*Payout)
	var order []string

	for _, row := range rows[headerIdx+1:] {
		if allEmptyRow(row) {
			continue
		}
		payoutDate, err := parseDate(cellAt(row, ac.payoutDate))
		if err != nil {
			res.SkippedRows++
			continue
		}
		payoutAmount := cleanAmount(cellAt(row, ac.payoutAmount))

		item := PayoutLineItem{
			ExternalRef: cellAt(row, ac.confirmation),
			GuestName:   cellAt(row, ac.guestName),
			GrossAmount: cleanAmount(cellAt(row, ac.guestPayment)),
		}
		item.Commission = cleanAmount(cellAt(row, ac.commission)).
			Add(cleanAmount(cellAt(row, ac.handlingFee)))
		item.NetAmount = item.GrossAmount.Sub(item.Commission)
		if t, err := parseDate(cellAt(row, ac.checkIn)); err == nil {
			item.CheckIn = t
		}
		if t, err := parseDate(cellAt(row, ac.checkOut)); err == nil {
			item.CheckOut = t
		}

		key := SynthesizeKey(PlatformAirbnb, payoutDate, payoutAmount)
		p, ok := byKey[key]
		if !ok {
			p = &Payout{
				StatementKey: key,
				Platform:     PlatformAirbnb,
				NetAmount:    payoutAmount,
				PayoutDate:   payoutDate,
				Synthetic:    true,
			}
			byKey[key] = p
			order = append(order, key)
		}
		p.LineItems = append(p.LineItems, item)
	}

	for _, key := range order {
		p := byKey[key]
		p.RecomputeTotals()
		p.PeriodFromItems()
		res.Payouts = append(res.Payouts, *p)
	}
	return res
}
