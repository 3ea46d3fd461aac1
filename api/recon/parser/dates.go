package parser

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// dd/mm layouts must come before mm/dd: every supported export is from a
// dd/mm region and 03/04/2024 must read as 3 April.
var dateLayouts = []string{
	"02/01/2006", "2/1/2006", "02/01/06", "2/1/06",
	"02-01-2006", "2-1-2006",
	"01/02/2006", "1/2/2006",
	"2006-01-02", "2006/01/02", "2006.01.02",
	"02-Jan-2006", "02-Jan-06", "2-Jan-2006",
	"02 Jan 2006", "2 Jan 2006",
	"Jan 2, 2006", "January 2, 2006",
	"2006-01-02 15:04:05", "2006-01-02T15:04:05",
}

// parseDate tries the layout list, then an Excel serial number fallback.
func parseDate(s string) (time.Time, error) {
	s = normalizeCell(s)
	if s == "" {
		return time.Time{}, errors.New("empty date cell")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NormalizeDate(t), nil
		}
	}
	if t, err := parseExcelSerialDate(s); err == nil {
		return NormalizeDate(t), nil
	}
	return time.Time{}, errors.New("could not parse date: " + s)
}

// NormalizeDate pins a calendar date to 12:00 UTC. Source files carry no
// time zone; midday keeps the calendar day stable when the value is later
// compared or rendered in a zone a few hours either side of UTC.
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC)
}

// parseExcelSerialDate converts an Excel serial day count (epoch 1899-12-30,
// including the phantom 1900-02-29) into a time.
func parseExcelSerialDate(s string) (time.Time, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return time.Time{}, err
	}
	if f < 1 || f > 200000 {
		return time.Time{}, errors.New("not an excel serial date")
	}
	days := int(f)
	// The 1899-12-30 epoch already absorbs Lotus's phantom 1900-02-29 for
	// serials after it; earlier serials sit one day behind.
	if days <= 59 {
		days++
	}
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, days), nil
}
