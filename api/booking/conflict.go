// Package booking holds the booking read model shared by reconciliation
// line-item linking and booking creation.
package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking statuses that never occupy a room.
const (
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

// Booking is the read model of a stored reservation.
type Booking struct {
	ID          string          `json:"id"`
	RoomID      string          `json:"room_id"`
	GuestName   string          `json:"guest_name"`
	ExternalRef string          `json:"external_ref"`
	CheckIn     time.Time       `json:"check_in"`
	CheckOut    time.Time       `json:"check_out"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	Status      string          `json:"status"`
}

// Occupies reports whether the booking holds its room dates.
func (b Booking) Occupies() bool {
	return b.Status != StatusCancelled && b.Status != StatusNoShow
}

// Conflicts reports whether two stays on the same room overlap. Intervals
// are half-open [CheckIn, CheckOut): a same-day back-to-back turnover does
// not conflict.
func Conflicts(existing, candidate Booking) bool {
	if existing.RoomID != candidate.RoomID {
		return false
	}
	if !existing.Occupies() || !candidate.Occupies() {
		return false
	}
	return existing.CheckIn.Before(candidate.CheckOut) && existing.CheckOut.After(candidate.CheckIn)
}

// FindConflicts returns the bookings in pool that conflict with candidate.
func FindConflicts(candidate Booking, pool []Booking) []Booking {
	var out []Booking
	for _, b := range pool {
		if b.ID == candidate.ID {
			continue
		}
		if Conflicts(b, candidate) {
			out = append(out, b)
		}
	}
	return out
}
