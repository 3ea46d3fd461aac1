package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Finder is the booking lookup reconciliation links payout line items
// against.
type Finder interface {
	// ByExternalRef returns the booking carrying the OTA's reservation
	// reference, if any.
	ByExternalRef(ctx context.Context, orgID, propertyID, ref string) (*Booking, error)

	// ByGuestAndStay returns active bookings whose stay overlaps the given
	// dates, for fallback matching by guest name.
	ByGuestAndStay(ctx context.Context, orgID, propertyID string, checkIn, checkOut time.Time) ([]Booking, error)
}

// PGFinder is the pgx implementation of Finder.
type PGFinder struct {
	pool *pgxpool.Pool
}

func NewPGFinder(pool *pgxpool.Pool) *PGFinder {
	return &PGFinder{pool: pool}
}

func (f *PGFinder) ByExternalRef(ctx context.Context, orgID, propertyID, ref string) (*Booking, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, nil
	}
	row := f.pool.QueryRow(ctx, `
		SELECT id, room_id, guest_name, COALESCE(external_ref, ''), check_in, check_out, net_amount, status
		FROM bookings
		WHERE organisation_id = $1 AND property_id = $2 AND external_ref = $3
		  AND status NOT IN ('cancelled', 'no_show')
		ORDER BY created_at
		LIMIT 1
	`, orgID, propertyID, ref)
	var b Booking
	err := row.Scan(&b.ID, &b.RoomID, &b.GuestName, &b.ExternalRef, &b.CheckIn, &b.CheckOut, &b.NetAmount, &b.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (f *PGFinder) ByGuestAndStay(ctx context.Context, orgID, propertyID string, checkIn, checkOut time.Time) ([]Booking, error) {
	rows, err := f.pool.Query(ctx, `
		SELECT id, room_id, guest_name, COALESCE(external_ref, ''), check_in, check_out, net_amount, status
		FROM bookings
		WHERE organisation_id = $1 AND property_id = $2
		  AND status NOT IN ('cancelled', 'no_show')
		  AND check_in < $4 AND check_out > $3
	`, orgID, propertyID, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.RoomID, &b.GuestName, &b.ExternalRef, &b.CheckIn, &b.CheckOut, &b.NetAmount, &b.Status); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
