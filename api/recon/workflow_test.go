package recon

import (
	"context"
	"errors"
	"testing"
	"time"

	"StayLedger/api/booking"
	"StayLedger/api/recon/match"
	"StayLedger/api/recon/parser"
	"StayLedger/internal/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

// fakeStore is an in-memory Store. failKeys forces SavePayout errors per
// statement key.
type fakeStore struct {
	candidates   []parser.BankTransaction
	existing     []match.StoredPayout
	duplicates   []parser.DuplicateCandidate
	failKeys     map[string]error
	savedPayouts []parser.Payout
	savedBankIDs []string
	savedTxs     []parser.ParsedTransaction
}

func (f *fakeStore) CandidateBankTransactions(ctx context.Context, orgID, propertyID string) ([]parser.BankTransaction, error) {
	return f.candidates, nil
}

func (f *fakeStore) ExistingPayouts(ctx context.Context, orgID, propertyID string, platform parser.Platform) ([]match.StoredPayout, error) {
	return f.existing, nil
}

func (f *fakeStore) SavePayout(ctx context.Context, orgID, propertyID string, p parser.Payout, bankTxnID string) (string, error) {
	if err, ok := f.failKeys[p.StatementKey]; ok {
		return "", err
	}
	for _, stored := range f.savedPayouts {
		if stored.StatementKey == p.StatementKey {
			return "", ErrDuplicatePayout
		}
	}
	f.savedPayouts = append(f.savedPayouts, p)
	f.savedBankIDs = append(f.savedBankIDs, bankTxnID)
	return p.StatementKey, nil
}

func (f *fakeStore) FindDuplicates(ctx context.Context, orgID, propertyID string, date time.Time, amount decimal.Decimal, description string) []parser.DuplicateCandidate {
	return f.duplicates
}

func (f *fakeStore) SaveTransactions(ctx context.Context, orgID, propertyID string, txs []parser.ParsedTransaction) (int, error) {
	f.savedTxs = append(f.savedTxs, txs...)
	return len(txs), nil
}

// fakeFinder serves bookings by external ref and by stay overlap.
type fakeFinder struct {
	byRef  map[string]*booking.Booking
	byStay []booking.Booking
}

func (f *fakeFinder) ByExternalRef(ctx context.Context, orgID, propertyID, ref string) (*booking.Booking, error) {
	return f.byRef[ref], nil
}

func (f *fakeFinder) ByGuestAndStay(ctx context.Context, orgID, propertyID string, checkIn, checkOut time.Time) ([]booking.Booking, error) {
	return f.byStay, nil
}

var bookingRows = [][]string{
	{"Type", "Statement Descriptor", "Reference Number", "Guest Name", "Check-in", "Check-out", "Gross Amount", "Commission", "Payout Amount", "Payout Date"},
	{"(Payout)", "STMT-001", "", "", "", "", "", "", "870.00", "10/03/2024"},
	{"Reservation", "STMT-001", "12345", "John Smith", "01/03/2024", "04/03/2024", "500.00", "75.00", "", ""},
	{"Reservation", "STMT-001", "12346", "Jane Doe", "02/03/2024", "05/03/2024", "500.00", "55.00", "", ""},
	{"(Payout)", "STMT-002", "", "", "", "", "", "", "255.00", "20/03/2024"},
	{"Reservation", "STMT-002", "12347", "Max Muster", "15/03/2024", "18/03/2024", "300.00", "45.00", "", ""},
}

func newTestWorkflow(store *fakeStore, finder booking.Finder) *Workflow {
	return NewWorkflow(store, finder, config.DefaultReconConfig())
}

func TestPreviewMatchesAndTotals(t *testing.T) {
	store := &fakeStore{
		candidates: []parser.BankTransaction{
			{ID: "tx-1", Amount: amt("870.00"), Date: day(2024, time.March, 11), Description: "TRSF STMT-001 BOOKING.COM"},
			{ID: "tx-2", Amount: amt("255.00"), Date: day(2024, time.March, 21), Description: "TRSF E-BANKING BOOKING.COM BV"},
		},
	}
	finder := &fakeFinder{byRef: map[string]*booking.Booking{
		"12345": {ID: "bk-1", GuestName: "John Smith", NetAmount: amt("430.00")},
	}}
	wf := newTestWorkflow(store, finder)

	res, err := wf.Preview(context.Background(), "org-1", "prop-1", parser.PlatformBooking, bookingRows)
	require.NoError(t, err)

	require.Len(t, res.Payouts, 2)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "tx-1", res.Matches[0].BankTransactionID)
	assert.Equal(t, match.ConfidenceHigh, res.Matches[0].Confidence)
	assert.Equal(t, "tx-2", res.Matches[1].BankTransactionID)
	assert.Equal(t, match.ConfidenceMedium, res.Matches[1].Confidence)

	assert.Equal(t, "1300", res.TotalGross.String())
	assert.Equal(t, "1125", res.TotalNet.String())
	assert.Equal(t, 3, res.BookingCount)
	assert.True(t, day(2024, time.March, 1).Equal(res.PeriodStart))
	assert.True(t, day(2024, time.March, 18).Equal(res.PeriodEnd))

	// Line item linking: the booking behind 12345 was found by reference.
	first := res.Payouts[0]
	assert.True(t, first.LineItems[0].IsMatched)
	assert.Equal(t, "bk-1", first.LineItems[0].MatchedBookingID)
	assert.False(t, first.LineItems[1].IsMatched)

	// Preview never writes.
	assert.Empty(t, store.savedPayouts)
	assert.Empty(t, store.savedTxs)
}

func TestPreviewFlagsAlreadyImported(t *testing.T) {
	store := &fakeStore{
		existing: []match.StoredPayout{
			{StatementKey: "STMT-001", Platform: parser.PlatformBooking, PayoutDate: day(2024, time.March, 10), NetAmount: amt("870.00")},
		},
	}
	wf := newTestWorkflow(store, nil)

	res, err := wf.Preview(context.Background(), "org-1", "prop-1", parser.PlatformBooking, bookingRows)
	require.NoError(t, err)
	assert.True(t, res.Matches[0].AlreadyReconciled)
	assert.False(t, res.Matches[1].AlreadyReconciled)
}

func TestPreviewBadFile(t *testing.T) {
	wf := newTestWorkflow(&fakeStore{}, nil)
	_, err := wf.Preview(context.Background(), "org-1", "prop-1", parser.PlatformBooking, [][]string{{"garbage"}})
	var bad *BadFileError
	require.ErrorAs(t, err, &bad)
	assert.Contains(t, bad.Msg, "header row not found")
}

func TestConfirmPersistsSelectedKeysOnly(t *testing.T) {
	store := &fakeStore{}
	wf := newTestWorkflow(store, nil)

	res, err := wf.Confirm(context.Background(), "org-1", "prop-1", parser.PlatformBooking, bookingRows,
		[]string{"STMT-001"}, map[string]string{"STMT-001": "tx-1"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.PayoutsCreated)
	assert.Equal(t, 2, res.ItemsCreated)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, KeyOutcome{Key: "STMT-001", Status: "saved"}, res.Outcomes[0])

	require.Len(t, store.savedPayouts, 1)
	assert.Equal(t, "STMT-001", store.savedPayouts[0].StatementKey)
	assert.Equal(t, []string{"tx-1"}, store.savedBankIDs)
}

func TestConfirmIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	wf := newTestWorkflow(store, nil)
	keys := []string{"STMT-001", "STMT-002"}

	first, err := wf.Confirm(context.Background(), "org-1", "prop-1", parser.PlatformBooking, bookingRows, keys, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, first.PayoutsCreated)

	second, err := wf.Confirm(context.Background(), "org-1", "prop-1", parser.PlatformBooking, bookingRows, keys, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second.PayoutsCreated)
	require.Len(t, second.Outcomes, 2)
	for _, o := range second.Outcomes {
		assert.Equal(t, "duplicate", o.Status)
	}
	assert.Len(t, store.savedPayouts, 2)
}

func TestConfirmContinuesPastFailures(t *testing.T) {
	store := &fakeStore{failKeys: map[string]error{"STMT-001": errors.New("connection reset")}}
	wf := newTestWorkflow(store, nil)

	res, err := wf.Confirm(context.Background(), "org-1", "prop-1", parser.PlatformBooking, bookingRows,
		[]string{"STMT-001", "STMT-002"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.PayoutsCreated)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, "failed", res.Outcomes[0].Status)
	assert.Equal(t, "connection reset", res.Outcomes[0].Reason)
	assert.Equal(t, "saved", res.Outcomes[1].Status)
}

func TestConfirmCountsMatchedItems(t *testing.T) {
	finder := &fakeFinder{byRef: map[string]*booking.Booking{
		"12345": {ID: "bk-1"},
		"12346": {ID: "bk-2"},
	}}
	store := &fakeStore{}
	wf := newTestWorkflow(store, finder)

	res, err := wf.Confirm(context.Background(), "org-1", "prop-1", parser.PlatformBooking, bookingRows,
		[]string{"STMT-001"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ItemsMatched)
}

var bcaRows = [][]string{
	{"Tanggal", "Keterangan", "Mutasi", "DB/CR"},
	{"06/03/2024", "TRSF BOOKING.COM", "870.00", "CR"},
	{"07/03/2024", "BIAYA ADM", "15.00", "DB"},
}

func TestPreviewLedger(t *testing.T) {
	store := &fakeStore{}
	wf := newTestWorkflow(store, nil)

	res, err := wf.Preview(context.Background(), "org-1", "prop-1", parser.PlatformBankBCA, bcaRows)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 2)
	// Income only.
	assert.Equal(t, "870", res.TotalGross.String())
	assert.True(t, day(2024, time.March, 6).Equal(res.PeriodStart))
	assert.True(t, day(2024, time.March, 7).Equal(res.PeriodEnd))
	assert.Empty(t, store.savedTxs)
	// Preview parses without a duplicate checker.
	assert.Empty(t, res.Transactions[0].Duplicates)
}

func TestConfirmLedgerDropsDuplicates(t *testing.T) {
	store := &fakeStore{
		duplicates: []parser.DuplicateCandidate{{TransactionID: "tx-old", Description: "TRSF BOOKING.COM"}},
	}
	wf := newTestWorkflow(store, nil)

	res, err := wf.Confirm(context.Background(), "org-1", "prop-1", parser.PlatformBankBCA, bcaRows, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TransactionsCreated)
	assert.Empty(t, store.savedTxs)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "skipped as duplicates")
}

func TestConfirmLedgerPersistsFreshRows(t *testing.T) {
	store := &fakeStore{}
	wf := newTestWorkflow(store, nil)

	res, err := wf.Confirm(context.Background(), "org-1", "prop-1", parser.PlatformBankBCA, bcaRows, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TransactionsCreated)
	assert.Len(t, store.savedTxs, 2)
	assert.Equal(t, "870", res.TotalGross.String())
	assert.True(t, day(2024, time.March, 6).Equal(res.PeriodStart))
	assert.True(t, day(2024, time.March, 7).Equal(res.PeriodEnd))
}

func TestLinkLineItemsGuestFallback(t *testing.T) {
	finder := &fakeFinder{
		byRef: map[string]*booking.Booking{},
		byStay: []booking.Booking{
			{ID: "bk-9", GuestName: "John Smith", CheckIn: day(2024, time.March, 1), CheckOut: day(2024, time.March, 4)},
		},
	}
	wf := newTestWorkflow(&fakeStore{}, finder)

	p := parser.Payout{
		LineItems: []parser.PayoutLineItem{
			{ExternalRef: "unknown-ref", GuestName: "john smith", CheckIn: day(2024, time.March, 1), CheckOut: day(2024, time.March, 4)},
		},
	}
	wf.linkLineItems(context.Background(), "org-1", "prop-1", &p)
	assert.True(t, p.LineItems[0].IsMatched)
	assert.Equal(t, "bk-9", p.LineItems[0].MatchedBookingID)
}

func TestConfirmEchoesPeriodAndTotals(t *testing.T) {
	store := &fakeStore{}
	wf := newTestWorkflow(store, nil)

	res, err := wf.Confirm(context.Background(), "org-1", "prop-1", parser.PlatformBooking, bookingRows,
		[]string{"STMT-001"}, nil)
	require.NoError(t, err)

	// Totals cover the selected payout only, not the whole file.
	assert.Equal(t, "1000", res.TotalGross.String())
	assert.Equal(t, "870", res.TotalNet.String())
	assert.Equal(t, 2, res.BookingCount)
	assert.True(t, day(2024, time.March, 1).Equal(res.PeriodStart))
	assert.True(t, day(2024, time.March, 5).Equal(res.PeriodEnd))
}

func TestConfirmReportsUnknownSelectedKeys(t *testing.T) {
	store := &fakeStore{}
	wf := newTestWorkflow(store, nil)

	res, err := wf.Confirm(context.Background(), "org-1", "prop-1", parser.PlatformBooking, bookingRows,
		[]string{"STMT-001", "STMT-999"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.PayoutsCreated)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, KeyOutcome{Key: "STMT-001", Status: "saved"}, res.Outcomes[0])
	assert.Equal(t, "STMT-999", res.Outcomes[1].Key)
	assert.Equal(t, "failed", res.Outcomes[1].Status)
	assert.Contains(t, res.Outcomes[1].Reason, "not found in file")
}

func TestLinkLineItemsNeverLinksBookingTwice(t *testing.T) {
	shared := &booking.Booking{ID: "bk-1", GuestName: "John Smith"}
	finder := &fakeFinder{byRef: map[string]*booking.Booking{
		"12345": shared,
		"12346": shared,
	}}
	wf := newTestWorkflow(&fakeStore{}, finder)

	p := parser.Payout{
		LineItems: []parser.PayoutLineItem{
			{ExternalRef: "12345"},
			{ExternalRef: "12346"},
		},
	}
	wf.linkLineItems(context.Background(), "org-1", "prop-1", &p)
	assert.True(t, p.LineItems[0].IsMatched)
	assert.False(t, p.LineItems[1].IsMatched)
}

func TestLinkLineItemsSkipsDoubleSoldRoom(t *testing.T) {
	finder := &fakeFinder{byRef: map[string]*booking.Booking{
		"12345": {ID: "bk-1", RoomID: "room-1", CheckIn: day(2024, time.March, 1), CheckOut: day(2024, time.March, 5)},
		"12346": {ID: "bk-2", RoomID: "room-1", CheckIn: day(2024, time.March, 3), CheckOut: day(2024, time.March, 6)},
	}}
	wf := newTestWorkflow(&fakeStore{}, finder)

	p := parser.Payout{
		LineItems: []parser.PayoutLineItem{
			{ExternalRef: "12345"},
			{ExternalRef: "12346"},
		},
	}
	wf.linkLineItems(context.Background(), "org-1", "prop-1", &p)

	// bk-2 overlaps bk-1 on the same room; only the first link stands.
	assert.True(t, p.LineItems[0].IsMatched)
	assert.Equal(t, "bk-1", p.LineItems[0].MatchedBookingID)
	assert.False(t, p.LineItems[1].IsMatched)
	assert.Empty(t, p.LineItems[1].MatchedBookingID)
}

func TestLinkLineItemsAllowsSameRoomBackToBack(t *testing.T) {
	finder := &fakeFinder{byRef: map[string]*booking.Booking{
		"12345": {ID: "bk-1", RoomID: "room-1", CheckIn: day(2024, time.March, 1), CheckOut: day(2024, time.March, 4)},
		"12346": {ID: "bk-2", RoomID: "room-1", CheckIn: day(2024, time.March, 4), CheckOut: day(2024, time.March, 6)},
	}}
	wf := newTestWorkflow(&fakeStore{}, finder)

	p := parser.Payout{
		LineItems: []parser.PayoutLineItem{
			{ExternalRef: "12345"},
			{ExternalRef: "12346"},
		},
	}
	wf.linkLineItems(context.Background(), "org-1", "prop-1", &p)
	assert.True(t, p.LineItems[0].IsMatched)
	assert.True(t, p.LineItems[1].IsMatched)
}
