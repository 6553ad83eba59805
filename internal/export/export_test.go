package export

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubSource struct {
	rows []Row
	err  error
}

func (s stubSource) EntryRows(ctx context.Context, from, to time.Time) ([]Row, error) {
	return s.rows, s.err
}

func TestWriteCSV(test *testing.T) {
	test.Parallel()
	effective := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, time.March, 14, 10, 30, 0, 0, time.UTC)
	source := stubSource{rows: []Row{
		{
			TransactionRef: "TXN-1",
			EventType:      "payment_success",
			SourceRef:      "pay-1001",
			Status:         "posted",
			EffectiveDate:  effective,
			AccountCode:    "ESCROW_BANK",
			EntryType:      "debit",
			AmountMinor:    100000,
			Currency:       "INR",
			Description:    "payment pay-1001",
			CreatedAt:      created,
		},
		{
			TransactionRef: "TXN-1",
			EventType:      "payment_success",
			SourceRef:      "pay-1001",
			Status:         "posted",
			EffectiveDate:  effective,
			AccountCode:    "ESCROW_LIABILITY",
			EntryType:      "credit",
			AmountMinor:    100000,
			Currency:       "INR",
			Description:    "payment pay-1001",
			CreatedAt:      created,
		},
	}}

	var buffer bytes.Buffer
	require.NoError(test, New(source).WriteCSV(context.Background(), effective, effective, &buffer))

	lines := strings.Split(strings.TrimRight(buffer.String(), "\n"), "\n")
	require.Len(test, lines, 3)
	require.Equal(test, "transaction_ref,event_type,source_ref,status,effective_date,account_code,entry_type,amount,currency,description,created_at", lines[0])
	require.Equal(test, "TXN-1,payment_success,pay-1001,posted,2026-03-14,ESCROW_BANK,debit,1000.00,INR,payment pay-1001,2026-03-14T10:30:00Z", lines[1])
	require.Equal(test, "TXN-1,payment_success,pay-1001,posted,2026-03-14,ESCROW_LIABILITY,credit,1000.00,INR,payment pay-1001,2026-03-14T10:30:00Z", lines[2])
}

func TestWriteCSVEmptyWindowStillWritesHeader(test *testing.T) {
	test.Parallel()
	var buffer bytes.Buffer
	require.NoError(test, New(stubSource{}).WriteCSV(context.Background(), time.Time{}, time.Time{}, &buffer))
	require.Equal(test, 1, strings.Count(buffer.String(), "\n"))
}

func TestWriteCSVPropagatesSourceError(test *testing.T) {
	test.Parallel()
	sourceErr := errors.New("connection reset")
	err := New(stubSource{err: sourceErr}).WriteCSV(context.Background(), time.Time{}, time.Time{}, &bytes.Buffer{})
	require.ErrorIs(test, err, sourceErr)
}

func TestWriteCSVIsDeterministic(test *testing.T) {
	test.Parallel()
	source := stubSource{rows: []Row{{TransactionRef: "TXN-1", AmountMinor: 150}}}
	exporter := New(source)

	var first, second bytes.Buffer
	require.NoError(test, exporter.WriteCSV(context.Background(), time.Time{}, time.Time{}, &first))
	require.NoError(test, exporter.WriteCSV(context.Background(), time.Time{}, time.Time{}, &second))
	require.Equal(test, first.String(), second.String())
}
