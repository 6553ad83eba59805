package recon

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchRecordsClassifications(test *testing.T) {
	test.Parallel()
	internal := []Record{
		{OrderRef: "order-1", AmountMinor: 50000},
		{OrderRef: "order-2", AmountMinor: 50000},
		{OrderRef: "order-3", AmountMinor: 30000},
		{OrderRef: "order-5", AmountMinor: 10000},
		{OrderRef: "order-5", AmountMinor: 10000},
	}
	external := []Record{
		{OrderRef: "order-1", AmountMinor: 50000},
		{OrderRef: "order-2", AmountMinor: 45000},
		{OrderRef: "order-4", AmountMinor: 20000},
		{OrderRef: "order-5", AmountMinor: 10000},
	}

	classifications := MatchRecords(internal, external)
	require.Len(test, classifications, 5)

	byRef := make(map[string]Classification, len(classifications))
	for _, classification := range classifications {
		byRef[classification.OrderRef] = classification
	}

	require.Equal(test, StatusMatched, byRef["order-1"].Status)
	require.Zero(test, byRef["order-1"].DifferenceMinor)

	require.Equal(test, StatusAmountMismatch, byRef["order-2"].Status)
	require.Equal(test, int64(5000), byRef["order-2"].DifferenceMinor)

	require.Equal(test, StatusMissingExternal, byRef["order-3"].Status)
	require.Equal(test, int64(30000), byRef["order-3"].DifferenceMinor)
	require.Nil(test, byRef["order-3"].ExternalMinor)

	require.Equal(test, StatusMissingInternal, byRef["order-4"].Status)
	require.Equal(test, int64(-20000), byRef["order-4"].DifferenceMinor)
	require.Nil(test, byRef["order-4"].InternalMinor)

	require.Equal(test, StatusDuplicate, byRef["order-5"].Status)
	require.NotNil(test, byRef["order-5"].InternalMinor)
	require.Equal(test, int64(20000), *byRef["order-5"].InternalMinor)
	require.Equal(test, int64(10000), byRef["order-5"].DifferenceMinor)
}

func TestMatchRecordsSortsByOrderRef(test *testing.T) {
	test.Parallel()
	internal := []Record{
		{OrderRef: "order-b", AmountMinor: 100},
		{OrderRef: "order-a", AmountMinor: 100},
	}
	classifications := MatchRecords(internal, nil)
	require.Len(test, classifications, 2)
	require.Equal(test, "order-a", classifications[0].OrderRef)
	require.Equal(test, "order-b", classifications[1].OrderRef)
}

func TestMatchRecordsEmptyInputs(test *testing.T) {
	test.Parallel()
	require.Empty(test, MatchRecords(nil, nil))
}

func TestParseStatement(test *testing.T) {
	test.Parallel()
	statement := strings.Join([]string{
		"orderRef,amount,currency,utr,date",
		"order-1,500.00,INR,UTR1,2026-03-14",
		"order-2,450.50,INR,UTR2,2026-03-14",
	}, "\n")

	records, err := ParseStatement(strings.NewReader(statement))
	require.NoError(test, err)
	require.Len(test, records, 2)
	require.Equal(test, Record{OrderRef: "order-1", AmountMinor: 50000}, records[0])
	require.Equal(test, Record{OrderRef: "order-2", AmountMinor: 45050}, records[1])
}

func TestParseStatementWithoutHeader(test *testing.T) {
	test.Parallel()
	records, err := ParseStatement(strings.NewReader("order-1,10.25\n"))
	require.NoError(test, err)
	require.Len(test, records, 1)
	require.Equal(test, int64(1025), records[0].AmountMinor)
}

func TestParseStatementRejectsFractionalPaise(test *testing.T) {
	test.Parallel()
	_, err := ParseStatement(strings.NewReader("order-1,500.005\n"))
	require.ErrorIs(test, err, ErrBadStatement)
}

func TestParseStatementRejectsBadRows(test *testing.T) {
	test.Parallel()

	_, err := ParseStatement(strings.NewReader("order-1\n"))
	require.ErrorIs(test, err, ErrBadStatement)

	_, err = ParseStatement(strings.NewReader(" ,500.00\n"))
	require.ErrorIs(test, err, ErrBadStatement)

	_, err = ParseStatement(strings.NewReader("order-1,not-a-number\n"))
	require.ErrorIs(test, err, ErrBadStatement)
}
