package recon

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrBadStatement flags an external statement the parser cannot accept.
var ErrBadStatement = errors.New("malformed statement")

var minorUnitsPerRupee = decimal.NewFromInt(100)

// ParseStatement reads an external bank or gateway statement in the
// aggregator's CSV layout (orderRef,amount,currency,utr,date) into records.
// Amounts arrive as decimal strings and convert exactly into minor units;
// a value with fractional paise is rejected rather than rounded, since a
// statement is evidence, not arithmetic.
func ParseStatement(reader io.Reader) ([]Record, error) {
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1
	records := make([]Record, 0, 64)
	line := 0
	for {
		row, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadStatement, line+1, err)
		}
		line++
		if line == 1 && looksLikeHeader(row) {
			continue
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("%w: line %d: want at least orderRef and amount", ErrBadStatement, line)
		}
		orderRef := strings.TrimSpace(row[0])
		if orderRef == "" {
			return nil, fmt.Errorf("%w: line %d: empty order ref", ErrBadStatement, line)
		}
		amountMinor, err := parseAmountMinor(strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadStatement, line, err)
		}
		records = append(records, Record{OrderRef: orderRef, AmountMinor: amountMinor})
	}
	return records, nil
}

func parseAmountMinor(raw string) (int64, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %v", raw, err)
	}
	minor := amount.Mul(minorUnitsPerRupee)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %q has fractional minor units", raw)
	}
	return minor.IntPart(), nil
}

func looksLikeHeader(row []string) bool {
	if len(row) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(row[0]))
	return first == "orderref" || first == "order_ref" || first == "reference"
}
