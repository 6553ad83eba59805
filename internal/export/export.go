// Package export renders ledger activity as CSV for auditors and downstream
// finance tooling. Amounts cross the boundary as decimal major units; inside
// the system they stay integer minor units.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// Row is one exported entry joined with its transaction.
type Row struct {
	TransactionRef string
	EventType      string
	SourceRef      string
	Status         string
	EffectiveDate  time.Time
	AccountCode    string
	EntryType      string
	AmountMinor    int64
	Currency       string
	Description    string
	CreatedAt      time.Time
}

// Source provides the rows for a window. The gormstore and pgreport packages
// both implement it.
type Source interface {
	EntryRows(ctx context.Context, from, to time.Time) ([]Row, error)
}

// Exporter writes ledger windows as CSV.
type Exporter struct {
	source Source
}

// New returns an Exporter over source.
func New(source Source) *Exporter {
	return &Exporter{source: source}
}

var header = []string{
	"transaction_ref",
	"event_type",
	"source_ref",
	"status",
	"effective_date",
	"account_code",
	"entry_type",
	"amount",
	"currency",
	"description",
	"created_at",
}

// WriteCSV streams every entry in [from, to] to writer. Rows come back in
// transaction order so a re-run over the same window is byte-identical.
func (exporter *Exporter) WriteCSV(ctx context.Context, from, to time.Time, writer io.Writer) error {
	rows, err := exporter.source.EntryRows(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load export rows: %w", err)
	}
	csvWriter := csv.NewWriter(writer)
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.TransactionRef,
			row.EventType,
			row.SourceRef,
			row.Status,
			row.EffectiveDate.Format("2006-01-02"),
			row.AccountCode,
			row.EntryType,
			decimal.New(row.AmountMinor, -2).StringFixed(2),
			row.Currency,
			row.Description,
			row.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("write row %s: %w", row.TransactionRef, err)
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}
