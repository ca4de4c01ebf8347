package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"finbot/internal/core"
)

// DateLayout is the export timestamp format. Dates are written in UTC.
const DateLayout = "2006-01-02 15:04:05"

// WriteCSV writes a header row followed by one row per transaction, in the
// given order. An empty slice produces the header only.
func WriteCSV(w io.Writer, txs []core.Transaction, loc Locale) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(loc.ExportHeader[:]); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range txs {
		kind := loc.ExpenseLabel
		if t.IsIncome {
			kind = loc.IncomeLabel
		}
		record := []string{
			t.Date.UTC().Format(DateLayout),
			t.Amount.String(),
			t.Category.String(),
			kind,
			t.Currency,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", t.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ExportCSV renders txs into an in-memory CSV document.
func ExportCSV(txs []core.Transaction, loc Locale) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, txs, loc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
