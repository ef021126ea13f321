package journal

import (
	"encoding/csv"
	"io"
	"time"
)

// CSVHeader is the column order written by WriteCSV.
var CSVHeader = []string{"id", "timestamp", "symbol", "action", "order_size", "status", "order_id", "error"}

// WriteCSV exports records as CSV with a header row.
func WriteCSV(w io.Writer, recs []TradeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}

	for _, r := range recs {
		size := ""
		if r.OrderSize.Valid {
			size = r.OrderSize.Decimal.String()
		}
		if err := cw.Write([]string{
			r.ID,
			r.Timestamp.UTC().Format(time.RFC3339),
			r.Symbol,
			r.Action,
			size,
			string(r.Status()),
			r.OrderID(),
			r.Error(),
		}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
