package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const selectRecord = `
	SELECT id, timestamp, symbol, action, order_size, status, order_id, error
	FROM trade_history`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (TradeRecord, error) {
	var (
		rec                     TradeRecord
		status                  string
		size, orderID, errorMsg sql.NullString
	)
	if err := s.Scan(&rec.ID, &rec.Timestamp, &rec.Symbol, &rec.Action, &size, &status, &orderID, &errorMsg); err != nil {
		return TradeRecord{}, err
	}

	if size.Valid {
		d, err := decimal.NewFromString(size.String)
		if err != nil {
			return TradeRecord{}, fmt.Errorf("record %s order_size %q: %w", rec.ID, size.String, err)
		}
		rec.OrderSize = decimal.NewNullDecimal(d)
	}

	switch Status(status) {
	case StatusSuccess:
		rec.Result = Success{OrderID: orderID.String}
	case StatusFailed:
		rec.Result = Failure{Error: errorMsg.String}
	default:
		return TradeRecord{}, fmt.Errorf("record %s: unknown status %q", rec.ID, status)
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, nil
}

// Get returns a single record by id.
func (j *SQLite) Get(recordID string) (TradeRecord, error) {
	rec, err := scanRecord(j.db.QueryRow(selectRecord+` WHERE id = ?`, recordID))
	if errors.Is(err, sql.ErrNoRows) {
		return TradeRecord{}, fmt.Errorf("trade record %q not found", recordID)
	}
	return rec, err
}

// ListBetween returns records whose timestamp is within [start, end),
// oldest first.
func (j *SQLite) ListBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(selectRecord+`
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC, id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
