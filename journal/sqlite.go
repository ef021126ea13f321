package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rustyeddy/ibtrader/pkg/id"
)

// SQLite mirrors the trade history into a queryable table.
type SQLite struct {
	db  *sql.DB
	log zerolog.Logger
}

var _ Journal = (*SQLite)(nil)

func NewSQLite(path string, log zerolog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{
		db:  db,
		log: log.With().Str("journal", "sqlite").Str("path", path).Logger(),
	}, nil
}

func (j *SQLite) Log(rec TradeRecord) Outcome {
	if rec.ID == "" {
		rec.ID = id.NewAt(rec.Timestamp)
	}

	var size, orderID, reason sql.NullString
	if rec.OrderSize.Valid {
		size = sql.NullString{String: rec.OrderSize.Decimal.String(), Valid: true}
	}
	switch res := rec.Result.(type) {
	case Success:
		orderID = sql.NullString{String: res.OrderID, Valid: true}
	case Failure:
		reason = sql.NullString{String: res.Error, Valid: true}
	}

	_, err := j.db.Exec(`
		INSERT INTO trade_history
		(id, timestamp, symbol, action, order_size, status, order_id, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UTC(), rec.Symbol, rec.Action, size, string(rec.Status()), orderID, reason,
	)
	if err != nil {
		j.log.Error().Err(err).Str("id", rec.ID).Msg("insert trade record")
		return Dropped(fmt.Sprintf("sqlite insert: %v", err))
	}
	return Logged()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
