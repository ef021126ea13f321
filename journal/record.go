package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rustyeddy/ibtrader/pkg/id"
	"github.com/shopspring/decimal"
)

// TimestampLayout matches JavaScript's Date.toISOString so history files
// written by older tooling and by this one look alike.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Result is the outcome half of a TradeRecord: either Success or Failure.
type Result interface {
	Status() Status
}

type Success struct {
	OrderID string
}

func (Success) Status() Status { return StatusSuccess }

type Failure struct {
	Error string
}

func (Failure) Status() Status { return StatusFailed }

// TradeRecord is one attempt to place an order. Records are append-only.
type TradeRecord struct {
	ID        string
	Timestamp time.Time
	Symbol    string
	Action    string
	OrderSize decimal.NullDecimal
	Result    Result
}

// Succeeded builds the record for an accepted order.
func Succeeded(at time.Time, symbol, action string, size decimal.Decimal, orderID string) TradeRecord {
	return TradeRecord{
		ID:        id.NewAt(at),
		Timestamp: at.UTC(),
		Symbol:    symbol,
		Action:    action,
		OrderSize: decimal.NewNullDecimal(size),
		Result:    Success{OrderID: orderID},
	}
}

// Failed builds the record for a run that stopped at any step. size is
// invalid when the run failed before the order size was known.
func Failed(at time.Time, symbol, action string, size decimal.NullDecimal, reason string) TradeRecord {
	return TradeRecord{
		ID:        id.NewAt(at),
		Timestamp: at.UTC(),
		Symbol:    symbol,
		Action:    action,
		OrderSize: size,
		Result:    Failure{Error: reason},
	}
}

func (r TradeRecord) Status() Status {
	if r.Result == nil {
		return ""
	}
	return r.Result.Status()
}

func (r TradeRecord) OrderID() string {
	if s, ok := r.Result.(Success); ok {
		return s.OrderID
	}
	return ""
}

func (r TradeRecord) Error() string {
	if f, ok := r.Result.(Failure); ok {
		return f.Error
	}
	return ""
}

type recordJSON struct {
	ID        string      `json:"id,omitempty"`
	Timestamp string      `json:"timestamp"`
	Symbol    string      `json:"symbol"`
	Action    string      `json:"action"`
	OrderSize json.Number `json:"orderSize,omitempty"`
	OrderID   *idText     `json:"orderId,omitempty"`
	Status    Status      `json:"status"`
	Error     *string     `json:"error,omitempty"`
}

func (r TradeRecord) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		ID:        r.ID,
		Timestamp: r.Timestamp.UTC().Format(TimestampLayout),
		Symbol:    r.Symbol,
		Action:    r.Action,
	}
	if r.OrderSize.Valid {
		out.OrderSize = json.Number(r.OrderSize.Decimal.String())
	}

	switch res := r.Result.(type) {
	case Success:
		out.Status = StatusSuccess
		oid := idText(res.OrderID)
		out.OrderID = &oid
	case Failure:
		out.Status = StatusFailed
		out.Error = &res.Error
	default:
		return nil, fmt.Errorf("trade record %s: no result", r.ID)
	}
	return json.Marshal(out)
}

func (r *TradeRecord) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	ts, err := time.Parse(time.RFC3339Nano, in.Timestamp)
	if err != nil {
		return fmt.Errorf("trade record timestamp %q: %w", in.Timestamp, err)
	}

	rec := TradeRecord{
		ID:        in.ID,
		Timestamp: ts.UTC(),
		Symbol:    in.Symbol,
		Action:    in.Action,
	}
	if in.OrderSize != "" {
		d, err := decimal.NewFromString(in.OrderSize.String())
		if err != nil {
			return fmt.Errorf("trade record orderSize %q: %w", in.OrderSize, err)
		}
		rec.OrderSize = decimal.NewNullDecimal(d)
	}

	switch in.Status {
	case StatusSuccess:
		var orderID string
		if in.OrderID != nil {
			orderID = string(*in.OrderID)
		}
		rec.Result = Success{OrderID: orderID}
	case StatusFailed:
		var reason string
		if in.Error != nil {
			reason = *in.Error
		}
		rec.Result = Failure{Error: reason}
	default:
		return fmt.Errorf("trade record: unknown status %q", in.Status)
	}

	*r = rec
	return nil
}

// idText accepts order ids written as JSON strings or numbers.
type idText string

func (s *idText) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = idText(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = idText(n.String())
	return nil
}
