// Package signal decodes and validates webhook trading signals.
//
// A signal arrives as a JSON object, typically a TradingView alert body:
//
//	{"symbol": "AAPL", "action": "buy", "order_size": "10"}
//
// "ticker" is accepted in place of "symbol". Validation happens here, once;
// downstream code trusts a Signal value.
package signal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// EnvKey is the environment variable holding the signal payload.
const EnvKey = "SIGNAL_DATA"

// Unknown fills symbol/action in failure records when the payload did not
// carry them.
const Unknown = "UNKNOWN"

// Action is the trade direction requested by a signal.
type Action string

const (
	Buy  Action = "buy"
	Sell Action = "sell"
)

// Signal is a validated trading instruction.
type Signal struct {
	Symbol    string
	Action    Action
	OrderSize decimal.Decimal
}

// DefaultOrderSize is used when order_size is absent or not numeric.
var DefaultOrderSize = decimal.NewFromInt(1)

type payload struct {
	Symbol    *string         `json:"symbol"`
	Ticker    *string         `json:"ticker"`
	Action    *string         `json:"action"`
	OrderSize json.RawMessage `json:"order_size"`
}

type intake struct {
	Symbol string `validate:"required"`
	Action string `validate:"required,oneof=buy sell"`
}

var validate = validator.New()

// Parse decodes a signal payload. Every failure is a *ConfigurationError.
func Parse(data []byte) (Signal, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Signal{}, &ConfigurationError{Reason: "no signal data provided"}
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Signal{}, &ConfigurationError{Reason: "parse signal data", Err: err}
	}

	in := intake{
		Symbol: strings.TrimSpace(p.symbol()),
		Action: strings.ToLower(strings.TrimSpace(deref(p.Action))),
	}
	if err := validate.Struct(in); err != nil {
		return Signal{}, intakeError(err, in)
	}

	return Signal{
		Symbol:    in.Symbol,
		Action:    Action(in.Action),
		OrderSize: parseOrderSize(p.OrderSize),
	}, nil
}

// Partial pulls whatever symbol and action it can out of a payload that may
// have failed Parse. Missing values come back as Unknown.
func Partial(data []byte) (symbol, action string) {
	symbol, action = Unknown, Unknown

	var p payload
	if err := json.Unmarshal(bytes.TrimSpace(data), &p); err != nil {
		return
	}
	if s := strings.TrimSpace(p.symbol()); s != "" {
		symbol = s
	}
	if a := strings.TrimSpace(deref(p.Action)); a != "" {
		action = a
	}
	return
}

// FromEnv returns the raw payload stored under EnvKey.
func FromEnv(getenv func(string) string) []byte {
	return []byte(getenv(EnvKey))
}

func (p payload) symbol() string {
	if s := deref(p.Symbol); strings.TrimSpace(s) != "" {
		return s
	}
	return deref(p.Ticker)
}

// parseOrderSize accepts "0.5", 0.5 and "2". Anything that is not a number
// means one unit; numeric values, zero included, pass through.
func parseOrderSize(raw json.RawMessage) decimal.Decimal {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return DefaultOrderSize
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return DefaultOrderSize
	}
	return d
}

func intakeError(err error, in intake) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ConfigurationError{Reason: "invalid signal", Err: err}
	}

	fe := verrs[0]
	switch {
	case fe.Field() == "Symbol":
		return &ConfigurationError{Reason: "no symbol provided in signal"}
	case fe.Field() == "Action" && fe.Tag() == "required":
		return &ConfigurationError{Reason: "no action (buy/sell) provided in signal"}
	default:
		return &ConfigurationError{Reason: fmt.Sprintf("unsupported action %q (want buy or sell)", in.Action)}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
