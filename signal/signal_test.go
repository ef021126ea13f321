package signal

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		symbol  string
		action  Action
		size    string
	}{
		{
			name:    "symbol without size defaults to one",
			payload: `{"symbol":"aapl","action":"BUY"}`,
			symbol:  "aapl",
			action:  Buy,
			size:    "1",
		},
		{
			name:    "ticker alias with fractional size",
			payload: `{"ticker":"btcusdt","action":"sell","order_size":"0.5"}`,
			symbol:  "btcusdt",
			action:  Sell,
			size:    "0.5",
		},
		{
			name:    "numeric order size",
			payload: `{"symbol":"MSFT","action":"Buy","order_size":25}`,
			symbol:  "MSFT",
			action:  Buy,
			size:    "25",
		},
		{
			name:    "non numeric order size",
			payload: `{"symbol":"MSFT","action":"buy","order_size":"lots"}`,
			symbol:  "MSFT",
			action:  Buy,
			size:    "1",
		},
		{
			name:    "null order size",
			payload: `{"symbol":"MSFT","action":"buy","order_size":null}`,
			symbol:  "MSFT",
			action:  Buy,
			size:    "1",
		},
		{
			name:    "zero order size is kept",
			payload: `{"symbol":"MSFT","action":"buy","order_size":"0"}`,
			symbol:  "MSFT",
			action:  Buy,
			size:    "0",
		},
		{
			name:    "negative order size is kept",
			payload: `{"symbol":"MSFT","action":"sell","order_size":-2}`,
			symbol:  "MSFT",
			action:  Sell,
			size:    "-2",
		},
		{
			name:    "symbol wins over ticker",
			payload: `{"symbol":"SPY","ticker":"QQQ","action":"sell"}`,
			symbol:  "SPY",
			action:  Sell,
			size:    "1",
		},
		{
			name:    "blank symbol falls back to ticker",
			payload: `{"symbol":"  ","ticker":"QQQ","action":"sell"}`,
			symbol:  "QQQ",
			action:  Sell,
			size:    "1",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sig, err := Parse([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.symbol, sig.Symbol)
			assert.Equal(t, tt.action, sig.Action)
			assert.True(t, decimal.RequireFromString(tt.size).Equal(sig.OrderSize), "size %s", sig.OrderSize)
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		errMsg  string
	}{
		{name: "empty", payload: "", errMsg: "no signal data provided"},
		{name: "whitespace", payload: "  \n", errMsg: "no signal data provided"},
		{name: "json null", payload: "null", errMsg: "no signal data provided"},
		{name: "invalid json", payload: "{symbol:", errMsg: "parse signal data"},
		{name: "missing symbol", payload: `{"action":"buy"}`, errMsg: "no symbol provided in signal"},
		{name: "missing action", payload: `{"symbol":"AAPL"}`, errMsg: "no action (buy/sell) provided in signal"},
		{name: "unknown action", payload: `{"symbol":"AAPL","action":"hold"}`, errMsg: `unsupported action "hold"`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.payload))
			require.Error(t, err)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestPartial(t *testing.T) {
	t.Parallel()

	sym, act := Partial([]byte(`{"ticker":"eurusd","action":"Sell"}`))
	assert.Equal(t, "eurusd", sym)
	assert.Equal(t, "Sell", act)

	sym, act = Partial([]byte(`{"action":"buy"}`))
	assert.Equal(t, Unknown, sym)
	assert.Equal(t, "buy", act)

	sym, act = Partial([]byte(`garbage`))
	assert.Equal(t, Unknown, sym)
	assert.Equal(t, Unknown, act)
}

func TestFromEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{EnvKey: `{"symbol":"AAPL","action":"buy"}`}
	got := FromEnv(func(k string) string { return env[k] })

	sig, err := Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", sig.Symbol)
}
