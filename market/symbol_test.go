package market

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSymbol(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"aapl", "AAPL"},
		{"btcusdt", "BTCUSDT"},
		{"BTC/USD", "BTCUSD"},
		{" eur / usd ", "EURUSD"},
		{"brk b", "BRKB"},
		{"\tspy\n", "SPY"},
		{"", ""},
		{"///", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSymbol(tt.in), "input %q", tt.in)
	}
}

func TestFormatSymbolProperties(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"aapl", "Btc/Usdt", "  spy  ", "e u r/u s d", "es1!", "nq mini",
		"msft\r\n", "a/b/c/d", "x", "", "123abc", "gbp/jpy\t",
	}

	for _, in := range inputs {
		once := FormatSymbol(in)
		assert.Equal(t, once, FormatSymbol(once), "idempotent for %q", in)
		assert.NotContains(t, once, "/")
		assert.False(t, strings.ContainsFunc(once, unicode.IsSpace), "whitespace left in %q", once)
		assert.Equal(t, strings.ToUpper(once), once)
	}
}

func TestIsCryptoPair(t *testing.T) {
	t.Parallel()

	assert.True(t, IsCryptoPair("BTCUSD"))
	assert.True(t, IsCryptoPair("ETHUSDT"))
	assert.False(t, IsCryptoPair("AAPL"))
}

func TestFixedResolver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	conid, err := FixedResolver{}.Resolve(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, DefaultConID, conid)

	conid, err = FixedResolver{ConID: 265598}.Resolve(ctx, "anything")
	require.NoError(t, err)
	assert.Equal(t, int64(265598), conid)
}

func TestTableResolver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewTableResolver(map[string]int64{"aapl": 265598, "brk b": 72063691}, nil)

	conid, err := r.Resolve(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(265598), conid)

	conid, err = r.Resolve(ctx, "BRKB")
	require.NoError(t, err)
	assert.Equal(t, int64(72063691), conid)

	_, err = r.Resolve(ctx, "TSLA")
	assert.True(t, errors.Is(err, ErrUnknownSymbol))

	withFallback := NewTableResolver(nil, FixedResolver{ConID: 7})
	conid, err = withFallback.Resolve(ctx, "TSLA")
	require.NoError(t, err)
	assert.Equal(t, int64(7), conid)
}

func TestResolverFunc(t *testing.T) {
	t.Parallel()

	var seen string
	r := ResolverFunc(func(_ context.Context, s string) (int64, error) {
		seen = s
		return 42, nil
	})

	conid, err := r.Resolve(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, int64(42), conid)
	assert.Equal(t, "SPY", seen)
}

type brokerLookup struct{ ResolverFunc }

func (brokerLookup) RequiresSession() bool { return true }

func TestRequiresSession(t *testing.T) {
	t.Parallel()

	remote := brokerLookup{ResolverFunc(func(context.Context, string) (int64, error) { return 1, nil })}

	assert.False(t, RequiresSession(FixedResolver{}))
	assert.False(t, RequiresSession(NewTableResolver(map[string]int64{"A": 1}, nil)))
	assert.False(t, RequiresSession(NewTableResolver(nil, FixedResolver{})))
	assert.True(t, RequiresSession(remote))
	assert.True(t, RequiresSession(NewTableResolver(map[string]int64{"A": 1}, remote)))
}
