package market

import (
	"context"
	"errors"
	"fmt"
)

// DefaultConID is the placeholder contract id returned by FixedResolver when
// none is configured.
const DefaultConID int64 = 123456

// ErrUnknownSymbol is returned when a resolver has no contract for a symbol.
var ErrUnknownSymbol = errors.New("unknown symbol")

// ContractResolver maps a formatted symbol to the broker's numeric contract
// identifier (IBKR "conid").
type ContractResolver interface {
	Resolve(ctx context.Context, symbol string) (int64, error)
}

// SessionBound is implemented by resolvers that query the broker. They can
// only run once the broker session is authenticated.
type SessionBound interface {
	RequiresSession() bool
}

// RequiresSession reports whether r must wait for an authenticated session.
func RequiresSession(r ContractResolver) bool {
	sb, ok := r.(SessionBound)
	return ok && sb.RequiresSession()
}

// ResolverFunc adapts a function to ContractResolver.
type ResolverFunc func(ctx context.Context, symbol string) (int64, error)

func (f ResolverFunc) Resolve(ctx context.Context, symbol string) (int64, error) {
	return f(ctx, symbol)
}

// FixedResolver returns the same contract id for every symbol.
type FixedResolver struct {
	ConID int64
}

func (r FixedResolver) Resolve(_ context.Context, _ string) (int64, error) {
	if r.ConID == 0 {
		return DefaultConID, nil
	}
	return r.ConID, nil
}

// TableResolver looks symbols up in a static table. Misses go to Fallback
// when set.
type TableResolver struct {
	Table    map[string]int64
	Fallback ContractResolver
}

func (r TableResolver) Resolve(ctx context.Context, symbol string) (int64, error) {
	if conid, ok := r.Table[FormatSymbol(symbol)]; ok {
		return conid, nil
	}
	if r.Fallback != nil {
		return r.Fallback.Resolve(ctx, symbol)
	}
	return 0, fmt.Errorf("resolve %s: %w", symbol, ErrUnknownSymbol)
}

// RequiresSession is true when misses fall through to a session-bound
// resolver.
func (r TableResolver) RequiresSession() bool {
	return r.Fallback != nil && RequiresSession(r.Fallback)
}

// NewTableResolver normalises the table keys with FormatSymbol so config
// entries like "brk b" match the formatted "BRKB".
func NewTableResolver(table map[string]int64, fallback ContractResolver) TableResolver {
	t := make(map[string]int64, len(table))
	for k, v := range table {
		t[FormatSymbol(k)] = v
	}
	return TableResolver{Table: t, Fallback: fallback}
}
