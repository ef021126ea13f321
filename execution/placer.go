// Package execution runs one signal through to a placed order and a
// trade-history entry.
package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/ibtrader/broker"
	"github.com/rustyeddy/ibtrader/config"
	"github.com/rustyeddy/ibtrader/journal"
	"github.com/rustyeddy/ibtrader/market"
	"github.com/rustyeddy/ibtrader/signal"
	"github.com/shopspring/decimal"
)

// Input is what one run consumes.
type Input struct {
	Credentials config.Credentials
	Payload     []byte
}

// Result is printed when a run ends. Exactly one of Order/Error is set.
type Result struct {
	Success bool            `json:"success"`
	Order   json.RawMessage `json:"order,omitempty"`
	Error   string          `json:"error,omitempty"`

	OrderID string          `json:"-"`
	Err     error           `json:"-"`
	Journal journal.Outcome `json:"-"`
}

// Placer runs the steps in a fixed order: credentials, signal, symbol,
// contract, authenticate, session check, account, order. A session-bound
// resolver moves the contract step to just after authenticate. The first
// failure stops the run. Every run ends with exactly one journal entry.
type Placer struct {
	Session  broker.Session
	Resolver market.ContractResolver
	Journal  journal.Journal
	Log      zerolog.Logger
	Now      func() time.Time

	// RequireLiveSession makes a failed session check fatal.
	RequireLiveSession bool
}

// attempt accumulates what is known about the order as the run progresses,
// so a failure can be recorded with as much detail as was available.
type attempt struct {
	symbol string
	action string
	size   decimal.NullDecimal
}

func (p *Placer) Run(ctx context.Context, in Input) Result {
	at := attempt{symbol: signal.Unknown, action: signal.Unknown}

	res, err := p.place(ctx, in, &at)
	if err != nil {
		return p.fail(at, err)
	}

	order := res.Raw
	if len(order) == 0 {
		order, _ = json.Marshal(map[string]string{"id": res.ID})
	}

	rec := journal.Succeeded(p.now(), at.symbol, at.action, at.size.Decimal, res.ID)
	return Result{
		Success: true,
		Order:   order,
		OrderID: res.ID,
		Journal: p.record(rec),
	}
}

// Fail ends a run that could not start, such as one without a usable
// configuration. The failure is recorded like any other.
func (p *Placer) Fail(in Input, err error) Result {
	var at attempt
	at.symbol, at.action = signal.Partial(in.Payload)
	return p.fail(at, err)
}

func (p *Placer) fail(at attempt, err error) Result {
	p.Log.Error().Err(err).Str("symbol", at.symbol).Str("kind", errorKind(err)).Msg("order process failed")

	rec := journal.Failed(p.now(), at.symbol, at.action, at.size, err.Error())
	return Result{
		Success: false,
		Error:   err.Error(),
		Err:     err,
		Journal: p.record(rec),
	}
}

func (p *Placer) place(ctx context.Context, in Input, at *attempt) (broker.OrderResult, error) {
	if err := in.Credentials.Validate(); err != nil {
		at.symbol, at.action = signal.Partial(in.Payload)
		return broker.OrderResult{}, err
	}

	sig, err := signal.Parse(in.Payload)
	if err != nil {
		at.symbol, at.action = signal.Partial(in.Payload)
		return broker.OrderResult{}, err
	}

	symbol := market.FormatSymbol(sig.Symbol)
	at.symbol = symbol
	at.action = string(sig.Action)
	at.size = decimal.NewNullDecimal(sig.OrderSize)

	side := broker.SideSell
	if sig.Action == signal.Buy {
		side = broker.SideBuy
	}

	log := p.Log.With().
		Str("symbol", symbol).
		Str("side", string(side)).
		Str("quantity", sig.OrderSize.String()).
		Logger()
	log.Info().Bool("crypto_pair", market.IsCryptoPair(symbol)).Msg("processing signal")

	// Static resolvers run before any network call; resolvers that query
	// the broker wait for the authenticated session.
	var conid int64
	deferResolve := market.RequiresSession(p.Resolver)
	if !deferResolve {
		if conid, err = p.resolve(ctx, symbol); err != nil {
			return broker.OrderResult{}, err
		}
		log = log.With().Int64("conid", conid).Logger()
	}

	log.Debug().Str("step", "authenticate").Msg("authenticating")
	if _, err := p.Session.Authenticate(ctx, in.Credentials.Username, in.Credentials.Password); err != nil {
		return broker.OrderResult{}, err
	}
	log.Info().Msg("authentication successful")

	if deferResolve {
		if conid, err = p.resolve(ctx, symbol); err != nil {
			return broker.OrderResult{}, err
		}
		log = log.With().Int64("conid", conid).Logger()
	}

	status, err := p.Session.CheckSession(ctx)
	switch {
	case err != nil && p.RequireLiveSession:
		return broker.OrderResult{}, err
	case err != nil:
		log.Warn().Err(err).Str("step", "check session").Msg("session check failed; continuing")
	default:
		log.Info().
			Bool("authenticated", status.Authenticated).
			Bool("connected", status.Connected).
			RawJSON("status", rawOrNull(status.Raw)).
			Msg("session status")
	}

	accountID := in.Credentials.AccountID
	if err := p.Session.SelectAccount(ctx, accountID); err != nil {
		return broker.OrderResult{}, err
	}
	log = log.With().Str("account", accountID).Logger()
	log.Info().Msg("account selected")

	req := broker.NewMarketOrder(accountID, conid, side, sig.OrderSize)
	log.Info().Str("step", "submit order").Msg("placing order")

	res, err := p.Session.SubmitOrder(ctx, req)
	if err != nil {
		var apiErr *broker.APIError
		if errors.As(err, &apiErr) && apiErr.Body != "" {
			log.Error().Int("status", apiErr.Status).Str("response", apiErr.Body).Msg("order rejected")
		}
		return broker.OrderResult{}, err
	}

	log.Info().Str("order_id", res.ID).RawJSON("response", rawOrNull(res.Raw)).Msg("order placed")
	return res, nil
}

func (p *Placer) resolve(ctx context.Context, symbol string) (int64, error) {
	conid, err := p.Resolver.Resolve(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("resolve contract for %s: %w", symbol, err)
	}
	return conid, nil
}

// record writes rec and reports any journal trouble without failing the run.
func (p *Placer) record(rec journal.TradeRecord) journal.Outcome {
	if p.Journal == nil {
		return journal.Dropped("no journal configured")
	}
	out := p.Journal.Log(rec)
	if !out.OK() {
		p.Log.Warn().Str("id", rec.ID).Bool("persisted", out.Persisted()).Str("reason", out.Warning()).Msg("trade log warning")
	}
	return out
}

func (p *Placer) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func errorKind(err error) string {
	var (
		cfgErr  *signal.ConfigurationError
		authErr *broker.AuthenticationError
		apiErr  *broker.APIError
	)
	switch {
	case errors.As(err, &cfgErr):
		return "configuration"
	case errors.As(err, &authErr):
		return "authentication"
	case errors.As(err, &apiErr):
		return "api"
	case errors.Is(err, market.ErrUnknownSymbol):
		return "contract"
	default:
		return "unknown"
	}
}

func rawOrNull(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}
