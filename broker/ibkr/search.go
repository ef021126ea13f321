package ibkr

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rustyeddy/ibtrader/broker"
	"github.com/rustyeddy/ibtrader/market"
)

type searchRequest struct {
	Symbol string `json:"symbol"`
}

type searchResult struct {
	ConID       json.RawMessage `json:"conid"`
	Symbol      string          `json:"symbol"`
	CompanyName string          `json:"companyName"`
}

// SearchContract asks the gateway's security-definition search for symbol
// and returns the first match's conid.
func (c *Client) SearchContract(ctx context.Context, symbol string) (int64, error) {
	const op = "search contract"

	status, body, err := c.post(ctx, "/iserver/secdef/search", searchRequest{Symbol: symbol})
	if err != nil {
		return 0, &broker.APIError{Op: op, Err: err}
	}
	if !ok(status) {
		return 0, &broker.APIError{Op: op, Status: status, Body: string(body)}
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return 0, &broker.APIError{Op: op, Status: status, Body: string(body), Err: fmt.Errorf("decode response: %w", err)}
	}

	for _, r := range results {
		s := scalar(r.ConID)
		if s == "" {
			continue
		}
		conid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		c.log.Debug().Str("symbol", symbol).Int64("conid", conid).Str("company", r.CompanyName).Msg("contract resolved")
		return conid, nil
	}
	return 0, fmt.Errorf("search %s: %w", symbol, market.ErrUnknownSymbol)
}

// SearchResolver resolves contracts through the gateway search endpoint.
type SearchResolver struct {
	Client *Client
}

var (
	_ market.ContractResolver = SearchResolver{}
	_ market.SessionBound     = SearchResolver{}
)

// RequiresSession is always true: the search endpoint needs the bearer
// token issued by Authenticate.
func (SearchResolver) RequiresSession() bool { return true }

func (r SearchResolver) Resolve(ctx context.Context, symbol string) (int64, error) {
	return r.Client.SearchContract(ctx, symbol)
}
