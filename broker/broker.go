package broker

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Session is one authenticated conversation with a broker's trading API.
// Calls are made in order and each is attempted once.
type Session interface {
	Authenticate(ctx context.Context, username, password string) (SessionToken, error)
	CheckSession(ctx context.Context) (SessionStatus, error)
	SelectAccount(ctx context.Context, accountID string) error
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}

type SessionToken struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int
}

type SessionStatus struct {
	Authenticated bool
	Connected     bool
	Raw           json.RawMessage
}

type SecType string

const SecTypeStock SecType = "STK"

type OrderType string

const OrderTypeMarket OrderType = "MKT"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type TimeInForce string

const TIFDay TimeInForce = "DAY"

// OrderRequest is the order ticket sent to the broker.
type OrderRequest struct {
	AccountID string
	ConID     int64
	SecType   SecType
	OrderType OrderType
	Side      Side
	Quantity  decimal.Decimal
	TIF       TimeInForce
}

// NewMarketOrder builds a DAY market order for a stock contract.
func NewMarketOrder(accountID string, conid int64, side Side, qty decimal.Decimal) OrderRequest {
	return OrderRequest{
		AccountID: accountID,
		ConID:     conid,
		SecType:   SecTypeStock,
		OrderType: OrderTypeMarket,
		Side:      side,
		Quantity:  qty,
		TIF:       TIFDay,
	}
}

// OrderResult is the broker's acknowledgement of a submitted order.
type OrderResult struct {
	ID  string
	Raw json.RawMessage
}
