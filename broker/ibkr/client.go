// Package ibkr talks to an Interactive Brokers Client Portal gateway
// running on the local machine.
package ibkr

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/ibtrader/broker"
)

const (
	// DefaultBaseURL is the gateway's default listen address.
	DefaultBaseURL = "https://localhost:5000/v1/portal"
	// DefaultTimeout bounds every individual call.
	DefaultTimeout = 30 * time.Second

	maxBody = 64 * 1024
)

var errMissingOrderID = errors.New("response missing order id")

// Options configures a Client.
type Options struct {
	BaseURL string
	// VerifyTLS should stay false only for the self-signed local gateway.
	VerifyTLS bool
	Timeout   time.Duration
	Logger    *zerolog.Logger
}

// Client implements broker.Session. It is not safe for concurrent use; a
// run owns one client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

var _ broker.Session = (*Client)(nil)

// NewClient creates a gateway client. Zero options fall back to the
// defaults.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: !opts.VerifyTLS, //nolint:gosec // local gateway uses a self-signed cert
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		log: log.With().Str("component", "ibkr").Logger(),
	}
}

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   int             `json:"expires_in"`
	Error       json.RawMessage `json:"error"`
	Description string          `json:"error_description"`
}

// Authenticate logs in and keeps the returned token for later calls.
func (c *Client) Authenticate(ctx context.Context, username, password string) (broker.SessionToken, error) {
	status, body, err := c.post(ctx, "/oauth/token", authRequest{Username: username, Password: password})
	if err != nil {
		return broker.SessionToken{}, &broker.AuthenticationError{Reason: "request failed", Err: err}
	}

	var ar authResponse
	decodeErr := json.Unmarshal(body, &ar)

	if msg := ar.errorText(); msg != "" {
		return broker.SessionToken{}, &broker.AuthenticationError{Reason: msg, Status: status, Body: string(body)}
	}
	if !ok(status) {
		return broker.SessionToken{}, &broker.AuthenticationError{
			Reason: fmt.Sprintf("http %d", status),
			Status: status,
			Body:   string(body),
		}
	}
	if decodeErr != nil {
		return broker.SessionToken{}, &broker.AuthenticationError{Reason: "decode response", Status: status, Body: string(body), Err: decodeErr}
	}
	if ar.AccessToken == "" {
		return broker.SessionToken{}, &broker.AuthenticationError{Reason: "response missing access_token", Status: status, Body: string(body)}
	}

	c.token = ar.AccessToken
	c.log.Debug().Str("token_type", ar.TokenType).Int("expires_in", ar.ExpiresIn).Msg("authenticated")

	return broker.SessionToken{
		AccessToken: ar.AccessToken,
		TokenType:   ar.TokenType,
		ExpiresIn:   ar.ExpiresIn,
	}, nil
}

// errorText returns the "error" field as text, or "" when it is absent.
func (ar authResponse) errorText() string {
	raw := bytes.TrimSpace(ar.Error)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("false")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return ""
		}
		if ar.Description != "" {
			return s + ": " + ar.Description
		}
		return s
	}
	return string(raw)
}

type tickleResponse struct {
	Session string `json:"session"`
	IServer struct {
		AuthStatus struct {
			Authenticated bool `json:"authenticated"`
			Connected     bool `json:"connected"`
		} `json:"authStatus"`
	} `json:"iserver"`
}

// CheckSession pings /tickle. A decodable body fills the status flags; an
// unexpected body is not an error.
func (c *Client) CheckSession(ctx context.Context) (broker.SessionStatus, error) {
	const op = "check session"

	status, body, err := c.post(ctx, "/tickle", nil)
	if err != nil {
		return broker.SessionStatus{}, &broker.APIError{Op: op, Err: err}
	}
	if !ok(status) {
		return broker.SessionStatus{}, &broker.APIError{Op: op, Status: status, Body: string(body)}
	}

	st := broker.SessionStatus{Raw: rawJSON(body)}
	var tr tickleResponse
	if json.Unmarshal(body, &tr) == nil {
		st.Authenticated = tr.IServer.AuthStatus.Authenticated
		st.Connected = tr.IServer.AuthStatus.Connected
	}
	return st, nil
}

type accountRequest struct {
	AcctID string `json:"acctId"`
}

// SelectAccount switches the session to accountID.
func (c *Client) SelectAccount(ctx context.Context, accountID string) error {
	const op = "select account"

	status, body, err := c.post(ctx, "/account", accountRequest{AcctID: accountID})
	if err != nil {
		return &broker.APIError{Op: op, Err: err}
	}
	if !ok(status) {
		return &broker.APIError{Op: op, Status: status, Body: string(body)}
	}
	return nil
}

type orderTicket struct {
	AcctID    string      `json:"acctId"`
	ConID     int64       `json:"conid"`
	SecType   string      `json:"secType"`
	OrderType string      `json:"orderType"`
	Side      string      `json:"side"`
	Quantity  json.Number `json:"quantity"`
	TIF       string      `json:"tif"`
}

// SubmitOrder places req and returns the broker's order id. A 2xx answer
// without an order id is still an error.
func (c *Client) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	const op = "submit order"

	ticket := orderTicket{
		AcctID:    req.AccountID,
		ConID:     req.ConID,
		SecType:   string(req.SecType),
		OrderType: string(req.OrderType),
		Side:      string(req.Side),
		Quantity:  json.Number(req.Quantity.String()),
		TIF:       string(req.TIF),
	}

	status, body, err := c.post(ctx, "/order", ticket)
	if err != nil {
		return broker.OrderResult{}, &broker.APIError{Op: op, Err: err}
	}
	if !ok(status) {
		return broker.OrderResult{}, &broker.APIError{Op: op, Status: status, Body: string(body)}
	}

	id := orderID(body)
	if id == "" {
		return broker.OrderResult{}, &broker.APIError{Op: op, Status: status, Body: string(body), Err: errMissingOrderID}
	}
	return broker.OrderResult{ID: id, Raw: rawJSON(body)}, nil
}

// post sends a JSON body (nil for none) and returns the status and at most
// maxBody bytes of the response.
func (c *Client) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	var rdr io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, rdr)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	c.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("gateway call")

	return resp.StatusCode, bytes.TrimSpace(body), nil
}

func ok(status int) bool {
	return status >= 200 && status < 300
}

// rawJSON keeps body as json.RawMessage only when it is valid JSON, so
// results can be re-encoded safely.
func rawJSON(body []byte) json.RawMessage {
	if len(body) == 0 || !json.Valid(body) {
		return nil
	}
	return json.RawMessage(append([]byte(nil), body...))
}

// orderID digs the order id out of the gateway's reply, which is either an
// object or a list of objects keyed "id" or "order_id".
func orderID(body []byte) string {
	var list []map[string]json.RawMessage
	if json.Unmarshal(body, &list) == nil {
		for _, obj := range list {
			if id := idField(obj); id != "" {
				return id
			}
		}
		return ""
	}

	var obj map[string]json.RawMessage
	if json.Unmarshal(body, &obj) == nil {
		return idField(obj)
	}
	return ""
}

func idField(obj map[string]json.RawMessage) string {
	for _, key := range []string{"id", "order_id"} {
		if s := scalar(obj[key]); s != "" {
			return s
		}
	}
	return ""
}

// scalar renders a JSON string or number as text.
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}
