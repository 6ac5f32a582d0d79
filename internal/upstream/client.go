package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Client talks to the remote casino platform API. Every call returns either
// a decoded payload or an *Error whose Kind is one of the taxonomy values;
// transport failures and status:error envelopes are normalized here so no
// call site re-derives the distinction.
type Client struct {
	httpClient *http.Client
	baseURL    string
	agentKey   string
}

type Option func(*Client)

// WithHTTPClient overrides the default transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL, agentKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:  baseURL,
		agentKey: agentKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the platform's uniform response wrapper. Some endpoints report
// business failures inside an HTTP 200, others use real HTTP status codes;
// both paths converge in call().
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) call(ctx context.Context, op, method, path, token string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindNetwork, Op: op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	if c.agentKey != "" {
		req.Header.Set("X-Agent-Key", c.agentKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &Error{Kind: KindTimeout, Op: op, Err: err}
		}
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	var env envelope
	decodable := json.Unmarshal(respBody, &env) == nil && env.Status != ""

	switch {
	case decodable && env.Status != "success":
		return classifyBusiness(op, env.Message)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &Error{Kind: KindNotAuthenticated, Op: op, Message: http.StatusText(resp.StatusCode)}
	case resp.StatusCode >= 400:
		return &Error{Kind: KindNetwork, Op: op, Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(respBody))}
	case !decodable:
		return &Error{Kind: KindEmptyPayload, Op: op, Message: "unrecognized response payload"}
	}

	if out != nil {
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return &Error{Kind: KindEmptyPayload, Op: op, Message: "success without payload"}
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &Error{Kind: KindEmptyPayload, Op: op, Err: fmt.Errorf("decode payload: %w", err)}
		}
	}
	return nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var result LoginResult
	payload := map[string]string{"username": username, "password": password}
	if err := c.call(ctx, "login", http.MethodPost, "/api/v1/auth/login", "", payload, &result); err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, &Error{Kind: KindEmptyPayload, Op: "login", Message: "success without token"}
	}
	return &result, nil
}

func (c *Client) Register(ctx context.Context, username, password, inviteCode string) (*LoginResult, error) {
	var result LoginResult
	payload := map[string]string{"username": username, "password": password, "invite_code": inviteCode}
	if err := c.call(ctx, "register", http.MethodPost, "/api/v1/auth/register", "", payload, &result); err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, &Error{Kind: KindEmptyPayload, Op: "register", Message: "success without token"}
	}
	return &result, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.call(ctx, "logout", http.MethodPost, "/api/v1/auth/logout", token, nil, nil)
}

func (c *Client) UserInfo(ctx context.Context, token string) (*UserInfo, error) {
	var info UserInfo
	if err := c.call(ctx, "user_info", http.MethodGet, "/api/v1/user/info", token, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) GameList(ctx context.Context, token string) ([]GameRecord, error) {
	var records []GameRecord
	if err := c.call(ctx, "game_list", http.MethodGet, "/api/v1/games", token, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// LaunchURL asks the platform to mint a launch URL for a vendor game. An
// envelope that reports success but carries no URL is surfaced as
// KindEmptyPayload, distinct from an outright failure.
func (c *Client) LaunchURL(ctx context.Context, token string, req LaunchRequest) (string, error) {
	var result struct {
		LaunchURL string `json:"launch_url"`
	}
	if err := c.call(ctx, "game_launch", http.MethodPost, "/api/v1/game/launch", token, req, &result); err != nil {
		return "", err
	}
	if result.LaunchURL == "" {
		return "", &Error{Kind: KindEmptyPayload, Op: "game_launch", Message: "success without launch url"}
	}
	// Some vendors return protocol-relative URLs.
	launchURL := result.LaunchURL
	if len(launchURL) > 2 && launchURL[:2] == "//" {
		launchURL = "https:" + launchURL
	}
	return launchURL, nil
}

func (c *Client) TransferIn(ctx context.Context, token, platformCode string, amount decimal.Decimal) (*TransferResult, error) {
	var result TransferResult
	payload := map[string]any{"platform_code": platformCode, "amount": amount}
	if err := c.call(ctx, "transfer_in", http.MethodPost, "/api/v1/wallet/transfer-in", token, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TransferOut sweeps the remaining balance out of a vendor sub-ledger. The
// platform computes the amount; the gateway only names the platform code.
func (c *Client) TransferOut(ctx context.Context, token, platformCode string) (*TransferResult, error) {
	var result TransferResult
	payload := map[string]any{"platform_code": platformCode}
	if err := c.call(ctx, "transfer_out", http.MethodPost, "/api/v1/wallet/transfer-out", token, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Notices(ctx context.Context) ([]Notice, error) {
	var notices []Notice
	if err := c.call(ctx, "notices", http.MethodGet, "/api/v1/notices", "", nil, &notices); err != nil {
		return nil, err
	}
	return notices, nil
}

func (c *Client) VIPInfo(ctx context.Context, token string) (*VIPInfo, error) {
	var info VIPInfo
	if err := c.call(ctx, "vip_info", http.MethodGet, "/api/v1/vip", token, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) MoneyLog(ctx context.Context, token string, page, pageSize int) ([]MoneyLogEntry, error) {
	var entries []MoneyLogEntry
	path := fmt.Sprintf("/api/v1/money-log?%s", url.Values{
		"page":      {fmt.Sprint(page)},
		"page_size": {fmt.Sprint(pageSize)},
	}.Encode())
	if err := c.call(ctx, "money_log", http.MethodGet, path, token, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) Messages(ctx context.Context, token string) ([]Message, error) {
	var messages []Message
	if err := c.call(ctx, "messages", http.MethodGet, "/api/v1/messages", token, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
