// Package client is the Go consumer of the fintrack HTTP API. It
// implements the analytics source interfaces so reports can be computed
// locally from a remote store, and exposes the mutations.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken installs the bearer token used on every subsequent call.
func (c *Client) SetToken(token string) {
	c.token = token
}

type idResponse struct {
	ID int64 `json:"id"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// do performs a request and decodes a 2xx JSON body into out (out may be
// nil). A 401 maps to core.ErrAuthRequired; transport failures and any
// other non-2xx map to core.ErrUpstreamUnavailable.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", core.ErrUpstreamUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s %s", core.ErrAuthRequired, method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s: %s", core.ErrUpstreamUnavailable, method, path, readErrorMessage(resp.Body, resp.StatusCode))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode %s %s: %v", core.ErrUpstreamUnavailable, method, path, err)
		}
	}
	return nil
}

func readErrorMessage(r io.Reader, status int) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&body); err == nil && body.Error != "" {
		return fmt.Sprintf("status %d: %s", status, body.Error)
	}
	return fmt.Sprintf("status %d", status)
}

// Setup creates the credential on a fresh server.
func (c *Client) Setup(ctx context.Context, password string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/setup", map[string]string{"password": password}, nil)
}

// Login exchanges the password for a bearer token and installs it.
func (c *Client) Login(ctx context.Context, password string) (string, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"password": password}, &resp); err != nil {
		return "", err
	}
	c.token = resp.Token
	return resp.Token, nil
}

// CheckAuth verifies the installed token.
func (c *Client) CheckAuth(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/auth/check", nil, nil)
}

// Categories lists active categories. Implements analytics.CategorySource.
// Categories implements analytics.CategorySource. It asks for inactive
// categories too: historical transactions keep referencing them, and the
// classifier needs the full set.
func (c *Client) Categories(ctx context.Context) ([]core.Category, error) {
	var cats []core.Category
	if err := c.do(ctx, http.MethodGet, "/api/categories?include_inactive=true", nil, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// ActiveCategories returns only the categories offered for new
// transactions, optionally filtered by type.
func (c *Client) ActiveCategories(ctx context.Context, typ core.CategoryType) ([]core.Category, error) {
	path := "/api/categories"
	if typ != "" {
		path += "?type=" + url.QueryEscape(string(typ))
	}
	var cats []core.Category
	if err := c.do(ctx, http.MethodGet, path, nil, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

func (c *Client) CreateCategory(ctx context.Context, cat core.Category) (int64, error) {
	payload := map[string]any{
		"name": cat.Name,
		"type": cat.Type,
	}
	if cat.Color != "" {
		payload["color"] = cat.Color
	}
	var resp idResponse
	if err := c.do(ctx, http.MethodPost, "/api/categories", payload, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

func (c *Client) UpdateCategoryColor(ctx context.Context, id int64, color string) error {
	return c.do(ctx, http.MethodPut, "/api/categories/"+strconv.FormatInt(id, 10),
		map[string]string{"color": color}, nil)
}

func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/categories/"+strconv.FormatInt(id, 10), nil, nil)
}

// TransactionsInRange fetches the snapshot for a resolved range.
// Implements analytics.TransactionSource.
func (c *Client) TransactionsInRange(ctx context.Context, rng analytics.Range, includeSavings bool) ([]core.Transaction, error) {
	rows, err := c.ListTransactions(ctx, analytics.PeriodCustom, rng.Start, rng.End, includeSavings)
	if err != nil {
		return nil, err
	}
	txs := make([]core.Transaction, len(rows))
	for i, row := range rows {
		txs[i] = row.Transaction
	}
	return txs, nil
}

// ListTransactions lists classified transactions for a period. Start and
// end are required for PeriodCustom and ignored otherwise.
func (c *Client) ListTransactions(ctx context.Context, period analytics.Period, start, end core.Date, includeSavings bool) ([]core.ClassifiedTransaction, error) {
	q := url.Values{}
	q.Set("period", string(period))
	if !start.IsZero() {
		q.Set("start_date", start.String())
	}
	if !end.IsZero() {
		q.Set("end_date", end.String())
	}
	q.Set("include_savings", strconv.FormatBool(includeSavings))

	var rows []core.ClassifiedTransaction
	if err := c.do(ctx, http.MethodGet, "/api/transactions?"+q.Encode(), nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) CreateTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	payload := map[string]any{
		"amount":      tx.Amount,
		"category_id": tx.CategoryID,
		"date":        tx.Date,
	}
	if tx.Description != "" {
		payload["description"] = tx.Description
	}
	var resp idResponse
	if err := c.do(ctx, http.MethodPost, "/api/transactions", payload, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// TransactionPatch is a partial transaction update; nil fields are left
// unchanged.
type TransactionPatch struct {
	Amount      *core.Money `json:"amount,omitempty"`
	CategoryID  *int64      `json:"category_id,omitempty"`
	Date        *core.Date  `json:"date,omitempty"`
	Description *string     `json:"description,omitempty"`
}

func (c *Client) UpdateTransaction(ctx context.Context, id int64, patch TransactionPatch) error {
	return c.do(ctx, http.MethodPut, "/api/transactions/"+strconv.FormatInt(id, 10), patch, nil)
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/transactions/"+strconv.FormatInt(id, 10), nil, nil)
}

// Analytics requests a server-computed report.
func (c *Client) Analytics(ctx context.Context, req analytics.Request) (*analytics.Result, error) {
	var result analytics.Result
	if err := c.do(ctx, http.MethodPost, "/api/analytics", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SavingsAnalytics requests a server-computed savings report.
func (c *Client) SavingsAnalytics(ctx context.Context, req analytics.Request) (*analytics.SavingsResult, error) {
	var result analytics.SavingsResult
	if err := c.do(ctx, http.MethodPost, "/api/analytics/savings", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Periods lists the period kinds the server understands.
func (c *Client) Periods(ctx context.Context) ([]analytics.Period, error) {
	var periods []analytics.Period
	if err := c.do(ctx, http.MethodGet, "/api/periods", nil, &periods); err != nil {
		return nil, err
	}
	return periods, nil
}
