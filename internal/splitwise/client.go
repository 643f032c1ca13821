// Package splitwise is a small client for the Splitwise v3 REST API, used
// both to proxy calls for the web client and to import owed expenses.
package splitwise

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"expensa/internal/log"
)

const maxResponseBytes = 1 << 20

var (
	ErrUnauthorized = errors.New("splitwise: unauthorized")
	ErrMissingKey   = errors.New("splitwise API key not found")
)

// APIError is returned for any non-2xx Splitwise response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Splitwise API error: %d", e.Status)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.WithComponent(log.ComponentSplitwise),
	}
}

func (c *Client) do(ctx context.Context, apiKey, method, path string, query url.Values, body any, out any) error {
	if apiKey == "" {
		return ErrMissingKey
	}
	u := c.baseURL + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("splitwise %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read splitwise response: %w", err)
	}

	c.logger.DebugContext(ctx, "Splitwise call",
		log.FieldOperation, path,
		log.FieldUpstreamCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode splitwise %s: %w", path, err)
	}
	return nil
}

func (c *Client) GetCurrentUser(ctx context.Context, apiKey string) (User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, apiKey, http.MethodGet, "get_current_user", nil, nil, &resp); err != nil {
		return User{}, err
	}
	return resp.User, nil
}

func (c *Client) GetGroups(ctx context.Context, apiKey string) ([]Group, error) {
	var resp struct {
		Groups []Group `json:"groups"`
	}
	if err := c.do(ctx, apiKey, http.MethodGet, "get_groups", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

func (c *Client) GetGroup(ctx context.Context, apiKey string, id int64) (Group, error) {
	var resp struct {
		Group Group `json:"group"`
	}
	path := "get_group/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, apiKey, http.MethodGet, path, nil, nil, &resp); err != nil {
		return Group{}, err
	}
	return resp.Group, nil
}

func (c *Client) GetExpenses(ctx context.Context, apiKey string, q ExpenseQuery) ([]Expense, error) {
	params := url.Values{}
	if !q.DatedAfter.IsZero() {
		params.Set("dated_after", q.DatedAfter.UTC().Format(time.RFC3339))
	}
	if !q.DatedBefore.IsZero() {
		params.Set("dated_before", q.DatedBefore.UTC().Format(time.RFC3339))
	}
	if q.GroupID != 0 {
		params.Set("group_id", strconv.FormatInt(q.GroupID, 10))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	var resp struct {
		Expenses []Expense `json:"expenses"`
	}
	if err := c.do(ctx, apiKey, http.MethodGet, "get_expenses", params, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Expenses, nil
}

// CreateExpense posts an already normalized payload (see NormalizeShares) and
// returns the raw Splitwise response.
func (c *Client) CreateExpense(ctx context.Context, apiKey string, payload map[string]any) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.do(ctx, apiKey, http.MethodPost, "create_expense", nil, payload, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
