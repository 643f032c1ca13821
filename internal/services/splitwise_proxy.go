package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"expensa/internal/log"
	"expensa/internal/splitwise"
)

// GroupSummary is the trimmed group listing returned to clients.
type GroupSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SplitwiseProxy forwards client calls to Splitwise with the caller's
// stored API key.
type SplitwiseProxy struct {
	api      SplitwiseAPI
	settings *SettingsService
	logger   *log.Logger
	now      func() time.Time
}

func NewSplitwiseProxy(api SplitwiseAPI, settings *SettingsService, logger *log.Logger) *SplitwiseProxy {
	if logger == nil {
		logger = log.Nop()
	}
	return &SplitwiseProxy{api: api, settings: settings, logger: logger.WithComponent(log.ComponentSplitwise), now: time.Now}
}

func (p *SplitwiseProxy) CurrentUser(ctx context.Context, userID string) (splitwise.User, error) {
	key, err := p.settings.SplitwiseKey(ctx, userID)
	if err != nil {
		return splitwise.User{}, err
	}
	return p.api.GetCurrentUser(ctx, key)
}

func (p *SplitwiseProxy) Groups(ctx context.Context, userID string) ([]GroupSummary, error) {
	key, err := p.settings.SplitwiseKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	groups, err := p.api.GetGroups(ctx, key)
	if err != nil {
		return nil, err
	}
	out := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupSummary{ID: g.ID, Name: g.Name})
	}
	return out, nil
}

// GroupMembers lists a group's members without their balances.
func (p *SplitwiseProxy) GroupMembers(ctx context.Context, userID string, groupID int64) ([]splitwise.User, error) {
	key, err := p.settings.SplitwiseKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	g, err := p.api.GetGroup(ctx, key, groupID)
	if err != nil {
		return nil, err
	}
	out := make([]splitwise.User, 0, len(g.Members))
	for _, m := range g.Members {
		out = append(out, splitwise.User{ID: m.ID, FirstName: m.FirstName, LastName: m.LastName, Email: m.Email})
	}
	return out, nil
}

// OwedExpenses returns the Splitwise expenses dated after the given time in
// which splitwiseUserID owes something.
func (p *SplitwiseProxy) OwedExpenses(ctx context.Context, userID string, after time.Time, splitwiseUserID int64) ([]splitwise.Expense, error) {
	key, err := p.settings.SplitwiseKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	expenses, err := p.api.GetExpenses(ctx, key, splitwise.ExpenseQuery{DatedAfter: after})
	if err != nil {
		return nil, err
	}
	return splitwise.FilterOwed(expenses, splitwiseUserID), nil
}

// CreateExpense normalizes the shares of a flat create_expense request and
// forwards it.
func (p *SplitwiseProxy) CreateExpense(ctx context.Context, userID, groupID string, req map[string]any) (json.RawMessage, error) {
	key, err := p.settings.SplitwiseKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	payload, err := splitwise.NormalizeShares(req, groupID, p.now())
	if err != nil {
		return nil, err
	}
	resp, err := p.api.CreateExpense(ctx, key, payload)
	if err != nil {
		return nil, fmt.Errorf("create splitwise expense: %w", err)
	}
	p.logger.InfoContext(ctx, "Splitwise expense created",
		log.FieldUserID, userID, log.FieldOperation, log.OpProxy, "group_id", groupID)
	return resp, nil
}
