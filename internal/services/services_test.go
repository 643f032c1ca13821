package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"expensa/internal/amqp"
	"expensa/internal/core"
	"expensa/internal/log"
	"expensa/internal/splitwise"
	"expensa/internal/storage"
)

type testEnv struct {
	repo      *storage.SQLiteRepository
	publisher *fakePublisher
	stats     *StatsService
	expenses  *ExpenseService
	user      core.User
	cat       core.Category
	sub       core.Subcategory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "services.db"), log.Nop())
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	u, err := repo.CreateUser(ctx, "bob", "token-bob")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	c, err := repo.CreateCategory(ctx, core.Category{UserID: u.ID, Name: "Home", Type: core.CategoryHome})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	s, err := repo.CreateSubcategory(ctx, core.Subcategory{UserID: u.ID, CategoryID: c.ID, Name: "Rent"})
	if err != nil {
		t.Fatalf("CreateSubcategory: %v", err)
	}

	pub := &fakePublisher{}
	stats := NewStatsService(repo, 16, time.Minute, nil)
	return &testEnv{
		repo:      repo,
		publisher: pub,
		stats:     stats,
		expenses:  NewExpenseService(repo, pub, stats, nil),
		user:      u,
		cat:       c,
		sub:       s,
	}
}

func (e *testEnv) expense(desc string, cents int64, d core.Date) core.Expense {
	return core.Expense{
		UserID:        e.user.ID,
		Amount:        core.Money{Cents: cents},
		Description:   desc,
		Date:          d,
		CategoryID:    e.cat.ID,
		SubcategoryID: e.sub.ID,
	}
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.Message
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, msg *amqp.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

// reset drops everything published so far.
func (p *fakePublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = nil
}

// expenseIDs returns the expense IDs of published events of the given type.
func (p *fakePublisher) expenseIDs(typ string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.msgs {
		if m.Type == typ {
			out = append(out, m.ExpenseID)
		}
	}
	return out
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.Type
	}
	return out
}

type fakeSplitwise struct {
	mu       sync.Mutex
	user     splitwise.User
	groups   []splitwise.Group
	expenses []splitwise.Expense
	queries  []splitwise.ExpenseQuery
	created  []map[string]any
	keys     []string
	err      error

	// filterDates makes GetExpenses honor DatedAfter and DatedBefore.
	filterDates bool
}

func (f *fakeSplitwise) record(key string) {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()
}

func (f *fakeSplitwise) GetCurrentUser(_ context.Context, key string) (splitwise.User, error) {
	f.record(key)
	return f.user, f.err
}

func (f *fakeSplitwise) GetGroups(_ context.Context, key string) ([]splitwise.Group, error) {
	f.record(key)
	return f.groups, f.err
}

func (f *fakeSplitwise) GetGroup(_ context.Context, key string, id int64) (splitwise.Group, error) {
	f.record(key)
	for _, g := range f.groups {
		if g.ID == id {
			return g, f.err
		}
	}
	return splitwise.Group{}, &splitwise.APIError{Status: 404}
}

func (f *fakeSplitwise) GetExpenses(_ context.Context, key string, q splitwise.ExpenseQuery) ([]splitwise.Expense, error) {
	f.record(key)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}

	var matched []splitwise.Expense
	for _, e := range f.expenses {
		if f.filterDates {
			d, err := e.ParsedDate()
			if err != nil || !d.After(q.DatedAfter) || (!q.DatedBefore.IsZero() && d.After(q.DatedBefore)) {
				continue
			}
		}
		matched = append(matched, e)
	}
	if q.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (f *fakeSplitwise) CreateExpense(_ context.Context, key string, payload map[string]any) (json.RawMessage, error) {
	f.record(key)
	f.mu.Lock()
	f.created = append(f.created, payload)
	f.mu.Unlock()
	return json.RawMessage(`{"expenses":[{"id":1}]}`), f.err
}

func fixedNow(s string) func() time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}
