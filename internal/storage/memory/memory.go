// Package memory is an in-process ledger store used by tests and the demo mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

type txnRow struct {
	seq int64
	t   core.Transaction
}

type state struct {
	accounts []core.Account
	txns     map[string]txnRow
	rules    []core.Rule
	budgets  []core.Budget

	nextAccount int64
	nextRule    int64
	nextBudget  int64
	nextSeq     int64
}

func (st *state) clone() *state {
	c := *st
	c.accounts = cloneAccounts(st.accounts)
	c.rules = append([]core.Rule(nil), st.rules...)
	c.budgets = append([]core.Budget(nil), st.budgets...)
	c.txns = make(map[string]txnRow, len(st.txns))
	for k, v := range st.txns {
		c.txns[k] = v
	}
	return &c
}

// Store keeps everything in memory. WithTx runs against a copy of the data and
// swaps it in on success, so a failed call leaves no trace.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: &state{txns: map[string]txnRow{}}}
}

func (s *Store) WithTx(ctx context.Context, fn func(ledger.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&repo{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

func (s *Store) locked() (*repo, func()) {
	s.mu.Lock()
	return &repo{st: s.st}, s.mu.Unlock
}

func (s *Store) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.CreateAccount(ctx, a)
}

func (s *Store) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.GetAccount(ctx, id)
}

func (s *Store) ListAccounts(ctx context.Context) ([]core.Account, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.ListAccounts(ctx)
}

func (s *Store) TouchAccountSync(ctx context.Context, id int64, at time.Time) error {
	r, unlock := s.locked()
	defer unlock()
	return r.TouchAccountSync(ctx, id, at)
}

func (s *Store) TransactionExists(ctx context.Context, id string) (bool, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.TransactionExists(ctx, id)
}

func (s *Store) InsertTransaction(ctx context.Context, t core.Transaction) error {
	r, unlock := s.locked()
	defer unlock()
	return r.InsertTransaction(ctx, t)
}

func (s *Store) ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.ListTransactions(ctx, f)
}

func (s *Store) UpdateClassification(ctx context.Context, id string, category, bucket *string, at time.Time) error {
	r, unlock := s.locked()
	defer unlock()
	return r.UpdateClassification(ctx, id, category, bucket, at)
}

func (s *Store) CreateRule(ctx context.Context, rule core.Rule) (core.Rule, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.CreateRule(ctx, rule)
}

func (s *Store) ListRules(ctx context.Context) ([]core.Rule, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.ListRules(ctx)
}

func (s *Store) DeleteRule(ctx context.Context, id int64) error {
	r, unlock := s.locked()
	defer unlock()
	return r.DeleteRule(ctx, id)
}

func (s *Store) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.CreateBudget(ctx, b)
}

func (s *Store) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	r, unlock := s.locked()
	defer unlock()
	return r.ListBudgets(ctx)
}

// repo operates on a state without locking; Store holds the lock around it.
type repo struct {
	st *state
}

func (r *repo) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	r.st.nextAccount++
	a.ID = r.st.nextAccount
	r.st.accounts = append(r.st.accounts, a)
	return a, nil
}

func (r *repo) GetAccount(_ context.Context, id int64) (core.Account, error) {
	for _, a := range r.st.accounts {
		if a.ID == id {
			return copyAccount(a), nil
		}
	}
	return core.Account{}, core.NotFoundf("account %d", id)
}

func (r *repo) ListAccounts(_ context.Context) ([]core.Account, error) {
	return cloneAccounts(r.st.accounts), nil
}

func (r *repo) TouchAccountSync(_ context.Context, id int64, at time.Time) error {
	for i := range r.st.accounts {
		if r.st.accounts[i].ID == id {
			r.st.accounts[i].LastSync = &at
			return nil
		}
	}
	return core.NotFoundf("account %d", id)
}

func (r *repo) TransactionExists(_ context.Context, id string) (bool, error) {
	_, ok := r.st.txns[id]
	return ok, nil
}

func (r *repo) InsertTransaction(_ context.Context, t core.Transaction) error {
	if _, ok := r.st.txns[t.ID]; ok {
		return core.Invalidf("transaction %s already exists", t.ID)
	}
	found := false
	for _, a := range r.st.accounts {
		if a.ID == t.AccountID {
			found = true
			break
		}
	}
	if !found {
		return core.NotFoundf("account %d", t.AccountID)
	}
	r.st.nextSeq++
	r.st.txns[t.ID] = txnRow{seq: r.st.nextSeq, t: t}
	return nil
}

func (r *repo) ListTransactions(_ context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	rows := make([]txnRow, 0, len(r.st.txns))
	for _, row := range r.st.txns {
		if f.Matches(row.t) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].t.Date.Equal(rows[j].t.Date.Time) {
			return rows[j].t.Date.Before(rows[i].t.Date)
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]core.Transaction, len(rows))
	for i, row := range rows {
		out[i] = row.t
	}
	return out, nil
}

func (r *repo) UpdateClassification(_ context.Context, id string, category, bucket *string, at time.Time) error {
	row, ok := r.st.txns[id]
	if !ok {
		return core.NotFoundf("transaction %s", id)
	}
	row.t.Category = copyString(category)
	row.t.Bucket = copyString(bucket)
	row.t.UpdatedAt = at
	r.st.txns[id] = row
	return nil
}

func (r *repo) CreateRule(_ context.Context, rule core.Rule) (core.Rule, error) {
	r.st.nextRule++
	rule.ID = r.st.nextRule
	r.st.rules = append(r.st.rules, rule)
	return rule, nil
}

func (r *repo) ListRules(_ context.Context) ([]core.Rule, error) {
	out := append([]core.Rule(nil), r.st.rules...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *repo) DeleteRule(_ context.Context, id int64) error {
	for i, rule := range r.st.rules {
		if rule.ID == id {
			r.st.rules = append(r.st.rules[:i:i], r.st.rules[i+1:]...)
			return nil
		}
	}
	return core.NotFoundf("rule %d", id)
}

func (r *repo) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	r.st.nextBudget++
	b.ID = r.st.nextBudget
	r.st.budgets = append(r.st.budgets, b)
	return b, nil
}

func (r *repo) ListBudgets(_ context.Context) ([]core.Budget, error) {
	return append([]core.Budget(nil), r.st.budgets...), nil
}

func copyAccount(a core.Account) core.Account {
	if a.LastSync != nil {
		at := *a.LastSync
		a.LastSync = &at
	}
	return a
}

func cloneAccounts(in []core.Account) []core.Account {
	out := make([]core.Account, len(in))
	for i, a := range in {
		out[i] = copyAccount(a)
	}
	return out
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
