package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	acct, err := s.CreateAccount(ctx, core.Account{Name: "Chequing", Institution: "TD"})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithTx(ctx, func(r ledger.Repository) error {
		require.NoError(t, r.InsertTransaction(ctx, core.Transaction{ID: "a", AccountID: acct.ID, Date: core.NewDate(2024, 1, 1)}))
		_, err := r.CreateRule(ctx, core.Rule{Pattern: "x", Field: core.FieldMerchant, Category: "c", Bucket: "b"})
		require.NoError(t, err)
		require.NoError(t, r.TouchAccountSync(ctx, acct.ID, time.Now()))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, err := s.TransactionExists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)
	rules, _ := s.ListRules(ctx)
	assert.Empty(t, rules)
	got, _ := s.GetAccount(ctx, acct.ID)
	assert.Nil(t, got.LastSync)
}

func TestWithTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.WithTx(ctx, func(r ledger.Repository) error {
		a, err := r.CreateAccount(ctx, core.Account{Name: "Visa", Institution: "TD"})
		if err != nil {
			return err
		}
		return r.InsertTransaction(ctx, core.Transaction{ID: "a", AccountID: a.ID, Date: core.NewDate(2024, 1, 1)})
	})
	require.NoError(t, err)

	exists, err := s.TransactionExists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestInsertTransactionChecks(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.InsertTransaction(ctx, core.Transaction{ID: "a", AccountID: 99})
	assert.ErrorIs(t, err, core.ErrNotFound)

	acct, _ := s.CreateAccount(ctx, core.Account{Name: "n", Institution: "i"})
	require.NoError(t, s.InsertTransaction(ctx, core.Transaction{ID: "a", AccountID: acct.ID}))
	assert.Error(t, s.InsertTransaction(ctx, core.Transaction{ID: "a", AccountID: acct.ID}))
}

func TestListTransactionsOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	a1, _ := s.CreateAccount(ctx, core.Account{Name: "one", Institution: "TD"})
	a2, _ := s.CreateAccount(ctx, core.Account{Name: "two", Institution: "TD"})

	insert := func(id string, acct int64, d core.Date) {
		require.NoError(t, s.InsertTransaction(ctx, core.Transaction{ID: id, AccountID: acct, Date: d, Amount: decimal.NewFromInt(1)}))
	}
	insert("old", a1.ID, core.NewDate(2024, 1, 5))
	insert("new-first", a1.ID, core.NewDate(2024, 2, 1))
	insert("new-second", a1.ID, core.NewDate(2024, 2, 1))
	insert("other", a2.ID, core.NewDate(2024, 3, 1))

	all, err := s.ListTransactions(ctx, core.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"other", "new-second", "new-first", "old"}, ids(all))

	from := core.NewDate(2024, 1, 10)
	filtered, err := s.ListTransactions(ctx, core.TransactionFilter{AccountID: &a1.ID, From: &from})
	require.NoError(t, err)
	assert.Equal(t, []string{"new-second", "new-first"}, ids(filtered))
}

func TestRulesOrderedByPriorityThenID(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, p := range []int{1, 5, 1, 5} {
		_, err := s.CreateRule(ctx, core.Rule{Pattern: "x", Field: core.FieldMerchant, Category: "c", Bucket: "b", Priority: p})
		require.NoError(t, err)
	}

	rules, err := s.ListRules(ctx)
	require.NoError(t, err)
	var got []int64
	for _, r := range rules {
		got = append(got, r.ID)
	}
	assert.Equal(t, []int64{2, 4, 1, 3}, got)

	require.NoError(t, s.DeleteRule(ctx, 4))
	assert.ErrorIs(t, s.DeleteRule(ctx, 4), core.ErrNotFound)
	rules, _ = s.ListRules(ctx)
	assert.Len(t, rules, 3)
}

func TestUpdateClassification(t *testing.T) {
	ctx := context.Background()
	s := New()
	acct, _ := s.CreateAccount(ctx, core.Account{Name: "n", Institution: "i"})
	require.NoError(t, s.InsertTransaction(ctx, core.Transaction{ID: "a", AccountID: acct.ID}))

	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpdateClassification(ctx, "a", core.StringPtr("Food"), core.StringPtr("Groceries"), at))
	assert.ErrorIs(t, s.UpdateClassification(ctx, "missing", nil, nil, at), core.ErrNotFound)

	txns, _ := s.ListTransactions(ctx, core.TransactionFilter{})
	require.Len(t, txns, 1)
	assert.Equal(t, "Groceries", *txns[0].Bucket)
	assert.Equal(t, at, txns[0].UpdatedAt)
}

func TestGetAccountNotFound(t *testing.T) {
	_, err := New().GetAccount(context.Background(), 1)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func ids(txns []core.Transaction) []string {
	out := make([]string, len(txns))
	for i, t := range txns {
		out[i] = t.ID
	}
	return out
}
