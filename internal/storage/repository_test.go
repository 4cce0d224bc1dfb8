package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestAccountsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	a, err := repo.CreateAccount(ctx, core.Account{Name: "Chequing", Provider: "TD", Institution: "TD Canada Trust"})
	require.NoError(t, err)
	assert.NotZero(t, a.ID)
	assert.Nil(t, a.LastSync)

	at := time.Date(2024, 3, 31, 8, 15, 30, 123456789, time.UTC)
	require.NoError(t, repo.TouchAccountSync(ctx, a.ID, at))

	got, err := repo.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastSync)
	assert.True(t, at.Equal(*got.LastSync))
	assert.Equal(t, "TD", got.Provider)

	_, err = repo.GetAccount(ctx, 999)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, repo.TouchAccountSync(ctx, 999, at), core.ErrNotFound)

	accts, err := repo.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accts, 1)
}

func TestTransactionsRoundTripAndOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	a, err := repo.CreateAccount(ctx, core.Account{Name: "A", Provider: "MOCK", Institution: "TD"})
	require.NoError(t, err)
	b, err := repo.CreateAccount(ctx, core.Account{Name: "B", Provider: "MOCK", Institution: "TD"})
	require.NoError(t, err)

	base := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	insert := func(id string, acct int64, d core.Date, amount string, seq int) {
		t.Helper()
		require.NoError(t, repo.InsertTransaction(ctx, core.Transaction{
			ID:           id,
			AccountID:    acct,
			Date:         d,
			Amount:       decimal.RequireFromString(amount),
			Currency:     "CAD",
			Merchant:     "m-" + id,
			RawCategory:  core.StringPtr("Food"),
			SourceSystem: "TD",
			CreatedAt:    base.Add(time.Duration(seq) * time.Second),
			UpdatedAt:    base.Add(time.Duration(seq) * time.Second),
		}))
	}
	insert("jan", a.ID, core.NewDate(2024, 1, 15), "10.25", 1)
	insert("feb-1", a.ID, core.NewDate(2024, 2, 1), "-4.10", 2)
	insert("feb-2", a.ID, core.NewDate(2024, 2, 1), "0.01", 3)
	insert("mar-b", b.ID, core.NewDate(2024, 3, 31), "99.99", 4)

	exists, err := repo.TransactionExists(ctx, "jan")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.TransactionExists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)

	all, err := repo.ListTransactions(ctx, core.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"mar-b", "feb-2", "feb-1", "jan"}, txnIDs(all))

	jan := all[3]
	assert.Equal(t, "10.25", jan.Amount.StringFixed(2))
	assert.Equal(t, "2024-01-15", jan.Date.String())
	require.NotNil(t, jan.RawCategory)
	assert.Equal(t, "Food", *jan.RawCategory)
	assert.Nil(t, jan.Bucket)
	assert.True(t, base.Add(time.Second).Equal(jan.CreatedAt))
	assert.Equal(t, "-4.10", all[2].Amount.StringFixed(2))

	from, to := core.NewDate(2024, 2, 1), core.NewDate(2024, 3, 31)
	ranged, err := repo.ListTransactions(ctx, core.TransactionFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, []string{"mar-b", "feb-2", "feb-1"}, txnIDs(ranged))

	byAccount, err := repo.ListTransactions(ctx, core.TransactionFilter{AccountID: &b.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"mar-b"}, txnIDs(byAccount))
}

func TestInsertTransactionDuplicateAndForeignKey(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	a, err := repo.CreateAccount(ctx, core.Account{Name: "A", Provider: "MOCK", Institution: "TD"})
	require.NoError(t, err)

	tx := core.Transaction{ID: "x", AccountID: a.ID, Date: core.NewDate(2024, 1, 1), Currency: "CAD", SourceSystem: "MOCK"}
	require.NoError(t, repo.InsertTransaction(ctx, tx))

	err = repo.InsertTransaction(ctx, tx)
	var se *core.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "insert transaction", se.Op)

	orphan := tx
	orphan.ID = "orphan"
	orphan.AccountID = 404
	assert.Error(t, repo.InsertTransaction(ctx, orphan))
}

func TestUpdateClassification(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	a, _ := repo.CreateAccount(ctx, core.Account{Name: "A", Provider: "MOCK", Institution: "TD"})
	require.NoError(t, repo.InsertTransaction(ctx, core.Transaction{ID: "x", AccountID: a.ID, Date: core.NewDate(2024, 1, 1), SourceSystem: "MOCK"}))

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateClassification(ctx, "x", core.StringPtr("Dining"), core.StringPtr("Discretionary"), at))
	assert.ErrorIs(t, repo.UpdateClassification(ctx, "y", nil, nil, at), core.ErrNotFound)

	txns, err := repo.ListTransactions(ctx, core.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "Dining", *txns[0].Category)
	assert.Equal(t, "Discretionary", *txns[0].Bucket)
	assert.True(t, at.Equal(txns[0].UpdatedAt))
}

func TestRulesAndBudgets(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	low, err := repo.CreateRule(ctx, core.Rule{Pattern: "amzn", Field: core.FieldMerchant, Category: "Shopping", Bucket: "Discretionary", Priority: 10, Enabled: true})
	require.NoError(t, err)
	high, err := repo.CreateRule(ctx, core.Rule{Pattern: "prime", Field: core.FieldMerchant, Category: "Subs", Bucket: "Fixed", Priority: 20, Enabled: false})
	require.NoError(t, err)
	tie, err := repo.CreateRule(ctx, core.Rule{Pattern: "td", Field: core.FieldSourceSystem, Category: "Bank", Bucket: "Fees", Priority: 10, Enabled: true})
	require.NoError(t, err)

	rules, err := repo.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, []int64{high.ID, low.ID, tie.ID}, []int64{rules[0].ID, rules[1].ID, rules[2].ID})
	assert.False(t, rules[0].Enabled)
	assert.Equal(t, core.FieldSourceSystem, rules[2].Field)

	require.NoError(t, repo.DeleteRule(ctx, high.ID))
	assert.ErrorIs(t, repo.DeleteRule(ctx, high.ID), core.ErrNotFound)

	_, err = repo.CreateBudget(ctx, core.Budget{Bucket: "Groceries", MonthlyLimit: decimal.RequireFromString("400.50"), Currency: "CAD", AlertThreshold: 0.8})
	require.NoError(t, err)
	_, err = repo.CreateBudget(ctx, core.Budget{Bucket: "Groceries", MonthlyLimit: decimal.NewFromInt(500), Currency: "CAD", AlertThreshold: 0.9})
	require.NoError(t, err)

	budgets, err := repo.ListBudgets(ctx)
	require.NoError(t, err)
	require.Len(t, budgets, 2)
	assert.Equal(t, "400.50", budgets[0].MonthlyLimit.StringFixed(2))
	assert.Equal(t, "500.00", budgets[1].MonthlyLimit.StringFixed(2))
	assert.InDelta(t, 0.9, budgets[1].AlertThreshold, 1e-9)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	a, _ := repo.CreateAccount(ctx, core.Account{Name: "A", Provider: "MOCK", Institution: "TD"})

	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(r ledger.Repository) error {
		if err := r.InsertTransaction(ctx, core.Transaction{ID: "x", AccountID: a.ID, Date: core.NewDate(2024, 1, 1), SourceSystem: "MOCK"}); err != nil {
			return err
		}
		if err := r.TouchAccountSync(ctx, a.ID, time.Now()); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, err := repo.TransactionExists(ctx, "x")
	require.NoError(t, err)
	assert.False(t, exists)
	got, _ := repo.GetAccount(ctx, a.ID)
	assert.Nil(t, got.LastSync)

	err = repo.WithTx(ctx, func(r ledger.Repository) error {
		return r.InsertTransaction(ctx, core.Transaction{ID: "y", AccountID: a.ID, Date: core.NewDate(2024, 1, 1), SourceSystem: "MOCK"})
	})
	require.NoError(t, err)
	exists, _ = repo.TransactionExists(ctx, "y")
	assert.True(t, exists)
}

func TestMigrationsDownAndUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path), "second run is a no-op")
	require.NoError(t, DropSchema(path))
	require.NoError(t, RunMigrations(path))
}

func TestWithTxSurfacesDriverFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewFromDB(db)

	diskErr := errors.New("disk I/O error")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").WillReturnError(diskErr)
	mock.ExpectRollback()

	err = repo.WithTx(context.Background(), func(r ledger.Repository) error {
		return r.InsertTransaction(context.Background(), core.Transaction{ID: "x", AccountID: 1, Date: core.NewDate(2024, 1, 1)})
	})

	var se *core.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "insert transaction", se.Op)
	assert.ErrorIs(t, err, diskErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxCommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewFromDB(db)

	commitErr := errors.New("database is locked")
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO rules").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit().WillReturnError(commitErr)

	err = repo.WithTx(context.Background(), func(r ledger.Repository) error {
		_, err := r.CreateRule(context.Background(), core.Rule{Pattern: "x", Field: core.FieldMerchant, Category: "c", Bucket: "b"})
		return err
	})
	assert.ErrorIs(t, err, commitErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccountDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewFromDB(db)

	mock.ExpectQuery("SELECT id, name, provider, institution, last_sync").
		WithArgs(int64(3)).
		WillReturnError(errors.New("connection reset"))

	_, err = repo.GetAccount(context.Background(), 3)
	var se *core.StorageError
	assert.ErrorAs(t, err, &se)
	assert.NotErrorIs(t, err, core.ErrNotFound)
}

func txnIDs(txns []core.Transaction) []string {
	out := make([]string, len(txns))
	for i, t := range txns {
		out[i] = t.ID
	}
	return out
}
