package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ledger/internal/core"
	"ledger/internal/ledger"

	_ "modernc.org/sqlite"
)

// timestampLayout sorts lexically in chronological order.
const timestampLayout = "2006-01-02 15:04:05.000000000"

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
	repository
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations first on their own connection
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection keeps transactions serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite ledger store ready", "path", dbPath)
	return NewFromDB(db), nil
}

// NewFromDB wraps an open database that already carries the ledger schema.
func NewFromDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:         db,
		repository: repository{q: New(db)},
	}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return core.Storage("ping", r.db.PingContext(ctx))
}

// WithTx runs fn inside one database transaction.
func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(ledger.Repository) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Storage("begin", err)
	}

	if err := fn(&repository{q: r.q.WithTx(tx)}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Failed to roll back transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return core.Storage("commit", err)
	}
	return nil
}

// repository implements ledger.Repository over a *sql.DB or a *sql.Tx.
type repository struct {
	q *Queries
}

func (r *repository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	row, err := r.q.CreateAccount(ctx, CreateAccountParams{
		Name:        a.Name,
		Provider:    a.Provider,
		Institution: a.Institution,
	})
	if err != nil {
		return core.Account{}, core.Storage("create account", err)
	}
	return accountFromRow(row)
}

func (r *repository) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	row, err := r.q.GetAccount(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.NotFoundf("account %d", id)
	}
	if err != nil {
		return core.Account{}, core.Storage("get account", err)
	}
	return accountFromRow(row)
}

func (r *repository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.q.ListAccounts(ctx)
	if err != nil {
		return nil, core.Storage("list accounts", err)
	}
	out := make([]core.Account, 0, len(rows))
	for _, row := range rows {
		a, err := accountFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *repository) TouchAccountSync(ctx context.Context, id int64, at time.Time) error {
	n, err := r.q.TouchAccountSync(ctx, formatTimestamp(at), id)
	if err != nil {
		return core.Storage("touch account sync", err)
	}
	if n == 0 {
		return core.NotFoundf("account %d", id)
	}
	return nil
}

func (r *repository) TransactionExists(ctx context.Context, id string) (bool, error) {
	ok, err := r.q.TransactionExists(ctx, id)
	if err != nil {
		return false, core.Storage("transaction exists", err)
	}
	return ok, nil
}

func (r *repository) InsertTransaction(ctx context.Context, t core.Transaction) error {
	err := r.q.InsertTransaction(ctx, TransactionRow{
		ID:           t.ID,
		AccountID:    t.AccountID,
		Date:         t.Date.String(),
		AmountCents:  core.ToCents(t.Amount),
		Currency:     t.Currency,
		Merchant:     t.Merchant,
		RawCategory:  nullString(t.RawCategory),
		Category:     nullString(t.Category),
		Bucket:       nullString(t.Bucket),
		SourceSystem: t.SourceSystem,
		CreatedAt:    formatTimestamp(t.CreatedAt),
		UpdatedAt:    formatTimestamp(t.UpdatedAt),
	})
	if err != nil {
		return core.Storage("insert transaction", err)
	}
	return nil
}

func (r *repository) ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	var params ListTransactionsParams
	if f.AccountID != nil {
		params.AccountID = sql.NullInt64{Int64: *f.AccountID, Valid: true}
	}
	if f.From != nil {
		params.DateFrom = sql.NullString{String: f.From.String(), Valid: true}
	}
	if f.To != nil {
		params.DateTo = sql.NullString{String: f.To.String(), Valid: true}
	}

	rows, err := r.q.ListTransactions(ctx, params)
	if err != nil {
		return nil, core.Storage("list transactions", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := transactionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *repository) UpdateClassification(ctx context.Context, id string, category, bucket *string, at time.Time) error {
	n, err := r.q.UpdateClassification(ctx, UpdateClassificationParams{
		Category:  nullString(category),
		Bucket:    nullString(bucket),
		UpdatedAt: formatTimestamp(at),
		ID:        id,
	})
	if err != nil {
		return core.Storage("update classification", err)
	}
	if n == 0 {
		return core.NotFoundf("transaction %s", id)
	}
	return nil
}

func (r *repository) CreateRule(ctx context.Context, rule core.Rule) (core.Rule, error) {
	id, err := r.q.CreateRule(ctx, RuleRow{
		Pattern:  rule.Pattern,
		Field:    rule.Field.String(),
		Category: rule.Category,
		Bucket:   rule.Bucket,
		Priority: int64(rule.Priority),
		Enabled:  rule.Enabled,
	})
	if err != nil {
		return core.Rule{}, core.Storage("create rule", err)
	}
	rule.ID = id
	return rule, nil
}

func (r *repository) ListRules(ctx context.Context) ([]core.Rule, error) {
	rows, err := r.q.ListRules(ctx)
	if err != nil {
		return nil, core.Storage("list rules", err)
	}
	out := make([]core.Rule, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.Rule{
			ID:       row.ID,
			Pattern:  row.Pattern,
			Field:    core.MatchField(row.Field),
			Category: row.Category,
			Bucket:   row.Bucket,
			Priority: int(row.Priority),
			Enabled:  row.Enabled,
		})
	}
	return out, nil
}

func (r *repository) DeleteRule(ctx context.Context, id int64) error {
	n, err := r.q.DeleteRule(ctx, id)
	if err != nil {
		return core.Storage("delete rule", err)
	}
	if n == 0 {
		return core.NotFoundf("rule %d", id)
	}
	return nil
}

func (r *repository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	id, err := r.q.CreateBudget(ctx, BudgetRow{
		Bucket:            b.Bucket,
		MonthlyLimitCents: core.ToCents(b.MonthlyLimit),
		Currency:          b.Currency,
		AlertThreshold:    b.AlertThreshold,
	})
	if err != nil {
		return core.Budget{}, core.Storage("create budget", err)
	}
	b.ID = id
	return b, nil
}

func (r *repository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.q.ListBudgets(ctx)
	if err != nil {
		return nil, core.Storage("list budgets", err)
	}
	out := make([]core.Budget, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.Budget{
			ID:             row.ID,
			Bucket:         row.Bucket,
			MonthlyLimit:   core.FromCents(row.MonthlyLimitCents),
			Currency:       row.Currency,
			AlertThreshold: row.AlertThreshold,
		})
	}
	return out, nil
}

func accountFromRow(row AccountRow) (core.Account, error) {
	a := core.Account{
		ID:          row.ID,
		Name:        row.Name,
		Provider:    row.Provider,
		Institution: row.Institution,
	}
	if row.LastSync.Valid {
		at, err := parseTimestamp(row.LastSync.String)
		if err != nil {
			return core.Account{}, core.Storage("decode account", err)
		}
		a.LastSync = &at
	}
	return a, nil
}

func transactionFromRow(row TransactionRow) (core.Transaction, error) {
	d, err := time.Parse(dateLayout, row.Date)
	if err != nil {
		return core.Transaction{}, core.Storage("decode transaction", err)
	}
	created, err := parseTimestamp(row.CreatedAt)
	if err != nil {
		return core.Transaction{}, core.Storage("decode transaction", err)
	}
	updated, err := parseTimestamp(row.UpdatedAt)
	if err != nil {
		return core.Transaction{}, core.Storage("decode transaction", err)
	}
	return core.Transaction{
		ID:           row.ID,
		AccountID:    row.AccountID,
		Date:         core.DateOf(d),
		Amount:       core.FromCents(row.AmountCents),
		Currency:     row.Currency,
		Merchant:     row.Merchant,
		RawCategory:  stringPtr(row.RawCategory),
		Category:     stringPtr(row.Category),
		Bucket:       stringPtr(row.Bucket),
		SourceSystem: row.SourceSystem,
		CreatedAt:    created,
		UpdatedAt:    updated,
	}, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(timestampLayout, s, time.UTC)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
