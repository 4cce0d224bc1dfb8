package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type AccountRow struct {
	ID          int64
	Name        string
	Provider    string
	Institution string
	LastSync    sql.NullString
}

type TransactionRow struct {
	ID           string
	AccountID    int64
	Date         string
	AmountCents  int64
	Currency     string
	Merchant     string
	RawCategory  sql.NullString
	Category     sql.NullString
	Bucket       sql.NullString
	SourceSystem string
	CreatedAt    string
	UpdatedAt    string
}

type RuleRow struct {
	ID       int64
	Pattern  string
	Field    string
	Category string
	Bucket   string
	Priority int64
	Enabled  bool
}

type BudgetRow struct {
	ID                int64
	Bucket            string
	MonthlyLimitCents int64
	Currency          string
	AlertThreshold    float64
}

const createAccount = `
INSERT INTO accounts (name, provider, institution)
VALUES (?, ?, ?)
RETURNING id, name, provider, institution, last_sync
`

type CreateAccountParams struct {
	Name        string
	Provider    string
	Institution string
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (AccountRow, error) {
	row := q.db.QueryRowContext(ctx, createAccount, arg.Name, arg.Provider, arg.Institution)
	var a AccountRow
	err := row.Scan(&a.ID, &a.Name, &a.Provider, &a.Institution, &a.LastSync)
	return a, err
}

const getAccount = `
SELECT id, name, provider, institution, last_sync
FROM accounts
WHERE id = ?
`

func (q *Queries) GetAccount(ctx context.Context, id int64) (AccountRow, error) {
	row := q.db.QueryRowContext(ctx, getAccount, id)
	var a AccountRow
	err := row.Scan(&a.ID, &a.Name, &a.Provider, &a.Institution, &a.LastSync)
	return a, err
}

const listAccounts = `
SELECT id, name, provider, institution, last_sync
FROM accounts
ORDER BY id
`

func (q *Queries) ListAccounts(ctx context.Context) ([]AccountRow, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AccountRow
	for rows.Next() {
		var a AccountRow
		if err := rows.Scan(&a.ID, &a.Name, &a.Provider, &a.Institution, &a.LastSync); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const touchAccountSync = `
UPDATE accounts SET last_sync = ? WHERE id = ?
`

func (q *Queries) TouchAccountSync(ctx context.Context, lastSync string, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, touchAccountSync, lastSync, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const transactionExists = `
SELECT EXISTS (SELECT 1 FROM transactions WHERE id = ?)
`

func (q *Queries) TransactionExists(ctx context.Context, id string) (bool, error) {
	row := q.db.QueryRowContext(ctx, transactionExists, id)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const insertTransaction = `
INSERT INTO transactions (
    id, account_id, date, amount_cents, currency, merchant,
    raw_category, category, bucket, source_system, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertTransaction(ctx context.Context, arg TransactionRow) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		arg.ID,
		arg.AccountID,
		arg.Date,
		arg.AmountCents,
		arg.Currency,
		arg.Merchant,
		arg.RawCategory,
		arg.Category,
		arg.Bucket,
		arg.SourceSystem,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const listTransactions = `
SELECT id, account_id, date, amount_cents, currency, merchant,
       raw_category, category, bucket, source_system, created_at, updated_at
FROM transactions
WHERE (? IS NULL OR account_id = ?)
  AND (? IS NULL OR date >= ?)
  AND (? IS NULL OR date <= ?)
ORDER BY date DESC, created_at DESC, rowid DESC
`

type ListTransactionsParams struct {
	AccountID sql.NullInt64
	DateFrom  sql.NullString
	DateTo    sql.NullString
}

func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions,
		arg.AccountID, arg.AccountID,
		arg.DateFrom, arg.DateFrom,
		arg.DateTo, arg.DateTo,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		var t TransactionRow
		if err := rows.Scan(
			&t.ID,
			&t.AccountID,
			&t.Date,
			&t.AmountCents,
			&t.Currency,
			&t.Merchant,
			&t.RawCategory,
			&t.Category,
			&t.Bucket,
			&t.SourceSystem,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateClassification = `
UPDATE transactions
SET category = ?, bucket = ?, updated_at = ?
WHERE id = ?
`

type UpdateClassificationParams struct {
	Category  sql.NullString
	Bucket    sql.NullString
	UpdatedAt string
	ID        string
}

func (q *Queries) UpdateClassification(ctx context.Context, arg UpdateClassificationParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateClassification, arg.Category, arg.Bucket, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createRule = `
INSERT INTO rules (pattern, field, category, bucket, priority, enabled)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id
`

func (q *Queries) CreateRule(ctx context.Context, arg RuleRow) (int64, error) {
	row := q.db.QueryRowContext(ctx, createRule, arg.Pattern, arg.Field, arg.Category, arg.Bucket, arg.Priority, arg.Enabled)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listRules = `
SELECT id, pattern, field, category, bucket, priority, enabled
FROM rules
ORDER BY priority DESC, id ASC
`

func (q *Queries) ListRules(ctx context.Context) ([]RuleRow, error) {
	rows, err := q.db.QueryContext(ctx, listRules)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RuleRow
	for rows.Next() {
		var r RuleRow
		if err := rows.Scan(&r.ID, &r.Pattern, &r.Field, &r.Category, &r.Bucket, &r.Priority, &r.Enabled); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteRule = `
DELETE FROM rules WHERE id = ?
`

func (q *Queries) DeleteRule(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteRule, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createBudget = `
INSERT INTO budgets (bucket, monthly_limit_cents, currency, alert_threshold)
VALUES (?, ?, ?, ?)
RETURNING id
`

func (q *Queries) CreateBudget(ctx context.Context, arg BudgetRow) (int64, error) {
	row := q.db.QueryRowContext(ctx, createBudget, arg.Bucket, arg.MonthlyLimitCents, arg.Currency, arg.AlertThreshold)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listBudgets = `
SELECT id, bucket, monthly_limit_cents, currency, alert_threshold
FROM budgets
ORDER BY id ASC
`

func (q *Queries) ListBudgets(ctx context.Context) ([]BudgetRow, error) {
	rows, err := q.db.QueryContext(ctx, listBudgets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BudgetRow
	for rows.Next() {
		var b BudgetRow
		if err := rows.Scan(&b.ID, &b.Bucket, &b.MonthlyLimitCents, &b.Currency, &b.AlertThreshold); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
