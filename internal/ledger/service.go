// Package ledger orchestrates ingestion, classification, budgets and reports
// over a transactional Store.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/classify"
	"ledger/internal/core"
	"ledger/internal/ingest"
	"ledger/internal/notion"
	"ledger/internal/report"
)

// RecentLimit caps the transaction list of the summary view.
const RecentLimit = 50

// IngestResult is what an ingestion call reports back.
type IngestResult struct {
	Inserted int `json:"inserted"`
	Total    int `json:"total"`
}

// SampleSource supplies the records used by IngestSample.
type SampleSource func() ([]core.RawRecord, error)

type Service struct {
	store     Store
	ingester  *ingest.Ingester
	syncer    Syncer
	publisher Publisher
	sample    SampleSource
	now       func() time.Time
}

type Option func(*Service)

// WithPublisher enables "transactions ingested" events after each ingestion commit.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithSyncer(sy Syncer) Option {
	return func(s *Service) { s.syncer = sy }
}

func WithSampleSource(src SampleSource) Option {
	return func(s *Service) { s.sample = src }
}

// WithClock fixes the time used for sync stamps, updated_at and summaries.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		syncer: notion.NewSyncer(""),
		sample: ingest.SampleRecords,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ingester = ingest.New(ingest.WithClock(s.now))
	return s
}

// Accounts

func (s *Service) CreateAccount(ctx context.Context, name, provider, institution string) (core.Account, error) {
	a := core.Account{
		Name:        strings.TrimSpace(name),
		Provider:    strings.TrimSpace(provider),
		Institution: strings.TrimSpace(institution),
	}
	if a.Provider == "" {
		a.Provider = core.DefaultProvider
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}

	var created core.Account
	err := s.store.WithTx(ctx, func(r Repository) error {
		var err error
		created, err = r.CreateAccount(ctx, a)
		return err
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return created, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]core.Account, error) {
	accts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accts, nil
}

func (s *Service) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	a, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// Ingestion

// IngestSample loads the configured sample feed into the account.
func (s *Service) IngestSample(ctx context.Context, accountID int64) (IngestResult, error) {
	records, err := s.sample()
	if err != nil {
		return IngestResult{}, fmt.Errorf("load sample data: %w", err)
	}
	return s.Ingest(ctx, accountID, records)
}

// Ingest inserts the records not yet stored into the account in a single
// store transaction. Total is the number of records received.
func (s *Service) Ingest(ctx context.Context, accountID int64, records []core.RawRecord) (IngestResult, error) {
	var inserted int
	err := s.store.WithTx(ctx, func(r Repository) error {
		acct, err := r.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		inserted, err = s.ingester.Ingest(ctx, r, acct, records)
		return err
	})
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest: %w", err)
	}

	slog.InfoContext(ctx, "Transactions ingested",
		"account_id", accountID,
		"inserted", inserted,
		"total", len(records))

	if inserted > 0 {
		s.publishIngested(ctx, accountID, inserted)
	}
	return IngestResult{Inserted: inserted, Total: len(records)}, nil
}

func (s *Service) publishIngested(ctx context.Context, accountID int64, inserted int) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionsIngested(ctx, accountID, inserted); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ingest event",
			"account_id", accountID, "error", err)
	}
}

// Transactions

func (s *Service) ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	txns, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

// Rules

// CreateRule stores r after validating it. The match field must be one of
// core.MatchFields.
func (s *Service) CreateRule(ctx context.Context, r core.Rule) (core.Rule, error) {
	r.Pattern = strings.TrimSpace(r.Pattern)
	if err := r.Validate(); err != nil {
		return core.Rule{}, err
	}

	var created core.Rule
	err := s.store.WithTx(ctx, func(repo Repository) error {
		var err error
		created, err = repo.CreateRule(ctx, r)
		return err
	})
	if err != nil {
		return core.Rule{}, fmt.Errorf("create rule: %w", err)
	}
	return created, nil
}

func (s *Service) ListRules(ctx context.Context) ([]core.Rule, error) {
	rules, err := s.store.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

func (s *Service) DeleteRule(ctx context.Context, id int64) error {
	err := s.store.WithTx(ctx, func(r Repository) error {
		return r.DeleteRule(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}

// ApplyRules classifies the transactions selected by accountID and from (both
// optional) and persists the assignments that changed. It returns the number
// of transactions examined.
func (s *Service) ApplyRules(ctx context.Context, accountID *int64, from *core.Date) (int, error) {
	var res classify.Result
	err := s.store.WithTx(ctx, func(r Repository) error {
		rules, err := r.ListRules(ctx)
		if err != nil {
			return err
		}
		txns, err := r.ListTransactions(ctx, core.TransactionFilter{AccountID: accountID, From: from})
		if err != nil {
			return err
		}

		before := make([]core.Transaction, len(txns))
		copy(before, txns)
		res = classify.Apply(txns, rules)

		now := s.now()
		for i, t := range txns {
			if sameString(before[i].Category, t.Category) && sameString(before[i].Bucket, t.Bucket) {
				continue
			}
			if err := r.UpdateClassification(ctx, t.ID, t.Category, t.Bucket, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("apply rules: %w", err)
	}

	slog.InfoContext(ctx, "Rules applied",
		"processed", res.Processed,
		"matched", res.Matched)
	return res.Processed, nil
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Budgets

func (s *Service) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.Bucket = strings.TrimSpace(b.Bucket)
	if b.Currency == "" {
		b.Currency = core.DefaultCurrency
	}
	b.MonthlyLimit = b.MonthlyLimit.Round(2)
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	var created core.Budget
	err := s.store.WithTx(ctx, func(r Repository) error {
		var err error
		created, err = r.CreateBudget(ctx, b)
		return err
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return created, nil
}

func (s *Service) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	budgets, err := s.store.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

// Reports

// MonthlyReport returns spend per bucket for year/month, optionally limited to
// one account.
func (s *Service) MonthlyReport(ctx context.Context, year, month int, accountID *int64) ([]core.ReportRow, error) {
	start, _, err := report.MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	last, err := report.LastDay(year, month)
	if err != nil {
		return nil, err
	}

	var rows []core.ReportRow
	err = s.store.WithTx(ctx, func(r Repository) error {
		txns, err := r.ListTransactions(ctx, core.TransactionFilter{AccountID: accountID, From: &start, To: &last})
		if err != nil {
			return err
		}
		budgets, err := r.ListBudgets(ctx)
		if err != nil {
			return err
		}
		rows, err = report.Monthly(year, month, txns, budgets)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("monthly report: %w", err)
	}
	return rows, nil
}

// Sync

// SyncNotion pushes the transactions selected by f to the configured syncer.
func (s *Service) SyncNotion(ctx context.Context, f core.TransactionFilter) (core.SyncResult, error) {
	txns, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return core.SyncResult{}, fmt.Errorf("sync: %w", err)
	}
	res, err := s.syncer.Sync(ctx, txns)
	if err != nil {
		return core.SyncResult{}, fmt.Errorf("sync: %w", err)
	}
	return res, nil
}

// Summary

// Summary builds the demo overview: total of all amounts, classified spend per
// bucket (largest first) and the most recent transactions.
func (s *Service) Summary(ctx context.Context) (core.LedgerSummary, error) {
	txns, err := s.store.ListTransactions(ctx, core.TransactionFilter{})
	if err != nil {
		return core.LedgerSummary{}, fmt.Errorf("summary: %w", err)
	}

	total := decimal.Zero
	byBucket := make(map[string]*core.BucketSummary)
	for _, t := range txns {
		total = total.Add(t.Amount)
		if t.Bucket == nil {
			continue
		}
		b, ok := byBucket[*t.Bucket]
		if !ok {
			b = &core.BucketSummary{Bucket: *t.Bucket, Total: decimal.Zero}
			byBucket[*t.Bucket] = b
		}
		b.Count++
		b.Total = b.Total.Add(t.Amount)
	}

	buckets := make([]core.BucketSummary, 0, len(byBucket))
	for _, b := range byBucket {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if c := buckets[i].Total.Cmp(buckets[j].Total); c != 0 {
			return c > 0
		}
		return buckets[i].Bucket < buckets[j].Bucket
	})

	recent := txns
	if len(recent) > RecentLimit {
		recent = recent[:RecentLimit]
	}

	return core.LedgerSummary{
		TotalSpend:  total,
		Count:       len(txns),
		Buckets:     buckets,
		Recent:      recent,
		GeneratedAt: s.now(),
	}, nil
}

// Ready reports whether the store answers.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}
