// Package ingest normalizes raw transaction records and inserts them idempotently.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"ledger/internal/core"
)

// Sink is the slice of the ledger store the ingester writes through. Callers
// pass a transaction-scoped repository so a failed batch leaves nothing behind.
type Sink interface {
	TransactionExists(ctx context.Context, id string) (bool, error)
	InsertTransaction(ctx context.Context, t core.Transaction) error
	TouchAccountSync(ctx context.Context, accountID int64, at time.Time) error
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

type Ingester struct {
	validate *validator.Validate
	now      func() time.Time
}

type Option func(*Ingester)

// WithClock replaces the wall clock used for last_sync and row timestamps.
func WithClock(now func() time.Time) Option {
	return func(in *Ingester) { in.now = now }
}

func New(opts ...Option) *Ingester {
	in := &Ingester{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Normalize turns one raw record into a transaction for account. Category and
// bucket are always left unset.
func (in *Ingester) Normalize(account core.Account, rec core.RawRecord, now time.Time) (core.Transaction, error) {
	if err := in.validate.Struct(rec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return core.Transaction{}, core.Invalidf("record %q: field %s is %s", rec.ID, strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return core.Transaction{}, core.Invalid(err)
	}
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return core.Transaction{}, core.Invalidf("record has an empty id")
	}

	if rec.Amount == nil {
		return core.Transaction{}, core.Invalidf("record %q: field amount is required", id)
	}
	if err := core.CheckCents(*rec.Amount); err != nil {
		return core.Transaction{}, fmt.Errorf("record %q: %w", id, err)
	}

	date, err := ParseDate(rec.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record %q: %w", id, err)
	}

	currency := strings.TrimSpace(rec.Currency)
	if currency == "" {
		currency = core.DefaultCurrency
	}
	source := strings.TrimSpace(rec.SourceSystem)
	if source == "" {
		source = account.Provider
	}

	return core.Transaction{
		ID:           id,
		AccountID:    account.ID,
		Date:         date,
		Amount:       rec.Amount.Round(2),
		Currency:     currency,
		Merchant:     rec.Merchant,
		RawCategory:  rawCategory(rec.RawCategory),
		SourceSystem: source,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Ingest inserts every record whose id is not yet stored and returns how many
// were inserted. The account's last sync time is set once per call, also when
// nothing new arrived. All records are normalized before the first write, so
// an invalid record fails the call without touching the sink.
func (in *Ingester) Ingest(ctx context.Context, sink Sink, account core.Account, records []core.RawRecord) (int, error) {
	now := in.now()

	txns := make([]core.Transaction, 0, len(records))
	for _, rec := range records {
		t, err := in.Normalize(account, rec, now)
		if err != nil {
			return 0, err
		}
		txns = append(txns, t)
	}

	seen := make(map[string]struct{}, len(txns))
	inserted := 0
	for _, t := range txns {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}

		exists, err := sink.TransactionExists(ctx, t.ID)
		if err != nil {
			return 0, fmt.Errorf("check transaction %s: %w", t.ID, err)
		}
		if exists {
			continue
		}
		if err := sink.InsertTransaction(ctx, t); err != nil {
			return 0, fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
		inserted++
	}

	if err := sink.TouchAccountSync(ctx, account.ID, now); err != nil {
		return 0, fmt.Errorf("update last sync: %w", err)
	}

	slog.DebugContext(ctx, "Ingested records",
		"account_id", account.ID,
		"received", len(records),
		"inserted", inserted)
	return inserted, nil
}

// ParseDate accepts a calendar date or a date-time and keeps the calendar day
// as written.
func ParseDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), nil
		}
	}
	return core.Date{}, core.Invalidf("invalid date %q", s)
}

// rawCategory drops blank source categories so they are stored as NULL.
func rawCategory(s *string) *string {
	if s == nil {
		return nil
	}
	return core.StringPtr(strings.TrimSpace(*s))
}
