package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultProvider tags accounts created without an explicit provider.
	DefaultProvider = "MOCK"
	// DefaultCurrency is applied to ingested records that carry no currency.
	DefaultCurrency = "CAD"
	// DefaultAlertThreshold is the budget alert fraction used when none is given.
	DefaultAlertThreshold = 0.8
	// UncategorizedBucket labels report rows for transactions without a bucket.
	UncategorizedBucket = "Uncategorized"
)

type (
	Date struct {
		time.Time
	}

	Account struct {
		ID          int64
		Name        string
		Provider    string
		Institution string
		LastSync    *time.Time
	}

	Transaction struct {
		ID           string // natural key, unique across all accounts
		AccountID    int64
		Date         Date
		Amount       decimal.Decimal
		Currency     string
		Merchant     string
		RawCategory  *string
		Category     *string // set by the classifier
		Bucket       *string // set by the classifier
		SourceSystem string
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	Rule struct {
		ID       int64
		Pattern  string
		Field    MatchField
		Category string
		Bucket   string
		Priority int
		Enabled  bool
	}

	Budget struct {
		ID             int64
		Bucket         string
		MonthlyLimit   decimal.Decimal
		Currency       string
		AlertThreshold float64
	}

	// TransactionFilter narrows transaction queries. Zero values mean "no restriction".
	// From and To are inclusive.
	TransactionFilter struct {
		AccountID *int64
		From      *Date
		To        *Date
	}
)

var (
	ErrEmptyName        = errors.New("empty account name")
	ErrEmptyInstitution = errors.New("empty institution")
	ErrEmptyPattern     = errors.New("empty rule pattern")
	ErrEmptyBucket      = errors.New("empty bucket")
	ErrEmptyCategory    = errors.New("empty category")
	ErrNegativeLimit    = errors.New("monthly limit must not be negative")
	ErrAlertThreshold   = errors.New("alert threshold must be between 0 and 1")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return Invalid(ErrEmptyName)
	}
	if strings.TrimSpace(a.Institution) == "" {
		return Invalid(ErrEmptyInstitution)
	}
	return nil
}

func (r Rule) Validate() error {
	if strings.TrimSpace(r.Pattern) == "" {
		return Invalid(ErrEmptyPattern)
	}
	if !r.Field.IsValid() {
		return Invalid(ErrUnknownField)
	}
	if strings.TrimSpace(r.Category) == "" {
		return Invalid(ErrEmptyCategory)
	}
	if strings.TrimSpace(r.Bucket) == "" {
		return Invalid(ErrEmptyBucket)
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Bucket) == "" {
		return Invalid(ErrEmptyBucket)
	}
	if b.MonthlyLimit.IsNegative() {
		return Invalid(ErrNegativeLimit)
	}
	if err := CheckCents(b.MonthlyLimit); err != nil {
		return err
	}
	if b.AlertThreshold < 0 || b.AlertThreshold > 1 {
		return Invalid(ErrAlertThreshold)
	}
	return nil
}

// Matches reports whether t falls inside the filter.
func (f TransactionFilter) Matches(t Transaction) bool {
	if f.AccountID != nil && t.AccountID != *f.AccountID {
		return false
	}
	if f.From != nil && t.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && f.To.Before(t.Date) {
		return false
	}
	return true
}

// StringPtr returns nil for an empty string, otherwise a pointer to s.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
