package http

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// Request bodies.

type accountRequest struct {
	Name        string `json:"name" validate:"required"`
	Provider    string `json:"provider"`
	Institution string `json:"institution" validate:"required"`
}

type ingestMockRequest struct {
	AccountID int64 `json:"account_id" validate:"required,gt=0"`
}

type ingestRequest struct {
	AccountID    int64            `json:"account_id" validate:"required,gt=0"`
	Transactions []core.RawRecord `json:"transactions" validate:"required,min=1,dive"`
}

type ruleRequest struct {
	Pattern  string `json:"pattern" validate:"required"`
	Field    string `json:"field" validate:"required"`
	Category string `json:"category" validate:"required"`
	Bucket   string `json:"bucket" validate:"required"`
	Priority int    `json:"priority"`
	Enabled  *bool  `json:"enabled"`
}

type applyRulesRequest struct {
	AccountID *int64  `json:"account_id" validate:"omitempty,gt=0"`
	From      *string `json:"from"`
}

type budgetRequest struct {
	Bucket         string          `json:"bucket" validate:"required"`
	MonthlyLimit   decimal.Decimal `json:"monthly_limit"`
	Currency       string          `json:"currency" validate:"omitempty,len=3"`
	AlertThreshold *float64        `json:"alert_threshold" validate:"omitempty,gte=0,lte=1"`
}

type exportRequest struct {
	Year      int    `json:"year" validate:"required"`
	Month     int    `json:"month" validate:"required,gte=1,lte=12"`
	AccountID *int64 `json:"account_id" validate:"omitempty,gt=0"`
}

type notionSyncRequest struct {
	AccountID *int64  `json:"account_id" validate:"omitempty,gt=0"`
	From      *string `json:"from"`
	To        *string `json:"to"`
}

// Response bodies.

type accountResponse struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Provider    string     `json:"provider"`
	Institution string     `json:"institution"`
	LastSync    *time.Time `json:"last_sync"`
}

type transactionResponse struct {
	ID           string      `json:"id"`
	AccountID    int64       `json:"account_id"`
	Date         string      `json:"date"`
	Amount       json.Number `json:"amount"`
	Currency     string      `json:"currency"`
	Merchant     string      `json:"merchant"`
	RawCategory  *string     `json:"raw_category"`
	Category     *string     `json:"category"`
	Bucket       *string     `json:"bucket"`
	SourceSystem string      `json:"source_system"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type ruleResponse struct {
	ID       int64  `json:"id"`
	Pattern  string `json:"pattern"`
	Field    string `json:"field"`
	Category string `json:"category"`
	Bucket   string `json:"bucket"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`
}

type budgetResponse struct {
	ID             int64       `json:"id"`
	Bucket         string      `json:"bucket"`
	MonthlyLimit   json.Number `json:"monthly_limit"`
	Currency       string      `json:"currency"`
	AlertThreshold float64     `json:"alert_threshold"`
}

type reportRowResponse struct {
	Bucket      string       `json:"bucket"`
	TotalSpend  json.Number  `json:"total_spend"`
	Limit       *json.Number `json:"limit"`
	Utilization *json.Number `json:"utilization"`
	OverBudget  bool         `json:"over_budget"`
}

// amount renders a two-place amount as a bare JSON number.
func amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func toAccountResponse(a core.Account) accountResponse {
	return accountResponse{
		ID:          a.ID,
		Name:        a.Name,
		Provider:    a.Provider,
		Institution: a.Institution,
		LastSync:    a.LastSync,
	}
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:           t.ID,
		AccountID:    t.AccountID,
		Date:         t.Date.String(),
		Amount:       amount(t.Amount),
		Currency:     t.Currency,
		Merchant:     t.Merchant,
		RawCategory:  t.RawCategory,
		Category:     t.Category,
		Bucket:       t.Bucket,
		SourceSystem: t.SourceSystem,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func toRuleResponse(r core.Rule) ruleResponse {
	return ruleResponse{
		ID:       r.ID,
		Pattern:  r.Pattern,
		Field:    r.Field.String(),
		Category: r.Category,
		Bucket:   r.Bucket,
		Priority: r.Priority,
		Enabled:  r.Enabled,
	}
}

func toBudgetResponse(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:             b.ID,
		Bucket:         b.Bucket,
		MonthlyLimit:   amount(b.MonthlyLimit),
		Currency:       b.Currency,
		AlertThreshold: b.AlertThreshold,
	}
}

func toReportRowResponse(r core.ReportRow) reportRowResponse {
	out := reportRowResponse{
		Bucket:     r.Bucket,
		TotalSpend: amount(r.TotalSpend),
		OverBudget: r.OverBudget,
	}
	if r.Limit != nil {
		l := amount(*r.Limit)
		out.Limit = &l
	}
	if r.Utilization != nil {
		u := json.Number(r.Utilization.String())
		out.Utilization = &u
	}
	return out
}

func mapSlice[T, R any](in []T, f func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}

// Demo page view model.

const (
	demoHeadline    = "Secure SaaS Accountant (MCP-ready, Sample Mode)"
	demoSubheadline = "Mock TD / PayPal-style transactions • Rules-based categorization • MCP orchestration • No real bank connection."
)

type demoBucket struct {
	Bucket string
	Count  int
	Total  string
}

type demoTransaction struct {
	Date, Merchant, Category, Bucket, Source, Amount string
}

type demoPage struct {
	Headline         string
	Subheadline      string
	TotalSpend       string
	TransactionCount int
	Buckets          []demoBucket
	Transactions     []demoTransaction
	GeneratedAt      string
}

func newDemoPage(sum core.LedgerSummary) demoPage {
	page := demoPage{
		Headline:         demoHeadline,
		Subheadline:      demoSubheadline,
		TotalSpend:       sum.TotalSpend.StringFixed(2),
		TransactionCount: sum.Count,
		GeneratedAt:      sum.GeneratedAt.Format(time.RFC1123),
	}
	for _, b := range sum.Buckets {
		page.Buckets = append(page.Buckets, demoBucket{Bucket: b.Bucket, Count: b.Count, Total: b.Total.StringFixed(2)})
	}
	for _, t := range sum.Recent {
		page.Transactions = append(page.Transactions, demoTransaction{
			Date:     t.Date.String(),
			Merchant: t.Merchant,
			Category: orDash(t.Category),
			Bucket:   orDash(t.Bucket),
			Source:   t.SourceSystem,
			Amount:   core.FormatAmount(t.Amount, t.Currency),
		})
	}
	return page
}

func orDash(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return "-"
	}
	return *s
}
