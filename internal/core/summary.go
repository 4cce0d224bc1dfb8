package core

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// RawRecord is one transaction as supplied by an ingestion source. Amount is
// nil when the source did not send one.
type RawRecord struct {
	ID           string           `json:"id" validate:"required"`
	Date         string           `json:"date" validate:"required"`
	Amount       *decimal.Decimal `json:"amount"`
	Currency     string           `json:"currency,omitempty"`
	Merchant     string           `json:"merchant,omitempty"`
	RawCategory  *string          `json:"raw_category,omitempty"`
	SourceSystem string           `json:"source_system,omitempty"`
}

// UnmarshalJSON accepts the amount as a JSON number or a string, with either
// a dot or a comma as decimal separator. A missing or null amount stays nil.
// Unknown fields are rejected.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	type plain RawRecord
	aux := struct {
		*plain
		Amount json.RawMessage `json:"amount"`
	}{plain: (*plain)(r)}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return err
	}

	r.Amount = nil
	raw := bytes.TrimSpace(aux.Amount)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
	}
	d, err := ParseAmount(s)
	if err != nil {
		return err
	}
	r.Amount = &d
	return nil
}

// ReportRow is the spend-vs-budget line for one bucket in one month.
type ReportRow struct {
	Bucket      string
	TotalSpend  decimal.Decimal
	Limit       *decimal.Decimal
	Utilization *decimal.Decimal
	OverBudget  bool
}

// SyncResult counts what an external sync created or updated.
type SyncResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// BucketSummary aggregates classified transactions for one bucket.
type BucketSummary struct {
	Bucket string
	Count  int
	Total  decimal.Decimal
}

// LedgerSummary is a compact overview of the whole ledger for the demo page.
type LedgerSummary struct {
	TotalSpend  decimal.Decimal
	Count       int
	Buckets     []BucketSummary
	Recent      []Transaction
	GeneratedAt time.Time
}
