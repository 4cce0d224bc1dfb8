package sheets

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Report 2024-03", SheetName(2024, 3))
	assert.Equal(t, "Report 2024-12", SheetName(2024, 12))
}

func TestValues(t *testing.T) {
	limit := decimal.RequireFromString("400")
	util := decimal.RequireFromString("1.125")
	rows := []core.ReportRow{
		{Bucket: "Fixed", TotalSpend: decimal.RequireFromString("450"), Limit: &limit, Utilization: &util, OverBudget: true},
		{Bucket: core.UncategorizedBucket, TotalSpend: decimal.RequireFromString("12.5")},
	}

	got := Values(rows)
	require.Len(t, got, 3)
	assert.Equal(t, Header, got[0])
	assert.Equal(t, []any{"Fixed", "450.00", "400.00", "1.125", true}, got[1])
	assert.Equal(t, []any{core.UncategorizedBucket, "12.50", "", "", false}, got[2])
}

func TestValuesEmptyReportStillHasHeader(t *testing.T) {
	got := Values(nil)
	require.Len(t, got, 1)
	assert.Equal(t, Header, got[0])
}

func TestQuoteSheet(t *testing.T) {
	assert.Equal(t, "'Report 2024-03'", quoteSheet("Report 2024-03"))
	assert.Equal(t, "'Bob''s'", quoteSheet("Bob's"))
}

func TestNewRequiresConfiguration(t *testing.T) {
	_, err := New(context.Background(), "", []byte("{}"))
	assert.Error(t, err)

	_, err = New(context.Background(), "sheet-id", nil)
	assert.Error(t, err)
}

func TestNewFromEnvDisabledWithoutSpreadsheet(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	e, err := NewFromEnv(context.Background())
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestNewFromEnvMissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "sheet-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromEnv(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}
