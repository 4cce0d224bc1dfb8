package notion

import (
	"context"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func sampleTxn() core.Transaction {
	return core.Transaction{
		ID:           "td-1",
		AccountID:    3,
		Date:         core.NewDate(2024, 3, 2),
		Amount:       decimal.RequireFromString("84.27"),
		Currency:     "CAD",
		Merchant:     "LOBLAWS",
		Bucket:       core.StringPtr("Groceries"),
		SourceSystem: "TD",
	}
}

func TestTransactionToProperties(t *testing.T) {
	props := TransactionToProperties(sampleTxn())

	title, ok := props[PropMerchant].(notionapi.TitleProperty)
	require.True(t, ok)
	assert.Equal(t, "LOBLAWS", title.Title[0].Text.Content)

	amount, ok := props[PropAmount].(notionapi.NumberProperty)
	require.True(t, ok)
	assert.InDelta(t, 84.27, amount.Number, 0.0001)

	date, ok := props[PropDate].(notionapi.DateProperty)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), time.Time(*date.Date.Start))

	bucket, ok := props[PropBucket].(notionapi.SelectProperty)
	require.True(t, ok)
	assert.Equal(t, "Groceries", bucket.Select.Name)

	_, hasCategory := props[PropCategory]
	assert.False(t, hasCategory, "unset category is omitted")
	_, hasRaw := props[PropRawCategory]
	assert.False(t, hasRaw)

	assert.Equal(t, []string{PropAccount, PropAmount, PropBucket, PropCurrency, PropDate, PropMerchant, PropSource, PropID},
		PropertyNames(props))
}

func TestSyncReportsAllCreated(t *testing.T) {
	s := NewSyncer("db-123")

	res, err := s.Sync(context.Background(), []core.Transaction{sampleTxn(), sampleTxn()})
	require.NoError(t, err)
	assert.Equal(t, core.SyncResult{Created: 2, Updated: 0}, res)

	res, err = s.Sync(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, core.SyncResult{}, res)
}

func TestSyncStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSyncer("").Sync(ctx, []core.Transaction{sampleTxn()})
	assert.ErrorIs(t, err, context.Canceled)
}
