package notion

import (
	"maps"
	"slices"

	"github.com/jomei/notionapi"

	"ledger/internal/core"
)

// Property names of the Notion transactions database.
const (
	PropMerchant    = "Merchant"
	PropID          = "Transaction ID"
	PropDate        = "Date"
	PropAmount      = "Amount"
	PropCurrency    = "Currency"
	PropCategory    = "Category"
	PropBucket      = "Bucket"
	PropRawCategory = "Raw Category"
	PropSource      = "Source"
	PropAccount     = "Account ID"
)

// TransactionToProperties converts a ledger transaction to the page properties
// of the Notion transactions database. Unset optional fields are omitted.
func TransactionToProperties(t core.Transaction) notionapi.Properties {
	amount, _ := t.Amount.Float64()
	date := notionapi.Date(t.Date.Time)

	props := notionapi.Properties{
		PropMerchant: notionapi.TitleProperty{
			Title: richText(t.Merchant),
		},
		PropID: notionapi.RichTextProperty{
			RichText: richText(t.ID),
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &date},
		},
		PropAmount: notionapi.NumberProperty{
			Number: amount,
		},
		PropCurrency: notionapi.SelectProperty{
			Select: notionapi.Option{Name: t.Currency},
		},
		PropAccount: notionapi.NumberProperty{
			Number: float64(t.AccountID),
		},
	}

	if t.Category != nil {
		props[PropCategory] = notionapi.SelectProperty{Select: notionapi.Option{Name: *t.Category}}
	}
	if t.Bucket != nil {
		props[PropBucket] = notionapi.SelectProperty{Select: notionapi.Option{Name: *t.Bucket}}
	}
	if t.RawCategory != nil {
		props[PropRawCategory] = notionapi.RichTextProperty{RichText: richText(*t.RawCategory)}
	}
	if t.SourceSystem != "" {
		props[PropSource] = notionapi.SelectProperty{Select: notionapi.Option{Name: t.SourceSystem}}
	}
	return props
}

// PropertyNames lists the page property names in sorted order.
func PropertyNames(props notionapi.Properties) []string {
	return slices.Sorted(maps.Keys(props))
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}
