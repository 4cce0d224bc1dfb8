package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func rule(id int64, pattern string, field core.MatchField, category, bucket string, priority int) core.Rule {
	return core.Rule{ID: id, Pattern: pattern, Field: field, Category: category, Bucket: bucket, Priority: priority, Enabled: true}
}

func bucketOf(t core.Transaction) string {
	if t.Bucket == nil {
		return ""
	}
	return *t.Bucket
}

func TestApplyHigherPriorityWins(t *testing.T) {
	rules := []core.Rule{
		rule(1, "AMZN", core.FieldMerchant, "Shopping", "Discretionary", 10),
		rule(2, "AMZN PRIME", core.FieldMerchant, "Subscriptions", "Fixed", 20),
	}
	txns := []core.Transaction{{ID: "t1", Merchant: "AMZN PRIME VIDEO"}}

	res := Apply(txns, rules)

	assert.Equal(t, Result{Processed: 1, Matched: 1}, res)
	require.NotNil(t, txns[0].Category)
	assert.Equal(t, "Subscriptions", *txns[0].Category)
	assert.Equal(t, "Fixed", bucketOf(txns[0]))

	// Insertion order does not matter.
	txns = []core.Transaction{{ID: "t1", Merchant: "AMZN PRIME VIDEO"}}
	Apply(txns, []core.Rule{rules[1], rules[0]})
	assert.Equal(t, "Fixed", bucketOf(txns[0]))
}

func TestApplyEqualPriorityKeepsInputOrder(t *testing.T) {
	first := rule(1, "coffee", core.FieldMerchant, "Cafe", "Discretionary", 5)
	second := rule(2, "tim", core.FieldMerchant, "Snacks", "Food", 5)
	txns := []core.Transaction{{ID: "t1", Merchant: "Tim Hortons Coffee"}}

	Apply(txns, []core.Rule{first, second})
	assert.Equal(t, "Discretionary", bucketOf(txns[0]))

	Apply(txns, []core.Rule{second, first})
	assert.Equal(t, "Food", bucketOf(txns[0]))
}

func TestApplySkipsDisabledRules(t *testing.T) {
	disabled := rule(1, "uber", core.FieldMerchant, "Rides", "Transport", 100)
	disabled.Enabled = false
	fallback := rule(2, "uber", core.FieldMerchant, "Food delivery", "Discretionary", 1)
	txns := []core.Transaction{{ID: "t1", Merchant: "UBER EATS"}}

	Apply(txns, []core.Rule{disabled, fallback})

	assert.Equal(t, "Discretionary", bucketOf(txns[0]))
}

func TestApplyCaseInsensitiveSubstring(t *testing.T) {
	txns := []core.Transaction{{ID: "t1", Merchant: "loblaws #1234"}}
	Apply(txns, []core.Rule{rule(1, "LOBLAWS", core.FieldMerchant, "Groceries", "Groceries", 0)})
	assert.Equal(t, "Groceries", bucketOf(txns[0]))
}

func TestApplyUnsetAndUnknownFieldsNeverMatch(t *testing.T) {
	rules := []core.Rule{
		rule(1, "food", core.FieldRawCategory, "Dining", "Discretionary", 50),
		rule(2, "food", core.MatchField("amount"), "Weird", "Weird", 40),
	}
	txns := []core.Transaction{{ID: "t1", Merchant: "food court"}}

	res := Apply(txns, rules)

	assert.Equal(t, 0, res.Matched)
	assert.Nil(t, txns[0].Category)
	assert.Nil(t, txns[0].Bucket)
}

func TestApplyMatchesOnOtherFields(t *testing.T) {
	raw := "Restaurants"
	txns := []core.Transaction{
		{ID: "t1", Merchant: "X", RawCategory: &raw},
		{ID: "t2", Merchant: "Y", SourceSystem: "PAYPAL"},
		{ID: "t3", Merchant: "Z", Currency: "USD"},
	}
	rules := []core.Rule{
		rule(1, "restaurant", core.FieldRawCategory, "Dining", "Discretionary", 1),
		rule(2, "paypal", core.FieldSourceSystem, "Online", "Discretionary", 1),
		rule(3, "usd", core.FieldCurrency, "Travel", "Travel", 1),
	}

	res := Apply(txns, rules)

	assert.Equal(t, 3, res.Matched)
	assert.Equal(t, "Dining", *txns[0].Category)
	assert.Equal(t, "Online", *txns[1].Category)
	assert.Equal(t, "Travel", *txns[2].Category)
}

func TestApplyIsIdempotent(t *testing.T) {
	rules := []core.Rule{
		rule(1, "AMZN", core.FieldMerchant, "Shopping", "Discretionary", 10),
		rule(2, "Shopping", core.FieldCategory, "Reclassified", "Other", 5),
		rule(3, "netflix", core.FieldMerchant, "Streaming", "Fixed", 1),
	}
	txns := []core.Transaction{
		{ID: "a", Merchant: "AMZN Mktp"},
		{ID: "b", Merchant: "Netflix.com"},
		{ID: "c", Merchant: "Corner store"},
	}

	Apply(txns, rules)
	once := snapshot(txns)
	Apply(txns, rules)

	assert.Equal(t, once, snapshot(txns))
}

func TestApplyNoMatchKeepsPriorAssignment(t *testing.T) {
	category, bucket := "Manual", "Fixed"
	txns := []core.Transaction{{ID: "a", Merchant: "Landlord", Category: &category, Bucket: &bucket}}

	Apply(txns, []core.Rule{rule(1, "hydro", core.FieldMerchant, "Utilities", "Fixed", 1)})

	assert.Equal(t, "Manual", *txns[0].Category)
}

func TestOrder(t *testing.T) {
	a := rule(1, "a", core.FieldMerchant, "A", "A", 1)
	b := rule(2, "b", core.FieldMerchant, "B", "B", 3)
	c := rule(3, "c", core.FieldMerchant, "C", "C", 1)
	d := rule(4, "d", core.FieldMerchant, "D", "D", 9)
	d.Enabled = false

	got := Order([]core.Rule{a, b, c, d})

	ids := make([]int64, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []int64{2, 1, 3}, ids)
}

func snapshot(txns []core.Transaction) map[string][2]string {
	out := make(map[string][2]string, len(txns))
	for _, t := range txns {
		var c string
		if t.Category != nil {
			c = *t.Category
		}
		out[t.ID] = [2]string{c, bucketOf(t)}
	}
	return out
}
