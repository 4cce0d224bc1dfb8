// Package classify assigns category and bucket to transactions from pattern rules.
package classify

import (
	"sort"
	"strings"

	"ledger/internal/core"
)

// Result counts what a classification pass did.
type Result struct {
	Processed int
	Matched   int
}

// Order returns the enabled rules sorted by priority, highest first. Rules with
// equal priority keep their relative input order.
func Order(rules []core.Rule) []core.Rule {
	out := make([]core.Rule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// Match returns the first rule in ordered that matches t.
func Match(t core.Transaction, ordered []core.Rule) (core.Rule, bool) {
	for _, r := range ordered {
		value, ok := r.Field.Value(t)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(value), strings.ToLower(r.Pattern)) {
			return r, true
		}
	}
	return core.Rule{}, false
}

// Apply classifies every transaction in place. The first matching rule, taken
// in Order, sets Category and Bucket; unmatched transactions are left as they are.
func Apply(txns []core.Transaction, rules []core.Rule) Result {
	ordered := Order(rules)
	res := Result{Processed: len(txns)}
	for i := range txns {
		r, ok := Match(txns[i], ordered)
		if !ok {
			continue
		}
		category, bucket := r.Category, r.Bucket
		txns[i].Category = &category
		txns[i].Bucket = &bucket
		res.Matched++
	}
	return res
}
