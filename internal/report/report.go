// Package report aggregates monthly spend per bucket and compares it against budgets.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// MonthRange returns the half-open interval [start, end) covering year/month.
func MonthRange(year, month int) (start, end core.Date, err error) {
	if year < 1 || year > 9999 {
		return core.Date{}, core.Date{}, core.Invalidf("year %d out of range", year)
	}
	if month < 1 || month > 12 {
		return core.Date{}, core.Date{}, core.Invalidf("month %d out of range 1-12", month)
	}
	start = core.NewDate(year, month, 1)
	end = core.Date{Time: start.AddDate(0, 1, 0)}
	return start, end, nil
}

// LastDay returns the inclusive last day of the month, for inclusive store filters.
func LastDay(year, month int) (core.Date, error) {
	_, end, err := MonthRange(year, month)
	if err != nil {
		return core.Date{}, err
	}
	return core.Date{Time: end.Add(-24 * time.Hour)}, nil
}

// Monthly groups the transactions dated inside year/month by bucket and
// returns one row per observed bucket, sorted by bucket name.
//
// Transactions without a bucket are reported under core.UncategorizedBucket.
// When several budgets name the same bucket the last one wins.
func Monthly(year, month int, txns []core.Transaction, budgets []core.Budget) ([]core.ReportRow, error) {
	start, end, err := MonthRange(year, month)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal)
	for _, t := range txns {
		if t.Date.Before(start) || !t.Date.Before(end) {
			continue
		}
		bucket := core.UncategorizedBucket
		if t.Bucket != nil {
			bucket = *t.Bucket
		}
		totals[bucket] = totals[bucket].Add(t.Amount)
	}

	limits := make(map[string]decimal.Decimal, len(budgets))
	for _, b := range budgets {
		limits[b.Bucket] = b.MonthlyLimit
	}

	rows := make([]core.ReportRow, 0, len(totals))
	for bucket, total := range totals {
		row := core.ReportRow{Bucket: bucket, TotalSpend: total}
		if limit, ok := limits[bucket]; ok {
			row.Limit = &limit
			if !limit.IsZero() {
				util := total.Div(limit)
				row.Utilization = &util
				row.OverBudget = total.GreaterThan(limit)
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Bucket < rows[j].Bucket })
	return rows, nil
}

// Total sums TotalSpend across rows.
func Total(rows []core.ReportRow) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(r.TotalSpend)
	}
	return sum
}
