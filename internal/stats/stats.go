// Package stats buckets transactions into day, month and year windows and
// computes per-bucket income and expense sums.
package stats

import (
	"fmt"
	"strconv"
	"time"

	"expensetracker/internal/models"
)

// Period selects the bucket layout.
type Period string

const (
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

// ParsePeriod validates a period name.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case Weekly, Monthly, Yearly:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

const (
	dayKey   = "2006-01-02"
	monthKey = "Jan 06"
)

// Bucket is one time window with summed income and expense.
type Bucket struct {
	Key     string `json:"key"`
	Income  int64  `json:"income"`
	Expense int64  `json:"expense"`
}

// Window describes the buckets of a period ending at a reference time.
type Window struct {
	Period Period
	From   time.Time // inclusive
	To     time.Time // exclusive
	keys   []string
	keyOf  func(time.Time) string
	loc    *time.Location
}

// NewWindow builds the bucket window for period ending on the calendar day
// of now in loc. firstYear is only used by Yearly; zero or a year after now
// yields the current year alone.
func NewWindow(period Period, now time.Time, loc *time.Location, firstYear int) Window {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	w := Window{Period: period, loc: loc}

	switch period {
	case Weekly:
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		w.From = today.AddDate(0, 0, -6)
		w.To = today.AddDate(0, 0, 1)
		for d := w.From; d.Before(w.To); d = d.AddDate(0, 0, 1) {
			w.keys = append(w.keys, d.Format(dayKey))
		}
		w.keyOf = func(t time.Time) string { return t.Format(dayKey) }

	case Monthly:
		thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		w.From = thisMonth.AddDate(0, -11, 0)
		w.To = thisMonth.AddDate(0, 1, 0)
		for m := w.From; m.Before(w.To); m = m.AddDate(0, 1, 0) {
			w.keys = append(w.keys, m.Format(monthKey))
		}
		w.keyOf = func(t time.Time) string { return t.Format(monthKey) }

	case Yearly:
		if firstYear <= 0 || firstYear > now.Year() {
			firstYear = now.Year()
		}
		w.From = time.Date(firstYear, 1, 1, 0, 0, 0, 0, loc)
		w.To = time.Date(now.Year()+1, 1, 1, 0, 0, 0, 0, loc)
		for y := firstYear; y <= now.Year(); y++ {
			w.keys = append(w.keys, strconv.Itoa(y))
		}
		w.keyOf = func(t time.Time) string { return strconv.Itoa(t.Year()) }
	}
	return w
}

// Keys returns the bucket keys, oldest first.
func (w Window) Keys() []string {
	return append([]string(nil), w.keys...)
}

// Aggregate sums txs into the window's buckets. Transactions outside the
// window are ignored.
func (w Window) Aggregate(txs []models.Transaction) []Bucket {
	buckets := make([]Bucket, len(w.keys))
	index := make(map[string]int, len(w.keys))
	for i, k := range w.keys {
		buckets[i].Key = k
		index[k] = i
	}

	for _, tx := range txs {
		d := tx.Date.In(w.loc)
		if d.Before(w.From) || !d.Before(w.To) {
			continue
		}
		i, ok := index[w.keyOf(d)]
		if !ok {
			continue
		}
		switch tx.Type {
		case models.TransactionTypeIncome:
			buckets[i].Income += tx.Amount
		case models.TransactionTypeExpense:
			buckets[i].Expense += tx.Amount
		}
	}
	return buckets
}

// ChartPoint is one bar of the paired income/expense chart. Only the income
// bar of each bucket carries the label.
type ChartPoint struct {
	Value int64                  `json:"value"`
	Label string                 `json:"label,omitempty"`
	Type  models.TransactionType `json:"type"`
}

// Chart expands each bucket into an income point followed by an expense point.
func Chart(buckets []Bucket) []ChartPoint {
	points := make([]ChartPoint, 0, len(buckets)*2)
	for _, b := range buckets {
		points = append(points,
			ChartPoint{Value: b.Income, Label: b.Key, Type: models.TransactionTypeIncome},
			ChartPoint{Value: b.Expense, Type: models.TransactionTypeExpense},
		)
	}
	return points
}
