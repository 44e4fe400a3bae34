package stats

import (
	"sort"
	"time"

	"expensetracker/internal/models"
)

// NotAvailable labels a highlight with no qualifying data.
const NotAvailable = "N/A"

// Highlight is the winning group of a max-reduce.
type Highlight struct {
	Label  string `json:"label"`
	Period string `json:"period,omitempty"`
	Amount int64  `json:"amount"`
}

// Highlights reports the best and worst weekday of the current month and the
// best and worst month of all time.
type Highlights struct {
	MostProfitableDay   Highlight `json:"most_profitable_day"`
	MostExpensiveDay    Highlight `json:"most_expensive_day"`
	MostProfitableMonth Highlight `json:"most_profitable_month"`
	MostExpensiveMonth  Highlight `json:"most_expensive_month"`
}

type group struct {
	label   string
	period  string
	income  int64
	expense int64
}

// ComputeHighlights groups txs by weekday (current calendar month of now in
// loc) and by month (all time). A group wins only with a strictly larger sum,
// so ties keep the chronologically first group.
func ComputeHighlights(txs []models.Transaction, now time.Time, loc *time.Location) Highlights {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)

	sorted := append([]models.Transaction(nil), txs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var thisMonth []models.Transaction
	for _, tx := range sorted {
		d := tx.Date.In(loc)
		if d.Year() == now.Year() && d.Month() == now.Month() {
			thisMonth = append(thisMonth, tx)
		}
	}

	days := groupBy(thisMonth, loc, func(t time.Time) (string, string) {
		return t.Weekday().String(), ""
	})
	months := groupBy(sorted, loc, func(t time.Time) (string, string) {
		return t.Month().String(), t.Format("January 2006")
	})

	var h Highlights
	h.MostProfitableDay, h.MostExpensiveDay = maxReduce(days)
	h.MostProfitableMonth, h.MostExpensiveMonth = maxReduce(months)
	return h
}

func groupBy(txs []models.Transaction, loc *time.Location, key func(time.Time) (label, period string)) []*group {
	var order []*group
	byKey := make(map[string]*group)
	for _, tx := range txs {
		label, period := key(tx.Date.In(loc))
		k := label + "|" + period
		g, ok := byKey[k]
		if !ok {
			g = &group{label: label, period: period}
			byKey[k] = g
			order = append(order, g)
		}
		switch tx.Type {
		case models.TransactionTypeIncome:
			g.income += tx.Amount
		case models.TransactionTypeExpense:
			g.expense += tx.Amount
		}
	}
	return order
}

func maxReduce(groups []*group) (profitable, expensive Highlight) {
	profitable = Highlight{Label: NotAvailable}
	expensive = Highlight{Label: NotAvailable}
	for _, g := range groups {
		if g.income > profitable.Amount {
			profitable = Highlight{Label: g.label, Period: g.period, Amount: g.income}
		}
		if g.expense > expensive.Amount {
			expensive = Highlight{Label: g.label, Period: g.period, Amount: g.expense}
		}
	}
	return profitable, expensive
}
