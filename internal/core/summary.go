package core

import "sort"

// CategoryExpenseDetail groups one month's expenses for a single category.
type CategoryExpenseDetail struct {
	Category Category
	Amount   Money
	Expenses []Expense
}

// MonthSummary is the categorized view of one user's month.
type MonthSummary struct {
	YearMonth YearMonth
	Data      []CategoryExpenseDetail
	Total     Money
}

// SummarizeMonth groups expenses by category for ym. Every category is
// present, highest amount first; ties keep declaration order. Expenses from
// another month or with an unknown category are skipped.
func SummarizeMonth(ym YearMonth, expenses []Expense) MonthSummary {
	data := make([]CategoryExpenseDetail, len(allCategories))
	index := make(map[Category]int, len(allCategories))
	for i, c := range allCategories {
		data[i] = CategoryExpenseDetail{Category: c, Expenses: []Expense{}}
		index[c] = i
	}

	for _, e := range expenses {
		if e.YearMonth != ym {
			continue
		}
		i, ok := index[e.Category]
		if !ok {
			continue
		}
		data[i].Amount.Cents += e.Amount.Cents
		data[i].Expenses = append(data[i].Expenses, e)
	}

	sort.SliceStable(data, func(a, b int) bool {
		return data[a].Amount.Cents > data[b].Amount.Cents
	})

	return MonthSummary{YearMonth: ym, Data: data, Total: TotalAmount(data)}
}

// TotalAmount sums the category amounts.
func TotalAmount(data []CategoryExpenseDetail) Money {
	var total Money
	for _, d := range data {
		total.Cents += d.Amount.Cents
	}
	return total
}
