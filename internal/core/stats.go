package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryTotals maps a category to its summed amount. Iteration order is
// not meaningful; use Sorted for display.
type CategoryTotals map[Category]decimal.Decimal

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Category Category
	Amount   decimal.Decimal
}

// Stats is the aggregate of a set of transactions.
type Stats struct {
	TotalIncome       decimal.Decimal
	TotalExpense      decimal.Decimal
	CategoriesIncome  CategoryTotals
	CategoriesExpense CategoryTotals
}

// Add inserts the category with amount, or increments the existing sum.
func (c CategoryTotals) Add(cat Category, amount decimal.Decimal) {
	if cur, ok := c[cat]; ok {
		c[cat] = cur.Add(amount)
		return
	}
	c[cat] = amount
}

// Sorted returns the entries by descending amount, then by label.
func (c CategoryTotals) Sorted() []CategoryAmount {
	out := make([]CategoryAmount, 0, len(c))
	for cat, amount := range c {
		out = append(out, CategoryAmount{Category: cat, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Amount.Cmp(out[j].Amount); cmp != 0 {
			return cmp > 0
		}
		if out[i].Category.Valid != out[j].Category.Valid {
			return out[i].Category.Valid
		}
		return out[i].Category.Name < out[j].Category.Name
	})
	return out
}

// Aggregate sums amounts by direction and category. An empty input yields
// zero totals and empty maps.
func Aggregate(txs []Transaction) Stats {
	s := Stats{
		TotalIncome:       decimal.Zero,
		TotalExpense:      decimal.Zero,
		CategoriesIncome:  CategoryTotals{},
		CategoriesExpense: CategoryTotals{},
	}
	for _, t := range txs {
		if t.IsIncome {
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
			s.CategoriesIncome.Add(t.Category, t.Amount)
		} else {
			s.TotalExpense = s.TotalExpense.Add(t.Amount)
			s.CategoriesExpense.Add(t.Category, t.Amount)
		}
	}
	return s
}

// Balance is income minus expense.
func (s Stats) Balance() decimal.Decimal {
	return s.TotalIncome.Sub(s.TotalExpense)
}

// IsEmpty reports whether both totals are zero.
func (s Stats) IsEmpty() bool {
	return s.TotalIncome.IsZero() && s.TotalExpense.IsZero()
}
