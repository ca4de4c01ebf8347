package core

import (
	"fmt"
	"time"
)

// Period selects a calendar-aligned or rolling window of transactions.
type Period string

const (
	CurrentMonth Period = "current_month"
	LastMonth    Period = "last_month"
	Last30Days   Period = "last_30_days"
	Last12Months Period = "last_12_months"
	AllTime      Period = "all"
)

// Periods lists every selector in report order.
var Periods = []Period{CurrentMonth, LastMonth, Last30Days, Last12Months, AllTime}

// Window is a half-open time range [From, To). A zero bound is unbounded.
type Window struct {
	From time.Time
	To   time.Time
}

// ParsePeriod converts a selector name into a Period.
func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if !p.IsValid() {
		return "", fmt.Errorf("unknown period %q", s)
	}
	return p, nil
}

func (p Period) IsValid() bool {
	switch p {
	case CurrentMonth, LastMonth, Last30Days, Last12Months, AllTime:
		return true
	}
	return false
}

func (p Period) String() string {
	return string(p)
}

// Window returns the range covered by p relative to now. Calendar months are
// evaluated in now's location.
//
// last_12_months is a calendar year back from now (now.AddDate(-1, 0, 0)),
// not a fixed 365 days, so it spans 366 days when a 29 February is inside.
func (p Period) Window(now time.Time) Window {
	switch p {
	case CurrentMonth:
		start := monthStart(now)
		return Window{From: start, To: start.AddDate(0, 1, 0)}
	case LastMonth:
		end := monthStart(now)
		return Window{From: end.AddDate(0, -1, 0), To: end}
	case Last30Days:
		return Window{From: now.Add(-30 * 24 * time.Hour)}
	case Last12Months:
		return Window{From: now.AddDate(-1, 0, 0)}
	default:
		return Window{}
	}
}

// Contains reports whether t falls inside p relative to now.
func (p Period) Contains(now, t time.Time) bool {
	return p.Window(now).Contains(t)
}

// Filter returns a predicate over transaction timestamps for a fixed now.
func (p Period) Filter(now time.Time) func(time.Time) bool {
	w := p.Window(now)
	return w.Contains
}

func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !t.Before(w.To) {
		return false
	}
	return true
}

// FilterTransactions keeps the transactions dated inside p, preserving order.
func FilterTransactions(txs []Transaction, p Period, now time.Time) []Transaction {
	keep := p.Filter(now)
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if keep(t.Date) {
			out = append(out, t)
		}
	}
	return out
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
