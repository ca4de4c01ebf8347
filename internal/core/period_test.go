package core

import (
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	for _, p := range Periods {
		got, err := ParsePeriod(string(p))
		if err != nil || got != p {
			t.Fatalf("ParsePeriod(%q) = %q, %v", p, got, err)
		}
	}
	if _, err := ParsePeriod("last_week"); err == nil {
		t.Fatal("expected error for unknown period")
	}
}

func TestPeriodContains(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	marchStart := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	febStart := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		period Period
		at     time.Time
		want   bool
	}{
		{"current month includes month start", CurrentMonth, marchStart, true},
		{"current month excludes one second before", CurrentMonth, marchStart.Add(-time.Second), false},
		{"current month includes now", CurrentMonth, now, true},
		{"current month excludes next month", CurrentMonth, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), false},
		{"last month includes its start", LastMonth, febStart, true},
		{"last month includes its last second", LastMonth, marchStart.Add(-time.Second), true},
		{"last month excludes current month start", LastMonth, marchStart, false},
		{"last month excludes january", LastMonth, febStart.Add(-time.Second), false},
		{"30 days includes exact bound", Last30Days, now.Add(-30 * 24 * time.Hour), true},
		{"30 days excludes just before bound", Last30Days, now.Add(-30*24*time.Hour - time.Second), false},
		{"12 months includes calendar year bound", Last12Months, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), true},
		{"12 months excludes before bound", Last12Months, time.Date(2024, 3, 15, 11, 59, 59, 0, time.UTC), false},
		{"all includes anything", AllTime, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.period.Contains(now, tc.at); got != tc.want {
				t.Errorf("%s.Contains(%v) = %v, want %v", tc.period, tc.at, got, tc.want)
			}
		})
	}
}

func TestLastMonthYearRollover(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	w := LastMonth.Window(now)
	wantFrom := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if !w.From.Equal(wantFrom) || !w.To.Equal(wantTo) {
		t.Fatalf("unexpected window %v - %v", w.From, w.To)
	}
}

func TestLastMonthFromEndOfMonth(t *testing.T) {
	// 31 March minus one month must still be February.
	now := time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)
	if !LastMonth.Contains(now, time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC)) {
		t.Fatal("expected 28 February inside last month")
	}
	if LastMonth.Contains(now, time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)) {
		t.Fatal("expected 2 March outside last month")
	}
}

func TestLast12MonthsAcrossLeapDay(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	w := Last12Months.Window(now)
	if got := now.Sub(w.From); got != 366*24*time.Hour {
		t.Fatalf("expected a 366 day window across 29 February, got %v", got)
	}
}

func TestFilterTransactionsKeepsOrder(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	txs := []Transaction{
		{ID: 1, Date: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Date: time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)},
		{ID: 3, Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	got := FilterTransactions(txs, CurrentMonth, now)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("unexpected filter result: %+v", got)
	}
	if all := FilterTransactions(txs, AllTime, now); len(all) != 3 {
		t.Fatalf("expected all transactions, got %d", len(all))
	}
}
