package report

import (
	"fmt"
	"strings"

	"finbot/internal/core"
)

// Section is the aggregate of one non-empty period.
type Section struct {
	Period core.Period
	Stats  core.Stats
}

// StatsReport is the multi-period summary shown by the stats command.
// Chart holds the last 30 days of expenses by category.
type StatsReport struct {
	Sections []Section
	Chart    core.CategoryTotals
	Currency string
}

// Empty reports whether no period had any activity.
func (r StatsReport) Empty() bool {
	return len(r.Sections) == 0
}

// HasChart reports whether there is expense data to plot.
func (r StatsReport) HasChart() bool {
	return len(r.Chart) > 0
}

// BuildStatsReport keeps the periods with activity, in core.Periods order.
func BuildStatsReport(byPeriod map[core.Period]core.Stats, currency string) StatsReport {
	r := StatsReport{Currency: currency}
	for _, p := range core.Periods {
		s, ok := byPeriod[p]
		if !ok || s.IsEmpty() {
			continue
		}
		r.Sections = append(r.Sections, Section{Period: p, Stats: s})
	}
	if s, ok := byPeriod[core.Last30Days]; ok && len(s.CategoriesExpense) > 0 {
		r.Chart = s.CategoriesExpense
	}
	return r
}

// RenderStats formats the report as Telegram HTML. An empty report renders
// the no-data message.
func RenderStats(r StatsReport, loc Locale) string {
	if r.Empty() {
		return loc.NoData
	}
	parts := make([]string, 0, len(r.Sections))
	for _, sec := range r.Sections {
		var b strings.Builder
		fmt.Fprintf(&b, loc.StatsTitle, loc.PeriodNames[sec.Period])
		fmt.Fprintf(&b, loc.StatsLines,
			core.FormatAmount(sec.Stats.TotalIncome, r.Currency),
			core.FormatAmount(sec.Stats.TotalExpense, r.Currency),
			core.FormatAmount(sec.Stats.Balance(), r.Currency))
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n")
}
