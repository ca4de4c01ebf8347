package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finbot/internal/backend"
	"finbot/internal/cache"
	"finbot/internal/core"
	"finbot/internal/report"

	"golang.org/x/sync/singleflight"
)

// ReportService produces the read-side views: multi-period stats and the
// CSV export.
type ReportService struct {
	ledger backend.Ledger
	stats  cache.Cache[core.Stats]
	group  singleflight.Group
	now    func() time.Time
}

type ReportOption func(*ReportService)

// WithStatsCache caches per-(user, window) stats of the calendar periods
// and all time in c.
func WithStatsCache(c cache.Cache[core.Stats]) ReportOption {
	return func(s *ReportService) { s.stats = c }
}

func WithReportClock(now func() time.Time) ReportOption {
	return func(s *ReportService) { s.now = now }
}

func NewReportService(ledger backend.Ledger, opts ...ReportOption) *ReportService {
	s := &ReportService{ledger: ledger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InvalidateUser drops every cached period of the user.
func (s *ReportService) InvalidateUser(userID int64) {
	if s.stats == nil {
		return
	}
	s.stats.DeletePrefix(userPrefix(userID))
}

// Locale returns the user's message catalogue. Unknown users get the
// default one.
func (s *ReportService) Locale(ctx context.Context, userID int64) report.Locale {
	u, err := s.ledger.GetUser(ctx, userID)
	if err != nil {
		return report.LocaleFor(core.DefaultLang)
	}
	return report.LocaleFor(u.Lang)
}

// Stats aggregates every period for the user. Periods without activity are
// left out; a user with no transactions gets an empty report.
func (s *ReportService) Stats(ctx context.Context, userID int64) (report.StatsReport, error) {
	currency, err := s.currency(ctx, userID)
	if err != nil {
		return report.StatsReport{}, err
	}
	now := s.now()
	byPeriod := make(map[core.Period]core.Stats, len(core.Periods))
	for _, p := range core.Periods {
		st, err := s.periodStats(ctx, userID, p, now)
		if err != nil {
			return report.StatsReport{}, err
		}
		byPeriod[p] = st
	}
	return report.BuildStatsReport(byPeriod, currency), nil
}

// Export serializes every transaction of the user with the user's locale.
// rows is the number of data rows, excluding the header.
func (s *ReportService) Export(ctx context.Context, userID int64) (data []byte, rows int, err error) {
	txs, err := s.ledger.ListTransactions(ctx, userID, core.AllTime, s.now())
	if err != nil {
		return nil, 0, fmt.Errorf("export transactions: %w", err)
	}
	data, err = report.ExportCSV(txs, s.Locale(ctx, userID))
	if err != nil {
		return nil, 0, fmt.Errorf("export transactions: %w", err)
	}
	return data, len(txs), nil
}

func (s *ReportService) periodStats(ctx context.Context, userID int64, p core.Period, now time.Time) (core.Stats, error) {
	key := statsKey(userID, p, now)
	useCache := s.stats != nil && cacheable(p)
	if useCache {
		if st, ok := s.stats.Get(key); ok {
			return st, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		txs, err := s.ledger.ListTransactions(ctx, userID, p, now)
		if err != nil {
			return nil, err
		}
		st := core.Aggregate(txs)
		if useCache {
			s.stats.Set(key, st)
		}
		return st, nil
	})
	if err != nil {
		return core.Stats{}, fmt.Errorf("load %s stats: %w", p, err)
	}
	return v.(core.Stats), nil
}

func (s *ReportService) currency(ctx context.Context, userID int64) (string, error) {
	u, err := s.ledger.GetUser(ctx, userID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return core.DefaultCurrency, nil
	case err != nil:
		return "", fmt.Errorf("load user: %w", err)
	case u.Currency == "":
		return core.DefaultCurrency, nil
	}
	return u.Currency, nil
}

func userPrefix(userID int64) string {
	return fmt.Sprintf("stats:%d:", userID)
}

// statsKey identifies the stats of a period by its resolved window, so a
// month rollover or a moving bound never reads an entry computed for an
// earlier now.
func statsKey(userID int64, p core.Period, now time.Time) string {
	w := p.Window(now)
	return fmt.Sprintf("%s%s:%d:%d", userPrefix(userID), p, unixOrZero(w.From), unixOrZero(w.To))
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// cacheable reports whether p's contents only change on writes for as long
// as its window stays the same. Rolling windows lose transactions as time
// passes, so they are always read from the ledger.
func cacheable(p core.Period) bool {
	switch p {
	case core.CurrentMonth, core.LastMonth, core.AllTime:
		return true
	}
	return false
}
