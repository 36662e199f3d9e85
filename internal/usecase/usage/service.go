// Package usage reports token consumption against the configured budget.
package usage

import (
	"fmt"
	"time"
)

// Period is the aggregation granularity of a report.
type Period string

// Period values.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod validates a period. Empty means day.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("period must be %q or %q, got %q", PeriodDay, PeriodMonth, s)
	}
}

// Report is the token usage for one budget period. Remaining is -1 and
// Limited false when the period has no limit.
type Report struct {
	Period          Period    `json:"period"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	TokensUsed      int64     `json:"tokens_used"`
	TokensLimit     int64     `json:"tokens_limit"`
	TokensRemaining int64     `json:"tokens_remaining"`
	Limited         bool      `json:"limited"`
	Exhausted       bool      `json:"exhausted"`
}

// Service handles usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil when no budget is configured; usage
// is then reported as zero and unlimited.
func New(br BudgetReader) *Service {
	return &Service{br: br, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Report builds the usage report for period.
func (s *Service) Report(period Period) Report {
	now := s.now().UTC()
	r := Report{Period: period, TokensRemaining: -1}

	switch period {
	case PeriodMonth:
		r.PeriodStart = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		r.PeriodEnd = r.PeriodStart.AddDate(0, 1, 0)
	default:
		r.Period = PeriodDay
		r.PeriodStart = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		r.PeriodEnd = r.PeriodStart.AddDate(0, 0, 1)
	}

	if s.br == nil {
		return r
	}

	st := s.br.Status()
	if r.Period == PeriodMonth {
		r.TokensUsed, r.TokensLimit, r.TokensRemaining = st.MonthlyUsed, st.MonthlyLimit, st.MonthlyRemaining
	} else {
		r.TokensUsed, r.TokensLimit, r.TokensRemaining = st.DailyUsed, st.DailyLimit, st.DailyRemaining
	}
	r.Limited = r.TokensLimit > 0
	r.Exhausted = r.Limited && r.TokensRemaining <= 0
	return r
}
