package usage

import (
	"testing"
	"time"

	"github.com/kailas-cloud/invoicedex/internal/usecase/budget"
)

// --- Mock ---

type mockBudgetReader struct {
	status budget.Status
}

func (m *mockBudgetReader) Status() budget.Status { return m.status }

func fixedClock() time.Time { return time.Date(2025, time.January, 24, 15, 30, 0, 0, time.UTC) }

// --- Tests ---

func TestReport_DailyPeriod(t *testing.T) {
	br := &mockBudgetReader{status: budget.Status{
		DailyUsed: 3000, DailyLimit: 10000, DailyRemaining: 7000,
		MonthlyUsed: 50000, MonthlyLimit: 100000, MonthlyRemaining: 50000,
	}}
	r := New(br).WithClock(fixedClock).Report(PeriodDay)

	if r.Period != PeriodDay {
		t.Errorf("period = %s", r.Period)
	}
	if !r.PeriodStart.Equal(time.Date(2025, time.January, 24, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("period start = %s", r.PeriodStart)
	}
	if !r.PeriodEnd.Equal(time.Date(2025, time.January, 25, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("period end = %s", r.PeriodEnd)
	}
	if r.TokensUsed != 3000 || r.TokensLimit != 10000 || r.TokensRemaining != 7000 {
		t.Errorf("unexpected counters: %+v", r)
	}
	if !r.Limited || r.Exhausted {
		t.Errorf("limited=%v exhausted=%v", r.Limited, r.Exhausted)
	}
}

func TestReport_MonthlyPeriod(t *testing.T) {
	br := &mockBudgetReader{status: budget.Status{
		DailyUsed: 3000, DailyLimit: 10000, DailyRemaining: 7000,
		MonthlyUsed: 100000, MonthlyLimit: 100000, MonthlyRemaining: 0,
	}}
	r := New(br).WithClock(fixedClock).Report(PeriodMonth)

	if !r.PeriodStart.Equal(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("period start = %s", r.PeriodStart)
	}
	if !r.PeriodEnd.Equal(time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("period end = %s", r.PeriodEnd)
	}
	if r.TokensUsed != 100000 || !r.Exhausted {
		t.Errorf("expected exhausted monthly budget, got %+v", r)
	}
}

func TestReport_UnlimitedPeriod(t *testing.T) {
	br := &mockBudgetReader{status: budget.Status{
		DailyUsed: 500, DailyRemaining: -1,
		MonthlyUsed: 500, MonthlyLimit: 1000, MonthlyRemaining: 500,
	}}
	r := New(br).WithClock(fixedClock).Report(PeriodDay)

	if r.Limited || r.Exhausted {
		t.Errorf("daily period has no limit: %+v", r)
	}
	if r.TokensUsed != 500 || r.TokensRemaining != -1 {
		t.Errorf("unexpected counters: %+v", r)
	}
}

func TestReport_NoBudget(t *testing.T) {
	r := New(nil).WithClock(fixedClock).Report(PeriodMonth)

	if r.TokensUsed != 0 || r.TokensLimit != 0 || r.TokensRemaining != -1 {
		t.Errorf("unexpected counters: %+v", r)
	}
	if r.Limited || r.Exhausted {
		t.Errorf("limited=%v exhausted=%v", r.Limited, r.Exhausted)
	}
}

func TestReport_WithTracker(t *testing.T) {
	tr := budget.NewTracker("openai", 1000, 0, budget.ActionWarn, nil).WithClock(fixedClock)
	tr.Record(250)

	r := New(tr).WithClock(fixedClock).Report(PeriodDay)

	if r.TokensUsed != 250 || r.TokensRemaining != 750 {
		t.Errorf("unexpected counters: %+v", r)
	}
}

func TestParsePeriod(t *testing.T) {
	for in, want := range map[string]Period{"": PeriodDay, "day": PeriodDay, "month": PeriodMonth} {
		got, err := ParsePeriod(in)
		if err != nil || got != want {
			t.Errorf("ParsePeriod(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePeriod("year"); err == nil {
		t.Error("expected error for unknown period")
	}
}
