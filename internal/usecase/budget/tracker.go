// Package budget enforces the daily and monthly token budget shared by
// embedding and extraction calls.
package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicedex/internal/domain"
	"github.com/kailas-cloud/invoicedex/internal/metrics"
)

// Action defines behavior when the token budget is exceeded.
type Action string

const (
	// ActionWarn logs a warning but allows the request.
	ActionWarn Action = "warn"
	// ActionReject blocks the request with domain.ErrQuotaExceeded.
	ActionReject Action = "reject"
)

// ParseAction validates a configured action. Empty means warn.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case "", ActionWarn:
		return ActionWarn, nil
	case ActionReject:
		return ActionReject, nil
	default:
		return "", fmt.Errorf("unknown budget action %q", s)
	}
}

// persistTimeout bounds one write-behind round.
const persistTimeout = 2 * time.Second

// Status is a point-in-time view of the budget. Remaining is -1 when unlimited.
type Status struct {
	DailyUsed        int64
	DailyLimit       int64
	DailyRemaining   int64
	MonthlyUsed      int64
	MonthlyLimit     int64
	MonthlyRemaining int64
}

// Tracker is an in-memory token budget with optional write-behind persistence.
// Check never leaves the process; Record updates memory first, then the store.
// A zero limit means unlimited.
type Tracker struct {
	mu           sync.Mutex
	dailyUsed    int64
	monthlyUsed  int64
	dailyLimit   int64
	monthlyLimit int64
	action       Action
	provider     string
	day          time.Time
	month        time.Time
	now          func() time.Time
	store        Store
	pending      sync.WaitGroup
	logger       *zap.Logger
}

// NewTracker creates a tracker with the given limits.
func NewTracker(provider string, dailyLimit, monthlyLimit int64, action Action, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		action:       action,
		provider:     provider,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}
	t.day, t.month = t.periods(t.now())
	return t
}

// WithClock replaces the time source.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = func() time.Time { return now().UTC() }
	t.day, t.month = t.periods(t.now())
	return t
}

// WithStore attaches a persistence store and loads the current counters.
// A failed load leaves the counters at zero.
func (t *Tracker) WithStore(ctx context.Context, store Store) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.store = store
	now := t.now()
	dailyKey, monthlyKey := t.dailyKey(now), t.monthlyKey(now)

	if val, err := store.Get(ctx, dailyKey); err == nil {
		t.dailyUsed = val
	} else {
		t.logger.Warn("Failed to load daily budget", zap.String("key", dailyKey), zap.Error(err))
	}
	if val, err := store.Get(ctx, monthlyKey); err == nil {
		t.monthlyUsed = val
	} else {
		t.logger.Warn("Failed to load monthly budget", zap.String("key", monthlyKey), zap.Error(err))
	}

	t.logger.Info("Budget loaded",
		zap.String("provider", t.provider),
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("monthly_used", t.monthlyUsed),
	)
	return t
}

// Check reports whether a new model call may start.
func (t *Tracker) Check(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()

	dailyExceeded := t.dailyLimit > 0 && t.dailyUsed >= t.dailyLimit
	monthlyExceeded := t.monthlyLimit > 0 && t.monthlyUsed >= t.monthlyLimit
	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if t.action == ActionReject {
		return fmt.Errorf("%s budget: %w", t.provider, domain.ErrQuotaExceeded)
	}

	t.logger.Warn("Token budget exceeded",
		zap.String("provider", t.provider),
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("daily_limit", t.dailyLimit),
		zap.Int64("monthly_used", t.monthlyUsed),
		zap.Int64("monthly_limit", t.monthlyLimit),
	)
	return nil
}

// Record adds consumed tokens and refreshes the remaining-budget gauges.
// With a store attached the increment is persisted in the background;
// Record itself never waits on the network.
func (t *Tracker) Record(tokens int64) {
	if tokens <= 0 {
		return
	}

	t.mu.Lock()
	t.rollover()
	t.dailyUsed += tokens
	t.monthlyUsed += tokens
	status := t.statusLocked()
	store := t.store
	now := t.now()
	t.mu.Unlock()

	metrics.BudgetTokensRemaining.WithLabelValues(t.provider, "daily").Set(float64(status.DailyRemaining))
	metrics.BudgetTokensRemaining.WithLabelValues(t.provider, "monthly").Set(float64(status.MonthlyRemaining))

	if store == nil {
		return
	}

	t.pending.Add(1)
	go func() {
		defer t.pending.Done()
		t.persist(store, now, tokens)
	}()
}

func (t *Tracker) persist(store Store, now time.Time, tokens int64) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	for _, key := range []string{t.dailyKey(now), t.monthlyKey(now)} {
		if err := store.IncrBy(ctx, key, tokens); err != nil {
			t.logger.Warn("Failed to persist budget", zap.String("key", key), zap.Error(err))
		}
	}
}

// Flush waits for in-flight persistence writes. Call it before closing the
// store.
func (t *Tracker) Flush() {
	t.pending.Wait()
}

// Status returns the current counters.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return t.statusLocked()
}

func (t *Tracker) statusLocked() Status {
	return Status{
		DailyUsed:        t.dailyUsed,
		DailyLimit:       t.dailyLimit,
		DailyRemaining:   remaining(t.dailyLimit, t.dailyUsed),
		MonthlyUsed:      t.monthlyUsed,
		MonthlyLimit:     t.monthlyLimit,
		MonthlyRemaining: remaining(t.monthlyLimit, t.monthlyUsed),
	}
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	return max(limit-used, 0)
}

// rollover zeroes counters when the day or month changes.
func (t *Tracker) rollover() {
	day, month := t.periods(t.now())
	if day.After(t.day) {
		t.dailyUsed = 0
		t.day = day
	}
	if month.After(t.month) {
		t.monthlyUsed = 0
		t.month = month
	}
}

func (t *Tracker) periods(now time.Time) (day, month time.Time) {
	day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	month = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return day, month
}

// Daily key layout: budget:{provider}:daily:YYYY-MM-DD. The store adds its
// namespace.
func (t *Tracker) dailyKey(now time.Time) string {
	return fmt.Sprintf("budget:%s:daily:%s", t.provider, now.Format(time.DateOnly))
}

// Monthly key layout: budget:{provider}:monthly:YYYY-MM.
func (t *Tracker) monthlyKey(now time.Time) string {
	return fmt.Sprintf("budget:%s:monthly:%s", t.provider, now.Format("2006-01"))
}
