// Package worker runs the long-lived exchange-rate watcher.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/exchangerate"
	applog "gastos/internal/log"
)

// RateChecker is the part of the exchange-rate cache the watcher drives.
type RateChecker interface {
	Check(ctx context.Context) exchangerate.Snapshot
	Today() string
}

// Status is what /status reports.
type Status struct {
	Day       string             `json:"day"`
	State     exchangerate.State `json:"state"`
	Rate      *decimal.Decimal   `json:"rate,omitempty"`
	LastCheck time.Time          `json:"lastCheck"`
	Checks    uint64             `json:"checks"`
}

// RateWatcher re-checks today's rate on a fixed interval and whenever a
// rate.set event arrives, so the day rollover is noticed without a restart.
type RateWatcher struct {
	rates    RateChecker
	interval time.Duration
	clock    core.Clock
	logger   *applog.Logger

	mu        sync.Mutex
	last      exchangerate.Snapshot
	lastCheck time.Time
	checks    uint64
}

func NewRateWatcher(rates RateChecker, interval time.Duration, clock core.Clock, logger *applog.Logger) *RateWatcher {
	if logger == nil {
		logger = applog.Discard()
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &RateWatcher{
		rates:    rates,
		interval: interval,
		clock:    clock,
		logger:   logger.WithComponent(applog.ComponentWatcher),
		last:     exchangerate.Snapshot{State: exchangerate.Unknown},
	}
}

// Run checks immediately, then on every tick until ctx is done.
func (w *RateWatcher) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Rate watcher started", "interval", w.interval)
	w.CheckNow(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Rate watcher stopped")
			return nil
		case <-ticker.C:
			w.CheckNow(ctx)
		}
	}
}

// CheckNow runs one check and records the result.
func (w *RateWatcher) CheckNow(ctx context.Context) exchangerate.Snapshot {
	snap := w.rates.Check(ctx)
	day := w.rates.Today()

	w.mu.Lock()
	changed := snap.State != w.last.State || !snap.Rate.Equal(w.last.Rate)
	w.last = snap
	w.lastCheck = w.clock.Now()
	w.checks++
	w.mu.Unlock()

	switch {
	case !snap.HasRate():
		w.logger.WarnContext(ctx, "No exchange rate for today yet",
			applog.FieldOperation, applog.OpCheck,
			applog.FieldDay, day,
			applog.FieldState, snap.State)
	case changed:
		w.logger.InfoContext(ctx, "Exchange rate available",
			applog.FieldOperation, applog.OpCheck,
			applog.FieldDay, day,
			applog.FieldRate, snap.Rate.String())
	}
	return snap
}

// HandleEvent reacts to record events; only rate.set triggers a check.
func (w *RateWatcher) HandleEvent(ctx context.Context, event *amqp.RecordEvent) error {
	if event.Type != amqp.EventExchangeRateSet {
		w.logger.DebugContext(ctx, "Ignoring record event", applog.FieldEventType, event.Type)
		return nil
	}
	w.logger.InfoContext(ctx, "Exchange rate set elsewhere, re-checking",
		applog.FieldUsername, event.Username,
		applog.FieldDay, event.Day)
	w.CheckNow(ctx)
	return nil
}

func (w *RateWatcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := Status{
		Day:       w.rates.Today(),
		State:     w.last.State,
		LastCheck: w.lastCheck,
		Checks:    w.checks,
	}
	if w.last.HasRate() {
		rate := w.last.Rate
		st.Rate = &rate
	}
	return st
}
