// Package exchangerate answers "what is today's rate" with at most one backend
// fetch per business day, and lets the user set the rate when it is missing.
//
// States:
//
//	UNKNOWN  no rate for today (never loaded, stale, absent on the server, or reset)
//	LOADING  a fetch for today is in flight
//	FRESH    rate present and lastUpdated == today
//	SETTING  a user-entered rate is being sent to the backend
//
// Every fetch, set and reset takes a new generation number. A result is only
// applied if its generation is still the latest one.
package exchangerate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/metrics"
	"gastos/internal/storage"
)

type State string

const (
	Unknown State = "UNKNOWN"
	Loading State = "LOADING"
	Fresh   State = "FRESH"
	Setting State = "SETTING"
)

var allStates = []string{string(Unknown), string(Loading), string(Fresh), string(Setting)}

// ErrSuperseded is returned by Set when a reset or newer operation overtook it.
var ErrSuperseded = errors.New("exchange rate operation superseded")

// RateAPI is the slice of the backend client the cache needs.
type RateAPI interface {
	GetExchangeRate(ctx context.Context, token, day string) (decimal.Decimal, bool, error)
	CreateExchangeRate(ctx context.Context, token string, rate core.DailyRate) error
}

// TokenSource yields the current bearer token ("" when logged out).
type TokenSource interface {
	Token() string
}

// Snapshot is a consistent view of the cache.
type Snapshot struct {
	State       State
	Rate        decimal.Decimal
	LastUpdated string
}

// HasRate reports whether the snapshot carries a usable rate for today.
func (s Snapshot) HasRate() bool {
	return s.State == Fresh && s.Rate.IsPositive()
}

// Convert returns amount in both currencies. ok is false without a fresh rate.
func (s Snapshot) Convert(amount decimal.Decimal, from core.Currency) (bs, usd decimal.Decimal, ok bool) {
	if !s.HasRate() {
		return decimal.Zero, decimal.Zero, false
	}
	switch from {
	case core.CurrencyBs:
		return amount, core.ToUSD(amount, s.Rate), true
	case core.CurrencyUSD:
		return core.ToBs(amount, s.Rate), amount, true
	default:
		return decimal.Zero, decimal.Zero, false
	}
}

type Cache struct {
	api     RateAPI
	tokens  TokenSource
	store   storage.Store
	clock   core.Clock
	logger  *applog.Logger
	metrics *metrics.Collectors

	group singleflight.Group

	mu          sync.Mutex
	state       State
	rate        decimal.Decimal
	lastUpdated string
	gen         uint64
}

// Option customizes a Cache.
type Option func(*Cache)

func WithClock(c core.Clock) Option {
	return func(x *Cache) {
		if c != nil {
			x.clock = c
		}
	}
}

func WithLogger(l *applog.Logger) Option {
	return func(x *Cache) {
		if l != nil {
			x.logger = l.WithComponent(applog.ComponentRate)
		}
	}
}

func WithMetrics(m *metrics.Collectors) Option {
	return func(x *Cache) { x.metrics = m }
}

func New(api RateAPI, tokens TokenSource, store storage.Store, opts ...Option) *Cache {
	c := &Cache{
		api:    api,
		tokens: tokens,
		store:  store,
		clock:  core.SystemClock{},
		logger: applog.Discard(),
		state:  Unknown,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics.SetRateState(string(Unknown), allStates)
	return c
}

// Snapshot returns the current state without touching the network.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Cache) State() State {
	return c.Snapshot().State
}

// Today is the business day according to the cache's clock.
func (c *Cache) Today() string {
	return core.Today(c.clock)
}

// Restore loads the persisted rate. A rate persisted for an earlier day is
// kept in memory but the state stays UNKNOWN until the next Check.
func (c *Cache) Restore(ctx context.Context) (Snapshot, error) {
	raw, okRate, err := c.store.Get(ctx, storage.KeyExchangeRate)
	if err != nil {
		return c.Snapshot(), fmt.Errorf("restore exchange rate: %w", err)
	}
	day, okDay, err := c.store.Get(ctx, storage.KeyLastUpdated)
	if err != nil {
		return c.Snapshot(), fmt.Errorf("restore exchange rate: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !okRate || !okDay {
		return c.snapshotLocked(), nil
	}
	rate, err := decimal.NewFromString(raw)
	persisted := core.DailyRate{Rate: rate, LastUpdated: day}
	if err != nil || persisted.Validate() != nil {
		c.logger.WarnContext(ctx, "Ignoring malformed persisted exchange rate",
			applog.FieldOperation, applog.OpRestore,
			applog.FieldRate, raw,
			applog.FieldDay, day)
		return c.snapshotLocked(), nil
	}

	c.gen++
	c.rate = rate
	c.lastUpdated = day
	if day == core.Today(c.clock) {
		c.setStateLocked(Fresh)
	} else {
		c.setStateLocked(Unknown)
	}
	return c.snapshotLocked(), nil
}

// Check makes sure the cache reflects today's rate. It never fails: backend and
// storage errors are logged and leave the cache UNKNOWN.
func (c *Cache) Check(ctx context.Context) Snapshot {
	today := core.Today(c.clock)

	c.mu.Lock()
	if c.lastUpdated == today && c.rate.IsPositive() {
		if c.state != Setting {
			c.setStateLocked(Fresh)
		}
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap
	}
	c.mu.Unlock()

	v, _, _ := c.group.Do(today, func() (any, error) {
		return c.fetch(ctx, today), nil
	})
	return v.(Snapshot)
}

func (c *Cache) fetch(ctx context.Context, today string) Snapshot {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.setStateLocked(Loading)
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "Fetching exchange rate",
		applog.FieldOperation, applog.OpCheck,
		applog.FieldDay, today,
		applog.FieldGeneration, gen)

	rate, found, err := c.api.GetExchangeRate(ctx, c.token(), today)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.observe("superseded")
		c.logger.DebugContext(ctx, "Dropping superseded exchange-rate result",
			applog.FieldDay, today,
			applog.FieldGeneration, gen)
		return c.snapshotLocked()
	}

	if err != nil || !found {
		if err != nil {
			c.observe("error")
			c.logger.WarnContext(ctx, "Exchange rate fetch failed",
				applog.FieldOperation, applog.OpCheck,
				applog.FieldDay, today,
				applog.FieldErrorType, applog.ErrorTypeNetwork,
				applog.FieldError, err)
		} else {
			c.observe("absent")
			c.logger.InfoContext(ctx, "No exchange rate for today",
				applog.FieldOperation, applog.OpCheck,
				applog.FieldDay, today)
		}
		c.clearLocked(ctx)
		return c.snapshotLocked()
	}

	c.observe("found")
	c.rate = rate
	c.lastUpdated = today
	c.setStateLocked(Fresh)
	c.persistLocked(ctx)
	return c.snapshotLocked()
}

// Submit parses user input and sets it as today's rate. Invalid input returns
// core.ErrInvalidRate with no backend call and no state change.
func (c *Cache) Submit(ctx context.Context, text string) (Snapshot, error) {
	rate, err := core.ParseRate(text)
	if err != nil {
		return c.Snapshot(), err
	}
	return c.Set(ctx, rate)
}

// Set stores rate for today on the backend and, on success, locally. On
// failure storage is not touched and the state is FRESH only if today's rate
// is still held, otherwise UNKNOWN.
func (c *Cache) Set(ctx context.Context, rate decimal.Decimal) (Snapshot, error) {
	if !rate.IsPositive() {
		return c.Snapshot(), core.ErrInvalidRate
	}
	today := core.Today(c.clock)

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.setStateLocked(Setting)
	c.mu.Unlock()

	err := c.api.CreateExchangeRate(ctx, c.token(), core.DailyRate{Rate: rate, LastUpdated: today})

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.logger.InfoContext(ctx, "Exchange-rate submission overtaken by a newer operation",
			applog.FieldOperation, applog.OpSubmit,
			applog.FieldGeneration, gen)
		return c.snapshotLocked(), ErrSuperseded
	}

	if err != nil {
		// A fetch this set superseded is gone, so only a rate for today is Fresh.
		if c.lastUpdated == today && c.rate.IsPositive() {
			c.setStateLocked(Fresh)
		} else {
			c.setStateLocked(Unknown)
		}
		c.logger.WarnContext(ctx, "Exchange rate submission failed",
			applog.FieldOperation, applog.OpSubmit,
			applog.FieldRate, rate.String(),
			applog.FieldDay, today,
			applog.FieldError, err)
		return c.snapshotLocked(), err
	}

	c.rate = rate
	c.lastUpdated = today
	c.setStateLocked(Fresh)
	c.logger.InfoContext(ctx, "Exchange rate set",
		applog.FieldOperation, applog.OpSubmit,
		applog.FieldRate, rate.String(),
		applog.FieldDay, today)
	if err := c.persistLocked(ctx); err != nil {
		return c.snapshotLocked(), fmt.Errorf("rate saved on the server but not locally: %w", err)
	}
	return c.snapshotLocked(), nil
}

// Reset forgets the rate in memory and in storage. Any in-flight fetch or
// submission is superseded.
func (c *Cache) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.logger.DebugContext(ctx, "Resetting exchange rate",
		applog.FieldOperation, applog.OpReset,
		applog.FieldGeneration, c.gen)
	return c.clearLocked(ctx)
}

func (c *Cache) clearLocked(ctx context.Context) error {
	c.rate = decimal.Zero
	c.lastUpdated = ""
	c.setStateLocked(Unknown)
	if err := c.store.Delete(ctx, storage.KeyExchangeRate, storage.KeyLastUpdated); err != nil {
		c.logger.ErrorContext(ctx, "Failed to clear persisted exchange rate",
			applog.FieldErrorType, applog.ErrorTypeStorage,
			applog.FieldError, err)
		return fmt.Errorf("clear exchange rate: %w", err)
	}
	return nil
}

func (c *Cache) persistLocked(ctx context.Context) error {
	err := storage.SetMany(ctx, c.store,
		[2]string{storage.KeyExchangeRate, c.rate.String()},
		[2]string{storage.KeyLastUpdated, c.lastUpdated},
	)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to persist exchange rate",
			applog.FieldOperation, applog.OpPersist,
			applog.FieldErrorType, applog.ErrorTypeStorage,
			applog.FieldRate, c.rate.String(),
			applog.FieldDay, c.lastUpdated,
			applog.FieldError, err)
		return err
	}
	return nil
}

func (c *Cache) setStateLocked(s State) {
	c.state = s
	c.metrics.SetRateState(string(s), allStates)
}

func (c *Cache) snapshotLocked() Snapshot {
	return Snapshot{State: c.state, Rate: c.rate, LastUpdated: c.lastUpdated}
}

func (c *Cache) observe(result string) {
	if c.metrics != nil {
		c.metrics.RateFetches.WithLabelValues(result).Inc()
	}
}

func (c *Cache) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}
