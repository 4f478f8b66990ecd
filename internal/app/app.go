// Package app wires configuration, storage, the backend client and the
// stateful components into one value shared by the commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gastos/internal/amqp"
	"gastos/internal/api"
	"gastos/internal/backend"
	"gastos/internal/cache"
	"gastos/internal/config"
	"gastos/internal/core"
	"gastos/internal/exchangerate"
	applog "gastos/internal/log"
	"gastos/internal/metrics"
	"gastos/internal/services"
	"gastos/internal/session"
	"gastos/internal/sheets"
	"gastos/internal/sheets/google"
	"gastos/internal/storage"
)

// ErrExportNotConfigured is returned by Export when no spreadsheet is set.
var ErrExportNotConfigured = errors.New("export is not configured, set GOOGLE_SPREADSHEET_ID")

// Options overrides collaborators, mostly for tests.
type Options struct {
	Logger     *applog.Logger
	Registry   prometheus.Registerer
	Clock      core.Clock
	Factory    backend.Factory
	HTTPClient *http.Client
	Exporter   sheets.ExpenseExporter
}

type App struct {
	Config  *config.Config
	Logger  *applog.Logger
	Metrics *metrics.Collectors

	API     *api.Client
	Store   storage.Store
	Session *session.Store
	Rates   *exchangerate.Cache
	Records *services.RecordService
	Events  *amqp.Client // nil when AMQP_URL is empty
	Caches  *cache.Manager

	resumes  *cache.LRUCache[core.ExpenseResume]
	exporter sheets.ExpenseExporter
	cleanups []func() error
}

// New builds the application. The caller must Close it.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	clock := opts.Clock
	if clock == nil {
		clock = core.SystemClock{}
	}
	factory := opts.Factory
	if factory == nil {
		factory = backend.NewFactory(logger)
	}

	a := &App{
		Config:   cfg,
		Logger:   logger.WithComponent(applog.ComponentApp),
		Metrics:  metrics.New(opts.Registry),
		exporter: opts.Exporter,
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("storage config: %w", err)
	}
	res, err := factory.CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	a.Store = res.Store
	a.cleanups = append(a.cleanups, res.Cleanup)

	a.API, err = api.New(cfg.APIBaseURL, api.Options{
		HTTPClient: opts.HTTPClient,
		Timeout:    cfg.APITimeout,
		Logger:     logger,
		Limiter:    api.NewLimiter(cfg.APIRateLimit),
		Metrics:    a.Metrics,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("api client: %w", err)
	}

	a.Session = session.New(a.API, a.Store, session.WithLogger(logger), session.WithClock(clock))
	a.Rates = exchangerate.New(a.API, a.Session, a.Store,
		exchangerate.WithLogger(logger),
		exchangerate.WithClock(clock),
		exchangerate.WithMetrics(a.Metrics))

	a.resumes = cache.NewLRUCache[core.ExpenseResume](cfg.ResumeCacheSize, cfg.ResumeCacheTTL).
		WithClock(clock.Now)
	a.Caches = cache.NewManager(logger)
	a.Caches.Register(a.resumes)

	recordOpts := []services.Option{
		services.WithLogger(logger),
		services.WithMetrics(a.Metrics),
		services.WithClock(clock),
		services.WithResumeCache(a.resumes),
	}
	if cfg.AMQPURL != "" {
		events, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// Events are optional; records still reach the backend.
			a.Logger.WarnContext(ctx, "AMQP unavailable, record events disabled", applog.FieldError, err)
		} else {
			a.Events = events
			a.cleanups = append(a.cleanups, events.Close)
			recordOpts = append(recordOpts, services.WithPublisher(events))
		}
	}
	a.Records = services.NewRecordService(a.API, a.Session, recordOpts...)
	return a, nil
}

// Restore hydrates the session and the exchange rate from storage, then
// checks today's rate when logged in.
func (a *App) Restore(ctx context.Context) (core.Session, exchangerate.Snapshot, error) {
	sess, err := a.Session.Restore(ctx)
	if err != nil {
		return core.Session{}, a.Rates.Snapshot(), err
	}
	if _, err := a.Rates.Restore(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Could not restore exchange rate", applog.FieldError, err)
	}
	if sess.IsEmpty() {
		return sess, a.Rates.Snapshot(), nil
	}
	return sess, a.Rates.Check(ctx), nil
}

// Login authenticates, then checks today's rate. An UNKNOWN snapshot means
// the user should be asked to set it.
func (a *App) Login(ctx context.Context, username, password string) (core.Session, exchangerate.Snapshot, error) {
	sess, err := a.Session.Login(ctx, username, password)
	if err != nil {
		return core.Session{}, a.Rates.Snapshot(), err
	}
	a.Logger.InfoContext(ctx, "Logged in", applog.FieldOperation, applog.OpLogin, applog.FieldUsername, sess.Username)
	if _, err := a.Rates.Restore(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Could not restore exchange rate", applog.FieldError, err)
	}
	return sess, a.Rates.Check(ctx), nil
}

// Logout clears the session and the cached rate, in memory and on disk.
func (a *App) Logout(ctx context.Context) error {
	errSession := a.Session.Logout(ctx)
	errRate := a.Rates.Reset(ctx)
	a.resumes.Clear()
	if err := errors.Join(errSession, errRate); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	a.Logger.InfoContext(ctx, "Logged out", applog.FieldOperation, applog.OpLogout)
	return nil
}

// SubmitRate sets today's rate from user input and announces it.
func (a *App) SubmitRate(ctx context.Context, text string) (exchangerate.Snapshot, error) {
	if a.Session.Current().IsEmpty() {
		return a.Rates.Snapshot(), session.ErrNotAuthenticated
	}
	snap, err := a.Rates.Submit(ctx, text)
	if err != nil {
		return snap, err
	}
	a.Records.Announce(ctx, amqp.EventExchangeRateSet, "")
	return snap, nil
}

// Export appends every expense to the configured spreadsheet.
func (a *App) Export(ctx context.Context) (int, error) {
	exporter, err := a.Exporter(ctx)
	if err != nil {
		return 0, err
	}
	expenses, err := a.Records.ListExpenses(ctx)
	if err != nil {
		return 0, err
	}
	return exporter.Export(ctx, expenses)
}

// Exporter returns the configured exporter, creating the Google client on
// first use.
func (a *App) Exporter(ctx context.Context) (sheets.ExpenseExporter, error) {
	if a.exporter != nil {
		return a.exporter, nil
	}
	if a.Config.GoogleSpreadsheetID == "" {
		return nil, ErrExportNotConfigured
	}
	client, err := google.NewFromEnv(ctx, google.Options{
		SpreadsheetID: a.Config.GoogleSpreadsheetID,
		SheetName:     a.Config.GoogleSheetName,
		Logger:        a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("google sheets: %w", err)
	}
	a.exporter = client
	return client, nil
}

// StartCacheCleanup sweeps expired cache entries until Close.
func (a *App) StartCacheCleanup(interval time.Duration) {
	a.Caches.StartCleanup(interval)
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() error {
	if a.Caches != nil {
		a.Caches.Stop()
	}
	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanups = nil
	return errors.Join(errs...)
}
