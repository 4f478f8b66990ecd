// Package services orchestrates record operations across the backend API,
// the session and the event bus.
package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"gastos/internal/amqp"
	"gastos/internal/cache"
	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/metrics"
	"gastos/internal/session"
)

// RecordAPI is the slice of the backend client the service needs.
type RecordAPI interface {
	CreateExpense(ctx context.Context, token string, e core.Expense) (string, error)
	CreateExpenseByInvoice(ctx context.Context, token string, p core.InvoicePayment) (string, error)
	ListExpenses(ctx context.Context, token string) ([]core.Expense, error)
	ExpensesResume(ctx context.Context, token string, start, end core.Date) (core.ExpenseResume, error)
	CreateInvoice(ctx context.Context, token string, i core.Invoice) (string, error)
	ListInvoices(ctx context.Context, token string) ([]core.Invoice, error)
	CreateIncome(ctx context.Context, token string, in core.Income) (string, error)
}

// SessionSource yields the current session.
type SessionSource interface {
	Current() core.Session
}

// EventPublisher announces records that were accepted by the backend.
type EventPublisher interface {
	Publish(ctx context.Context, event *amqp.RecordEvent) error
}

// RecordService creates and reads expenses, invoices and incomes for the
// logged-in user.
type RecordService struct {
	api       RecordAPI
	sessions  SessionSource
	publisher EventPublisher
	resumes   cache.Cache[core.ExpenseResume]
	clock     core.Clock
	logger    *applog.Logger
	metrics   *metrics.Collectors
}

type Option func(*RecordService)

// WithPublisher enables record events. Without it events are skipped.
func WithPublisher(p EventPublisher) Option {
	return func(s *RecordService) { s.publisher = p }
}

// WithResumeCache sets the cache used for expense resumes.
func WithResumeCache(c cache.Cache[core.ExpenseResume]) Option {
	return func(s *RecordService) {
		if c != nil {
			s.resumes = c
		}
	}
}

func WithLogger(l *applog.Logger) Option {
	return func(s *RecordService) {
		if l != nil {
			s.logger = l.WithComponent(applog.ComponentRecords)
		}
	}
}

func WithMetrics(m *metrics.Collectors) Option {
	return func(s *RecordService) { s.metrics = m }
}

func WithClock(c core.Clock) Option {
	return func(s *RecordService) {
		if c != nil {
			s.clock = c
		}
	}
}

func NewRecordService(api RecordAPI, sessions SessionSource, opts ...Option) *RecordService {
	s := &RecordService{
		api:      api,
		sessions: sessions,
		resumes:  cache.NewLRUCache[core.ExpenseResume](1, 0),
		clock:    core.SystemClock{},
		logger:   applog.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateExpense validates and records an expense, returning the backend id.
func (s *RecordService) CreateExpense(ctx context.Context, e core.Expense) (string, error) {
	sess, err := s.session()
	if err != nil {
		return "", err
	}
	if err := e.Validate(); err != nil {
		return "", err
	}
	id, err := s.api.CreateExpense(ctx, sess.Token, e)
	if err != nil {
		return "", s.fail(ctx, applog.OpCreate, "expense", err)
	}
	s.created(ctx, sess, amqp.EventExpenseCreated, id)
	return id, nil
}

// PayInvoice settles a pending invoice, producing an expense record.
func (s *RecordService) PayInvoice(ctx context.Context, p core.InvoicePayment) (string, error) {
	sess, err := s.session()
	if err != nil {
		return "", err
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	id, err := s.api.CreateExpenseByInvoice(ctx, sess.Token, p)
	if err != nil {
		return "", s.fail(ctx, applog.OpCreate, "invoice payment", err)
	}
	s.created(ctx, sess, amqp.EventInvoicePaid, id)
	return id, nil
}

func (s *RecordService) CreateInvoice(ctx context.Context, inv core.Invoice) (string, error) {
	sess, err := s.session()
	if err != nil {
		return "", err
	}
	if err := inv.Validate(); err != nil {
		return "", err
	}
	id, err := s.api.CreateInvoice(ctx, sess.Token, inv)
	if err != nil {
		return "", s.fail(ctx, applog.OpCreate, "invoice", err)
	}
	s.created(ctx, sess, amqp.EventInvoiceCreated, id)
	return id, nil
}

func (s *RecordService) CreateIncome(ctx context.Context, in core.Income) (string, error) {
	sess, err := s.session()
	if err != nil {
		return "", err
	}
	if err := in.Validate(); err != nil {
		return "", err
	}
	id, err := s.api.CreateIncome(ctx, sess.Token, in)
	if err != nil {
		return "", s.fail(ctx, applog.OpCreate, "income", err)
	}
	s.created(ctx, sess, amqp.EventIncomeCreated, id)
	return id, nil
}

func (s *RecordService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	sess, err := s.session()
	if err != nil {
		return nil, err
	}
	out, err := s.api.ListExpenses(ctx, sess.Token)
	if err != nil {
		return nil, s.fail(ctx, applog.OpList, "expenses", err)
	}
	return out, nil
}

// ListInvoices returns every invoice; core.Pending narrows it to unpaid ones.
func (s *RecordService) ListInvoices(ctx context.Context) ([]core.Invoice, error) {
	sess, err := s.session()
	if err != nil {
		return nil, err
	}
	out, err := s.api.ListInvoices(ctx, sess.Token)
	if err != nil {
		return nil, s.fail(ctx, applog.OpList, "invoices", err)
	}
	return out, nil
}

// ExpensesResume summarizes expenses between start and end inclusive. Results
// are cached per user and range until the TTL passes or a record is created.
func (s *RecordService) ExpensesResume(ctx context.Context, start, end core.Date) (core.ExpenseResume, error) {
	sess, err := s.session()
	if err != nil {
		return core.ExpenseResume{}, err
	}
	if err := start.Validate(); err != nil {
		return core.ExpenseResume{}, err
	}
	if err := end.Validate(); err != nil {
		return core.ExpenseResume{}, err
	}
	if start.After(end.Time) {
		return core.ExpenseResume{}, core.ErrInvalidDateRange
	}

	key := sess.Username + "|" + start.String() + "|" + end.String()
	if r, ok := s.resumes.Get(key); ok {
		s.lookup("hit")
		return r, nil
	}
	s.lookup("miss")

	r, err := s.api.ExpensesResume(ctx, sess.Token, start, end)
	if err != nil {
		return core.ExpenseResume{}, s.fail(ctx, applog.OpResume, "expenses resume", err)
	}
	s.resumes.Set(key, r)
	return r, nil
}

// Overview loads recent expenses and pending invoices concurrently.
func (s *RecordService) Overview(ctx context.Context) (core.Overview, error) {
	if _, err := s.session(); err != nil {
		return core.Overview{}, err
	}

	var (
		expenses []core.Expense
		invoices []core.Invoice
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = s.ListExpenses(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		invoices, err = s.ListInvoices(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Overview{}, err
	}
	return core.Overview{Expenses: expenses, PendingInvoices: core.Pending(invoices)}, nil
}

// Announce publishes an event for id. Failures are logged, never returned.
func (s *RecordService) Announce(ctx context.Context, typ amqp.EventType, id string) {
	username := ""
	if s.sessions != nil {
		username = s.sessions.Current().Username
	}
	s.publish(ctx, amqp.NewRecordEvent(typ, id, username, core.Today(s.clock)))
}

func (s *RecordService) created(ctx context.Context, sess core.Session, typ amqp.EventType, id string) {
	s.resumes.Clear()
	s.logger.InfoContext(ctx, "Record created",
		applog.FieldOperation, applog.OpCreate,
		applog.FieldRecordType, typ,
		applog.FieldRecordID, id)
	s.publish(ctx, amqp.NewRecordEvent(typ, id, sess.Username, core.Today(s.clock)))
}

func (s *RecordService) publish(ctx context.Context, event *amqp.RecordEvent) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "Event publisher not configured, skipping record event",
			applog.FieldEventType, event.Type)
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.published(event.Type, "error")
		s.logger.ErrorContext(ctx, "Failed to publish record event",
			applog.FieldOperation, applog.OpPublish,
			applog.FieldEventType, event.Type,
			applog.FieldRecordID, event.ID,
			applog.FieldError, err)
		return
	}
	s.published(event.Type, "ok")
}

func (s *RecordService) session() (core.Session, error) {
	if s.sessions == nil {
		return core.Session{}, session.ErrNotAuthenticated
	}
	sess := s.sessions.Current()
	if sess.IsEmpty() {
		return core.Session{}, session.ErrNotAuthenticated
	}
	return sess, nil
}

// fail logs err and returns it unchanged so server messages stay verbatim.
func (s *RecordService) fail(ctx context.Context, op, what string, err error) error {
	s.logger.WarnContext(ctx, "Record operation failed",
		applog.FieldOperation, op,
		applog.FieldRecordType, what,
		applog.FieldError, err)
	return err
}

func (s *RecordService) published(typ amqp.EventType, outcome string) {
	if s.metrics != nil {
		s.metrics.EventsPublished.WithLabelValues(string(typ), outcome).Inc()
	}
}

func (s *RecordService) lookup(result string) {
	if s.metrics != nil {
		s.metrics.ResumeCache.WithLabelValues(result).Inc()
	}
}
