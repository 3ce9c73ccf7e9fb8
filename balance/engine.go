// Package balance computes, persists and maintains the authoritative cash
// balance of a project from its four transaction streams.
//
// The cached balance on the project record is kept current by incremental
// adjustments after every mutation and is corrected by reconciliation, which
// recomputes it from scratch. Adjustments and snapshot writes for the same
// project are serialized inside the process; writers in other processes can
// still race and are healed by the next reconciliation.
package balance

import (
	"context"
	"sync"
	"time"

	"github.com/billbatista/obra-balance/eventlogger"
	"github.com/billbatista/obra-balance/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the subset of a transaction store the engine reads and writes.
// Lookups of missing records return nil with a nil error.
type Store interface {
	GetProject(ctx context.Context, projectID uuid.UUID) (*ledger.Project, error)
	ListProjects(ctx context.Context) ([]ledger.Project, error)
	ListReceipts(ctx context.Context, projectID uuid.UUID) ([]ledger.Receipt, error)
	ListAdvancePayments(ctx context.Context, projectID uuid.UUID) ([]ledger.AdvancePayment, error)
	ListContractorPayments(ctx context.Context, projectID uuid.UUID) ([]ledger.ContractorPayment, error)
	ListExpenses(ctx context.Context, projectID uuid.UUID) ([]ledger.Expense, error)
	SetCurrentBalance(ctx context.Context, projectID uuid.UUID, balance decimal.Decimal, at time.Time) error
	SaveBalanceSnapshot(ctx context.Context, projectID uuid.UUID, balance decimal.Decimal, details ledger.BalanceComponents, at time.Time) error
}

// Recorder receives the engine's audit events. eventlogger.Worker satisfies it.
type Recorder interface {
	Log(event eventlogger.Event)
}

type nopRecorder struct{}

func (nopRecorder) Log(eventlogger.Event) {}

// DefaultDriftTolerance is the smallest dinar unit.
var DefaultDriftTolerance = decimal.NewFromInt(1)

type Engine struct {
	store     Store
	recorder  Recorder
	metrics   *Metrics
	tolerance decimal.Decimal
	now       func() time.Time
	locks     keyedMutex

	mu   sync.RWMutex
	last map[uuid.UUID]Reconciliation
}

type Option func(*Engine)

func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithDriftTolerance sets the absolute drift above which a reconciliation
// counts as a correction.
func WithDriftTolerance(tolerance decimal.Decimal) Option {
	return func(e *Engine) {
		e.tolerance = tolerance.Abs()
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		recorder:  nopRecorder{},
		tolerance: DefaultDriftTolerance,
		now:       func() time.Time { return time.Now().UTC() },
		last:      make(map[uuid.UUID]Reconciliation),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	return e
}

func (e *Engine) emit(projectID uuid.UUID, eventType string, data any) {
	e.recorder.Log(eventlogger.NewEvent(
		eventlogger.WithType(eventType),
		eventlogger.WithProject(projectID),
		eventlogger.WithData(data),
		eventlogger.WithTime(e.now()),
	))
}

// keyedMutex hands out one mutex per project and forgets it once no caller
// holds or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(id uuid.UUID) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[uuid.UUID]*keyLock)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &keyLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
