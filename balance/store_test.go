package balance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/billbatista/obra-balance/eventlogger"
	"github.com/billbatista/obra-balance/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory Store with fault injection per stream and on
// writes.
type memStore struct {
	mu                 sync.Mutex
	projects           map[uuid.UUID]*ledger.Project
	receipts           map[uuid.UUID][]ledger.Receipt
	advances           map[uuid.UUID][]ledger.AdvancePayment
	contractorPayments map[uuid.UUID][]ledger.ContractorPayment
	expenses           map[uuid.UUID][]ledger.Expense

	failStreams map[ledger.Stream]error
	failWrites  error
}

func newMemStore() *memStore {
	return &memStore{
		projects:           make(map[uuid.UUID]*ledger.Project),
		receipts:           make(map[uuid.UUID][]ledger.Receipt),
		advances:           make(map[uuid.UUID][]ledger.AdvancePayment),
		contractorPayments: make(map[uuid.UUID][]ledger.ContractorPayment),
		expenses:           make(map[uuid.UUID][]ledger.Expense),
		failStreams:        make(map[ledger.Stream]error),
	}
}

func (m *memStore) addProject(t *testing.T, balance int64) uuid.UUID {
	t.Helper()

	p, err := ledger.NewProject("project")
	if err != nil {
		t.Fatalf("NewProject: %v", err)
	}
	p.CurrentBalance = decimal.NewFromInt(balance)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = &p
	return p.ID
}

func (m *memStore) balanceOf(projectID uuid.UUID) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projects[projectID].CurrentBalance
}

func (m *memStore) setFailure(stream ledger.Stream, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failStreams, stream)
		return
	}
	m.failStreams[stream] = err
}

func (m *memStore) GetProject(_ context.Context, projectID uuid.UUID) (*ledger.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListProjects(context.Context) ([]ledger.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Project
	for _, p := range m.projects {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memStore) ListReceipts(_ context.Context, projectID uuid.UUID) ([]ledger.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failStreams[ledger.StreamReceipts]; err != nil {
		return nil, err
	}
	return append([]ledger.Receipt(nil), m.receipts[projectID]...), nil
}

func (m *memStore) ListAdvancePayments(_ context.Context, projectID uuid.UUID) ([]ledger.AdvancePayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failStreams[ledger.StreamAdvancePayments]; err != nil {
		return nil, err
	}
	return append([]ledger.AdvancePayment(nil), m.advances[projectID]...), nil
}

func (m *memStore) ListContractorPayments(_ context.Context, projectID uuid.UUID) ([]ledger.ContractorPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failStreams[ledger.StreamContractorPayments]; err != nil {
		return nil, err
	}
	return append([]ledger.ContractorPayment(nil), m.contractorPayments[projectID]...), nil
}

func (m *memStore) ListExpenses(_ context.Context, projectID uuid.UUID) ([]ledger.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failStreams[ledger.StreamExpenses]; err != nil {
		return nil, err
	}
	return append([]ledger.Expense(nil), m.expenses[projectID]...), nil
}

func (m *memStore) SetCurrentBalance(_ context.Context, projectID uuid.UUID, balance decimal.Decimal, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites != nil {
		return m.failWrites
	}
	p, ok := m.projects[projectID]
	if !ok {
		return ledger.ErrNotFound
	}
	p.CurrentBalance = balance
	p.UpdatedAt = at
	return nil
}

func (m *memStore) SaveBalanceSnapshot(_ context.Context, projectID uuid.UUID, balance decimal.Decimal, details ledger.BalanceComponents, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites != nil {
		return m.failWrites
	}
	p, ok := m.projects[projectID]
	if !ok {
		return ledger.ErrNotFound
	}
	p.CurrentBalance = balance
	p.BalanceDetails = details
	p.LastBalanceCalculation = &at
	p.UpdatedAt = at
	return nil
}

func (m *memStore) addReceipt(projectID uuid.UUID, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[projectID] = append(m.receipts[projectID], ledger.Receipt{ID: uuid.New(), ProjectID: projectID, Amount: decimal.NewFromInt(amount)})
}

func (m *memStore) addAdvance(projectID uuid.UUID, amount, refunded int64) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.advances[projectID] = append(m.advances[projectID], ledger.AdvancePayment{
		ID:             id,
		ProjectID:      projectID,
		Amount:         decimal.NewFromInt(amount),
		RefundedAmount: decimal.NewFromInt(refunded),
	})
	return id
}

func (m *memStore) addContractorPayment(projectID uuid.UUID, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contractorPayments[projectID] = append(m.contractorPayments[projectID], ledger.ContractorPayment{
		ID:           uuid.New(),
		ProjectID:    projectID,
		ContractorID: uuid.New(),
		Amount:       decimal.NewFromInt(amount),
	})
}

func (m *memStore) addExpense(projectID uuid.UUID, amount int64, status ledger.PaymentStatus, category string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses[projectID] = append(m.expenses[projectID], ledger.Expense{
		ID:            uuid.New(),
		ProjectID:     projectID,
		Amount:        decimal.NewFromInt(amount),
		PaymentStatus: status,
		Category:      category,
	})
}

type recorder struct {
	mu     sync.Mutex
	events []eventlogger.Event
}

func (r *recorder) Log(e eventlogger.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(eventType string) []eventlogger.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []eventlogger.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}
