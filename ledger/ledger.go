package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionReceive TransactionType = "receive"
	TransactionPayment TransactionType = "payment"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

type RefundStatus string

const (
	RefundStatusNone    RefundStatus = "unrefunded"
	RefundStatusPartial RefundStatus = "partial"
	RefundStatusFull    RefundStatus = "full"
)

// Expenses filed under this category are contractor disbursements that are
// already counted in the contractor payments stream.
const CategoryContractorPayments = "contractor_payments"

type Project struct {
	ID                     uuid.UUID         `json:"id"`
	Name                   string            `json:"name"`
	CurrentBalance         decimal.Decimal   `json:"currentBalance"`
	LastBalanceCalculation *time.Time        `json:"lastBalanceCalculation,omitempty"`
	BalanceDetails         BalanceComponents `json:"balanceDetails"`
	CreatedAt              time.Time         `json:"createdAt"`
	UpdatedAt              time.Time         `json:"updatedAt"`
}

// BalanceComponents is the per-stream breakdown persisted on the project
// record next to the balance.
type BalanceComponents struct {
	TotalReceived           decimal.Decimal `json:"totalReceived"`
	TotalPaid               decimal.Decimal `json:"totalPaid"`
	TotalRefunded           decimal.Decimal `json:"totalRefunded"`
	TotalContractorPayments decimal.Decimal `json:"totalContractorPayments"`
	TotalExpenses           decimal.Decimal `json:"totalExpenses"`
}

type Receipt struct {
	ID          uuid.UUID       `json:"id"`
	ProjectID   uuid.UUID       `json:"projectId"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type Refund struct {
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
}

type AdvancePayment struct {
	ID             uuid.UUID       `json:"id"`
	ProjectID      uuid.UUID       `json:"projectId"`
	Amount         decimal.Decimal `json:"amount"`
	RefundedAmount decimal.Decimal `json:"refundedAmount"`
	RefundStatus   RefundStatus    `json:"refundStatus"`
	Refunds        []Refund        `json:"refunds,omitempty"`
	Recipient      string          `json:"recipient,omitempty"`
	Description    string          `json:"description,omitempty"`
	Date           time.Time       `json:"date"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type Contractor struct {
	ID         uuid.UUID       `json:"id"`
	ProjectID  uuid.UUID       `json:"projectId"`
	Name       string          `json:"name"`
	PaidAmount decimal.Decimal `json:"paidAmount"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type ContractorPayment struct {
	ID           uuid.UUID       `json:"id"`
	ProjectID    uuid.UUID       `json:"projectId"`
	ContractorID uuid.UUID       `json:"contractorId"`
	Amount       decimal.Decimal `json:"amount"`
	Method       string          `json:"method,omitempty"`
	Type         string          `json:"type,omitempty"`
	Description  string          `json:"description,omitempty"`
	PaymentDate  time.Time       `json:"paymentDate"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type Expense struct {
	ID            uuid.UUID       `json:"id"`
	ProjectID     uuid.UUID       `json:"projectId"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	Category      string          `json:"category,omitempty"`
	Recipient     string          `json:"recipient,omitempty"`
	Description   string          `json:"description,omitempty"`
	Date          time.Time       `json:"date"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func NewProject(name string) (Project, error) {
	if name == "" {
		return Project{}, ErrEmptyName
	}

	now := time.Now().UTC()

	return Project{
		ID:             uuid.New(),
		Name:           name,
		CurrentBalance: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func NewContractor(projectID uuid.UUID, name string) (Contractor, error) {
	if name == "" {
		return Contractor{}, ErrEmptyName
	}

	return Contractor{
		ID:         uuid.New(),
		ProjectID:  projectID,
		Name:       name,
		PaidAmount: decimal.Zero,
		UpdatedAt:  time.Now().UTC(),
	}, nil
}

func NewReceipt(projectID uuid.UUID, amount decimal.Decimal, date time.Time, description string) (Receipt, error) {
	if !amount.IsPositive() {
		return Receipt{}, ErrInvalidAmount
	}

	now := time.Now().UTC()

	return Receipt{
		ID:          uuid.New(),
		ProjectID:   projectID,
		Amount:      amount,
		Description: description,
		Date:        dateOrNow(date, now),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func NewAdvancePayment(projectID uuid.UUID, amount decimal.Decimal, date time.Time, recipient, description string) (AdvancePayment, error) {
	if !amount.IsPositive() {
		return AdvancePayment{}, ErrInvalidAmount
	}

	now := time.Now().UTC()

	return AdvancePayment{
		ID:             uuid.New(),
		ProjectID:      projectID,
		Amount:         amount,
		RefundedAmount: decimal.Zero,
		RefundStatus:   RefundStatusNone,
		Recipient:      recipient,
		Description:    description,
		Date:           dateOrNow(date, now),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func NewContractorPayment(projectID, contractorID uuid.UUID, amount decimal.Decimal, paymentDate time.Time) (ContractorPayment, error) {
	if !amount.IsPositive() {
		return ContractorPayment{}, ErrInvalidAmount
	}
	if contractorID == uuid.Nil {
		return ContractorPayment{}, ErrMissingContractor
	}

	now := time.Now().UTC()

	return ContractorPayment{
		ID:           uuid.New(),
		ProjectID:    projectID,
		ContractorID: contractorID,
		Amount:       amount,
		Method:       "cash",
		Type:         "advance",
		PaymentDate:  dateOrNow(paymentDate, now),
		CreatedAt:    now,
	}, nil
}

func NewExpense(projectID uuid.UUID, amount decimal.Decimal, status PaymentStatus, category string, date time.Time) (Expense, error) {
	if !amount.IsPositive() {
		return Expense{}, ErrInvalidAmount
	}

	switch status {
	case "":
		status = PaymentStatusUnpaid
	case PaymentStatusPaid, PaymentStatusUnpaid:
	default:
		return Expense{}, ErrInvalidPaymentStatus
	}

	now := time.Now().UTC()

	expense := Expense{
		ID:            uuid.New(),
		ProjectID:     projectID,
		Amount:        amount,
		PaymentStatus: status,
		Category:      category,
		Date:          dateOrNow(date, now),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if status == PaymentStatusPaid {
		expense.PaidAt = &now
	}

	return expense, nil
}

// Contribution is the signed effect of the receipt on the project balance.
func (r Receipt) Contribution() decimal.Decimal {
	return r.Amount
}

// Outstanding is the principal that has not been refunded yet.
func (a AdvancePayment) Outstanding() decimal.Decimal {
	return a.Amount.Sub(a.RefundedAmount)
}

func (a AdvancePayment) Contribution() decimal.Decimal {
	return a.Outstanding().Neg()
}

// Refund records a partial or full refund of the advance. The refunded total
// can never exceed the advanced amount.
func (a *AdvancePayment) Refund(amount decimal.Decimal, at time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	refunded := a.RefundedAmount.Add(amount)
	if refunded.GreaterThan(a.Amount) {
		return ErrRefundExceedsAmount
	}

	a.RefundedAmount = refunded
	a.Refunds = append(a.Refunds, Refund{Amount: amount, Date: at})
	a.RefundStatus = refundStatusFor(a.Amount, refunded)
	a.UpdatedAt = at

	return nil
}

func (p ContractorPayment) Contribution() decimal.Decimal {
	return p.Amount.Neg()
}

// CountsTowardBalance reports whether the expense is part of the expense
// stream: only paid expenses outside the contractor payments category count.
func (e Expense) CountsTowardBalance() bool {
	return e.PaymentStatus == PaymentStatusPaid && e.Category != CategoryContractorPayments
}

func (e Expense) Contribution() decimal.Decimal {
	if !e.CountsTowardBalance() {
		return decimal.Zero
	}
	return e.Amount.Neg()
}

// MarkPaid moves the expense from unpaid to paid. There is no way back.
func (e *Expense) MarkPaid(at time.Time) error {
	if e.PaymentStatus == PaymentStatusPaid {
		return ErrAlreadyPaid
	}

	e.PaymentStatus = PaymentStatusPaid
	e.PaidAt = &at
	e.UpdatedAt = at

	return nil
}

// AddPaid credits the contractor's denormalized paid counter.
func (c *Contractor) AddPaid(amount decimal.Decimal, at time.Time) {
	c.PaidAmount = c.PaidAmount.Add(amount)
	c.UpdatedAt = at
}

// SubtractPaid debits the paid counter, never below zero.
func (c *Contractor) SubtractPaid(amount decimal.Decimal, at time.Time) {
	c.PaidAmount = decimal.Max(decimal.Zero, c.PaidAmount.Sub(amount))
	c.UpdatedAt = at
}

func refundStatusFor(amount, refunded decimal.Decimal) RefundStatus {
	switch {
	case !refunded.IsPositive():
		return RefundStatusNone
	case refunded.GreaterThanOrEqual(amount):
		return RefundStatusFull
	default:
		return RefundStatusPartial
	}
}

func dateOrNow(date, now time.Time) time.Time {
	if date.IsZero() {
		return now
	}
	return date.UTC()
}
