package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

func (r *repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (r *repository) CreateProject(ctx context.Context, project Project) error {
	details, err := json.Marshal(project.BalanceDetails)
	if err != nil {
		return fmt.Errorf("encoding balance details: %w", err)
	}

	query := `INSERT INTO projects (id, name, current_balance, balance_details, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = r.db.ExecContext(
		ctx,
		query,
		project.ID,
		project.Name,
		project.CurrentBalance,
		details,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}

	return nil
}

const selectProject = `SELECT id, name, current_balance, last_balance_calculation, balance_details, created_at, updated_at FROM projects`

func (r *repository) GetProject(ctx context.Context, projectID uuid.UUID) (*Project, error) {
	project, err := scanProject(r.db.QueryRowContext(ctx, selectProject+` WHERE id = $1`, projectID))
	if err != nil && err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying project: %w", err)
	}

	return project, nil
}

func (r *repository) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := r.db.QueryContext(ctx, selectProject+` ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, *project)
	}

	return projects, rows.Err()
}

func (r *repository) SetCurrentBalance(ctx context.Context, projectID uuid.UUID, balance decimal.Decimal, at time.Time) error {
	query := `UPDATE projects SET current_balance = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, projectID, balance, at)
	if err != nil {
		return fmt.Errorf("updating project balance: %w", err)
	}

	return expectRow(res)
}

func (r *repository) SaveBalanceSnapshot(ctx context.Context, projectID uuid.UUID, balance decimal.Decimal, details BalanceComponents, at time.Time) error {
	jsonDetails, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encoding balance details: %w", err)
	}

	query := `UPDATE projects SET current_balance = $2, balance_details = $3, last_balance_calculation = $4, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, projectID, balance, jsonDetails, at)
	if err != nil {
		return fmt.Errorf("updating project snapshot: %w", err)
	}

	return expectRow(res)
}

const selectAdvance = `SELECT id, project_id, amount, refunded_amount, refund_status, refunds, recipient, description, date, created_at, updated_at FROM advances`

func (r *repository) ListReceipts(ctx context.Context, projectID uuid.UUID) ([]Receipt, error) {
	rows, err := r.db.QueryContext(ctx, selectAdvance+` WHERE project_id = $1 AND transaction_type = $2`, projectID, TransactionReceive)
	if err != nil {
		return nil, fmt.Errorf("querying receipts: %w", err)
	}
	defer rows.Close()

	var receipts []Receipt
	for rows.Next() {
		advance, err := scanAdvance(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning receipt: %w", err)
		}
		receipts = append(receipts, advance.asReceipt())
	}

	return receipts, rows.Err()
}

func (r *repository) GetReceipt(ctx context.Context, projectID, receiptID uuid.UUID) (*Receipt, error) {
	row := r.db.QueryRowContext(ctx, selectAdvance+` WHERE project_id = $1 AND id = $2 AND transaction_type = $3`, projectID, receiptID, TransactionReceive)
	advance, err := scanAdvance(row)
	if err != nil && err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying receipt: %w", err)
	}

	receipt := advance.asReceipt()
	return &receipt, nil
}

func (r *repository) SaveReceipt(ctx context.Context, receipt Receipt) error {
	advance := AdvancePayment{
		ID:          receipt.ID,
		ProjectID:   receipt.ProjectID,
		Amount:      receipt.Amount,
		Description: receipt.Description,
		Date:        receipt.Date,
		CreatedAt:   receipt.CreatedAt,
		UpdatedAt:   receipt.UpdatedAt,
	}
	if err := r.upsertAdvance(ctx, TransactionReceive, advance); err != nil {
		return fmt.Errorf("saving receipt: %w", err)
	}
	return nil
}

func (r *repository) DeleteReceipt(ctx context.Context, projectID, receiptID uuid.UUID) error {
	query := `DELETE FROM advances WHERE project_id = $1 AND id = $2 AND transaction_type = $3`
	if _, err := r.db.ExecContext(ctx, query, projectID, receiptID, TransactionReceive); err != nil {
		return fmt.Errorf("deleting receipt: %w", err)
	}
	return nil
}

func (r *repository) ListAdvancePayments(ctx context.Context, projectID uuid.UUID) ([]AdvancePayment, error) {
	rows, err := r.db.QueryContext(ctx, selectAdvance+` WHERE project_id = $1 AND transaction_type = $2`, projectID, TransactionPayment)
	if err != nil {
		return nil, fmt.Errorf("querying advance payments: %w", err)
	}
	defer rows.Close()

	var advances []AdvancePayment
	for rows.Next() {
		advance, err := scanAdvance(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning advance payment: %w", err)
		}
		advances = append(advances, *advance)
	}

	return advances, rows.Err()
}

func (r *repository) GetAdvancePayment(ctx context.Context, projectID, advanceID uuid.UUID) (*AdvancePayment, error) {
	row := r.db.QueryRowContext(ctx, selectAdvance+` WHERE project_id = $1 AND id = $2 AND transaction_type = $3`, projectID, advanceID, TransactionPayment)
	advance, err := scanAdvance(row)
	if err != nil && err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying advance payment: %w", err)
	}

	return advance, nil
}

func (r *repository) SaveAdvancePayment(ctx context.Context, advance AdvancePayment) error {
	if err := r.upsertAdvance(ctx, TransactionPayment, advance); err != nil {
		return fmt.Errorf("saving advance payment: %w", err)
	}
	return nil
}

func (r *repository) DeleteAdvancePayment(ctx context.Context, projectID, advanceID uuid.UUID) error {
	query := `DELETE FROM advances WHERE project_id = $1 AND id = $2 AND transaction_type = $3`
	if _, err := r.db.ExecContext(ctx, query, projectID, advanceID, TransactionPayment); err != nil {
		return fmt.Errorf("deleting advance payment: %w", err)
	}
	return nil
}

func (r *repository) upsertAdvance(ctx context.Context, kind TransactionType, advance AdvancePayment) error {
	refunds := advance.Refunds
	if refunds == nil {
		refunds = []Refund{}
	}
	jsonRefunds, err := json.Marshal(refunds)
	if err != nil {
		return err
	}
	status := advance.RefundStatus
	if status == "" {
		status = RefundStatusNone
	}

	query := `INSERT INTO advances (id, project_id, transaction_type, amount, refunded_amount, refund_status, refunds, recipient, description, date, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
              ON CONFLICT (id) DO UPDATE SET
                amount = EXCLUDED.amount,
                refunded_amount = EXCLUDED.refunded_amount,
                refund_status = EXCLUDED.refund_status,
                refunds = EXCLUDED.refunds,
                recipient = EXCLUDED.recipient,
                description = EXCLUDED.description,
                date = EXCLUDED.date,
                updated_at = EXCLUDED.updated_at`
	_, err = r.db.ExecContext(
		ctx,
		query,
		advance.ID,
		advance.ProjectID,
		kind,
		advance.Amount,
		advance.RefundedAmount,
		status,
		jsonRefunds,
		advance.Recipient,
		advance.Description,
		advance.Date,
		advance.CreatedAt,
		advance.UpdatedAt,
	)
	return err
}

const selectContractorPayment = `SELECT id, project_id, contractor_id, amount, method, payment_type, description, payment_date, created_at FROM contractor_payments`

func (r *repository) ListContractorPayments(ctx context.Context, projectID uuid.UUID) ([]ContractorPayment, error) {
	rows, err := r.db.QueryContext(ctx, selectContractorPayment+` WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying contractor payments: %w", err)
	}
	defer rows.Close()

	var payments []ContractorPayment
	for rows.Next() {
		payment, err := scanContractorPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning contractor payment: %w", err)
		}
		payments = append(payments, *payment)
	}

	return payments, rows.Err()
}

func (r *repository) GetContractorPayment(ctx context.Context, projectID, paymentID uuid.UUID) (*ContractorPayment, error) {
	row := r.db.QueryRowContext(ctx, selectContractorPayment+` WHERE project_id = $1 AND id = $2`, projectID, paymentID)
	payment, err := scanContractorPayment(row)
	if err != nil && err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying contractor payment: %w", err)
	}

	return payment, nil
}

func (r *repository) SaveContractorPayment(ctx context.Context, payment ContractorPayment) error {
	query := `INSERT INTO contractor_payments (id, project_id, contractor_id, amount, method, payment_type, description, payment_date, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
              ON CONFLICT (id) DO UPDATE SET
                amount = EXCLUDED.amount,
                method = EXCLUDED.method,
                payment_type = EXCLUDED.payment_type,
                description = EXCLUDED.description,
                payment_date = EXCLUDED.payment_date`
	_, err := r.db.ExecContext(
		ctx,
		query,
		payment.ID,
		payment.ProjectID,
		payment.ContractorID,
		payment.Amount,
		payment.Method,
		payment.Type,
		payment.Description,
		payment.PaymentDate,
		payment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving contractor payment: %w", err)
	}

	return nil
}

func (r *repository) DeleteContractorPayment(ctx context.Context, projectID, paymentID uuid.UUID) error {
	query := `DELETE FROM contractor_payments WHERE project_id = $1 AND id = $2`
	if _, err := r.db.ExecContext(ctx, query, projectID, paymentID); err != nil {
		return fmt.Errorf("deleting contractor payment: %w", err)
	}
	return nil
}

func (r *repository) GetContractor(ctx context.Context, projectID, contractorID uuid.UUID) (*Contractor, error) {
	query := `SELECT id, project_id, name, paid_amount, updated_at FROM contractors WHERE project_id = $1 AND id = $2`

	var contractor Contractor
	err := r.db.QueryRowContext(ctx, query, projectID, contractorID).Scan(
		&contractor.ID,
		&contractor.ProjectID,
		&contractor.Name,
		&contractor.PaidAmount,
		&contractor.UpdatedAt,
	)
	if err != nil && err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying contractor: %w", err)
	}

	return &contractor, nil
}

func (r *repository) SaveContractor(ctx context.Context, contractor Contractor) error {
	query := `INSERT INTO contractors (id, project_id, name, paid_amount, updated_at)
              VALUES ($1, $2, $3, $4, $5)
              ON CONFLICT (project_id, id) DO UPDATE SET
                name = EXCLUDED.name,
                paid_amount = EXCLUDED.paid_amount,
                updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, query, contractor.ID, contractor.ProjectID, contractor.Name, contractor.PaidAmount, contractor.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving contractor: %w", err)
	}
	return nil
}

const selectExpense = `SELECT id, project_id, amount, payment_status, category, recipient, description, date, paid_at, created_at, updated_at FROM expenses`

func (r *repository) ListExpenses(ctx context.Context, projectID uuid.UUID) ([]Expense, error) {
	rows, err := r.db.QueryContext(ctx, selectExpense+` WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying expenses: %w", err)
	}
	defer rows.Close()

	var expenses []Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning expense: %w", err)
		}
		expenses = append(expenses, *expense)
	}

	return expenses, rows.Err()
}

func (r *repository) GetExpense(ctx context.Context, projectID, expenseID uuid.UUID) (*Expense, error) {
	expense, err := scanExpense(r.db.QueryRowContext(ctx, selectExpense+` WHERE project_id = $1 AND id = $2`, projectID, expenseID))
	if err != nil && err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying expense: %w", err)
	}

	return expense, nil
}

func (r *repository) SaveExpense(ctx context.Context, expense Expense) error {
	var paidAt sql.NullTime
	if expense.PaidAt != nil {
		paidAt = sql.NullTime{Time: *expense.PaidAt, Valid: true}
	}

	query := `INSERT INTO expenses (id, project_id, amount, payment_status, category, recipient, description, date, paid_at, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
              ON CONFLICT (id) DO UPDATE SET
                amount = EXCLUDED.amount,
                payment_status = EXCLUDED.payment_status,
                category = EXCLUDED.category,
                recipient = EXCLUDED.recipient,
                description = EXCLUDED.description,
                date = EXCLUDED.date,
                paid_at = EXCLUDED.paid_at,
                updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(
		ctx,
		query,
		expense.ID,
		expense.ProjectID,
		expense.Amount,
		expense.PaymentStatus,
		expense.Category,
		expense.Recipient,
		expense.Description,
		expense.Date,
		paidAt,
		expense.CreatedAt,
		expense.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving expense: %w", err)
	}

	return nil
}

func (r *repository) DeleteExpense(ctx context.Context, projectID, expenseID uuid.UUID) error {
	query := `DELETE FROM expenses WHERE project_id = $1 AND id = $2`
	if _, err := r.db.ExecContext(ctx, query, projectID, expenseID); err != nil {
		return fmt.Errorf("deleting expense: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*Project, error) {
	var project Project
	var lastCalculation sql.NullTime
	var details []byte
	err := row.Scan(
		&project.ID,
		&project.Name,
		&project.CurrentBalance,
		&lastCalculation,
		&details,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastCalculation.Valid {
		project.LastBalanceCalculation = &lastCalculation.Time
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &project.BalanceDetails); err != nil {
			return nil, fmt.Errorf("decoding balance details: %w", err)
		}
	}

	return &project, nil
}

func scanAdvance(row scanner) (*AdvancePayment, error) {
	var advance AdvancePayment
	var refunds []byte
	err := row.Scan(
		&advance.ID,
		&advance.ProjectID,
		&advance.Amount,
		&advance.RefundedAmount,
		&advance.RefundStatus,
		&refunds,
		&advance.Recipient,
		&advance.Description,
		&advance.Date,
		&advance.CreatedAt,
		&advance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(refunds) > 0 {
		if err := json.Unmarshal(refunds, &advance.Refunds); err != nil {
			return nil, fmt.Errorf("decoding refunds: %w", err)
		}
	}

	return &advance, nil
}

func scanContractorPayment(row scanner) (*ContractorPayment, error) {
	var payment ContractorPayment
	err := row.Scan(
		&payment.ID,
		&payment.ProjectID,
		&payment.ContractorID,
		&payment.Amount,
		&payment.Method,
		&payment.Type,
		&payment.Description,
		&payment.PaymentDate,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func scanExpense(row scanner) (*Expense, error) {
	var expense Expense
	var paidAt sql.NullTime
	err := row.Scan(
		&expense.ID,
		&expense.ProjectID,
		&expense.Amount,
		&expense.PaymentStatus,
		&expense.Category,
		&expense.Recipient,
		&expense.Description,
		&expense.Date,
		&paidAt,
		&expense.CreatedAt,
		&expense.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		expense.PaidAt = &paidAt.Time
	}
	return &expense, nil
}

func (a AdvancePayment) asReceipt() Receipt {
	return Receipt{
		ID:          a.ID,
		ProjectID:   a.ProjectID,
		Amount:      a.Amount,
		Description: a.Description,
		Date:        a.Date,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
