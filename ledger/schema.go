package ledger

// Schema creates the tables backing the Postgres store. Receipts and advance
// payments share the advances table and are told apart by transaction_type.
const Schema = `
CREATE TABLE IF NOT EXISTS projects (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    current_balance NUMERIC NOT NULL DEFAULT 0,
    last_balance_calculation TIMESTAMPTZ,
    balance_details JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS advances (
    id UUID PRIMARY KEY,
    project_id UUID NOT NULL REFERENCES projects(id),
    transaction_type TEXT NOT NULL,
    amount NUMERIC NOT NULL CHECK (amount >= 0),
    refunded_amount NUMERIC NOT NULL DEFAULT 0,
    refund_status TEXT NOT NULL DEFAULT 'unrefunded',
    refunds JSONB NOT NULL DEFAULT '[]',
    recipient TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    date TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_advances_project_type
    ON advances(project_id, transaction_type);

CREATE TABLE IF NOT EXISTS contractors (
    id UUID NOT NULL,
    project_id UUID NOT NULL REFERENCES projects(id),
    name TEXT NOT NULL DEFAULT '',
    paid_amount NUMERIC NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (project_id, id)
);

CREATE TABLE IF NOT EXISTS contractor_payments (
    id UUID PRIMARY KEY,
    project_id UUID NOT NULL REFERENCES projects(id),
    contractor_id UUID NOT NULL,
    amount NUMERIC NOT NULL CHECK (amount >= 0),
    method TEXT NOT NULL DEFAULT '',
    payment_type TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    payment_date TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contractor_payments_project
    ON contractor_payments(project_id);

CREATE TABLE IF NOT EXISTS expenses (
    id UUID PRIMARY KEY,
    project_id UUID NOT NULL REFERENCES projects(id),
    amount NUMERIC NOT NULL CHECK (amount >= 0),
    payment_status TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    recipient TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    date TIMESTAMPTZ NOT NULL,
    paid_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_expenses_project
    ON expenses(project_id);

CREATE TABLE IF NOT EXISTS events (
    id UUID PRIMARY KEY,
    event_type TEXT NOT NULL,
    event_data JSONB,
    event_metadata JSONB,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_type
    ON events(event_type);
`
