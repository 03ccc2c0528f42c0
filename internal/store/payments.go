package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createPayment = `
INSERT INTO payments (org_id, payment_date, counterparty_kind, counterparty_id, bank_account_id, direction, amount, memo)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, org_id, payment_date, counterparty_kind, counterparty_id, bank_account_id, direction, amount, memo, journal_id, created_at
`

type CreatePaymentParams struct {
	OrgID            int64
	PaymentDate      pgtype.Date
	CounterpartyKind string
	CounterpartyID   int64
	BankAccountID    pgtype.Int8
	Direction        string
	Amount           pgtype.Numeric
	Memo             pgtype.Text
}

// CreatePayment inserts a payment record without a journal link; the link
// is set in the same transaction once the posting exists.
func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	var p Payment
	err := q.db.QueryRow(ctx, createPayment,
		arg.OrgID, arg.PaymentDate, arg.CounterpartyKind, arg.CounterpartyID,
		arg.BankAccountID, arg.Direction, arg.Amount, arg.Memo).
		Scan(&p.ID, &p.OrgID, &p.PaymentDate, &p.CounterpartyKind, &p.CounterpartyID,
			&p.BankAccountID, &p.Direction, &p.Amount, &p.Memo, &p.JournalID, &p.CreatedAt)
	return p, err
}

const getPayment = `
SELECT id, org_id, payment_date, counterparty_kind, counterparty_id, bank_account_id, direction, amount, memo, journal_id, created_at
FROM payments
WHERE id = $1 AND org_id = $2
`

type GetPaymentParams struct {
	ID    int64
	OrgID int64
}

// GetPayment fetches one payment scoped to the org.
func (q *Queries) GetPayment(ctx context.Context, arg GetPaymentParams) (Payment, error) {
	var p Payment
	err := q.db.QueryRow(ctx, getPayment, arg.ID, arg.OrgID).
		Scan(&p.ID, &p.OrgID, &p.PaymentDate, &p.CounterpartyKind, &p.CounterpartyID,
			&p.BankAccountID, &p.Direction, &p.Amount, &p.Memo, &p.JournalID, &p.CreatedAt)
	return p, err
}

const listPayments = `
SELECT id, org_id, payment_date, counterparty_kind, counterparty_id, bank_account_id, direction, amount, memo, journal_id, created_at
FROM payments
WHERE org_id = $1
ORDER BY payment_date DESC, id DESC
LIMIT $2 OFFSET $3
`

type ListPaymentsParams struct {
	OrgID  int64
	Limit  int32
	Offset int32
}

// ListPayments returns the org's payments, newest first.
func (q *Queries) ListPayments(ctx context.Context, arg ListPaymentsParams) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPayments, arg.OrgID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrgID, &p.PaymentDate, &p.CounterpartyKind, &p.CounterpartyID,
			&p.BankAccountID, &p.Direction, &p.Amount, &p.Memo, &p.JournalID, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

const updatePayment = `
UPDATE payments
SET payment_date = $3, amount = $4, memo = $5
WHERE id = $1 AND org_id = $2
RETURNING id, org_id, payment_date, counterparty_kind, counterparty_id, bank_account_id, direction, amount, memo, journal_id, created_at
`

type UpdatePaymentParams struct {
	ID          int64
	OrgID       int64
	PaymentDate pgtype.Date
	Amount      pgtype.Numeric
	Memo        pgtype.Text
}

// UpdatePayment amends an existing payment's date, amount, and memo.
func (q *Queries) UpdatePayment(ctx context.Context, arg UpdatePaymentParams) (Payment, error) {
	var p Payment
	err := q.db.QueryRow(ctx, updatePayment, arg.ID, arg.OrgID, arg.PaymentDate, arg.Amount, arg.Memo).
		Scan(&p.ID, &p.OrgID, &p.PaymentDate, &p.CounterpartyKind, &p.CounterpartyID,
			&p.BankAccountID, &p.Direction, &p.Amount, &p.Memo, &p.JournalID, &p.CreatedAt)
	return p, err
}

const setPaymentJournal = `
UPDATE payments
SET journal_id = $3
WHERE id = $1 AND org_id = $2
`

type SetPaymentJournalParams struct {
	ID        int64
	OrgID     int64
	JournalID int64
}

// SetPaymentJournal links a payment to its ledger posting.
func (q *Queries) SetPaymentJournal(ctx context.Context, arg SetPaymentJournalParams) error {
	_, err := q.db.Exec(ctx, setPaymentJournal, arg.ID, arg.OrgID, arg.JournalID)
	return err
}
