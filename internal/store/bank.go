package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const listBankAccounts = `
SELECT id, org_id, bank_name, account_name, gl_account_id, current_balance, created_at
FROM bank_accounts
WHERE org_id = $1
ORDER BY id
`

// ListBankAccounts returns all bank accounts for the org.
func (q *Queries) ListBankAccounts(ctx context.Context, orgID int64) ([]BankAccount, error) {
	rows, err := q.db.Query(ctx, listBankAccounts, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []BankAccount
	for rows.Next() {
		var b BankAccount
		if err := rows.Scan(&b.ID, &b.OrgID, &b.BankName, &b.AccountName, &b.GlAccountID, &b.CurrentBalance, &b.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, b)
	}
	return accounts, rows.Err()
}

const getBankAccount = `
SELECT id, org_id, bank_name, account_name, gl_account_id, current_balance, created_at
FROM bank_accounts
WHERE id = $1 AND org_id = $2
`

type GetBankAccountParams struct {
	ID    int64
	OrgID int64
}

// GetBankAccount fetches one bank account scoped to the org.
func (q *Queries) GetBankAccount(ctx context.Context, arg GetBankAccountParams) (BankAccount, error) {
	var b BankAccount
	err := q.db.QueryRow(ctx, getBankAccount, arg.ID, arg.OrgID).
		Scan(&b.ID, &b.OrgID, &b.BankName, &b.AccountName, &b.GlAccountID, &b.CurrentBalance, &b.CreatedAt)
	return b, err
}

const setBankAccountGL = `
UPDATE bank_accounts
SET gl_account_id = $3
WHERE id = $1 AND org_id = $2 AND gl_account_id IS NULL
`

type SetBankAccountGLParams struct {
	ID          int64
	OrgID       int64
	GlAccountID int64
}

// SetBankAccountGL persists a resolved GL link, but only if the record is
// still unlinked. A concurrent resolver that lost the race affects zero
// rows, which callers treat as success.
func (q *Queries) SetBankAccountGL(ctx context.Context, arg SetBankAccountGLParams) (int64, error) {
	tag, err := q.db.Exec(ctx, setBankAccountGL, arg.ID, arg.OrgID, arg.GlAccountID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const adjustBankAccountBalance = `
UPDATE bank_accounts
SET current_balance = current_balance + $3
WHERE id = $1 AND org_id = $2
`

type AdjustBankAccountBalanceParams struct {
	ID    int64
	OrgID int64
	Delta pgtype.Numeric
}

// AdjustBankAccountBalance increments the advisory cached balance. The
// ledger remains the source of truth; this cache is display-only.
func (q *Queries) AdjustBankAccountBalance(ctx context.Context, arg AdjustBankAccountBalanceParams) error {
	_, err := q.db.Exec(ctx, adjustBankAccountBalance, arg.ID, arg.OrgID, arg.Delta)
	return err
}

const getCustomer = `
SELECT id, org_id, name, gl_account_id, created_at
FROM customers
WHERE id = $1 AND org_id = $2
`

type GetCustomerParams struct {
	ID    int64
	OrgID int64
}

// GetCustomer fetches one customer scoped to the org.
func (q *Queries) GetCustomer(ctx context.Context, arg GetCustomerParams) (Customer, error) {
	var c Customer
	err := q.db.QueryRow(ctx, getCustomer, arg.ID, arg.OrgID).
		Scan(&c.ID, &c.OrgID, &c.Name, &c.GlAccountID, &c.CreatedAt)
	return c, err
}

const getSupplier = `
SELECT id, org_id, name, gl_account_id, created_at
FROM suppliers
WHERE id = $1 AND org_id = $2
`

type GetSupplierParams struct {
	ID    int64
	OrgID int64
}

// GetSupplier fetches one supplier scoped to the org.
func (q *Queries) GetSupplier(ctx context.Context, arg GetSupplierParams) (Supplier, error) {
	var s Supplier
	err := q.db.QueryRow(ctx, getSupplier, arg.ID, arg.OrgID).
		Scan(&s.ID, &s.OrgID, &s.Name, &s.GlAccountID, &s.CreatedAt)
	return s, err
}
