package store

import (
	"context"
)

const listAccounts = `
SELECT id, org_id, parent_id, account_type, name, code, created_at
FROM accounts
WHERE org_id = $1
ORDER BY code
`

// ListAccounts returns every account in the org's chart of accounts,
// ordered by code ascending.
func (q *Queries) ListAccounts(ctx context.Context, orgID int64) ([]Account, error) {
	rows, err := q.db.Query(ctx, listAccounts, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.OrgID, &a.ParentID, &a.AccountType, &a.Name, &a.Code, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

const getAccount = `
SELECT id, org_id, parent_id, account_type, name, code, created_at
FROM accounts
WHERE id = $1 AND org_id = $2
`

type GetAccountParams struct {
	ID    int64
	OrgID int64
}

// GetAccount fetches one account scoped to the org.
func (q *Queries) GetAccount(ctx context.Context, arg GetAccountParams) (Account, error) {
	var a Account
	err := q.db.QueryRow(ctx, getAccount, arg.ID, arg.OrgID).
		Scan(&a.ID, &a.OrgID, &a.ParentID, &a.AccountType, &a.Name, &a.Code, &a.CreatedAt)
	return a, err
}

const getMappedAccount = `
SELECT account_id
FROM account_map
WHERE org_id = $1 AND map_key = $2
`

type GetMappedAccountParams struct {
	OrgID  int64
	MapKey string
}

// GetMappedAccount returns the explicitly mapped account id for a semantic
// role key. Returns pgx.ErrNoRows when the org has no mapping for the key.
func (q *Queries) GetMappedAccount(ctx context.Context, arg GetMappedAccountParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, getMappedAccount, arg.OrgID, arg.MapKey).Scan(&id)
	return id, err
}

const upsertAccountMap = `
INSERT INTO account_map (org_id, map_key, account_id)
VALUES ($1, $2, $3)
ON CONFLICT (org_id, map_key) DO UPDATE SET account_id = EXCLUDED.account_id
`

type UpsertAccountMapParams struct {
	OrgID     int64
	MapKey    string
	AccountID int64
}

// UpsertAccountMap sets the account for a semantic role key.
func (q *Queries) UpsertAccountMap(ctx context.Context, arg UpsertAccountMapParams) error {
	_, err := q.db.Exec(ctx, upsertAccountMap, arg.OrgID, arg.MapKey, arg.AccountID)
	return err
}
