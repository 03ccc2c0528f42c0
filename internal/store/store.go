// Package store is the hand-written query layer over PostgreSQL.
// It mirrors the sqlc Queries/DBTX shape so handlers and services can
// run the same methods against a pool or an open transaction.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries exposes all database operations against a DBTX.
type Queries struct {
	db DBTX
}

// New creates a Queries instance bound to the given pool or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// --- Models ---

// Org is a tenant.
type Org struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// User is an API user belonging to one org.
type User struct {
	ID             uuid.UUID
	OrgID          int64
	Email          string
	FullName       string
	HashedPassword string
	Role           string
	CreatedAt      time.Time
}

// Account is one ledger account in an org's chart of accounts.
// ParentID, when set, references another account in the same org; the
// chart forms a forest.
type Account struct {
	ID          int64
	OrgID       int64
	ParentID    pgtype.Int8
	AccountType string
	Name        string
	Code        string
	CreatedAt   time.Time
}

// Journal is a posting header. Entries under one journal always balance.
type Journal struct {
	ID        int64
	OrgID     int64
	Jno       string
	Jdate     pgtype.Date
	Jtype     string
	Memo      pgtype.Text
	CreatedAt time.Time
}

// Entry is a single debit/credit line under a journal.
type Entry struct {
	ID        int64
	JournalID int64
	AccountID int64
	Dr        pgtype.Numeric
	Cr        pgtype.Numeric
	Memo      pgtype.Text
}

// BankAccount is an ancillary record; GlAccountID is lazily linked to the
// chart of accounts on first use.
type BankAccount struct {
	ID             int64
	OrgID          int64
	BankName       string
	AccountName    string
	GlAccountID    pgtype.Int8
	CurrentBalance pgtype.Numeric
	CreatedAt      time.Time
}

// Customer is a receivables counterparty.
type Customer struct {
	ID          int64
	OrgID       int64
	Name        string
	GlAccountID pgtype.Int8
	CreatedAt   time.Time
}

// Supplier is a payables counterparty.
type Supplier struct {
	ID          int64
	OrgID       int64
	Name        string
	GlAccountID pgtype.Int8
	CreatedAt   time.Time
}

// Payment is a recorded cash movement against a counterparty. JournalID
// points at the ledger posting that traces it.
type Payment struct {
	ID               int64
	OrgID            int64
	PaymentDate      pgtype.Date
	CounterpartyKind string
	CounterpartyID   int64
	BankAccountID    pgtype.Int8
	Direction        string
	Amount           pgtype.Numeric
	Memo             pgtype.Text
	JournalID        pgtype.Int8
	CreatedAt        time.Time
}
