package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const nextJournalSeq = `
INSERT INTO journal_counters (org_id, year, seq)
VALUES ($1, $2, 1)
ON CONFLICT (org_id, year) DO UPDATE SET seq = journal_counters.seq + 1
RETURNING seq
`

type NextJournalSeqParams struct {
	OrgID int64
	Year  int32
}

// NextJournalSeq atomically allocates the next journal sequence number for
// the org and year. Concurrent callers never observe the same value;
// "read max, add one" would race.
func (q *Queries) NextJournalSeq(ctx context.Context, arg NextJournalSeqParams) (int64, error) {
	var seq int64
	err := q.db.QueryRow(ctx, nextJournalSeq, arg.OrgID, arg.Year).Scan(&seq)
	return seq, err
}

const createJournal = `
INSERT INTO journals (org_id, jno, jdate, jtype, memo)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, org_id, jno, jdate, jtype, memo, created_at
`

type CreateJournalParams struct {
	OrgID int64
	Jno   string
	Jdate pgtype.Date
	Jtype string
	Memo  pgtype.Text
}

// CreateJournal inserts a posting header.
func (q *Queries) CreateJournal(ctx context.Context, arg CreateJournalParams) (Journal, error) {
	var j Journal
	err := q.db.QueryRow(ctx, createJournal, arg.OrgID, arg.Jno, arg.Jdate, arg.Jtype, arg.Memo).
		Scan(&j.ID, &j.OrgID, &j.Jno, &j.Jdate, &j.Jtype, &j.Memo, &j.CreatedAt)
	return j, err
}

const getJournal = `
SELECT id, org_id, jno, jdate, jtype, memo, created_at
FROM journals
WHERE id = $1 AND org_id = $2
`

type GetJournalParams struct {
	ID    int64
	OrgID int64
}

// GetJournal fetches one journal header scoped to the org.
func (q *Queries) GetJournal(ctx context.Context, arg GetJournalParams) (Journal, error) {
	var j Journal
	err := q.db.QueryRow(ctx, getJournal, arg.ID, arg.OrgID).
		Scan(&j.ID, &j.OrgID, &j.Jno, &j.Jdate, &j.Jtype, &j.Memo, &j.CreatedAt)
	return j, err
}

const updateJournalHeader = `
UPDATE journals
SET jdate = $3, memo = $4
WHERE id = $1 AND org_id = $2
RETURNING id, org_id, jno, jdate, jtype, memo, created_at
`

type UpdateJournalHeaderParams struct {
	ID    int64
	OrgID int64
	Jdate pgtype.Date
	Memo  pgtype.Text
}

// UpdateJournalHeader amends date and memo in place; jno and id survive so
// external references stay valid.
func (q *Queries) UpdateJournalHeader(ctx context.Context, arg UpdateJournalHeaderParams) (Journal, error) {
	var j Journal
	err := q.db.QueryRow(ctx, updateJournalHeader, arg.ID, arg.OrgID, arg.Jdate, arg.Memo).
		Scan(&j.ID, &j.OrgID, &j.Jno, &j.Jdate, &j.Jtype, &j.Memo, &j.CreatedAt)
	return j, err
}

const createEntry = `
INSERT INTO entries (journal_id, account_id, dr, cr, memo)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, journal_id, account_id, dr, cr, memo
`

type CreateEntryParams struct {
	JournalID int64
	AccountID int64
	Dr        pgtype.Numeric
	Cr        pgtype.Numeric
	Memo      pgtype.Text
}

// CreateEntry inserts one ledger line.
func (q *Queries) CreateEntry(ctx context.Context, arg CreateEntryParams) (Entry, error) {
	var e Entry
	err := q.db.QueryRow(ctx, createEntry, arg.JournalID, arg.AccountID, arg.Dr, arg.Cr, arg.Memo).
		Scan(&e.ID, &e.JournalID, &e.AccountID, &e.Dr, &e.Cr, &e.Memo)
	return e, err
}

const deleteEntriesByJournal = `
DELETE FROM entries WHERE journal_id = $1
`

// DeleteEntriesByJournal removes all lines under a journal (repost flow).
func (q *Queries) DeleteEntriesByJournal(ctx context.Context, journalID int64) error {
	_, err := q.db.Exec(ctx, deleteEntriesByJournal, journalID)
	return err
}

const listEntriesByJournal = `
SELECT id, journal_id, account_id, dr, cr, memo
FROM entries
WHERE journal_id = $1
ORDER BY id
`

// ListEntriesByJournal returns a journal's lines in insertion order.
func (q *Queries) ListEntriesByJournal(ctx context.Context, journalID int64) ([]Entry, error) {
	rows, err := q.db.Query(ctx, listEntriesByJournal, journalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.JournalID, &e.AccountID, &e.Dr, &e.Cr, &e.Memo); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// The journal's date is authoritative for all balance queries, so every
// sum joins entries to journals.

const sumEntriesInRange = `
SELECT COALESCE(SUM(e.dr - e.cr), 0)::text
FROM entries e
JOIN journals j ON j.id = e.journal_id
WHERE j.org_id = $1
  AND e.account_id = ANY($2)
  AND j.jdate >= $3
  AND j.jdate <= $4
`

type SumEntriesInRangeParams struct {
	OrgID      int64
	AccountIDs []int64
	FromDate   pgtype.Date
	ToDate     pgtype.Date
}

// SumEntriesInRange returns Σ(dr - cr) over the accounts for journal dates
// within [from, to] inclusive, as a decimal string.
func (q *Queries) SumEntriesInRange(ctx context.Context, arg SumEntriesInRangeParams) (string, error) {
	var total string
	err := q.db.QueryRow(ctx, sumEntriesInRange, arg.OrgID, arg.AccountIDs, arg.FromDate, arg.ToDate).Scan(&total)
	return total, err
}

const sumEntriesAsOf = `
SELECT COALESCE(SUM(e.dr - e.cr), 0)::text
FROM entries e
JOIN journals j ON j.id = e.journal_id
WHERE j.org_id = $1
  AND e.account_id = ANY($2)
  AND j.jdate <= $3
`

type SumEntriesAsOfParams struct {
	OrgID      int64
	AccountIDs []int64
	AsOf       pgtype.Date
}

// SumEntriesAsOf returns the cumulative Σ(dr - cr) up to and including the
// given date, as a decimal string.
func (q *Queries) SumEntriesAsOf(ctx context.Context, arg SumEntriesAsOfParams) (string, error) {
	var total string
	err := q.db.QueryRow(ctx, sumEntriesAsOf, arg.OrgID, arg.AccountIDs, arg.AsOf).Scan(&total)
	return total, err
}

const dailyEntrySums = `
SELECT j.jdate, COALESCE(SUM(e.dr - e.cr), 0)::text
FROM entries e
JOIN journals j ON j.id = e.journal_id
WHERE j.org_id = $1
  AND e.account_id = ANY($2)
  AND j.jdate >= $3
  AND j.jdate <= $4
GROUP BY j.jdate
ORDER BY j.jdate
`

type DailyEntrySumsParams struct {
	OrgID      int64
	AccountIDs []int64
	FromDate   pgtype.Date
	ToDate     pgtype.Date
}

type DailyEntrySumsRow struct {
	Day   pgtype.Date
	Total string
}

// DailyEntrySums groups Σ(dr - cr) by journal date. Days without postings
// are absent; callers zero-fill.
func (q *Queries) DailyEntrySums(ctx context.Context, arg DailyEntrySumsParams) ([]DailyEntrySumsRow, error) {
	rows, err := q.db.Query(ctx, dailyEntrySums, arg.OrgID, arg.AccountIDs, arg.FromDate, arg.ToDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DailyEntrySumsRow
	for rows.Next() {
		var r DailyEntrySumsRow
		if err := rows.Scan(&r.Day, &r.Total); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
