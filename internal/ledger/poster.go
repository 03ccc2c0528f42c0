package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/hisabdesk/api/internal/store"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// PostingStore provides the write operations needed to post journals.
// Satisfied by *store.Queries, typically bound to an open transaction.
type PostingStore interface {
	NextJournalSeq(ctx context.Context, arg store.NextJournalSeqParams) (int64, error)
	CreateJournal(ctx context.Context, arg store.CreateJournalParams) (store.Journal, error)
	GetJournal(ctx context.Context, arg store.GetJournalParams) (store.Journal, error)
	UpdateJournalHeader(ctx context.Context, arg store.UpdateJournalHeaderParams) (store.Journal, error)
	CreateEntry(ctx context.Context, arg store.CreateEntryParams) (store.Entry, error)
	DeleteEntriesByJournal(ctx context.Context, journalID int64) error
	AdjustBankAccountBalance(ctx context.Context, arg store.AdjustBankAccountBalanceParams) error
}

// NewPostingStore creates a PostingStore from a DBTX (pool or tx).
type NewPostingStore func(db store.DBTX) PostingStore

// BankAdjustment is an advisory cached-balance delta applied in the same
// transaction as a posting. The cache is display-only; the ledger stays
// the source of truth.
type BankAdjustment struct {
	BankAccountID int64
	Delta         decimal.Decimal
}

// PostRequest describes one balanced two-line posting for a business
// event. Unresolved debit/credit account ids are the caller's problem to
// substitute before posting; the poster never skips a posting.
type PostRequest struct {
	OrgID           int64
	Date            time.Time
	Jtype           string
	Memo            string
	DebitAccountID  int64
	CreditAccountID int64
	Amount          decimal.Decimal
	BankAdjustment  *BankAdjustment
}

// line is an entry staged for insertion.
type line struct {
	accountID int64
	dr        decimal.Decimal
	cr        decimal.Decimal
}

// Poster appends balanced journals. Header-then-entries order inside a
// single transaction guarantees no entry ever references a missing header.
type Poster struct {
	pool     TxBeginner
	newStore NewPostingStore
}

// NewPoster creates a Poster.
func NewPoster(pool TxBeginner, newStore NewPostingStore) *Poster {
	return &Poster{pool: pool, newStore: newStore}
}

// Post creates the journal in its own transaction and returns it.
func (p *Poster) Post(ctx context.Context, req PostRequest) (store.Journal, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return store.Journal{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	journal, err := p.PostTx(ctx, p.newStore(tx), req)
	if err != nil {
		return store.Journal{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return store.Journal{}, fmt.Errorf("commit tx: %w", err)
	}
	return journal, nil
}

// PostTx creates the journal using the caller's transaction-bound store,
// for composing a posting with other writes (e.g. a payment row) in one
// atomic unit.
func (p *Poster) PostTx(ctx context.Context, s PostingStore, req PostRequest) (store.Journal, error) {
	lines, err := buildLines(req)
	if err != nil {
		return store.Journal{}, err
	}

	year := int32(req.Date.Year())
	seq, err := s.NextJournalSeq(ctx, store.NextJournalSeqParams{OrgID: req.OrgID, Year: year})
	if err != nil {
		return store.Journal{}, fmt.Errorf("allocate journal number: %w", err)
	}
	jno := fmt.Sprintf("J-%d-%05d", year, seq)

	journal, err := s.CreateJournal(ctx, store.CreateJournalParams{
		OrgID: req.OrgID,
		Jno:   jno,
		Jdate: pgtype.Date{Time: req.Date, Valid: true},
		Jtype: req.Jtype,
		Memo:  textOrNull(req.Memo),
	})
	if err != nil {
		return store.Journal{}, fmt.Errorf("create journal: %w", err)
	}

	if err := p.insertLines(ctx, s, journal.ID, req.Memo, lines); err != nil {
		return store.Journal{}, err
	}

	if err := p.applyBankAdjustment(ctx, s, req); err != nil {
		return store.Journal{}, err
	}
	return journal, nil
}

// Repost amends an existing journal in its own transaction: the header's
// date and memo are updated in place and all entries are replaced, so the
// journal id and jno survive for external references.
func (p *Poster) Repost(ctx context.Context, journalID int64, req PostRequest) (store.Journal, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return store.Journal{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	journal, err := p.RepostTx(ctx, p.newStore(tx), journalID, req)
	if err != nil {
		return store.Journal{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return store.Journal{}, fmt.Errorf("commit tx: %w", err)
	}
	return journal, nil
}

// RepostTx amends an existing journal using the caller's transaction.
func (p *Poster) RepostTx(ctx context.Context, s PostingStore, journalID int64, req PostRequest) (store.Journal, error) {
	lines, err := buildLines(req)
	if err != nil {
		return store.Journal{}, err
	}

	journal, err := s.UpdateJournalHeader(ctx, store.UpdateJournalHeaderParams{
		ID:    journalID,
		OrgID: req.OrgID,
		Jdate: pgtype.Date{Time: req.Date, Valid: true},
		Memo:  textOrNull(req.Memo),
	})
	if err != nil {
		return store.Journal{}, fmt.Errorf("update journal header: %w", err)
	}

	if err := s.DeleteEntriesByJournal(ctx, journalID); err != nil {
		return store.Journal{}, fmt.Errorf("delete entries: %w", err)
	}
	if err := p.insertLines(ctx, s, journalID, req.Memo, lines); err != nil {
		return store.Journal{}, err
	}

	if err := p.applyBankAdjustment(ctx, s, req); err != nil {
		return store.Journal{}, err
	}
	return journal, nil
}

func (p *Poster) insertLines(ctx context.Context, s PostingStore, journalID int64, memo string, lines []line) error {
	for _, l := range lines {
		_, err := s.CreateEntry(ctx, store.CreateEntryParams{
			JournalID: journalID,
			AccountID: l.accountID,
			Dr:        numericFromDecimal(l.dr),
			Cr:        numericFromDecimal(l.cr),
			Memo:      textOrNull(memo),
		})
		if err != nil {
			return fmt.Errorf("create entry: %w", err)
		}
	}
	return nil
}

func (p *Poster) applyBankAdjustment(ctx context.Context, s PostingStore, req PostRequest) error {
	if req.BankAdjustment == nil {
		return nil
	}
	err := s.AdjustBankAccountBalance(ctx, store.AdjustBankAccountBalanceParams{
		ID:    req.BankAdjustment.BankAccountID,
		OrgID: req.OrgID,
		Delta: numericFromDecimal(req.BankAdjustment.Delta),
	})
	if err != nil {
		return fmt.Errorf("adjust bank balance: %w", err)
	}
	return nil
}

// buildLines stages the debit/credit pair and verifies it balances.
// Balance holds by construction here, but the check stays so any future
// multi-line entry path cannot commit an unbalanced journal.
func buildLines(req PostRequest) ([]line, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrAmountNotPositive
	}
	lines := []line{
		{accountID: req.DebitAccountID, dr: req.Amount, cr: decimal.Zero},
		{accountID: req.CreditAccountID, dr: decimal.Zero, cr: req.Amount},
	}

	totalDr, totalCr := decimal.Zero, decimal.Zero
	for _, l := range lines {
		totalDr = totalDr.Add(l.dr)
		totalCr = totalCr.Add(l.cr)
	}
	if !totalDr.Equal(totalCr) {
		return nil, ErrUnbalancedJournal
	}
	return lines, nil
}

func numericFromDecimal(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
