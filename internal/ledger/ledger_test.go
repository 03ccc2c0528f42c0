package ledger

import (
	"context"
	"strconv"
	"time"

	"github.com/hisabdesk/api/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory implementation of the store interfaces the
// ledger engine consumes. Sums are computed the way the SQL does: entries
// joined to their journal, filtered by the journal's date.
type fakeStore struct {
	accounts     map[int64]store.Account
	accountMap   map[string]int64 // "orgID/mapKey" -> account id
	journals     map[int64]store.Journal
	entries      map[int64]store.Entry
	bankAccounts map[int64]store.BankAccount
	customers    map[int64]store.Customer
	suppliers    map[int64]store.Supplier
	counters     map[string]int64 // "orgID/year" -> seq
	nextID       int64

	sumCalls     int // queries hitting entry aggregation
	glLinkWrites int // SetBankAccountGL calls that wrote a row
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:     make(map[int64]store.Account),
		accountMap:   make(map[string]int64),
		journals:     make(map[int64]store.Journal),
		entries:      make(map[int64]store.Entry),
		bankAccounts: make(map[int64]store.BankAccount),
		customers:    make(map[int64]store.Customer),
		suppliers:    make(map[int64]store.Supplier),
		counters:     make(map[string]int64),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

// --- fixture builders ---

func (f *fakeStore) addAccount(id, orgID int64, parentID int64, accountType, name, code string) {
	a := store.Account{ID: id, OrgID: orgID, AccountType: accountType, Name: name, Code: code, CreatedAt: time.Now()}
	if parentID != 0 {
		a.ParentID = pgtype.Int8{Int64: parentID, Valid: true}
	}
	f.accounts[id] = a
	if id > f.nextID {
		f.nextID = id
	}
}

func (f *fakeStore) mapRole(orgID int64, key string, accountID int64) {
	f.accountMap[mapKey(orgID, key)] = accountID
}

func (f *fakeStore) addEntry(orgID int64, accountID int64, date string, dr, cr string) {
	jdate, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	jid := f.id()
	f.journals[jid] = store.Journal{
		ID:    jid,
		OrgID: orgID,
		Jno:   "J-TEST",
		Jdate: pgtype.Date{Time: jdate, Valid: true},
		Jtype: "manual",
	}
	eid := f.id()
	f.entries[eid] = store.Entry{
		ID:        eid,
		JournalID: jid,
		AccountID: accountID,
		Dr:        makeNumeric(dr),
		Cr:        makeNumeric(cr),
	}
}

func mapKey(orgID int64, key string) string {
	return itoa(orgID) + "/" + key
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

// --- AccountStore ---

func (f *fakeStore) ListAccounts(_ context.Context, orgID int64) ([]store.Account, error) {
	var accounts []store.Account
	for _, a := range f.accounts {
		if a.OrgID == orgID {
			accounts = append(accounts, a)
		}
	}
	return accounts, nil
}

func (f *fakeStore) GetMappedAccount(_ context.Context, arg store.GetMappedAccountParams) (int64, error) {
	id, ok := f.accountMap[mapKey(arg.OrgID, arg.MapKey)]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	return id, nil
}

// --- EntryStore ---

func (f *fakeStore) SumEntriesInRange(_ context.Context, arg store.SumEntriesInRangeParams) (string, error) {
	f.sumCalls++
	return f.sum(arg.OrgID, arg.AccountIDs, &arg.FromDate.Time, &arg.ToDate.Time), nil
}

func (f *fakeStore) SumEntriesAsOf(_ context.Context, arg store.SumEntriesAsOfParams) (string, error) {
	f.sumCalls++
	return f.sum(arg.OrgID, arg.AccountIDs, nil, &arg.AsOf.Time), nil
}

func (f *fakeStore) DailyEntrySums(_ context.Context, arg store.DailyEntrySumsParams) ([]store.DailyEntrySumsRow, error) {
	f.sumCalls++
	byDay := make(map[string]decimal.Decimal)
	for _, e := range f.entries {
		j := f.journals[e.JournalID]
		if j.OrgID != arg.OrgID || !inSet(arg.AccountIDs, e.AccountID) {
			continue
		}
		day := j.Jdate.Time
		if day.Before(arg.FromDate.Time) || day.After(arg.ToDate.Time) {
			continue
		}
		key := day.Format("2006-01-02")
		byDay[key] = byDay[key].Add(numericToDecimal(e.Dr)).Sub(numericToDecimal(e.Cr))
	}
	var rows []store.DailyEntrySumsRow
	for key, total := range byDay {
		day, _ := time.Parse("2006-01-02", key)
		rows = append(rows, store.DailyEntrySumsRow{
			Day:   pgtype.Date{Time: day, Valid: true},
			Total: total.String(),
		})
	}
	return rows, nil
}

func (f *fakeStore) sum(orgID int64, accountIDs []int64, from, to *time.Time) string {
	total := decimal.Zero
	for _, e := range f.entries {
		j := f.journals[e.JournalID]
		if j.OrgID != orgID || !inSet(accountIDs, e.AccountID) {
			continue
		}
		if from != nil && j.Jdate.Time.Before(*from) {
			continue
		}
		if to != nil && j.Jdate.Time.After(*to) {
			continue
		}
		total = total.Add(numericToDecimal(e.Dr)).Sub(numericToDecimal(e.Cr))
	}
	return total.String()
}

func inSet(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// --- PostingStore ---

func (f *fakeStore) NextJournalSeq(_ context.Context, arg store.NextJournalSeqParams) (int64, error) {
	key := itoa(arg.OrgID) + "/" + itoa(int64(arg.Year))
	f.counters[key]++
	return f.counters[key], nil
}

func (f *fakeStore) CreateJournal(_ context.Context, arg store.CreateJournalParams) (store.Journal, error) {
	j := store.Journal{
		ID:        f.id(),
		OrgID:     arg.OrgID,
		Jno:       arg.Jno,
		Jdate:     arg.Jdate,
		Jtype:     arg.Jtype,
		Memo:      arg.Memo,
		CreatedAt: time.Now(),
	}
	f.journals[j.ID] = j
	return j, nil
}

func (f *fakeStore) GetJournal(_ context.Context, arg store.GetJournalParams) (store.Journal, error) {
	j, ok := f.journals[arg.ID]
	if !ok || j.OrgID != arg.OrgID {
		return store.Journal{}, pgx.ErrNoRows
	}
	return j, nil
}

func (f *fakeStore) UpdateJournalHeader(_ context.Context, arg store.UpdateJournalHeaderParams) (store.Journal, error) {
	j, ok := f.journals[arg.ID]
	if !ok || j.OrgID != arg.OrgID {
		return store.Journal{}, pgx.ErrNoRows
	}
	j.Jdate = arg.Jdate
	j.Memo = arg.Memo
	f.journals[arg.ID] = j
	return j, nil
}

func (f *fakeStore) CreateEntry(_ context.Context, arg store.CreateEntryParams) (store.Entry, error) {
	e := store.Entry{
		ID:        f.id(),
		JournalID: arg.JournalID,
		AccountID: arg.AccountID,
		Dr:        arg.Dr,
		Cr:        arg.Cr,
		Memo:      arg.Memo,
	}
	f.entries[e.ID] = e
	return e, nil
}

func (f *fakeStore) DeleteEntriesByJournal(_ context.Context, journalID int64) error {
	for id, e := range f.entries {
		if e.JournalID == journalID {
			delete(f.entries, id)
		}
	}
	return nil
}

func (f *fakeStore) AdjustBankAccountBalance(_ context.Context, arg store.AdjustBankAccountBalanceParams) error {
	b, ok := f.bankAccounts[arg.ID]
	if !ok || b.OrgID != arg.OrgID {
		return pgx.ErrNoRows
	}
	balance := numericToDecimal(b.CurrentBalance).Add(numericToDecimal(arg.Delta))
	b.CurrentBalance = makeNumeric(balance.String())
	f.bankAccounts[arg.ID] = b
	return nil
}

// --- LinkStore ---

func (f *fakeStore) GetBankAccount(_ context.Context, arg store.GetBankAccountParams) (store.BankAccount, error) {
	b, ok := f.bankAccounts[arg.ID]
	if !ok || b.OrgID != arg.OrgID {
		return store.BankAccount{}, pgx.ErrNoRows
	}
	return b, nil
}

func (f *fakeStore) SetBankAccountGL(_ context.Context, arg store.SetBankAccountGLParams) (int64, error) {
	b, ok := f.bankAccounts[arg.ID]
	if !ok || b.OrgID != arg.OrgID || b.GlAccountID.Valid {
		return 0, nil
	}
	b.GlAccountID = pgtype.Int8{Int64: arg.GlAccountID, Valid: true}
	f.bankAccounts[arg.ID] = b
	f.glLinkWrites++
	return 1, nil
}

func (f *fakeStore) GetCustomer(_ context.Context, arg store.GetCustomerParams) (store.Customer, error) {
	c, ok := f.customers[arg.ID]
	if !ok || c.OrgID != arg.OrgID {
		return store.Customer{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeStore) GetSupplier(_ context.Context, arg store.GetSupplierParams) (store.Supplier, error) {
	s, ok := f.suppliers[arg.ID]
	if !ok || s.OrgID != arg.OrgID {
		return store.Supplier{}, pgx.ErrNoRows
	}
	return s, nil
}

// --- transaction doubles ---

type mockTx struct {
	commitErr   error
	rollbackErr error
	committed   bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.committed = true
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// --- helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, _ := decimal.NewFromString(val.(string))
	return d
}

func bankAccountFixture(id, orgID int64, bankName, accountName string, glAccountID int64) store.BankAccount {
	b := store.BankAccount{
		ID:             id,
		OrgID:          orgID,
		BankName:       bankName,
		AccountName:    accountName,
		CurrentBalance: makeNumeric("0"),
		CreatedAt:      time.Now(),
	}
	if glAccountID != 0 {
		b.GlAccountID = pgtype.Int8{Int64: glAccountID, Valid: true}
	}
	return b
}

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// newTestPoster wires a Poster whose transactions are no-ops over the
// fake store.
func newTestPoster(f *fakeStore) *Poster {
	return NewPoster(&mockTxBeginner{tx: &mockTx{}}, func(db store.DBTX) PostingStore { return f })
}
