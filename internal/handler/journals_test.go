package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hisabdesk/api/internal/handler"
	"github.com/hisabdesk/api/internal/ledger"
	"github.com/hisabdesk/api/internal/middleware"
	"github.com/hisabdesk/api/internal/store"
	"github.com/jackc/pgx/v5"
)

// mockJournalStore backs both the journal handler and the poster it posts
// through.
type mockJournalStore struct {
	journals map[int64]store.Journal
	entries  map[int64][]store.Entry
	accounts []store.Account

	createdJournals []store.CreateJournalParams
	createdEntries  []store.CreateEntryParams
}

func newMockJournalStore() *mockJournalStore {
	return &mockJournalStore{
		journals: make(map[int64]store.Journal),
		entries:  make(map[int64][]store.Entry),
	}
}

func (m *mockJournalStore) GetJournal(ctx context.Context, arg store.GetJournalParams) (store.Journal, error) {
	if j, ok := m.journals[arg.ID]; ok && j.OrgID == arg.OrgID {
		return j, nil
	}
	return store.Journal{}, pgx.ErrNoRows
}

func (m *mockJournalStore) ListEntriesByJournal(ctx context.Context, journalID int64) ([]store.Entry, error) {
	return m.entries[journalID], nil
}

func (m *mockJournalStore) GetAccount(ctx context.Context, arg store.GetAccountParams) (store.Account, error) {
	for _, a := range m.accounts {
		if a.ID == arg.ID && a.OrgID == arg.OrgID {
			return a, nil
		}
	}
	return store.Account{}, pgx.ErrNoRows
}

func (m *mockJournalStore) NextJournalSeq(ctx context.Context, arg store.NextJournalSeqParams) (int64, error) {
	return 3, nil
}

func (m *mockJournalStore) CreateJournal(ctx context.Context, arg store.CreateJournalParams) (store.Journal, error) {
	m.createdJournals = append(m.createdJournals, arg)
	j := store.Journal{
		ID:    77,
		OrgID: arg.OrgID,
		Jno:   arg.Jno,
		Jdate: arg.Jdate,
		Jtype: arg.Jtype,
		Memo:  arg.Memo,
	}
	m.journals[j.ID] = j
	return j, nil
}

func (m *mockJournalStore) UpdateJournalHeader(ctx context.Context, arg store.UpdateJournalHeaderParams) (store.Journal, error) {
	return store.Journal{}, pgx.ErrNoRows
}

func (m *mockJournalStore) CreateEntry(ctx context.Context, arg store.CreateEntryParams) (store.Entry, error) {
	m.createdEntries = append(m.createdEntries, arg)
	e := store.Entry{
		ID:        int64(len(m.createdEntries)),
		JournalID: arg.JournalID,
		AccountID: arg.AccountID,
		Dr:        arg.Dr,
		Cr:        arg.Cr,
		Memo:      arg.Memo,
	}
	m.entries[arg.JournalID] = append(m.entries[arg.JournalID], e)
	return e, nil
}

func (m *mockJournalStore) DeleteEntriesByJournal(ctx context.Context, journalID int64) error {
	delete(m.entries, journalID)
	return nil
}

func (m *mockJournalStore) AdjustBankAccountBalance(ctx context.Context, arg store.AdjustBankAccountBalanceParams) error {
	return nil
}

func setupJournalRouter(ms *mockJournalStore) *chi.Mux {
	poster := ledger.NewPoster(&mockPool{}, func(db store.DBTX) ledger.PostingStore { return ms })
	h := handler.NewJournalHandler(ms, poster)

	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/journals", func(r chi.Router) {
		h.RegisterRoutes(r)
		h.RegisterAdminRoutes(r)
	})
	return r
}

func TestGetJournal(t *testing.T) {
	ms := newMockJournalStore()
	ms.journals[77] = store.Journal{
		ID: 77, OrgID: 1, Jno: "J-2024-00003",
		Jdate: testDate(t, "2024-03-10"), Jtype: "manual",
	}
	ms.entries[77] = []store.Entry{
		{ID: 1, JournalID: 77, AccountID: 10, Dr: testNumeric(t, "100.00"), Cr: testNumeric(t, "0")},
		{ID: 2, JournalID: 77, AccountID: 20, Dr: testNumeric(t, "0"), Cr: testNumeric(t, "100.00")},
	}
	router := setupJournalRouter(ms)

	rr := doAuthRequest(t, router, http.MethodGet, "/journals/77", nil, testClaims(1))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	resp := decodeResponse(t, rr)
	if resp["jno"] != "J-2024-00003" {
		t.Errorf("expected jno J-2024-00003, got %v", resp["jno"])
	}
	entries := resp["entries"].([]interface{})
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	first := entries[0].(map[string]interface{})
	if first["dr"] != "100.00" || first["cr"] != "0.00" {
		t.Errorf("first entry wrong: %v", first)
	}
}

func TestGetJournalNotFound(t *testing.T) {
	router := setupJournalRouter(newMockJournalStore())

	rr := doAuthRequest(t, router, http.MethodGet, "/journals/77", nil, testClaims(1))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestGetJournalWrongOrg(t *testing.T) {
	ms := newMockJournalStore()
	ms.journals[77] = store.Journal{ID: 77, OrgID: 2, Jno: "J-2024-00003"}
	router := setupJournalRouter(ms)

	rr := doAuthRequest(t, router, http.MethodGet, "/journals/77", nil, testClaims(1))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another org's journal, got %d", rr.Code)
	}
}

func TestPostManualJournal(t *testing.T) {
	ms := newMockJournalStore()
	ms.accounts = []store.Account{
		{ID: 10, OrgID: 1, AccountType: "expense", Name: "Rent", Code: "5100"},
		{ID: 20, OrgID: 1, AccountType: "cash", Name: "Cash in Hand", Code: "1010"},
	}
	router := setupJournalRouter(ms)

	body := map[string]interface{}{
		"date":              "2024-03-10",
		"memo":              "march rent",
		"debit_account_id":  10,
		"credit_account_id": 20,
		"amount":            "850.00",
	}
	rr := doAuthRequest(t, router, http.MethodPost, "/journals", body, testClaims(1))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["jno"] != "J-2024-00003" {
		t.Errorf("expected jno J-2024-00003, got %v", resp["jno"])
	}
	if resp["jtype"] != "manual" {
		t.Errorf("expected jtype manual, got %v", resp["jtype"])
	}

	if len(ms.createdEntries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(ms.createdEntries))
	}
	dr, cr := ms.createdEntries[0], ms.createdEntries[1]
	if dr.AccountID != 10 || numericString(t, dr.Dr) != "850" {
		t.Errorf("debit leg wrong: account %d dr %s", dr.AccountID, numericString(t, dr.Dr))
	}
	if cr.AccountID != 20 || numericString(t, cr.Cr) != "850" {
		t.Errorf("credit leg wrong: account %d cr %s", cr.AccountID, numericString(t, cr.Cr))
	}
}

func TestPostManualJournalValidation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			name: "missing date",
			body: map[string]interface{}{"debit_account_id": 10, "credit_account_id": 20, "amount": "10"},
		},
		{
			name: "zero amount",
			body: map[string]interface{}{"date": "2024-03-10", "debit_account_id": 10, "credit_account_id": 20, "amount": "0"},
		},
		{
			name: "missing accounts",
			body: map[string]interface{}{"date": "2024-03-10", "amount": "10"},
		},
		{
			name: "same account both legs",
			body: map[string]interface{}{"date": "2024-03-10", "debit_account_id": 10, "credit_account_id": 10, "amount": "10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := newMockJournalStore()
			ms.accounts = []store.Account{
				{ID: 10, OrgID: 1, AccountType: "expense", Name: "Rent", Code: "5100"},
				{ID: 20, OrgID: 1, AccountType: "cash", Name: "Cash in Hand", Code: "1010"},
			}
			router := setupJournalRouter(ms)
			rr := doAuthRequest(t, router, http.MethodPost, "/journals", tt.body, testClaims(1))
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			if len(ms.createdJournals) != 0 {
				t.Errorf("expected no journal, got %d", len(ms.createdJournals))
			}
		})
	}
}

func TestPostManualJournalUnknownAccount(t *testing.T) {
	ms := newMockJournalStore()
	ms.accounts = []store.Account{
		{ID: 10, OrgID: 1, AccountType: "expense", Name: "Rent", Code: "5100"},
	}
	router := setupJournalRouter(ms)

	body := map[string]interface{}{
		"date":              "2024-03-10",
		"debit_account_id":  10,
		"credit_account_id": 999,
		"amount":            "10",
	}
	rr := doAuthRequest(t, router, http.MethodPost, "/journals", body, testClaims(1))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}
