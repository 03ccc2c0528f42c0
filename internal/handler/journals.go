package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hisabdesk/api/internal/enum"
	"github.com/hisabdesk/api/internal/ledger"
	"github.com/hisabdesk/api/internal/middleware"
	"github.com/hisabdesk/api/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// JournalStore defines the database methods needed by journal handlers.
// Satisfied by *store.Queries.
type JournalStore interface {
	GetJournal(ctx context.Context, arg store.GetJournalParams) (store.Journal, error)
	ListEntriesByJournal(ctx context.Context, journalID int64) ([]store.Entry, error)
	GetAccount(ctx context.Context, arg store.GetAccountParams) (store.Account, error)
}

// JournalHandler handles journal endpoints: reading a posting with its
// lines, and manual postings for adjustments outside the payment flow.
type JournalHandler struct {
	store  JournalStore
	poster *ledger.Poster
}

// NewJournalHandler creates a new JournalHandler.
func NewJournalHandler(store JournalStore, poster *ledger.Poster) *JournalHandler {
	return &JournalHandler{store: store, poster: poster}
}

// RegisterRoutes registers journal endpoints on the given Chi router.
func (h *JournalHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{id}", h.Get)
}

// RegisterAdminRoutes registers the manual posting endpoint. Expected to
// be mounted behind a role gate.
func (h *JournalHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.PostManual)
}

// --- Request / Response types ---

type postManualRequest struct {
	Date            string `json:"date"`
	Memo            string `json:"memo"`
	DebitAccountID  int64  `json:"debit_account_id"`
	CreditAccountID int64  `json:"credit_account_id"`
	Amount          string `json:"amount"`
}

type entryResponse struct {
	AccountID int64  `json:"account_id"`
	Dr        string `json:"dr"`
	Cr        string `json:"cr"`
	Memo      string `json:"memo,omitempty"`
}

type journalResponse struct {
	ID      int64           `json:"id"`
	Jno     string          `json:"jno"`
	Jdate   string          `json:"jdate"`
	Jtype   string          `json:"jtype"`
	Memo    string          `json:"memo,omitempty"`
	Entries []entryResponse `json:"entries"`
}

// --- Handlers ---

// Get handles GET /journals/{id}: the header with its lines.
func (h *JournalHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid journal ID"})
		return
	}

	journal, err := h.store.GetJournal(r.Context(), store.GetJournalParams{ID: id, OrgID: claims.OrgID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "journal not found"})
			return
		}
		log.Printf("ERROR: get journal: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	entries, err := h.store.ListEntriesByJournal(r.Context(), journal.ID)
	if err != nil {
		log.Printf("ERROR: list journal entries: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, journalToResponse(journal, entries))
}

// PostManual handles POST /journals: a balanced two-line manual posting.
func (h *JournalHandler) PostManual(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req postManualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	date, err := parseRequiredDate(req.Date, "date")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
		return
	}

	if req.DebitAccountID == 0 || req.CreditAccountID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "debit_account_id and credit_account_id are required"})
		return
	}
	if req.DebitAccountID == req.CreditAccountID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "debit and credit accounts must differ"})
		return
	}

	// Both legs must exist in this org's chart.
	for _, accountID := range []int64{req.DebitAccountID, req.CreditAccountID} {
		if _, err := h.store.GetAccount(r.Context(), store.GetAccountParams{ID: accountID, OrgID: claims.OrgID}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "account not found"})
				return
			}
			log.Printf("ERROR: get account for manual posting: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	journal, err := h.poster.Post(r.Context(), ledger.PostRequest{
		OrgID:           claims.OrgID,
		Date:            date,
		Jtype:           enum.JournalTypeManual,
		Memo:            req.Memo,
		DebitAccountID:  req.DebitAccountID,
		CreditAccountID: req.CreditAccountID,
		Amount:          amount,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrAmountNotPositive) || errors.Is(err, ledger.ErrUnbalancedJournal) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: post manual journal: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	entries, err := h.store.ListEntriesByJournal(r.Context(), journal.ID)
	if err != nil {
		log.Printf("ERROR: list journal entries: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, journalToResponse(journal, entries))
}

// --- Helpers ---

func journalToResponse(j store.Journal, entries []store.Entry) journalResponse {
	resp := journalResponse{
		ID:      j.ID,
		Jno:     j.Jno,
		Jtype:   j.Jtype,
		Entries: make([]entryResponse, len(entries)),
	}
	if j.Jdate.Valid {
		resp.Jdate = j.Jdate.Time.Format("2006-01-02")
	}
	if j.Memo.Valid {
		resp.Memo = j.Memo.String
	}
	for i, e := range entries {
		resp.Entries[i] = entryResponse{
			AccountID: e.AccountID,
			Dr:        numericToString(e.Dr),
			Cr:        numericToString(e.Cr),
		}
		if e.Memo.Valid {
			resp.Entries[i].Memo = e.Memo.String
		}
	}
	return resp
}
