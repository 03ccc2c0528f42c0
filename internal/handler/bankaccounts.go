package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hisabdesk/api/internal/ledger"
	"github.com/hisabdesk/api/internal/middleware"
	"github.com/hisabdesk/api/internal/store"
	"github.com/jackc/pgx/v5"
)

// BankAccountStore defines the database methods needed by bank account
// handlers. Satisfied by *store.Queries.
type BankAccountStore interface {
	ListBankAccounts(ctx context.Context, orgID int64) ([]store.BankAccount, error)
	GetBankAccount(ctx context.Context, arg store.GetBankAccountParams) (store.BankAccount, error)
}

// BankAccountHandler handles bank account endpoints.
type BankAccountHandler struct {
	store BankAccountStore
	links *ledger.LinkResolver
}

// NewBankAccountHandler creates a new BankAccountHandler.
func NewBankAccountHandler(store BankAccountStore, links *ledger.LinkResolver) *BankAccountHandler {
	return &BankAccountHandler{store: store, links: links}
}

// RegisterRoutes registers bank account endpoints on the given Chi router.
func (h *BankAccountHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/link", h.Link)
}

// --- Response types ---

type bankAccountResponse struct {
	ID             int64  `json:"id"`
	BankName       string `json:"bank_name"`
	AccountName    string `json:"account_name"`
	GlAccountID    int64  `json:"gl_account_id,omitempty"`
	CurrentBalance string `json:"current_balance"`
}

type linkResponse struct {
	BankAccountID int64 `json:"bank_account_id"`
	GlAccountID   int64 `json:"gl_account_id"`
}

// --- Handlers ---

// List handles GET /bank-accounts.
func (h *BankAccountHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	accounts, err := h.store.ListBankAccounts(r.Context(), claims.OrgID)
	if err != nil {
		log.Printf("ERROR: list bank accounts: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]bankAccountResponse, len(accounts))
	for i, b := range accounts {
		resp[i] = bankAccountToResponse(b)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /bank-accounts/{id}.
func (h *BankAccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bank account ID"})
		return
	}

	account, err := h.store.GetBankAccount(r.Context(), store.GetBankAccountParams{ID: id, OrgID: claims.OrgID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "bank account not found"})
			return
		}
		log.Printf("ERROR: get bank account: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, bankAccountToResponse(account))
}

// Link handles POST /bank-accounts/{id}/link: resolve and persist the GL
// account link for a bank account. Idempotent; gl_account_id 0 means no
// candidate account exists in the chart.
func (h *BankAccountHandler) Link(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bank account ID"})
		return
	}

	glID, err := h.links.LinkBankAccount(r.Context(), claims.OrgID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "bank account not found"})
			return
		}
		log.Printf("ERROR: link bank account: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, linkResponse{BankAccountID: id, GlAccountID: glID})
}

// --- Helpers ---

func bankAccountToResponse(b store.BankAccount) bankAccountResponse {
	resp := bankAccountResponse{
		ID:             b.ID,
		BankName:       b.BankName,
		AccountName:    b.AccountName,
		CurrentBalance: numericToString(b.CurrentBalance),
	}
	if b.GlAccountID.Valid {
		resp.GlAccountID = b.GlAccountID.Int64
	}
	return resp
}
