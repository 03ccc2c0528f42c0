package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hisabdesk/api/internal/ledger"
	"github.com/hisabdesk/api/internal/middleware"
	"github.com/hisabdesk/api/internal/store"
	"github.com/jackc/pgx/v5"
)

// AccountsStore defines the database methods needed by account handlers.
// Satisfied by *store.Queries; narrow interface for testability.
type AccountsStore interface {
	ListAccounts(ctx context.Context, orgID int64) ([]store.Account, error)
	GetAccount(ctx context.Context, arg store.GetAccountParams) (store.Account, error)
	UpsertAccountMap(ctx context.Context, arg store.UpsertAccountMapParams) error
}

// AccountsHandler handles chart-of-accounts and balance endpoints.
type AccountsHandler struct {
	store AccountsStore
	keys  *ledger.KeyAccountResolver
	bal   *ledger.Calculator
}

// NewAccountsHandler creates a new AccountsHandler.
func NewAccountsHandler(store AccountsStore, keys *ledger.KeyAccountResolver, bal *ledger.Calculator) *AccountsHandler {
	return &AccountsHandler{store: store, keys: keys, bal: bal}
}

// RegisterRoutes registers account endpoints on the given Chi router.
func (h *AccountsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/accounts", h.List)
	r.Get("/accounts/{id}/balance", h.Balance)
	r.Get("/accounts/{id}/series", h.Series)
	r.Get("/key-accounts/{role}", h.KeyAccount)
}

// RegisterAdminRoutes registers endpoints that change the account mapping.
// Expected to be mounted behind a role gate.
func (h *AccountsHandler) RegisterAdminRoutes(r chi.Router) {
	r.Put("/key-accounts/{role}", h.SetKeyAccount)
}

// --- Request / Response types ---

type accountResponse struct {
	ID          int64  `json:"id"`
	ParentID    int64  `json:"parent_id,omitempty"`
	AccountType string `json:"account_type"`
	Name        string `json:"name"`
	Code        string `json:"code"`
}

type balanceResponse struct {
	AccountID int64  `json:"account_id"`
	AsOf      string `json:"as_of"`
	Rollup    bool   `json:"rollup"`
	Balance   string `json:"balance"`
}

type seriesPointResponse struct {
	Date   string `json:"date"`
	Amount string `json:"amount"`
}

type keyAccountResponse struct {
	Role      string `json:"role"`
	AccountID int64  `json:"account_id"`
}

type setKeyAccountRequest struct {
	AccountID int64 `json:"account_id"`
}

// --- Handlers ---

// List returns the org's chart of accounts ordered by code.
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	accounts, err := h.store.ListAccounts(r.Context(), claims.OrgID)
	if err != nil {
		log.Printf("ERROR: list accounts: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]accountResponse, len(accounts))
	for i, a := range accounts {
		resp[i] = accountToResponse(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Balance returns the cumulative dr-cr balance of an account as of a date.
// With rollup=true the account's whole subtree is summed.
func (h *AccountsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid account ID"})
		return
	}

	asOf, err := parseDateParam(r, "as_of", today())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	rollup := r.URL.Query().Get("rollup") == "true"

	ids, err := h.accountSet(r.Context(), claims.OrgID, accountID, rollup)
	if err != nil {
		h.writeAccountSetError(w, err)
		return
	}

	balance, err := h.bal.BalanceAsOf(r.Context(), claims.OrgID, ids, asOf)
	if err != nil {
		log.Printf("ERROR: balance as of: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		AccountID: accountID,
		AsOf:      asOf.Format("2006-01-02"),
		Rollup:    rollup,
		Balance:   balance.String(),
	})
}

// Series returns a zero-filled daily dr-cr series for an account.
func (h *AccountsHandler) Series(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid account ID"})
		return
	}

	endDate, err := parseDateParam(r, "end_date", today())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	startDate, err := parseDateParam(r, "start_date", endDate.AddDate(0, 0, -29))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if startDate.After(endDate) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_date must not be after end_date"})
		return
	}
	rollup := r.URL.Query().Get("rollup") == "true"

	ids, err := h.accountSet(r.Context(), claims.OrgID, accountID, rollup)
	if err != nil {
		h.writeAccountSetError(w, err)
		return
	}

	series, err := h.bal.Series(r.Context(), claims.OrgID, ids, startDate, endDate)
	if err != nil {
		log.Printf("ERROR: balance series: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]seriesPointResponse, len(series))
	for i, p := range series {
		resp[i] = seriesPointResponse{
			Date:   p.Date.Format("2006-01-02"),
			Amount: p.Amount.String(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// KeyAccount returns the account resolved for a semantic role. account_id
// is 0 when neither a mapping nor a heuristic match exists.
func (h *AccountsHandler) KeyAccount(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	role, err := ledger.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown role"})
		return
	}

	id, err := h.keys.Resolve(r.Context(), claims.OrgID, role)
	if err != nil {
		log.Printf("ERROR: resolve key account: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, keyAccountResponse{Role: string(role), AccountID: id})
}

// SetKeyAccount pins a role to an explicit account.
func (h *AccountsHandler) SetKeyAccount(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	role, err := ledger.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown role"})
		return
	}

	var req setKeyAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.AccountID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "account_id is required"})
		return
	}

	// The mapped account must exist in this org's chart.
	if _, err := h.store.GetAccount(r.Context(), store.GetAccountParams{ID: req.AccountID, OrgID: claims.OrgID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "account not found"})
			return
		}
		log.Printf("ERROR: get account for mapping: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	err = h.store.UpsertAccountMap(r.Context(), store.UpsertAccountMapParams{
		OrgID:     claims.OrgID,
		MapKey:    string(role),
		AccountID: req.AccountID,
	})
	if err != nil {
		log.Printf("ERROR: upsert account map: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, keyAccountResponse{Role: string(role), AccountID: req.AccountID})
}

// --- Helpers ---

// accountSet returns the account ids a read should cover: the account
// itself, or its whole subtree when rollup is requested.
func (h *AccountsHandler) accountSet(ctx context.Context, orgID, accountID int64, rollup bool) ([]int64, error) {
	if _, err := h.store.GetAccount(ctx, store.GetAccountParams{ID: accountID, OrgID: orgID}); err != nil {
		return nil, err
	}
	if !rollup {
		return []int64{accountID}, nil
	}

	accounts, err := h.store.ListAccounts(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return ledger.BuildTree(accounts).Descendants(accountID)
}

func (h *AccountsHandler) writeAccountSetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "account not found"})
	case errors.Is(err, ledger.ErrCyclicHierarchy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "account hierarchy contains a cycle"})
	default:
		log.Printf("ERROR: resolve account set: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func accountToResponse(a store.Account) accountResponse {
	resp := accountResponse{
		ID:          a.ID,
		AccountType: a.AccountType,
		Name:        a.Name,
		Code:        a.Code,
	}
	if a.ParentID.Valid {
		resp.ParentID = a.ParentID.Int64
	}
	return resp
}

// parseDateParam parses a YYYY-MM-DD query param, or returns def when the
// param is absent.
func parseDateParam(r *http.Request, name string, def time.Time) (time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format, want YYYY-MM-DD", name)
	}
	return t, nil
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
