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
	"github.com/hisabdesk/api/internal/enum"
	"github.com/hisabdesk/api/internal/ledger"
	"github.com/hisabdesk/api/internal/middleware"
	"github.com/hisabdesk/api/internal/store"
	"github.com/hisabdesk/api/internal/ws"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// PaymentStore defines the database methods needed by payment handlers.
// The posting methods are embedded so one transaction-bound store covers
// the payment row and its journal.
type PaymentStore interface {
	ledger.PostingStore
	ListAccounts(ctx context.Context, orgID int64) ([]store.Account, error)
	CreatePayment(ctx context.Context, arg store.CreatePaymentParams) (store.Payment, error)
	GetPayment(ctx context.Context, arg store.GetPaymentParams) (store.Payment, error)
	ListPayments(ctx context.Context, arg store.ListPaymentsParams) ([]store.Payment, error)
	UpdatePayment(ctx context.Context, arg store.UpdatePaymentParams) (store.Payment, error)
	SetPaymentJournal(ctx context.Context, arg store.SetPaymentJournalParams) error
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db store.DBTX) PaymentStore

// PaymentHandler handles payment endpoints. Creating or amending a
// payment writes the payment row and its ledger posting in one
// transaction; the ledger account resolution happens up front against the
// pool-bound store.
type PaymentHandler struct {
	store    PaymentStore
	pool     ledger.TxBeginner
	newStore NewPaymentStore
	poster   *ledger.Poster
	links    *ledger.LinkResolver
	keys     *ledger.KeyAccountResolver
	hub      *ws.Hub
}

// NewPaymentHandler creates a new PaymentHandler. hub may be nil when no
// live feed is wired (tests).
func NewPaymentHandler(store PaymentStore, pool ledger.TxBeginner, newStore NewPaymentStore,
	poster *ledger.Poster, links *ledger.LinkResolver, keys *ledger.KeyAccountResolver, hub *ws.Hub) *PaymentHandler {
	return &PaymentHandler{
		store:    store,
		pool:     pool,
		newStore: newStore,
		poster:   poster,
		links:    links,
		keys:     keys,
		hub:      hub,
	}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
}

// --- Request / Response types ---

type createPaymentRequest struct {
	PaymentDate      string `json:"payment_date"`
	CounterpartyKind string `json:"counterparty_kind"`
	CounterpartyID   int64  `json:"counterparty_id"`
	BankAccountID    int64  `json:"bank_account_id"`
	Direction        string `json:"direction"`
	Amount           string `json:"amount"`
	Memo             string `json:"memo"`
}

type updatePaymentRequest struct {
	PaymentDate string `json:"payment_date"`
	Amount      string `json:"amount"`
	Memo        string `json:"memo"`
}

type paymentResponse struct {
	ID               int64  `json:"id"`
	PaymentDate      string `json:"payment_date"`
	CounterpartyKind string `json:"counterparty_kind"`
	CounterpartyID   int64  `json:"counterparty_id"`
	BankAccountID    int64  `json:"bank_account_id,omitempty"`
	Direction        string `json:"direction"`
	Amount           string `json:"amount"`
	Memo             string `json:"memo,omitempty"`
	JournalID        int64  `json:"journal_id,omitempty"`
}

type journalPostedPayload struct {
	JournalID int64  `json:"journal_id"`
	Jno       string `json:"jno"`
	PaymentID int64  `json:"payment_id"`
}

// --- Handlers ---

// Create handles POST /payments: insert the payment row, resolve its
// ledger accounts, and post the balanced journal, all committed together.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Direction != enum.PaymentDirectionIn && req.Direction != enum.PaymentDirectionOut {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "direction must be IN or OUT"})
		return
	}
	if req.CounterpartyKind != enum.CounterpartyCustomer && req.CounterpartyKind != enum.CounterpartySupplier {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "counterparty_kind must be customer or supplier"})
		return
	}
	if req.CounterpartyID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "counterparty_id is required"})
		return
	}

	paymentDate, err := parseRequiredDate(req.PaymentDate, "payment_date")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
		return
	}

	// Resolve both legs before opening the transaction. The lazy bank GL
	// link write is idempotent, so it is safe outside the payment tx.
	counterpartID, err := h.links.ResolvePaymentCounterpart(r.Context(), claims.OrgID, req.CounterpartyKind, req.CounterpartyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "counterparty not found"})
			return
		}
		log.Printf("ERROR: resolve payment counterpart: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	moneyID, err := h.moneyAccount(r.Context(), claims.OrgID, req.BankAccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "bank account not found"})
			return
		}
		log.Printf("ERROR: resolve money account: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if counterpartID == 0 || moneyID == 0 {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "chart of accounts is empty, cannot post"})
		return
	}

	postReq := buildPostRequest(claims.OrgID, paymentDate, req.Direction, req.Memo, moneyID, counterpartID, amount)
	if req.BankAccountID != 0 {
		postReq.BankAdjustment = &ledger.BankAdjustment{
			BankAccountID: req.BankAccountID,
			Delta:         signedAmount(req.Direction, amount),
		}
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for create payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)

	payment, err := txStore.CreatePayment(r.Context(), store.CreatePaymentParams{
		OrgID:            claims.OrgID,
		PaymentDate:      pgtype.Date{Time: paymentDate, Valid: true},
		CounterpartyKind: req.CounterpartyKind,
		CounterpartyID:   req.CounterpartyID,
		BankAccountID:    int8OrNull(req.BankAccountID),
		Direction:        req.Direction,
		Amount:           decimalToNumeric(amount),
		Memo:             textOrNull(req.Memo),
	})
	if err != nil {
		log.Printf("ERROR: create payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	journal, err := h.poster.PostTx(r.Context(), txStore, postReq)
	if err != nil {
		log.Printf("ERROR: post payment journal: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := txStore.SetPaymentJournal(r.Context(), store.SetPaymentJournalParams{
		ID:        payment.ID,
		OrgID:     claims.OrgID,
		JournalID: journal.ID,
	}); err != nil {
		log.Printf("ERROR: link payment journal: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit tx for create payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	payment.JournalID = pgtype.Int8{Int64: journal.ID, Valid: true}
	h.broadcastPosted(claims.OrgID, "journal.posted", journal, payment.ID)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"payment": paymentToResponse(payment),
		"journal": map[string]interface{}{"id": journal.ID, "jno": journal.Jno},
	})
}

// Update handles PUT /payments/{id}: amend date, amount, and memo, and
// repost the linked journal under its original id and jno.
func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	paymentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment ID"})
		return
	}

	var req updatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	paymentDate, err := parseRequiredDate(req.PaymentDate, "payment_date")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
		return
	}

	existing, err := h.store.GetPayment(r.Context(), store.GetPaymentParams{ID: paymentID, OrgID: claims.OrgID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found"})
			return
		}
		log.Printf("ERROR: get payment for update: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if !existing.JournalID.Valid {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "payment has no ledger posting"})
		return
	}

	bankAccountID := int64(0)
	if existing.BankAccountID.Valid {
		bankAccountID = existing.BankAccountID.Int64
	}

	counterpartID, err := h.links.ResolvePaymentCounterpart(r.Context(), claims.OrgID, existing.CounterpartyKind, existing.CounterpartyID)
	if err != nil {
		log.Printf("ERROR: resolve payment counterpart: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	moneyID, err := h.moneyAccount(r.Context(), claims.OrgID, bankAccountID)
	if err != nil {
		log.Printf("ERROR: resolve money account: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if counterpartID == 0 || moneyID == 0 {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "chart of accounts is empty, cannot post"})
		return
	}

	postReq := buildPostRequest(claims.OrgID, paymentDate, existing.Direction, req.Memo, moneyID, counterpartID, amount)
	if bankAccountID != 0 {
		// The advisory cache moves by the difference between the new and
		// old signed amounts, not by the full new amount.
		oldAmount, _ := numericToDecimal(existing.Amount)
		delta := signedAmount(existing.Direction, amount).Sub(signedAmount(existing.Direction, oldAmount))
		if !delta.IsZero() {
			postReq.BankAdjustment = &ledger.BankAdjustment{BankAccountID: bankAccountID, Delta: delta}
		}
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for update payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)

	payment, err := txStore.UpdatePayment(r.Context(), store.UpdatePaymentParams{
		ID:          paymentID,
		OrgID:       claims.OrgID,
		PaymentDate: pgtype.Date{Time: paymentDate, Valid: true},
		Amount:      decimalToNumeric(amount),
		Memo:        textOrNull(req.Memo),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found"})
			return
		}
		log.Printf("ERROR: update payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	journal, err := h.poster.RepostTx(r.Context(), txStore, existing.JournalID.Int64, postReq)
	if err != nil {
		log.Printf("ERROR: repost payment journal: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit tx for update payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.broadcastPosted(claims.OrgID, "journal.reposted", journal, payment.ID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment": paymentToResponse(payment),
		"journal": map[string]interface{}{"id": journal.ID, "jno": journal.Jno},
	})
}

// Get handles GET /payments/{id}.
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	paymentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment ID"})
		return
	}

	payment, err := h.store.GetPayment(r.Context(), store.GetPaymentParams{ID: paymentID, OrgID: claims.OrgID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found"})
			return
		}
		log.Printf("ERROR: get payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, paymentToResponse(payment))
}

// List handles GET /payments, newest first.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 200 {
		limit = 200
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	payments, err := h.store.ListPayments(r.Context(), store.ListPaymentsParams{
		OrgID:  claims.OrgID,
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = paymentToResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// moneyAccount picks the ledger account for the money leg: the bank
// account's GL link when a bank account is given, otherwise the cash key
// account, otherwise the suspense fallback.
func (h *PaymentHandler) moneyAccount(ctx context.Context, orgID, bankAccountID int64) (int64, error) {
	if bankAccountID != 0 {
		id, err := h.links.LinkBankAccount(ctx, orgID, bankAccountID)
		if err != nil || id != 0 {
			return id, err
		}
	}
	id, err := h.keys.Resolve(ctx, orgID, ledger.RoleCash)
	if err != nil || id != 0 {
		return id, err
	}
	accounts, err := h.store.ListAccounts(ctx, orgID)
	if err != nil {
		return 0, err
	}
	return ledger.SuspenseAccount(accounts), nil
}

// buildPostRequest sets the debit/credit legs by direction: money in
// debits the money account, money out credits it.
func buildPostRequest(orgID int64, date time.Time, direction, memo string, moneyID, counterpartID int64, amount decimal.Decimal) ledger.PostRequest {
	req := ledger.PostRequest{
		OrgID:  orgID,
		Date:   date,
		Memo:   memo,
		Amount: amount,
	}
	if direction == enum.PaymentDirectionIn {
		req.Jtype = enum.JournalTypeReceipt
		req.DebitAccountID = moneyID
		req.CreditAccountID = counterpartID
	} else {
		req.Jtype = enum.JournalTypePayment
		req.DebitAccountID = counterpartID
		req.CreditAccountID = moneyID
	}
	return req
}

func signedAmount(direction string, amount decimal.Decimal) decimal.Decimal {
	if direction == enum.PaymentDirectionIn {
		return amount
	}
	return amount.Neg()
}

func (h *PaymentHandler) broadcastPosted(orgID int64, eventType string, journal store.Journal, paymentID int64) {
	if h.hub == nil {
		return
	}
	payload, err := json.Marshal(journalPostedPayload{
		JournalID: journal.ID,
		Jno:       journal.Jno,
		PaymentID: paymentID,
	})
	if err != nil {
		log.Printf("ERROR: marshal %s payload: %v", eventType, err)
		return
	}
	h.hub.BroadcastToOrg(orgID, ws.Event{Type: eventType, Payload: payload})
}

func paymentToResponse(p store.Payment) paymentResponse {
	resp := paymentResponse{
		ID:               p.ID,
		CounterpartyKind: p.CounterpartyKind,
		CounterpartyID:   p.CounterpartyID,
		Direction:        p.Direction,
		Amount:           numericToString(p.Amount),
	}
	if p.PaymentDate.Valid {
		resp.PaymentDate = p.PaymentDate.Time.Format("2006-01-02")
	}
	if p.BankAccountID.Valid {
		resp.BankAccountID = p.BankAccountID.Int64
	}
	if p.Memo.Valid {
		resp.Memo = p.Memo.String
	}
	if p.JournalID.Valid {
		resp.JournalID = p.JournalID.Int64
	}
	return resp
}

func parseRequiredDate(s, name string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format, want YYYY-MM-DD", name)
	}
	return t, nil
}

func int8OrNull(v int64) pgtype.Int8 {
	if v == 0 {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: v, Valid: true}
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

func numericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(val.(string))
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}
