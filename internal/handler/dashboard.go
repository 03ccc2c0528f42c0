package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hisabdesk/api/internal/ledger"
	"github.com/hisabdesk/api/internal/middleware"
)

// DashboardHandler handles the KPI dashboard endpoints.
type DashboardHandler struct {
	agg *ledger.Aggregator
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(agg *ledger.Aggregator) *DashboardHandler {
	return &DashboardHandler{agg: agg}
}

// RegisterRoutes registers dashboard endpoints on the given Chi router.
func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard", h.Snapshot)
	r.Get("/dashboard/sales-trend", h.SalesTrend)
}

// --- Response types ---

type snapshotResponse struct {
	Date          string `json:"date"`
	SalesToday    string `json:"sales_today"`
	SalesMonth    string `json:"sales_month"`
	COGSMonth     string `json:"cogs_month"`
	GrossProfit   string `json:"gross_profit"`
	Receivables   string `json:"receivables"`
	Payables      string `json:"payables"`
	CashBalance   string `json:"cash_balance"`
	BankBalance   string `json:"bank_balance"`
	MobileBalance string `json:"mobile_balance"`
}

// --- Handlers ---

// Snapshot returns today's KPI block.
func (h *DashboardHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	date, err := parseDateParam(r, "date", today())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	snap, err := h.agg.Snapshot(r.Context(), claims.OrgID, date)
	if err != nil {
		log.Printf("ERROR: dashboard snapshot: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, snapshotResponse{
		Date:          snap.Date.Format("2006-01-02"),
		SalesToday:    snap.SalesToday.StringFixed(2),
		SalesMonth:    snap.SalesMonth.StringFixed(2),
		COGSMonth:     snap.COGSMonth.StringFixed(2),
		GrossProfit:   snap.GrossProfit.StringFixed(2),
		Receivables:   snap.Receivables.StringFixed(2),
		Payables:      snap.Payables.StringFixed(2),
		CashBalance:   snap.CashBalance.StringFixed(2),
		BankBalance:   snap.BankBalance.StringFixed(2),
		MobileBalance: snap.MobileBalance.StringFixed(2),
	})
}

// SalesTrend returns the 14-day daily sales series for the trend chart.
func (h *DashboardHandler) SalesTrend(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	date, err := parseDateParam(r, "date", today())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	series, err := h.agg.SalesTrend(r.Context(), claims.OrgID, date)
	if err != nil {
		log.Printf("ERROR: sales trend: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]seriesPointResponse, len(series))
	for i, p := range series {
		resp[i] = seriesPointResponse{
			Date:   p.Date.Format("2006-01-02"),
			Amount: p.Amount.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
