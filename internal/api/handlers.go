// Package api exposes the trade ledger over JSON/HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"options-paper-ledger/internal/accounting"
	"options-paper-ledger/internal/ledger"
	"options-paper-ledger/internal/models"
	"options-paper-ledger/internal/store"
)

// OwnerHeader names the user a request acts for.
const OwnerHeader = "X-Ledger-User"

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log          *zap.Logger
	ledger       *ledger.Ledger
	defaultOwner string
}

// NewAPIHandler creates a new APIHandler. Requests that name no user act for defaultOwner.
func NewAPIHandler(log *zap.Logger, l *ledger.Ledger, defaultOwner string) *APIHandler {
	return &APIHandler{log: log.Named("api"), ledger: l, defaultOwner: defaultOwner}
}

// Routes registers every endpoint on a fresh mux.
func (h *APIHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/trades", h.AddTradeHandler)
	mux.HandleFunc("POST /api/trades/{id}/close", h.CloseTradeHandler)
	mux.HandleFunc("GET /api/trades/open", h.OpenTradesHandler)
	mux.HandleFunc("GET /api/trades/closed", h.ClosedTradesHandler)
	mux.HandleFunc("GET /api/summary", h.SummaryHandler)
	mux.HandleFunc("GET /api/pnl/cumulative", h.CumulativePnLHandler)
	mux.HandleFunc("GET /health", h.HealthHandler)
	return withRequestID(h.log, mux)
}

// AddTradeRequest is the body of POST /api/trades.
type AddTradeRequest struct {
	Underlying   string  `json:"underlying"`
	StrikePrice  float64 `json:"strike_price"`
	OptionType   string  `json:"option_type"`
	EntryPrice   float64 `json:"entry_price"`
	LotSize      int     `json:"lot_size,omitempty"`
	CompanyName  string  `json:"company_name,omitempty"`
	NumberOfLots int     `json:"number_of_lots,omitempty"`
}

// CloseTradeRequest is the body of POST /api/trades/{id}/close.
type CloseTradeRequest struct {
	ExitPrice *float64 `json:"exit_price"`
}

// AddTradeHandler records a new OPEN trade and answers with its id.
func (h *APIHandler) AddTradeHandler(w http.ResponseWriter, r *http.Request) {
	var req AddTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.ledger.AddTrade(r.Context(), ledger.NewTrade{
		Owner:        h.owner(r),
		Underlying:   req.Underlying,
		StrikePrice:  req.StrikePrice,
		OptionType:   req.OptionType,
		EntryPrice:   req.EntryPrice,
		LotSizeHint:  req.LotSize,
		CompanyName:  req.CompanyName,
		NumberOfLots: req.NumberOfLots,
	})
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, map[string]int64{"id": id})
}

// CloseTradeHandler closes an OPEN trade and answers with the closed trade.
func (h *APIHandler) CloseTradeHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "trade id must be an integer")
		return
	}

	var req CloseTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExitPrice == nil {
		h.writeError(w, r, http.StatusBadRequest, "exit_price is required")
		return
	}

	trade, err := h.ledger.CloseTrade(r.Context(), id, *req.ExitPrice, h.owner(r))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, trade)
}

// OpenTradesHandler returns the caller's open trades.
func (h *APIHandler) OpenTradesHandler(w http.ResponseWriter, r *http.Request) {
	trades, err := h.ledger.ListOpen(r.Context(), h.owner(r))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, nonNil(trades))
}

// ClosedTradesHandler returns the caller's closed trades.
func (h *APIHandler) ClosedTradesHandler(w http.ResponseWriter, r *http.Request) {
	trades, err := h.ledger.ListClosed(r.Context(), h.owner(r))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, nonNil(trades))
}

// SummaryHandler calculates and returns the performance summary of closed trades.
func (h *APIHandler) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	trades, err := h.ledger.ListClosed(r.Context(), h.owner(r))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, accounting.Summarize(trades))
}

// CumulativePnLHandler returns the running P&L ordered by exit time.
func (h *APIHandler) CumulativePnLHandler(w http.ResponseWriter, r *http.Request) {
	trades, err := h.ledger.ListClosed(r.Context(), h.owner(r))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, accounting.CumulativePnL(trades))
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *APIHandler) owner(r *http.Request) string {
	if u := strings.TrimSpace(r.Header.Get(OwnerHeader)); u != "" {
		return u
	}
	if u := strings.TrimSpace(r.URL.Query().Get("user")); u != "" {
		return u
	}
	return h.defaultOwner
}

func (h *APIHandler) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidTradeParameters):
		h.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrTradeNotOpen):
		h.writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrStoreUnavailable):
		h.log.Error("Ledger store unavailable", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		h.writeError(w, r, http.StatusServiceUnavailable, "trade store unavailable, try again later")
	default:
		h.log.Error("Ledger operation failed", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, r, status, errorResponse{Error: msg, RequestID: RequestID(r.Context())})
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to write response", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
	}
}

func nonNil(trades []models.Trade) []models.Trade {
	if trades == nil {
		return []models.Trade{}
	}
	return trades
}
