package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"foresight/internal/market"
	"foresight/internal/quote"
	"foresight/internal/trade"
)

// Catalog is the read side of the market snapshot.
type Catalog interface {
	List(ctx context.Context, f market.Filter) ([]market.Market, error)
	Get(ctx context.Context, id string) (market.Market, error)
	Categories(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
}

// Handler serves the market and trade dialog endpoints.
type Handler struct {
	catalog  Catalog
	dialogs  *Registry
	balances trade.BalanceSource
	sink     trade.Sink
	limits   trade.Limits
	logger   *slog.Logger
}

func NewHandler(
	catalog Catalog,
	dialogs *Registry,
	balances trade.BalanceSource,
	sink trade.Sink,
	limits trade.Limits,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		catalog:  catalog,
		dialogs:  dialogs,
		balances: balances,
		sink:     sink,
		limits:   limits,
		logger:   logger,
	}
}

type dialogView struct {
	ID     string        `json:"id"`
	Market market.Market `json:"market"`
	State  string        `json:"state"`
	Side   market.Side   `json:"side"`
	Amount string        `json:"amount"`
	Quote  quote.Quote   `json:"quote"`
}

type failureView struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
}

type submitView struct {
	State   string         `json:"state"`
	Receipt *trade.Receipt `json:"receipt,omitempty"`
	Closed  bool           `json:"closed"`
}

// Health reports liveness and the catalog size.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	n, err := h.catalog.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"markets":      n,
		"open_dialogs": h.dialogs.Len(),
	})
}

// ListMarkets returns the markets matching the category and search filter.
// GET /api/markets?category=crypto&q=bitcoin
func (h *Handler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := market.Filter{Category: q.Get("category"), Search: q.Get("q")}

	markets, err := h.catalog.List(r.Context(), f)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list markets failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": markets, "total": len(markets)})
}

// GetMarket returns a single market.
// GET /api/markets/{id}
func (h *Handler) GetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := h.catalog.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, market.ErrNotFound) {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "get market failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GET /api/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list categories failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": append([]string{market.AllCategories}, cats...)})
}

type openDialogRequest struct {
	MarketID string `json:"market_id"`
}

// OpenDialog starts a trade dialog for a market.
// POST /api/dialogs
func (h *Handler) OpenDialog(w http.ResponseWriter, r *http.Request) {
	var req openDialogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := h.catalog.Get(r.Context(), strings.TrimSpace(req.MarketID))
	if errors.Is(err, market.ErrNotFound) {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "open dialog failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to open dialog")
		return
	}

	d := trade.NewDialog(m, h.balances, h.sink, h.limits)
	if _, err := d.Quote(); err != nil {
		h.writeFailure(w, trade.Classify(err))
		return
	}
	id := h.dialogs.Open(d)
	h.writeDialog(w, http.StatusCreated, id, d)
}

// GET /api/dialogs/{id}
func (h *Handler) GetDialog(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, ok := h.dialogs.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "dialog not found")
		return
	}
	h.writeDialog(w, http.StatusOK, id, d)
}

type intentRequest struct {
	Side   *string `json:"side"`
	Amount *string `json:"amount"`
}

// UpdateIntent edits the side and/or amount and returns the fresh quote.
// PUT /api/dialogs/{id}/intent
func (h *Handler) UpdateIntent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, ok := h.dialogs.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "dialog not found")
		return
	}
	var req intentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Side != nil {
		side, err := market.ParseSide(*req.Side)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		d.SetSide(side)
	}
	if req.Amount != nil {
		d.SetAmount(*req.Amount)
	}
	h.writeDialog(w, http.StatusOK, id, d)
}

type submitRequest struct {
	Wallet string `json:"wallet"`
}

// Submit runs the dialog's submission. The dialog is closed and forgotten
// after a successful trade.
// POST /api/dialogs/{id}/submit
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, ok := h.dialogs.Get(id)
	if !ok {
		writeError(w, http.StatusGone, "dialog closed")
		return
	}
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	wallet := trade.Wallet{Address: strings.TrimSpace(req.Wallet)}
	wallet.Connected = wallet.Address != ""

	out, err := d.Submit(r.Context(), wallet)
	switch {
	case errors.Is(err, trade.ErrInFlight):
		writeError(w, http.StatusConflict, "submission already in progress")
		return
	case errors.Is(err, trade.ErrDialogClosed):
		writeError(w, http.StatusGone, "dialog closed")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if out.Failure != nil {
		h.writeFailure(w, out.Failure)
		return
	}
	if out.CloseDialog {
		h.dialogs.Close(id)
	}
	writeJSON(w, http.StatusOK, submitView{
		State:   d.State().String(),
		Receipt: out.Receipt,
		Closed:  out.CloseDialog,
	})
}

// DELETE /api/dialogs/{id}
func (h *Handler) CloseDialog(w http.ResponseWriter, r *http.Request) {
	if !h.dialogs.Close(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "dialog not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeDialog(w http.ResponseWriter, status int, id string, d *trade.Dialog) {
	intent := d.Intent()
	q, err := intent.Quote(d.Market())
	if err != nil {
		h.writeFailure(w, trade.Classify(err))
		return
	}
	writeJSON(w, status, dialogView{
		ID:     id,
		Market: d.Market(),
		State:  d.State().String(),
		Side:   intent.Side,
		Amount: intent.Amount,
		Quote:  q,
	})
}

func (h *Handler) writeFailure(w http.ResponseWriter, e *trade.Error) {
	writeJSON(w, failureStatus(e), failureView{
		Error:     e.Describe(h.limits.Currency),
		Kind:      e.Kind.String(),
		Retryable: e.Retryable(),
	})
}
