package handler

import (
	"net/http"

	"ledger-service/internal/domain"
	"ledger-service/shared/response"
	xerrors "ledger-service/shared/utils/errors"
)

// SettleTrade decides and books a trade for the caller.
// POST /api/v1/trades
func (h *Handler) SettleTrade(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}

	var body struct {
		Symbol  string     `json:"symbol"`
		Side    string     `json:"side"`
		Amount  flexString `json:"amount"`
		Percent flexString `json:"percent"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, "settle trade", err)
		return
	}

	res, err := h.settlement.Settle(r.Context(), domain.TradeRequest{
		Username: username,
		Symbol:   body.Symbol,
		Side:     body.Side,
		Amount:   string(body.Amount),
		Percent:  string(body.Percent),
	})
	if err != nil {
		h.fail(w, r, "settle trade", err)
		return
	}
	response.JSON(w, http.StatusCreated, res)
}

// GET /api/v1/trades
func (h *Handler) ListTrades(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	trades, err := h.settlement.ListTrades(r.Context(), domain.TradeFilter{
		Username: username,
		Limit:    parseIntQuery(r, "limit", 50),
		Offset:   parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		h.fail(w, r, "list trades", err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
	})
}

// GET /admin/favored-side
func (h *Handler) GetFavoredSide(w http.ResponseWriter, r *http.Request) {
	side, err := h.settlement.FavoredSide(r.Context())
	if err != nil {
		h.fail(w, r, "get favored side", err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"side": string(side)})
}

// SetFavoredSide has no access control of its own; it must be exposed only behind an operator gateway.
// POST /admin/favored-side
func (h *Handler) SetFavoredSide(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Side string `json:"side"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, "set favored side", err)
		return
	}
	if body.Side == "" {
		h.fail(w, r, "set favored side", xerrors.ErrInvalidSide)
		return
	}

	side, err := h.settlement.SetFavoredSide(r.Context(), body.Side)
	if err != nil {
		h.fail(w, r, "set favored side", err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"side": string(side)})
}
