package handler

import (
	"net/http"

	"ledger-service/internal/domain"
	"ledger-service/shared/response"

	"github.com/go-chi/chi/v5"
)

// CreateAccount registers a username with a zero balance.
// POST /api/v1/accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, "create account", err)
		return
	}

	acc, err := h.accounts.Create(r.Context(), body.Username)
	if err != nil {
		h.fail(w, r, "create account", err)
		return
	}
	response.JSON(w, http.StatusCreated, acc)
}

// GET /api/v1/accounts/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	acc, err := h.accounts.Get(r.Context(), username)
	if err != nil {
		h.fail(w, r, "get account", err)
		return
	}
	response.JSON(w, http.StatusOK, acc)
}

// AdjustBalance adds delta to a user's balance. A negative delta debits.
// POST /admin/accounts/{username}/adjust
func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Delta flexString `json:"delta"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, "adjust balance", err)
		return
	}

	acc, err := h.accounts.Adjust(r.Context(), chi.URLParam(r, "username"), string(body.Delta))
	if err != nil {
		h.fail(w, r, "adjust balance", err)
		return
	}
	response.JSON(w, http.StatusOK, acc)
}

// GET /admin/accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context(), domain.AccountFilter{
		Limit:  parseIntQuery(r, "limit", 50),
		Offset: parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		h.fail(w, r, "list accounts", err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}
