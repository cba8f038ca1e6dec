package handler

import (
	"encoding/json"
	"net/http"

	"ledger-service/shared/response"
	xerrors "ledger-service/shared/utils/errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// BalanceWS streams balance_update messages for the caller. The current
// balance is pushed on connect and whenever the client sends {"action":"get_balance"}.
// GET /api/v1/ws/balance
func (h *Handler) BalanceWS(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	if _, err := h.accounts.Get(r.Context(), username); err != nil {
		response.FromError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the failure response.
		h.logger.Warn("websocket upgrade failed", zap.String("username", username), zap.Error(err))
		return
	}

	h.notifier.Register(username, conn)
	defer h.notifier.Unregister(username, conn)

	h.pushBalance(r, username)

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			h.logger.Debug("websocket client disconnected",
				zap.String("username", username),
				zap.Error(err))
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var req struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(msg, &req); err == nil && req.Action == "get_balance" {
			h.pushBalance(r, username)
		}
	}
}

func (h *Handler) pushBalance(r *http.Request, username string) {
	acc, err := h.accounts.Get(r.Context(), username)
	if err != nil {
		if xerrors.Kind(err) == xerrors.CodeInternal {
			h.logger.Error("load balance for websocket", zap.String("username", username), zap.Error(err))
		}
		return
	}
	h.notifier.NotifyBalance(username, acc.Balance)
}
