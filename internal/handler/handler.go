package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"ledger-service/internal/notifier"
	"ledger-service/internal/storage"
	"ledger-service/internal/usecase/account"
	"ledger-service/internal/usecase/approval"
	"ledger-service/internal/usecase/report"
	"ledger-service/internal/usecase/request"
	"ledger-service/internal/usecase/settlement"
	"ledger-service/shared/auth/middleware"
	"ledger-service/shared/response"
	xerrors "ledger-service/shared/utils/errors"

	"go.uber.org/zap"
)

type Handler struct {
	accounts   *account.Service
	settlement *settlement.Service
	requests   *request.Service
	approvals  *approval.Service
	reports    *report.Service
	uploads    *storage.Uploads
	notifier   *notifier.Notifier
	maxUpload  int64
	checks     map[string]func(context.Context) error
	logger     *zap.Logger
}

type Deps struct {
	Accounts       *account.Service
	Settlement     *settlement.Service
	Requests       *request.Service
	Approvals      *approval.Service
	Reports        *report.Service
	Uploads        *storage.Uploads
	Notifier       *notifier.Notifier
	MaxUploadBytes int64
	Checks         map[string]func(context.Context) error // dependency pings for /health
	Logger         *zap.Logger
}

func New(d Deps) *Handler {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 10 << 20
	}
	return &Handler{
		accounts:   d.Accounts,
		settlement: d.Settlement,
		requests:   d.Requests,
		approvals:  d.Approvals,
		reports:    d.Reports,
		uploads:    d.Uploads,
		notifier:   d.Notifier,
		maxUpload:  d.MaxUploadBytes,
		checks:     d.Checks,
		logger:     d.Logger,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var failed []string
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		response.Error(w, http.StatusServiceUnavailable, "unavailable", "unhealthy: "+strings.Join(failed, ", "))
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"service": "ledger"})
}

// ============================================================================
// HELPERS
// ============================================================================

// flexString accepts both JSON strings and numbers so amount validation stays in the usecase.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	*f = flexString(s)
	return nil
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", xerrors.ErrInvalidInput)
	}
	return nil
}

func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	username, ok := middleware.GetUsername(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, xerrors.CodeValidation, "missing identity")
		return "", false
	}
	return username, true
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if xerrors.Kind(err) == xerrors.CodeInternal {
		h.logger.Error(op+" failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	response.FromError(w, err)
}
