package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ledger-service/internal/domain"
	"ledger-service/shared/response"
	xerrors "ledger-service/shared/utils/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// SetStatus moves a deposit, withdrawal or verification to a new status.
// An unknown id answers 200 with found=false.
// POST /admin/{recordType}/{id}/status
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	recordType := chi.URLParam(r, "recordType")
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, r, "set status", fmt.Errorf("%w: invalid id", xerrors.ErrInvalidInput))
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, "set status", err)
		return
	}

	tr, err := h.approvals.SetStatus(r.Context(), recordType, id, body.Status)
	if err != nil {
		h.fail(w, r, "set status", err)
		return
	}

	h.logger.Info("admin status update",
		zap.String("record_type", recordType),
		zap.Int64("id", id),
		zap.String("status", body.Status),
		zap.Bool("found", tr.Found),
		zap.Bool("changed", tr.Changed))
	response.JSON(w, http.StatusOK, tr)
}

// GET /admin/requests?kind=&status=&username=
func (h *Handler) ListFundRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.FundRequestFilter{
		Username: q.Get("username"),
		Status:   domain.Status(q.Get("status")),
		Limit:    parseIntQuery(r, "limit", 50),
		Offset:   parseIntQuery(r, "offset", 0),
	}
	if kind := q.Get("kind"); kind != "" {
		rt, ok := domain.ParseRecordType(kind)
		if !ok || rt == domain.RecordVerification {
			h.fail(w, r, "list requests", fmt.Errorf("%w: kind", xerrors.ErrInvalidInput))
			return
		}
		filter.Kind = rt
	}

	items, err := h.requests.ListFundRequests(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list requests", err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"requests": items,
		"count":    len(items),
	})
}

// GET /admin/verifications?kind=&status=&username=
func (h *Handler) ListVerifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.VerificationFilter{
		Username: q.Get("username"),
		Status:   domain.Status(q.Get("status")),
		Limit:    parseIntQuery(r, "limit", 50),
		Offset:   parseIntQuery(r, "offset", 0),
	}
	switch kind := domain.VerificationKind(q.Get("kind")); kind {
	case "":
	case domain.VerificationPrimary, domain.VerificationAdvanced:
		filter.Kind = kind
	default:
		h.fail(w, r, "list verifications", fmt.Errorf("%w: kind", xerrors.ErrInvalidInput))
		return
	}

	items, err := h.requests.ListVerifications(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list verifications", err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"verifications": items,
		"count":         len(items),
	})
}

// Summary reports daily totals. from and to are YYYY-MM-DD, to is exclusive.
// GET /admin/reports/summary?from=&to=
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	from, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		h.fail(w, r, "summary", err)
		return
	}
	to, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		h.fail(w, r, "summary", err)
		return
	}

	sum, err := h.reports.Summary(r.Context(), from, to)
	if err != nil {
		h.fail(w, r, "summary", err)
		return
	}
	response.JSON(w, http.StatusOK, sum)
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", xerrors.ErrInvalidInput)
	}
	return t, nil
}
