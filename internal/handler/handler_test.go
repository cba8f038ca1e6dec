package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ledger-service/internal/domain"
	"ledger-service/internal/handler"
	"ledger-service/internal/notifier"
	"ledger-service/internal/pub"
	"ledger-service/internal/repository"
	"ledger-service/internal/repository/memory"
	"ledger-service/internal/router"
	"ledger-service/internal/storage"
	"ledger-service/internal/usecase/account"
	"ledger-service/internal/usecase/approval"
	"ledger-service/internal/usecase/common"
	"ledger-service/internal/usecase/report"
	"ledger-service/internal/usecase/request"
	"ledger-service/internal/usecase/settlement"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testEnv struct {
	mux       http.Handler
	uploadDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := memory.New()
	hub := notifier.New(logger)
	events := common.NewEvents(pub.NopPublisher{}, "nop", hub, logger)
	dir := t.TempDir()

	h := handler.New(handler.Deps{
		Accounts:       account.New(store, events, logger),
		Settlement:     settlement.New(store, repository.NewMemorySideStore(domain.DefaultFavoredSide), events, logger),
		Requests:       request.New(store, events, logger),
		Approvals:      approval.New(store, approval.Policy{}, events, logger),
		Reports:        report.New(store),
		Uploads:        storage.NewUploads(dir, "/api/v1/uploads"),
		Notifier:       hub,
		MaxUploadBytes: 1 << 20,
		Logger:         logger,
	})
	return &testEnv{
		mux:       router.New(h, router.Options{}),
		uploadDir: dir,
	}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body interface{}) (int, envelope) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Username", user)
	}
	return e.serve(t, req)
}

func (e *testEnv) serve(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func (e *testEnv) createAccount(t *testing.T, username string) {
	t.Helper()
	code, _ := e.do(t, http.MethodPost, "/api/v1/accounts", "", map[string]string{"username": username})
	require.Equal(t, http.StatusCreated, code)
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func TestCreateAccount(t *testing.T) {
	e := newTestEnv(t)

	code, env := e.do(t, http.MethodPost, "/api/v1/accounts", "", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusCreated, code)
	var acc domain.Account
	decodeData(t, env, &acc)
	assert.Equal(t, "alice", acc.Username)
	assert.Zero(t, acc.Balance)

	code, env = e.do(t, http.MethodPost, "/api/v1/accounts", "", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "duplicate_account", env.Code)
}

func TestIdentityHeaderRequired(t *testing.T) {
	e := newTestEnv(t)

	code, env := e.do(t, http.MethodGet, "/api/v1/accounts/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "error", env.Status)
}

func TestSettleTradeFollowsFavoredSide(t *testing.T) {
	e := newTestEnv(t)
	e.createAccount(t, "alice")

	code, _ := e.do(t, http.MethodPost, "/admin/favored-side", "", map[string]string{"side": "long"})
	require.Equal(t, http.StatusOK, code)

	code, env := e.do(t, http.MethodPost, "/api/v1/trades", "alice",
		map[string]interface{}{"symbol": "BTCUSDT", "side": "long", "amount": "100", "percent": "10"})
	require.Equal(t, http.StatusCreated, code)
	var win domain.Settlement
	decodeData(t, env, &win)
	assert.Equal(t, domain.TradeWin, win.Result)
	assert.InDelta(t, 10.0, win.Profit, 1e-9)
	assert.InDelta(t, 10.0, win.Balance, 1e-9)

	// numeric amounts are accepted too
	code, env = e.do(t, http.MethodPost, "/api/v1/trades", "alice",
		map[string]interface{}{"symbol": "BTCUSDT", "side": "short", "amount": 50, "percent": 80})
	require.Equal(t, http.StatusCreated, code)
	var loss domain.Settlement
	decodeData(t, env, &loss)
	assert.Equal(t, domain.TradeLose, loss.Result)
	assert.InDelta(t, -40.0, loss.Balance, 1e-9)

	code, env = e.do(t, http.MethodGet, "/api/v1/trades", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Count int `json:"count"`
	}
	decodeData(t, env, &list)
	assert.Equal(t, 2, list.Count)
}

func TestSettleTradeRejectsBadInput(t *testing.T) {
	e := newTestEnv(t)
	e.createAccount(t, "alice")

	code, env := e.do(t, http.MethodPost, "/api/v1/trades", "alice",
		map[string]interface{}{"side": "long", "amount": "abc"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_amount", env.Code)

	code, env = e.do(t, http.MethodPost, "/api/v1/trades", "alice",
		map[string]interface{}{"side": "sideways", "amount": "10"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_side", env.Code)

	code, env = e.do(t, http.MethodPost, "/admin/favored-side", "", map[string]string{"side": "up"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_side", env.Code)
}

func TestDepositApprovalIsCreditedOnce(t *testing.T) {
	e := newTestEnv(t)
	e.createAccount(t, "bob")

	code, env := e.do(t, http.MethodPost, "/api/v1/deposits", "bob",
		map[string]string{"currency": "usdt", "network": "TRC20", "amount": "25"})
	require.Equal(t, http.StatusCreated, code)
	var sub domain.Submission
	decodeData(t, env, &sub)
	assert.Equal(t, domain.StatusPending, sub.Status)

	path := fmt.Sprintf("/admin/deposit/%d/status", sub.ID)
	code, env = e.do(t, http.MethodPost, path, "", map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, code)
	var tr domain.Transition
	decodeData(t, env, &tr)
	assert.True(t, tr.Found)
	assert.True(t, tr.Changed)
	require.NotNil(t, tr.Balance)
	assert.InDelta(t, 25.0, *tr.Balance, 1e-9)

	code, env = e.do(t, http.MethodPost, path, "", map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, code)
	tr = domain.Transition{}
	decodeData(t, env, &tr)
	assert.False(t, tr.Changed)

	code, env = e.do(t, http.MethodPost, path, "", map[string]string{"status": "rejected"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_finalized", env.Code)

	code, env = e.do(t, http.MethodGet, "/api/v1/accounts/me", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	var acc domain.Account
	decodeData(t, env, &acc)
	assert.InDelta(t, 25.0, acc.Balance, 1e-9)
}

func TestSetStatusUnknownRecord(t *testing.T) {
	e := newTestEnv(t)

	code, env := e.do(t, http.MethodPost, "/admin/withdrawal/999/status", "", map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, code)
	var tr domain.Transition
	decodeData(t, env, &tr)
	assert.False(t, tr.Found)

	code, _ = e.do(t, http.MethodPost, "/admin/payout/1/status", "", map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, http.MethodPost, "/admin/deposit/abc/status", "", map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func multipartRequest(t *testing.T, path, user string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, name := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("image-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Username", user)
	return req
}

func TestMultipartDepositStoresProof(t *testing.T) {
	e := newTestEnv(t)
	e.createAccount(t, "carol")

	req := multipartRequest(t, "/api/v1/deposits", "carol",
		map[string]string{"currency": "USDT", "network": "ERC20", "amount": "12.5"},
		map[string]string{"proof": "receipt.png"})
	code, _ := e.serve(t, req)
	require.Equal(t, http.StatusCreated, code)

	code, env := e.do(t, http.MethodGet, "/admin/requests?kind=deposit&username=carol", "", nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Requests []domain.FundRequest `json:"requests"`
	}
	decodeData(t, env, &list)
	require.Len(t, list.Requests, 1)
	require.NotNil(t, list.Requests[0].ProofURL)
	proofURL := *list.Requests[0].ProofURL
	assert.True(t, strings.HasPrefix(proofURL, "/api/v1/uploads/carol/deposit_"))

	entries, err := os.ReadDir(filepath.Join(e.uploadDir, "carol"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	fetch := func(path, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if user != "" {
			req.Header.Set("X-Username", user)
		}
		rec := httptest.NewRecorder()
		e.mux.ServeHTTP(rec, req)
		return rec
	}

	rec := fetch(proofURL, "carol")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image-bytes", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, fetch(proofURL, "").Code)
	assert.Equal(t, http.StatusNotFound, fetch(proofURL, "mallory").Code)

	adminURL := strings.Replace(proofURL, "/api/v1/uploads/", "/admin/uploads/", 1)
	assert.Equal(t, http.StatusOK, fetch(adminURL, "").Code)
}

func TestMultipartDepositRejectedBeforeStoringProof(t *testing.T) {
	e := newTestEnv(t)
	e.createAccount(t, "carol")

	for _, tc := range []struct {
		name   string
		fields map[string]string
		file   string
	}{
		{"bad amount", map[string]string{"currency": "USDT", "network": "ERC20", "amount": "abc"}, "receipt.png"},
		{"missing network", map[string]string{"currency": "USDT", "amount": "5"}, "receipt.png"},
		{"unsupported proof", map[string]string{"currency": "USDT", "network": "ERC20", "amount": "5"}, "receipt.exe"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := multipartRequest(t, "/api/v1/deposits", "carol", tc.fields, map[string]string{"proof": tc.file})
			code, _ := e.serve(t, req)
			assert.Equal(t, http.StatusBadRequest, code)
		})
	}

	_, err := os.Stat(filepath.Join(e.uploadDir, "carol"))
	assert.True(t, os.IsNotExist(err))

	code, env := e.do(t, http.MethodGet, "/admin/requests?username=carol", "", nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Count int `json:"count"`
	}
	decodeData(t, env, &list)
	assert.Zero(t, list.Count)
}

func TestHealthReportsFailingDependency(t *testing.T) {
	h := handler.New(handler.Deps{
		Checks: map[string]func(context.Context) error{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		},
		Logger: zaptest.NewLogger(t),
	})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
	assert.NotContains(t, rec.Body.String(), "postgres")

	h = handler.New(handler.Deps{Logger: zaptest.NewLogger(t)})
	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdvancedVerification(t *testing.T) {
	e := newTestEnv(t)
	e.createAccount(t, "dave")

	req := multipartRequest(t, "/api/v1/verifications/advanced", "dave", nil,
		map[string]string{"front": "f.jpg", "back": "b.jpg"})
	code, env := e.serve(t, req)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", env.Code)

	req = multipartRequest(t, "/api/v1/verifications/advanced", "dave", nil,
		map[string]string{"front": "f.jpg", "back": "b.jpg", "selfie": "s.exe"})
	code, _ = e.serve(t, req)
	assert.Equal(t, http.StatusBadRequest, code)

	_, err := os.Stat(filepath.Join(e.uploadDir, "dave"))
	assert.True(t, os.IsNotExist(err), "rejected submissions must not leave files behind")

	req = multipartRequest(t, "/api/v1/verifications/advanced", "dave", nil,
		map[string]string{"front": "f.jpg", "back": "b.jpg", "selfie": "s.jpg"})
	code, _ = e.serve(t, req)
	require.Equal(t, http.StatusCreated, code)

	code, env = e.do(t, http.MethodGet, "/api/v1/verifications/status", "dave", nil)
	require.Equal(t, http.StatusOK, code)
	var st domain.VerificationStatus
	decodeData(t, env, &st)
	assert.Nil(t, st.Primary)
	require.NotNil(t, st.Advanced)
	assert.Equal(t, domain.StatusPending, *st.Advanced)
}

func TestSummaryRejectsBadDates(t *testing.T) {
	e := newTestEnv(t)

	code, _ := e.do(t, http.MethodGet, "/admin/reports/summary?from=yesterday", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, http.MethodGet, "/admin/reports/summary?from=2024-02-01&to=2024-01-01", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := e.do(t, http.MethodGet, "/admin/reports/summary?from=2024-01-01&to=2024-02-01", "", nil)
	require.Equal(t, http.StatusOK, code)
	var sum domain.Summary
	decodeData(t, env, &sum)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), sum.From.UTC())
}

func TestBalanceWebsocketPushesUpdates(t *testing.T) {
	e := newTestEnv(t)
	e.createAccount(t, "erin")
	srv := httptest.NewServer(e.mux)
	t.Cleanup(srv.Close)

	header := http.Header{}
	header.Set("X-Username", "erin")
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/ws/balance", header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var msg notifier.WSMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "balance_update", msg.Type)

	code, _ := e.do(t, http.MethodPost, "/admin/accounts/erin/adjust", "", map[string]string{"delta": "7"})
	require.Equal(t, http.StatusOK, code)

	require.NoError(t, conn.ReadJSON(&msg))
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 7.0, data["balance"], 1e-9)
}

func TestAdminListings(t *testing.T) {
	e := newTestEnv(t)
	e.createAccount(t, "frank")
	e.createAccount(t, "gina")

	code, _ := e.do(t, http.MethodPost, "/api/v1/verifications/primary", "gina",
		map[string]string{"full_name": "Gina Doe", "document_type": "passport", "document_number": "X123"})
	require.Equal(t, http.StatusCreated, code)

	code, env := e.do(t, http.MethodGet, "/admin/accounts?limit=1", "", nil)
	require.Equal(t, http.StatusOK, code)
	var accounts struct {
		Accounts []domain.Account `json:"accounts"`
		Count    int              `json:"count"`
	}
	decodeData(t, env, &accounts)
	assert.Equal(t, 1, accounts.Count)

	code, env = e.do(t, http.MethodGet, "/admin/verifications?kind=primary&status=pending", "", nil)
	require.Equal(t, http.StatusOK, code)
	var vers struct {
		Verifications []domain.Verification `json:"verifications"`
	}
	decodeData(t, env, &vers)
	require.Len(t, vers.Verifications, 1)
	assert.Equal(t, "gina", vers.Verifications[0].Username)

	code, _ = e.do(t, http.MethodGet, "/admin/verifications?kind=biometric", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, http.MethodGet, "/admin/requests?kind=verification", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
