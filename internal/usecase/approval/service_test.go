package approval

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository/memory"
	"ledger-service/internal/usecase/common"
	xerrors "ledger-service/shared/utils/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup(t *testing.T, policy Policy) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	_, err := store.Accounts().Create(context.Background(), "alice")
	require.NoError(t, err)
	return New(store, policy, common.NewEvents(nil, "", nil, zap.NewNop()), zap.NewNop()), store
}

func fund(t *testing.T, store *memory.Store, kind domain.FundKind, username string, amount float64) int64 {
	t.Helper()
	fr := &domain.FundRequest{Kind: kind, Username: username, Currency: "USDT", Network: "TRC20", Amount: amount}
	require.NoError(t, store.FundRequests().Create(context.Background(), fr))
	return fr.ID
}

func balance(t *testing.T, store *memory.Store) float64 {
	t.Helper()
	acc, err := store.Accounts().GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	return acc.Balance
}

func fundStatus(t *testing.T, store *memory.Store, kind domain.FundKind, id int64) domain.Status {
	t.Helper()
	fr, err := store.FundRequests().GetForUpdate(context.Background(), kind, id)
	require.NoError(t, err)
	return fr.Status
}

func TestApproveDepositCreditsOnce(t *testing.T) {
	svc, store := setup(t, Policy{})
	ctx := context.Background()
	id := fund(t, store, domain.RecordDeposit, "alice", 200)

	tr, err := svc.SetStatus(ctx, "deposit", id, "approved")
	require.NoError(t, err)
	assert.True(t, tr.Found)
	assert.True(t, tr.Changed)
	assert.Equal(t, domain.StatusPending, tr.From)
	require.NotNil(t, tr.Balance)
	assert.Equal(t, float64(200), *tr.Balance)
	assert.Equal(t, float64(200), balance(t, store))

	tr, err = svc.SetStatus(ctx, "deposit", id, "approved")
	require.NoError(t, err)
	assert.False(t, tr.Changed)
	assert.Nil(t, tr.Balance)
	assert.Equal(t, float64(200), balance(t, store), "re-approval must not credit again")
}

func TestConcurrentApprovalsCreditOnce(t *testing.T) {
	svc, store := setup(t, Policy{})
	ctx := context.Background()
	id := fund(t, store, domain.RecordDeposit, "alice", 75)

	var changed int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr, err := svc.SetStatus(ctx, "deposit", id, "approved")
			if assert.NoError(t, err) && tr.Changed {
				atomic.AddInt32(&changed, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), changed)
	assert.Equal(t, float64(75), balance(t, store))
}

func TestRejectDepositLeavesBalance(t *testing.T) {
	svc, store := setup(t, Policy{})
	ctx := context.Background()
	id := fund(t, store, domain.RecordDeposit, "alice", 50)

	tr, err := svc.SetStatus(ctx, "deposit", id, "rejected")
	require.NoError(t, err)
	assert.True(t, tr.Changed)
	assert.Zero(t, balance(t, store))

	_, err = svc.SetStatus(ctx, "deposit", id, "approved")
	assert.ErrorIs(t, err, xerrors.ErrAlreadyFinalized)
	assert.Zero(t, balance(t, store))
	assert.Equal(t, domain.StatusRejected, fundStatus(t, store, domain.RecordDeposit, id))
}

func TestPassThroughStatusStaysOpen(t *testing.T) {
	svc, store := setup(t, Policy{})
	ctx := context.Background()
	id := fund(t, store, domain.RecordDeposit, "alice", 30)

	tr, err := svc.SetStatus(ctx, "deposit", id, "processing")
	require.NoError(t, err)
	assert.True(t, tr.Changed)
	assert.Zero(t, balance(t, store))
	assert.Equal(t, domain.Status("processing"), fundStatus(t, store, domain.RecordDeposit, id))

	tr, err = svc.SetStatus(ctx, "deposit", id, "approved")
	require.NoError(t, err)
	assert.Equal(t, domain.Status("processing"), tr.From)
	assert.Equal(t, float64(30), balance(t, store))
}

func TestUnknownRecordIsLenient(t *testing.T) {
	svc, store := setup(t, Policy{})
	ctx := context.Background()

	tr, err := svc.SetStatus(ctx, "deposit", 999, "approved")
	require.NoError(t, err)
	assert.False(t, tr.Found)
	assert.False(t, tr.Changed)

	// a withdrawal id is not a deposit id
	wid := fund(t, store, domain.RecordWithdrawal, "alice", 10)
	tr, err = svc.SetStatus(ctx, "deposit", wid, "approved")
	require.NoError(t, err)
	assert.False(t, tr.Found)
	assert.Zero(t, balance(t, store))
}

func TestInvalidArguments(t *testing.T) {
	svc, _ := setup(t, Policy{})
	ctx := context.Background()

	_, err := svc.SetStatus(ctx, "trade", 1, "approved")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = svc.SetStatus(ctx, "deposit", 1, "  ")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestWithdrawalApprovalFollowsPolicy(t *testing.T) {
	t.Run("status only by default", func(t *testing.T) {
		svc, store := setup(t, Policy{})
		id := fund(t, store, domain.RecordWithdrawal, "alice", 40)

		tr, err := svc.SetStatus(context.Background(), "withdrawal", id, "approved")
		require.NoError(t, err)
		assert.True(t, tr.Changed)
		assert.Nil(t, tr.Balance)
		assert.Zero(t, balance(t, store))
	})

	t.Run("debit when enabled", func(t *testing.T) {
		svc, store := setup(t, Policy{WithdrawalDebitOnApprove: true})
		ctx := context.Background()
		id := fund(t, store, domain.RecordWithdrawal, "alice", 40)

		tr, err := svc.SetStatus(ctx, "withdrawal", id, "approved")
		require.NoError(t, err)
		require.NotNil(t, tr.Balance)
		assert.Equal(t, float64(-40), balance(t, store))

		_, err = svc.SetStatus(ctx, "withdrawal", id, "approved")
		require.NoError(t, err)
		assert.Equal(t, float64(-40), balance(t, store))
	})
}

func TestVerificationHasNoBalanceEffect(t *testing.T) {
	svc, store := setup(t, Policy{WithdrawalDebitOnApprove: true})
	ctx := context.Background()

	v := &domain.Verification{Kind: domain.VerificationPrimary, Username: "alice"}
	require.NoError(t, store.Verifications().Create(ctx, v))

	tr, err := svc.SetStatus(ctx, "verification", v.ID, "approved")
	require.NoError(t, err)
	assert.True(t, tr.Changed)
	assert.Nil(t, tr.Balance)
	assert.Zero(t, balance(t, store))

	latest, err := store.Verifications().Latest(ctx, "alice", domain.VerificationPrimary)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, latest.Status)
}

func TestFailedCreditKeepsRecordPending(t *testing.T) {
	svc, store := setup(t, Policy{})
	ctx := context.Background()
	id := fund(t, store, domain.RecordDeposit, "ghost", 10)

	_, err := svc.SetStatus(ctx, "deposit", id, "approved")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	assert.Equal(t, domain.StatusPending, fundStatus(t, store, domain.RecordDeposit, id), "status change must roll back with the failed credit")
}
