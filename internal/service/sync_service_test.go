package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/refina-analytics/internal/analytics"
	apperrors "github.com/refina-analytics/internal/errors"
	"github.com/refina-analytics/internal/models"
	"github.com/refina-analytics/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func ledger() *fakeUpstream {
	return &fakeUpstream{
		wallets: []models.Wallet{
			testWallet("w1", "u1", 1000),
			testWallet("w2", "u1", 500),
			testWallet("w3", "u2", 200),
		},
		transactions: []models.Transaction{
			testTx("t1", "w1", types.CategoryIncome, 300, at(2024, 3, 1)),
			testTx("t2", "w1", types.CategoryExpense, 100, at(2024, 3, 2)),
			testTx("t3", "w3", types.CategoryExpense, 50, at(2024, 3, 2)),
			testTx("t4", "ghost", types.CategoryExpense, 10, at(2024, 3, 2)),
		},
		investments: []models.Investment{
			testInvestment("i1", "u1", 2, 150, 100),
		},
	}
}

func newTestSyncService(up *fakeUpstream, store *fakeStore, runs *fakeRunRecorder, cache *fakeInvalidator) *SyncService {
	var recorder SyncRunRecorder
	if runs != nil {
		recorder = runs
	}
	var invalidator CacheInvalidator
	if cache != nil {
		invalidator = cache
	}
	return NewSyncService(up.sources(), store, analytics.NewEngine(nil), recorder, invalidator)
}

func TestSyncService_RunAllUsers(t *testing.T) {
	up := ledger()
	store := &fakeStore{}
	runs := &fakeRunRecorder{}
	cache := &fakeInvalidator{}
	svc := newTestSyncService(up, store, runs, cache)

	result, err := svc.Run(context.Background(), SyncRequest{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Investments", "Transactions", "Wallets"}, up.called())
	assert.Equal(t, 3, result.Wallets)
	assert.Equal(t, 4, result.Transactions)
	assert.Equal(t, 1, result.Investments)
	assert.Equal(t, 1, result.DroppedTransactions)

	assert.Equal(t, []types.Projection{
		types.ProjectionCategoryDaily,
		types.ProjectionBalance,
		types.ProjectionSummary,
		types.ProjectionComposition,
	}, store.ops)
	assert.Equal(t, 3, result.CategoryDaily)
	assert.Equal(t, 3, result.Balances)
	assert.Equal(t, 2, result.Summaries)
	assert.Equal(t, 2, result.Compositions)
	assert.Len(t, store.aggregates, result.CategoryDaily)

	for _, agg := range store.aggregates {
		assert.NotEqual(t, "ghost", agg.WalletID)
	}

	require.Len(t, runs.created, 1)
	require.Len(t, runs.finished, 1)
	assert.Equal(t, result.RunID, runs.created[0].ID)
	assert.Equal(t, types.SyncStatusRunning, runs.created[0].Status)
	assert.Nil(t, runs.created[0].UserID)
	finished := runs.finished[0]
	assert.Equal(t, types.SyncStatusCompleted, finished.Status)
	assert.NotNil(t, finished.FinishedAt)
	assert.Nil(t, finished.Error)
	assert.Equal(t, 3, finished.BalanceCount)
	assert.Equal(t, 2, finished.CompositionCount)

	assert.Equal(t, 1, cache.all)
	assert.Empty(t, cache.users)
}

func TestSyncService_RunSingleUser(t *testing.T) {
	up := ledger()
	store := &fakeStore{}
	runs := &fakeRunRecorder{}
	cache := &fakeInvalidator{}
	svc := newTestSyncService(up, store, runs, cache)

	result, err := svc.Run(context.Background(), SyncRequest{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"UserInvestments", "UserWallets", "WalletTransactions"}, up.called())
	assert.Equal(t, []string{"w1", "w2"}, up.walletIDs)

	assert.Equal(t, "u1", result.UserID)
	assert.Equal(t, 2, result.Wallets)
	assert.Equal(t, 2, result.Transactions)
	assert.Zero(t, result.DroppedTransactions)
	assert.Equal(t, 2, result.CategoryDaily)
	assert.Equal(t, 2, result.Balances)
	assert.Equal(t, 1, result.Summaries)
	require.Len(t, store.compositions, 1)
	assert.Equal(t, "u1", store.compositions[0].UserID)
	assert.Equal(t, 1700.0, store.compositions[0].Total)

	for _, snap := range store.balances {
		assert.Equal(t, "u1", snap.UserID)
	}

	require.Len(t, runs.created, 1)
	require.NotNil(t, runs.created[0].UserID)
	assert.Equal(t, "u1", *runs.created[0].UserID)
	assert.Equal(t, []string{"u1"}, cache.users)
	assert.Zero(t, cache.all)
}

func TestSyncService_UserWithoutWallets(t *testing.T) {
	up := ledger()
	store := &fakeStore{}
	svc := newTestSyncService(up, store, nil, nil)

	result, err := svc.Run(context.Background(), SyncRequest{UserID: "nobody"})
	require.NoError(t, err)

	assert.Equal(t, []string{"UserInvestments", "UserWallets"}, up.called())
	assert.Empty(t, store.ops, "empty stages must not reach the store")
	assert.Zero(t, result.CategoryDaily)
	assert.Zero(t, result.Compositions)
}

func TestSyncService_EmptyLedger(t *testing.T) {
	store := &fakeStore{}
	runs := &fakeRunRecorder{}
	svc := newTestSyncService(&fakeUpstream{}, store, runs, nil)

	result, err := svc.Run(context.Background(), SyncRequest{})
	require.NoError(t, err)
	assert.Empty(t, store.ops)
	assert.Equal(t, SyncResult{RunID: result.RunID, Duration: result.Duration}, *result)
	require.Len(t, runs.finished, 1)
	assert.Equal(t, types.SyncStatusCompleted, runs.finished[0].Status)
}

func TestSyncService_StreamFailureWritesNothing(t *testing.T) {
	up := ledger()
	up.failOn = "Transactions"
	up.err = status.Error(codes.Unavailable, "connection refused")
	store := &fakeStore{}
	runs := &fakeRunRecorder{}
	cache := &fakeInvalidator{}
	svc := newTestSyncService(up, store, runs, cache)

	result, err := svc.Run(context.Background(), SyncRequest{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Empty(t, store.ops)

	var catErr *apperrors.CategorizedError
	require.True(t, errors.As(err, &catErr))
	assert.Equal(t, apperrors.CategoryProvider, catErr.Category)
	assert.Equal(t, http.StatusBadGateway, catErr.StatusCode)
	assert.Equal(t, "transactions", catErr.Details["source"])
	assert.Equal(t, codes.Unavailable, status.Code(errors.Unwrap(errors.Unwrap(err))))

	require.Len(t, runs.finished, 1)
	assert.Equal(t, types.SyncStatusFailed, runs.finished[0].Status)
	require.NotNil(t, runs.finished[0].Error)
	assert.Contains(t, *runs.finished[0].Error, "failed to fetch transactions")
	assert.Zero(t, cache.all, "a failed run keeps the cache")
}

func TestSyncService_PersistenceFailureAbortsLaterStages(t *testing.T) {
	up := ledger()
	boom := errors.New("deadlock detected")
	store := &fakeStore{failOn: types.ProjectionBalance, err: boom}
	runs := &fakeRunRecorder{}
	svc := newTestSyncService(up, store, runs, nil)

	_, err := svc.Run(context.Background(), SyncRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, []types.Projection{types.ProjectionCategoryDaily, types.ProjectionBalance}, store.ops)

	catErr := apperrors.Categorize(err)
	assert.Equal(t, apperrors.CategoryDatabase, catErr.Category)
	assert.Equal(t, "PERSISTENCE_ERROR", catErr.Code)
	assert.Equal(t, string(types.ProjectionBalance), catErr.Details["projection"])

	require.Len(t, runs.finished, 1)
	finished := runs.finished[0]
	assert.Equal(t, types.SyncStatusFailed, finished.Status)
	assert.Equal(t, 3, finished.CategoryDailyCount)
	assert.Zero(t, finished.BalanceCount)
}

func TestSyncService_AuditAndCacheFailuresAreNotFatal(t *testing.T) {
	up := ledger()
	store := &fakeStore{}
	runs := &fakeRunRecorder{createErr: errors.New("insert failed"), finishErr: errors.New("update failed")}
	cache := &fakeInvalidator{err: errors.New("redis down")}
	svc := newTestSyncService(up, store, runs, cache)

	result, err := svc.Run(context.Background(), SyncRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Compositions)
	assert.Len(t, store.ops, 4)
}

func TestSyncService_RunsAreIdempotent(t *testing.T) {
	up := ledger()
	first := &fakeStore{}
	second := &fakeStore{}

	_, err := newTestSyncService(up, first, nil, nil).Run(context.Background(), SyncRequest{})
	require.NoError(t, err)
	_, err = newTestSyncService(up, second, nil, nil).Run(context.Background(), SyncRequest{})
	require.NoError(t, err)

	assert.Equal(t, first.aggregates, second.aggregates)
	assert.Equal(t, first.balances, second.balances)
	assert.Equal(t, first.summaries, second.summaries)
	assert.Equal(t, first.compositions, second.compositions)
}
