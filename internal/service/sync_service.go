package service

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/refina-analytics/internal/adapter"
	"github.com/refina-analytics/internal/analytics"
	apperrors "github.com/refina-analytics/internal/errors"
	"github.com/refina-analytics/internal/logging"
	"github.com/refina-analytics/internal/models"
	"github.com/refina-analytics/internal/storage"
	"github.com/refina-analytics/internal/types"
)

// Sources bundles the three upstream record streams a sync run reads
type Sources struct {
	Wallets      adapter.WalletSource
	Transactions adapter.TransactionSource
	Investments  adapter.InvestmentSource
}

// SyncRunRecorder stores the audit trail of sync runs
type SyncRunRecorder interface {
	Create(ctx context.Context, run *models.SyncRun) error
	Finish(ctx context.Context, run *models.SyncRun) error
}

// CacheInvalidator drops cached read-side results after new projections land
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID string) (int, error)
	InvalidateAll(ctx context.Context) (int, error)
}

// SyncRequest selects what a sync run materializes. An empty UserID syncs
// every user known upstream.
type SyncRequest struct {
	UserID string `json:"userID,omitempty"`
}

// SyncResult reports what a sync run fetched and wrote
type SyncResult struct {
	RunID               uuid.UUID     `json:"runId"`
	UserID              string        `json:"userId,omitempty"`
	Wallets             int           `json:"wallets"`
	Transactions        int           `json:"transactions"`
	Investments         int           `json:"investments"`
	DroppedTransactions int           `json:"droppedTransactions"`
	CategoryDaily       int           `json:"categoryDaily"`
	Balances            int           `json:"balances"`
	Summaries           int           `json:"summaries"`
	Compositions        int           `json:"compositions"`
	Duration            time.Duration `json:"duration"`
}

// SyncService fetches a snapshot of the ledger, derives the four projections
// from it and persists each one with a single bulk upsert.
//
// Stages run in a fixed order: category aggregates, balances, summaries,
// compositions. The first persistence failure aborts the run; stages already
// written stay written and are replaced by the next successful run.
type SyncService struct {
	sources Sources
	store   storage.AnalyticsStore
	engine  *analytics.Engine
	runs    SyncRunRecorder
	cache   CacheInvalidator
	now     func() time.Time
}

// NewSyncService creates a new sync service. runs and cache may be nil.
func NewSyncService(
	sources Sources,
	store storage.AnalyticsStore,
	engine *analytics.Engine,
	runs SyncRunRecorder,
	cache CacheInvalidator,
) *SyncService {
	return &SyncService{
		sources: sources,
		store:   store,
		engine:  engine,
		runs:    runs,
		cache:   cache,
		now:     time.Now,
	}
}

// Run executes one sync run
func (s *SyncService) Run(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	started := s.now()
	result := &SyncResult{RunID: uuid.New(), UserID: req.UserID}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"run_id":  result.RunID.String(),
		"user_id": req.UserID,
	})
	ctx = logging.WithLogger(ctx, logger)

	run := &models.SyncRun{
		ID:        result.RunID,
		Status:    types.SyncStatusRunning,
		StartedAt: started.UTC(),
	}
	if req.UserID != "" {
		run.UserID = &req.UserID
	}
	s.recordStart(ctx, run)

	logger.Info("sync run started")
	err := s.execute(ctx, req, result)
	result.Duration = s.now().Sub(started)
	s.recordFinish(ctx, run, result, err)

	if err != nil {
		logger.WithError(err).Error("sync run failed")
		return nil, err
	}

	s.invalidateCache(ctx, req.UserID)

	logger.WithFields(map[string]interface{}{
		"category_daily": result.CategoryDaily,
		"balances":       result.Balances,
		"summaries":      result.Summaries,
		"compositions":   result.Compositions,
		"duration_ms":    result.Duration.Milliseconds(),
	}).Info("sync run completed")

	return result, nil
}

func (s *SyncService) execute(ctx context.Context, req SyncRequest, result *SyncResult) error {
	logger := logging.FromContext(ctx)

	snapshot, err := s.fetch(ctx, req.UserID)
	if err != nil {
		return err
	}

	result.Wallets = len(snapshot.Wallets)
	result.Transactions = len(snapshot.Transactions)
	result.Investments = len(snapshot.Investments)
	result.DroppedTransactions = snapshot.UnresolvedTransactions()

	logger.WithFields(map[string]interface{}{
		"wallets":      result.Wallets,
		"transactions": result.Transactions,
		"investments":  result.Investments,
	}).Info("fetched snapshot")
	if result.DroppedTransactions > 0 {
		logger.WithField("dropped", result.DroppedTransactions).Debug("transactions reference unknown wallets")
	}

	aggregates := s.engine.CategoryDaily(snapshot)
	if err := s.persist(ctx, types.ProjectionCategoryDaily, len(aggregates), func() error {
		return s.store.UpsertCategoryDaily(ctx, aggregates)
	}); err != nil {
		return err
	}
	result.CategoryDaily = len(aggregates)

	balances := s.engine.Balances(snapshot)
	if err := s.persist(ctx, types.ProjectionBalance, len(balances), func() error {
		return s.store.UpsertBalances(ctx, balances)
	}); err != nil {
		return err
	}
	result.Balances = len(balances)

	summaries := s.engine.Summaries(snapshot)
	if err := s.persist(ctx, types.ProjectionSummary, len(summaries), func() error {
		return s.store.UpsertSummaries(ctx, summaries)
	}); err != nil {
		return err
	}
	result.Summaries = len(summaries)

	compositions := s.engine.Compositions(snapshot)
	if err := s.persist(ctx, types.ProjectionComposition, len(compositions), func() error {
		return s.store.UpsertCompositions(ctx, compositions)
	}); err != nil {
		return err
	}
	result.Compositions = len(compositions)

	return nil
}

// fetch drains the upstream streams into one immutable snapshot. For a
// single user the transaction stream is narrowed to that user's wallets.
func (s *SyncService) fetch(ctx context.Context, userID string) (*models.Snapshot, error) {
	snapshot := &models.Snapshot{}

	if userID == "" {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return collect(&snapshot.Wallets, "wallets", s.sources.Wallets.Wallets(gctx))
		})
		g.Go(func() error {
			return collect(&snapshot.Transactions, "transactions", s.sources.Transactions.Transactions(gctx))
		})
		g.Go(func() error {
			return collect(&snapshot.Investments, "investments", s.sources.Investments.Investments(gctx))
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return snapshot, nil
	}

	if err := collect(&snapshot.Wallets, "wallets", s.sources.Wallets.UserWallets(ctx, userID)); err != nil {
		return nil, err
	}
	walletIDs := make([]string, 0, len(snapshot.Wallets))
	for _, w := range snapshot.Wallets {
		walletIDs = append(walletIDs, w.ID)
	}

	g, gctx := errgroup.WithContext(ctx)
	if len(walletIDs) > 0 {
		g.Go(func() error {
			return collect(&snapshot.Transactions, "transactions", s.sources.Transactions.WalletTransactions(gctx, walletIDs))
		})
	}
	g.Go(func() error {
		return collect(&snapshot.Investments, "investments", s.sources.Investments.UserInvestments(gctx, userID))
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return snapshot.ScopeToUser(userID), nil
}

func (s *SyncService) persist(ctx context.Context, projection types.Projection, count int, write func() error) error {
	logger := logging.FromContext(ctx).WithField("projection", string(projection))
	if count == 0 {
		logger.Debug("nothing to persist")
		return nil
	}

	if err := write(); err != nil {
		return apperrors.NewPersistenceError(projection, err)
	}

	logger.WithField("documents", count).Info("persisted projection")
	return nil
}

func (s *SyncService) recordStart(ctx context.Context, run *models.SyncRun) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Create(ctx, run); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("failed to record sync run start")
	}
}

func (s *SyncService) recordFinish(ctx context.Context, run *models.SyncRun, result *SyncResult, runErr error) {
	if s.runs == nil {
		return
	}

	finished := run.StartedAt.Add(result.Duration)
	run.FinishedAt = &finished
	run.WalletCount = result.Wallets
	run.TransactionCount = result.Transactions
	run.InvestmentCount = result.Investments
	run.CategoryDailyCount = result.CategoryDaily
	run.BalanceCount = result.Balances
	run.SummaryCount = result.Summaries
	run.CompositionCount = result.Compositions
	run.Status = types.SyncStatusCompleted
	if runErr != nil {
		run.Status = types.SyncStatusFailed
		msg := runErr.Error()
		run.Error = &msg
	}

	// the run's own context may already be cancelled
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.runs.Finish(finishCtx, run); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("failed to record sync run result")
	}
}

func (s *SyncService) invalidateCache(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}

	var (
		n   int
		err error
	)
	if userID != "" {
		n, err = s.cache.InvalidateUser(ctx, userID)
	} else {
		n, err = s.cache.InvalidateAll(ctx)
	}
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("failed to invalidate query cache")
		return
	}
	logging.FromContext(ctx).WithField("keys", n).Debug("invalidated query cache")
}

// collect drains seq into dst, wrapping a stream failure as a provider error
func collect[T any](dst *[]T, source string, seq iter.Seq2[T, error]) error {
	items, err := adapter.Collect(seq)
	if err != nil {
		return apperrors.NewProviderError(source, fmt.Errorf("stream aborted: %w", err))
	}
	*dst = items
	return nil
}
