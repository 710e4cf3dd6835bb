package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/refina-analytics/internal/models"
	"github.com/refina-analytics/internal/types"
)

// SyncRunRepository handles sync run audit records
type SyncRunRepository struct {
	db *PostgresDB
}

// NewSyncRunRepository creates a new sync run repository
func NewSyncRunRepository(db *PostgresDB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Create records the start of a sync run
func (r *SyncRunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	query := `
		INSERT INTO sync_runs (id, user_id, status, started_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.Pool().Exec(ctx, query, run.ID, run.UserID, string(run.Status), run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}

	return nil
}

// Finish stores the final status, counts and error of a sync run
func (r *SyncRunRepository) Finish(ctx context.Context, run *models.SyncRun) error {
	query := `
		UPDATE sync_runs SET
			status = $2,
			finished_at = $3,
			wallet_count = $4,
			transaction_count = $5,
			investment_count = $6,
			category_daily_count = $7,
			balance_count = $8,
			summary_count = $9,
			composition_count = $10,
			error = $11
		WHERE id = $1
	`

	tag, err := r.db.Pool().Exec(ctx, query,
		run.ID,
		string(run.Status),
		run.FinishedAt,
		run.WalletCount,
		run.TransactionCount,
		run.InvestmentCount,
		run.CategoryDailyCount,
		run.BalanceCount,
		run.SummaryCount,
		run.CompositionCount,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to finish sync run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sync run %s: %w", run.ID, ErrNotFound)
	}

	return nil
}

// Get retrieves a sync run by id
func (r *SyncRunRepository) Get(ctx context.Context, id uuid.UUID) (*models.SyncRun, error) {
	query := `
		SELECT id, user_id, status, started_at, finished_at,
			   wallet_count, transaction_count, investment_count,
			   category_daily_count, balance_count, summary_count, composition_count,
			   error
		FROM sync_runs
		WHERE id = $1
	`

	var run models.SyncRun
	var status string
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&run.ID,
		&run.UserID,
		&status,
		&run.StartedAt,
		&run.FinishedAt,
		&run.WalletCount,
		&run.TransactionCount,
		&run.InvestmentCount,
		&run.CategoryDailyCount,
		&run.BalanceCount,
		&run.SummaryCount,
		&run.CompositionCount,
		&run.Error,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}
	run.Status = types.SyncStatus(status)

	return &run, nil
}
