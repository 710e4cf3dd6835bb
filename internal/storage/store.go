package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/refina-analytics/internal/logging"
	"github.com/refina-analytics/internal/models"
)

// ErrNotFound is returned when a requested projection document does not exist
var ErrNotFound = errors.New("not found")

// AnalyticsStore receives complete replacement documents for the four
// projections. Each call is one bulk idempotent upsert keyed by the
// documents' natural keys.
type AnalyticsStore interface {
	UpsertCategoryDaily(ctx context.Context, aggregates []models.CategoryDailyAggregate) error
	UpsertBalances(ctx context.Context, snapshots []models.BalanceSnapshot) error
	UpsertSummaries(ctx context.Context, summaries []models.FinancialSummary) error
	UpsertCompositions(ctx context.Context, compositions []models.NetWorthComposition) error
}

// MirroredStore writes every bulk upsert to the primary store and then to
// each mirror, in order. The first failure aborts the call.
type MirroredStore struct {
	primary AnalyticsStore
	mirrors []namedStore
}

type namedStore struct {
	name  string
	store AnalyticsStore
}

// NewMirroredStore creates a store that fans writes out from primary to mirrors
func NewMirroredStore(primary AnalyticsStore) *MirroredStore {
	return &MirroredStore{primary: primary}
}

// AddMirror registers a secondary sink
func (m *MirroredStore) AddMirror(name string, store AnalyticsStore) {
	m.mirrors = append(m.mirrors, namedStore{name: name, store: store})
}

// Mirrors returns the names of the registered mirrors
func (m *MirroredStore) Mirrors() []string {
	names := make([]string, len(m.mirrors))
	for i, mirror := range m.mirrors {
		names[i] = mirror.name
	}
	return names
}

func (m *MirroredStore) fanOut(ctx context.Context, op string, write func(AnalyticsStore) error) error {
	if err := write(m.primary); err != nil {
		return err
	}
	for _, mirror := range m.mirrors {
		if err := write(mirror.store); err != nil {
			return fmt.Errorf("mirror %s: %w", mirror.name, err)
		}
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"mirror": mirror.name,
			"op":     op,
		}).Debug("mirrored write")
	}
	return nil
}

// UpsertCategoryDaily implements AnalyticsStore
func (m *MirroredStore) UpsertCategoryDaily(ctx context.Context, aggregates []models.CategoryDailyAggregate) error {
	return m.fanOut(ctx, "category_daily", func(s AnalyticsStore) error {
		return s.UpsertCategoryDaily(ctx, aggregates)
	})
}

// UpsertBalances implements AnalyticsStore
func (m *MirroredStore) UpsertBalances(ctx context.Context, snapshots []models.BalanceSnapshot) error {
	return m.fanOut(ctx, "balances", func(s AnalyticsStore) error {
		return s.UpsertBalances(ctx, snapshots)
	})
}

// UpsertSummaries implements AnalyticsStore
func (m *MirroredStore) UpsertSummaries(ctx context.Context, summaries []models.FinancialSummary) error {
	return m.fanOut(ctx, "summaries", func(s AnalyticsStore) error {
		return s.UpsertSummaries(ctx, summaries)
	})
}

// UpsertCompositions implements AnalyticsStore
func (m *MirroredStore) UpsertCompositions(ctx context.Context, compositions []models.NetWorthComposition) error {
	return m.fanOut(ctx, "compositions", func(s AnalyticsStore) error {
		return s.UpsertCompositions(ctx, compositions)
	})
}

// ProjectionFilter narrows reads of one user's projection rows.
// Zero values mean no constraint.
type ProjectionFilter struct {
	UserID   string
	WalletID string
	From     *time.Time
	To       *time.Time
}

// whereClause accumulates Postgres conditions with positional arguments
type whereClause struct {
	conds []string
	args  []interface{}
}

// add appends a condition whose single %d placeholder becomes the argument position
func (w *whereClause) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *whereClause) String() string {
	return strings.Join(w.conds, " AND ")
}

// dateOnly keeps the calendar date of t as a UTC midnight so drivers do not
// shift it across a day boundary when converting zones
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
