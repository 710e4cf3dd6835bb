// Package worker runs scheduled background sync jobs.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/refina-analytics/internal/logging"
	"github.com/refina-analytics/internal/service"
)

// Runner runs one sync pass
type Runner interface {
	Run(ctx context.Context, req service.SyncRequest) (*service.SyncResult, error)
}

// SyncWorker re-materializes every user's projections on a fixed interval
type SyncWorker struct {
	runner   Runner
	interval time.Duration
	timeout  time.Duration

	mu          sync.RWMutex
	running     bool
	lastRunTime time.Time
	lastResult  *service.SyncResult
	lastError   string
	runs        int
	failures    int

	stopCh chan struct{}
	doneCh chan struct{}
}

// SyncWorkerConfig holds configuration for a sync worker
type SyncWorkerConfig struct {
	Runner   Runner
	Interval time.Duration
	// Timeout bounds one run; defaults to 10 minutes
	Timeout time.Duration
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(cfg *SyncWorkerConfig) (*SyncWorker, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("sync runner cannot be nil")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive, got %v", cfg.Interval)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	return &SyncWorker{
		runner:   cfg.Runner,
		interval: cfg.Interval,
		timeout:  timeout,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins the schedule. The first run happens one interval after Start.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker is already running")
	}
	w.running = true
	w.mu.Unlock()

	logging.FromContext(ctx).WithField("interval", w.interval.String()).Info("Starting sync worker")

	go w.loop(ctx)

	return nil
}

// Stop signals the schedule to end and waits for an in-flight run to finish
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker is not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		logging.FromContext(ctx).Info("Sync worker stopped gracefully")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sync worker stop timed out: %w", ctx.Err())
	}
}

func (w *SyncWorker) loop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			// Failures are recorded in the status; the schedule keeps going
			_ = w.RunOnce(ctx)
		}
	}
}

// RunOnce performs one full sync now and records its outcome
func (w *SyncWorker) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	started := time.Now()
	result, err := w.runner.Run(ctx, service.SyncRequest{})

	w.mu.Lock()
	w.lastRunTime = started
	w.runs++
	if err != nil {
		w.failures++
		w.lastError = err.Error()
	} else {
		w.lastError = ""
		w.lastResult = result
	}
	w.mu.Unlock()

	if err != nil {
		logging.FromContext(ctx).WithError(err).Error("Scheduled sync failed")
		return err
	}
	return nil
}

// SyncWorkerStatus is a point-in-time view of the worker
type SyncWorkerStatus struct {
	Running         bool                `json:"running"`
	LastRunTime     time.Time           `json:"lastRunTime"`
	LastResult      *service.SyncResult `json:"lastResult,omitempty"`
	LastError       string              `json:"lastError,omitempty"`
	Runs            int                 `json:"runs"`
	Failures        int                 `json:"failures"`
	IntervalSeconds int                 `json:"intervalSeconds"`
}

// GetStatus returns the worker status
func (w *SyncWorker) GetStatus() *SyncWorkerStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return &SyncWorkerStatus{
		Running:         w.running,
		LastRunTime:     w.lastRunTime,
		LastResult:      w.lastResult,
		LastError:       w.lastError,
		Runs:            w.runs,
		Failures:        w.failures,
		IntervalSeconds: int(w.interval.Seconds()),
	}
}
