package worker

import (
	"sync"
	"time"

	"github.com/iabalyuk/weatherbot/storage"
	"go.uber.org/zap"
)

const defaultSweepInterval = 10 * time.Minute

// BackgroundWorker periodically removes conversation sessions that have been idle longer than the TTL
type BackgroundWorker struct {
	storage      storage.SessionStore
	logger       *zap.Logger
	ttl          time.Duration
	interval     time.Duration
	now          func() time.Time
	stopCh       chan struct{}
	wg           sync.WaitGroup
	isRunning    bool
	runningMutex sync.Mutex
}

// NewBackgroundWorkerConfig represents the configuration for the background worker
type NewBackgroundWorkerConfig struct {
	Storage  storage.SessionStore
	Logger   *zap.Logger
	TTL      time.Duration // zero keeps sessions forever
	Interval time.Duration // how often to sweep, defaults to 10 minutes
}

// NewBackgroundWorker creates a new background worker instance
func NewBackgroundWorker(config NewBackgroundWorkerConfig) *BackgroundWorker {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	interval := config.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if config.TTL > 0 && interval > config.TTL {
		interval = config.TTL
	}

	return &BackgroundWorker{
		storage:  config.Storage,
		logger:   logger,
		ttl:      config.TTL,
		interval: interval,
		now:      time.Now,
	}
}

// Start starts the background worker. It does nothing when no TTL is configured.
func (w *BackgroundWorker) Start() {
	w.runningMutex.Lock()
	defer w.runningMutex.Unlock()

	if w.isRunning {
		return
	}
	if w.ttl <= 0 {
		w.logger.Info("Session expiry disabled, sweeper not started")
		return
	}

	w.isRunning = true
	w.stopCh = make(chan struct{})
	w.wg.Add(1)
	go w.run(w.stopCh)
}

// Stop stops the background worker and waits for the loop to exit
func (w *BackgroundWorker) Stop() {
	w.runningMutex.Lock()
	defer w.runningMutex.Unlock()

	if !w.isRunning {
		return
	}

	w.logger.Info("Stopping session sweeper...")
	close(w.stopCh)
	w.wg.Wait()
	w.isRunning = false
	w.logger.Info("Session sweeper stopped")
}

func (w *BackgroundWorker) run(stopCh <-chan struct{}) {
	defer w.wg.Done()
	w.logger.Info("Session sweeper started", zap.Duration("ttl", w.ttl), zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Sweep()
		case <-stopCh:
			return
		}
	}
}

// Sweep removes sessions not updated within the TTL and returns how many were removed
func (w *BackgroundWorker) Sweep() int {
	if w.ttl <= 0 {
		return 0
	}

	cutoff := w.now().Add(-w.ttl)
	removed, err := w.storage.DeleteSessionsBefore(cutoff)
	if err != nil {
		w.logger.Error("Failed to delete stale sessions", zap.Error(err))
		return 0
	}
	if removed > 0 {
		w.logger.Info("Removed stale sessions",
			zap.Int("removed", removed), zap.Int("remaining", w.storage.SessionCount()))
	}
	return removed
}
