package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper runs one delivery reminder pass
type Sweeper interface {
	Sweep(ctx context.Context, threshold time.Duration) (int, error)
}

// ReminderJob runs the delivery reminder sweep on a fixed interval
type ReminderJob struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewReminderJob creates a new reminder job. A zero interval leaves the job
// disabled so reminders only run through the cron endpoint.
func NewReminderJob(sweeper Sweeper, interval time.Duration, log *zap.Logger) *ReminderJob {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReminderJob{
		sweeper:  sweeper,
		interval: interval,
		logger:   log,
	}
}

// Start begins the periodic sweep. It returns false when the job is
// disabled or already running.
func (j *ReminderJob) Start(ctx context.Context) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.interval <= 0 {
		j.logger.Info("Delivery reminder job disabled")
		return false
	}
	if j.isRunning {
		j.logger.Warn("Delivery reminder job already running")
		return false
	}

	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})
	j.isRunning = true

	go j.loop(ctx, j.done)

	j.logger.Info("Delivery reminder job started", zap.Duration("interval", j.interval))
	return true
}

// Stop halts the job and waits for an in-flight sweep to finish
func (j *ReminderJob) Stop() {
	j.mu.Lock()
	if !j.isRunning {
		j.mu.Unlock()
		return
	}
	j.isRunning = false
	cancel, done := j.cancel, j.done
	j.mu.Unlock()

	cancel()
	<-done
	j.logger.Info("Delivery reminder job stopped")
}

func (j *ReminderJob) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *ReminderJob) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("Delivery reminder sweep panicked", zap.Any("panic", r))
		}
	}()

	n, err := j.sweeper.Sweep(ctx, 0)
	if err != nil {
		j.logger.Error("Delivery reminder sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		j.logger.Info("Delivery reminder sweep finished", zap.Int("reminded", n))
	}
}
