package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vocalog/backend/pkg/queue"
)

// NudgeSource yields transcription nudge jobs. Optional; the periodic poll
// works without one.
type NudgeSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
}

// Scheduler drives idle recordings through the pipeline on a fixed interval.
// Cycles run in a single cooperative loop: recordings are processed strictly
// one at a time, so the vendor endpoint and scratch disk are never hit
// concurrently by this process. A Redis nudge only starts a cycle early.
type Scheduler struct {
	pipe     *Pipeline
	recs     RecordingStore
	nudges   NudgeSource
	interval time.Duration
	logger   *zap.Logger
}

// NewScheduler creates a Scheduler. nudges may be nil.
func NewScheduler(pipe *Pipeline, recs RecordingStore, nudges NudgeSource, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{pipe: pipe, recs: recs, nudges: nudges, interval: interval, logger: logger}
}

// Run loops until ctx is done, running one cycle immediately and then on
// every tick or nudge.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	nudge := make(chan struct{}, 1)
	if s.nudges != nil {
		go s.watchNudges(ctx, nudge)
	}

	s.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		case <-nudge:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle queries all READY recordings and processes them sequentially. A
// failing recording does not stop the rest of the queue; its failure is
// recorded in its own status (or left READY for retry) and logged.
func (s *Scheduler) RunCycle(ctx context.Context) {
	recs, err := s.recs.ListReady(ctx)
	if err != nil {
		s.logger.Error("list ready recordings failed", zap.Error(err))
		return
	}
	if len(recs) == 0 {
		return
	}
	s.logger.Info("ingestion cycle started", zap.Int("ready", len(recs)))
	for _, rec := range recs {
		if ctx.Err() != nil {
			return
		}
		if err := s.pipe.Run(ctx, rec); err != nil {
			var pe *Error
			if errors.As(err, &pe) {
				s.logger.Error("pipeline run failed",
					zap.String("recording_id", rec.ID.String()),
					zap.String("kind", pe.Kind.String()),
					zap.Error(pe.Err),
				)
			} else {
				s.logger.Error("pipeline run failed", zap.String("recording_id", rec.ID.String()), zap.Error(err))
			}
		}
	}
}

// watchNudges forwards queued nudges into the scheduler loop, coalescing
// bursts into a single pending wake-up.
func (s *Scheduler) watchNudges(ctx context.Context, nudge chan<- struct{}) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := s.nudges.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("dequeue nudge failed", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}
		select {
		case nudge <- struct{}{}:
		default:
		}
	}
}
