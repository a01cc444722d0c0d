// Package scheduler runs the periodic phase transition sweep.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"civicbudget/internal/cache"
	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/logger"
	"civicbudget/internal/services"
)

// Scheduler triggers the phase transition sweep on a cron schedule. Runs are
// serialized through a Locker so only one replica sweeps at a time; a tick that
// finds the lock held is skipped.
type Scheduler struct {
	cron    *cron.Cron
	sweeper services.PhaseSweeper
	locker  cache.Locker
	lockKey string
	lockTTL time.Duration
	log     *zap.SugaredLogger
}

// New creates a Scheduler. lockTTL bounds how long a crashed sweep can hold the lock.
func New(sweeper services.PhaseSweeper, locker cache.Locker, lockKey string, lockTTL time.Duration) *Scheduler {
	log := logger.Named("scheduler")
	cl := cronLogger{log: log}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		sweeper: sweeper,
		locker:  locker,
		lockKey: lockKey,
		lockTTL: lockTTL,
		log:     log,
	}
}

// Start registers the sweep under schedule and starts the cron loop.
func (s *Scheduler) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Infow("phase sweep scheduled", "schedule", schedule)
	return nil
}

// Stop stops the cron loop and waits for a running sweep or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.lockTTL)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		if errors.Is(err, apperrors.ErrSweepInProgress) {
			s.log.Infow("phase sweep skipped, another run holds the lock")
			return
		}
		s.log.Errorw("phase sweep failed", "error", err)
	}
}

// RunOnce takes the sweep lock and runs one sweep. It returns
// ErrSweepInProgress when the lock is held elsewhere.
func (s *Scheduler) RunOnce(ctx context.Context) (*services.SweepResult, error) {
	lock, ok, err := s.locker.TryLock(ctx, s.lockKey, s.lockTTL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !ok {
		return nil, apperrors.ErrSweepInProgress
	}
	defer func() {
		// ctx may already be done here.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			s.log.Warnw("failed to release sweep lock", "error", err)
		}
	}()

	return s.sweeper.RunPhaseTransitionSweep(ctx)
}

// cronLogger adapts the zap logger to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
