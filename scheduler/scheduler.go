// Package scheduler runs periodic resyncs so that missed webhooks are
// eventually covered.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/minios-linux/cmsl10n/pipeline"
	"github.com/minios-linux/cmsl10n/prsync"
)

// EventResync is the metadata event of scheduled runs.
const EventResync = "schedule.resync"

// DefaultTimeout bounds one scheduled run.
const DefaultTimeout = 10 * time.Minute

// RunFunc performs one sync.
type RunFunc func(ctx context.Context, meta prsync.Metadata) (*prsync.Result, error)

// Scheduler wraps a cron runner with a single resync job.
type Scheduler struct {
	cron    *cron.Cron
	run     RunFunc
	log     *zap.Logger
	timeout time.Duration
}

// New parses spec (standard five-field cron or a descriptor such as
// "@hourly") and registers the resync job.
func New(spec string, run RunFunc, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		run:     run,
		log:     logger.With(zap.String("schedule", spec)),
		timeout: DefaultTimeout,
	}
	if _, err := s.cron.AddFunc(spec, s.Resync); err != nil {
		return nil, fmt.Errorf("invalid resync schedule %q: %w", spec, err)
	}
	return s, nil
}

// Resync performs one scheduled run.
func (s *Scheduler) Resync() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := s.run(ctx, prsync.Metadata{Event: EventResync})
	switch {
	case errors.Is(err, pipeline.ErrNoEntries):
		s.log.Info("scheduled resync found nothing to sync")
	case err != nil:
		s.log.Error("scheduled resync failed", zap.Error(err))
	default:
		s.log.Info("scheduled resync finished", zap.String("action", string(res.Action)))
	}
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("resync scheduler started")
}

// Stop stops the schedule and waits for a running job to finish or ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
