package giveaway

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs a function at a fixed interval until the returned cancel
// function is called.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (cancel func())
	Stop(ctx context.Context)
}

type CronScheduler struct {
	cron *cron.Cron
}

func NewCronScheduler(logger *zap.Logger) *CronScheduler {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	c.Start()
	return &CronScheduler{cron: c}
}

func (s *CronScheduler) Every(interval time.Duration, fn func()) func() {
	id := s.cron.Schedule(cron.Every(interval), cron.FuncJob(fn))
	return func() {
		s.cron.Remove(id)
	}
}

// Stop halts the scheduler and waits for running jobs or ctx, whichever ends first.
func (s *CronScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
