// Package scheduler runs the periodic backend health report.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type Scheduler struct {
	cron      *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
	checkFunc func(ctx context.Context) error
	log       *logrus.Logger
}

func New(log *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
}

// SetHealthCheck sets the function probed on every tick.
func (s *Scheduler) SetHealthCheck(f func(ctx context.Context) error) {
	s.checkFunc = f
}

func (s *Scheduler) Start() error {
	if s.checkFunc == nil {
		s.log.Warn("health check not set, scheduler idle")
		return nil
	}

	_, err := s.cron.AddFunc("@hourly", func() {
		if err := s.checkFunc(s.ctx); err != nil {
			s.log.WithError(err).Error("backend health check failed")
			return
		}
		s.log.Debug("backend health check passed")
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("scheduler started, hourly backend health checks")
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
