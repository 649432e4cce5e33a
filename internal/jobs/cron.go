/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/HamedShams/board-nudge/internal/config"
	"github.com/HamedShams/board-nudge/internal/metrics"
	"github.com/HamedShams/board-nudge/internal/services"
)

const jobTimeout = 5 * time.Minute

type service interface {
	RunCycle(ctx context.Context) error
	RunBoardCheck(ctx context.Context) error
	Purge(ctx context.Context) (int, error)
}

type Cron struct {
	cfg config.Config
	log zerolog.Logger
	svc service
	c   *cron.Cron
	now func() time.Time
}

// cronLogger feeds robfig/cron's own logging into zerolog.
type cronLogger struct{ log zerolog.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug().Fields(kv).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error().Err(err).Fields(kv).Msg("cron: " + msg)
}

// NewCron schedules the trigger cycle, the board check and the daily purge in
// the business timezone. The first two only run inside working hours.
func NewCron(cfg config.Config, log zerolog.Logger, svc service) (*Cron, error) {
	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	cr := &Cron{cfg: cfg, log: log, svc: svc, c: c, now: time.Now}
	for _, j := range []struct {
		name, spec string
		fn         func()
	}{
		{services.PipelineCycle, cfg.CycleCron, cr.cycle},
		{services.PipelineBoard, cfg.BoardCron, cr.board},
		{"purge", cfg.PurgeCron, cr.purge},
	} {
		if j.spec == "" {
			continue
		}
		if _, err := c.AddFunc(j.spec, j.fn); err != nil {
			return nil, fmt.Errorf("cron %s %q: %w", j.name, j.spec, err)
		}
	}
	return cr, nil
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop stops scheduling and waits for running jobs.
func (cr *Cron) Stop() { <-cr.c.Stop().Done() }

// InBusinessHours reports whether now falls on a weekday between startHour
// (inclusive) and endHour (exclusive), in now's location.
func InBusinessHours(now time.Time, startHour, endHour int) bool {
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := now.Hour()
	return h >= startHour && h < endHour
}

func (cr *Cron) gated(pipeline string) bool {
	now := cr.now().In(cr.cfg.Location())
	if InBusinessHours(now, cr.cfg.WorkStartHour, cr.cfg.WorkEndHour) {
		return false
	}
	metrics.Cycles.WithLabelValues(pipeline, "skipped").Inc()
	cr.log.Debug().Str("pipeline", pipeline).Time("now", now).Msg("cron: outside working hours")
	return true
}

func (cr *Cron) cycle() {
	if cr.gated(services.PipelineCycle) {
		return
	}
	cr.runJob(services.PipelineCycle, cr.svc.RunCycle)
}

func (cr *Cron) board() {
	if cr.gated(services.PipelineBoard) {
		return
	}
	cr.runJob(services.PipelineBoard, cr.svc.RunBoardCheck)
}

func (cr *Cron) purge() {
	cr.runJob("purge", func(ctx context.Context) error {
		_, err := cr.svc.Purge(ctx)
		return err
	})
}

func (cr *Cron) runJob(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	cr.log.Info().Str("job", name).Msg("cron: start")
	err := fn(ctx)
	switch {
	case errors.Is(err, services.ErrBusy):
		cr.log.Info().Str("job", name).Msg("cron: already running elsewhere")
	case err != nil:
		cr.log.Error().Err(err).Str("job", name).Msg("cron: job failed")
	}
}
