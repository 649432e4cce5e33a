/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apihttp "github.com/HamedShams/board-nudge/internal/http"
	"github.com/HamedShams/board-nudge/internal/jobs"
)

// serve runs the HTTP server and the scheduler until SIGINT/SIGTERM.
func serve(ctx context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cron, err := jobs.NewCron(a.cfg, a.log, a.svc)
	if err != nil {
		return err
	}
	cron.Start()
	defer cron.Stop()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           apihttp.NewRouter(a.cfg, a.log, a.svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.log.Info().Str("addr", a.cfg.HTTPAddr).Msg("http listening")

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
