/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/rs/zerolog"

	"github.com/HamedShams/board-nudge/internal/adapters/github"
	"github.com/HamedShams/board-nudge/internal/adapters/jira"
	"github.com/HamedShams/board-nudge/internal/adapters/openai"
	"github.com/HamedShams/board-nudge/internal/adapters/slack"
	"github.com/HamedShams/board-nudge/internal/config"
	"github.com/HamedShams/board-nudge/internal/roster"
	"github.com/HamedShams/board-nudge/internal/services"
	"github.com/HamedShams/board-nudge/internal/store"
)

// app holds the wired process: config, store and the orchestrator.
type app struct {
	cfg   config.Config
	log   zerolog.Logger
	store store.Store
	svc   *services.Service
}

func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (store.Store, error) {
	if cfg.UsePostgres() {
		if err := store.Migrate(cfg.DBDSN, log); err != nil {
			return nil, err
		}
		return store.OpenPostgres(ctx, cfg, log)
	}
	return store.OpenBadger(store.DefaultBadgerConfig(cfg.BadgerPath), log)
}

func loadRoster(cfg config.Config, log zerolog.Logger) (*roster.Roster, error) {
	r, err := roster.Load(cfg.UsersFile)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("file", cfg.UsersFile).Msg("roster file missing, nudges will not mention anyone")
		return roster.New(nil)
	}
	return r, err
}

func newApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*app, error) {
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, store: st}
	if err := a.wire(); err != nil {
		_ = st.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	users, err := loadRoster(a.cfg, a.log)
	if err != nil {
		return err
	}
	jc, err := jira.NewClient(a.cfg, a.log)
	if err != nil {
		return err
	}
	sc, err := slack.NewClient(a.cfg, a.log)
	if err != nil {
		return err
	}
	deps := services.Deps{
		Issues:    jc,
		Board:     jc,
		Store:     a.store,
		Sink:      sc,
		Responder: sc,
		Users:     users,
		Coach:     openai.NewClient(a.cfg, a.log),
	}
	if a.cfg.GitHubToken != "" && len(a.cfg.GitHubRepos) > 0 {
		gc, err := github.NewClient(a.cfg, a.log)
		if err != nil {
			return err
		}
		deps.Pulls = gc
	} else {
		a.log.Info().Msg("github not configured, pull request checks disabled")
	}
	a.svc, err = services.New(a.cfg, a.log, deps)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}
	a.log.Info().Int("users", users.Len()).Str("store", a.cfg.StoreDriver).Msg("app wired")
	return nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("store close")
	}
}
