/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/HamedShams/board-nudge/internal/domain"
	"github.com/HamedShams/board-nudge/internal/metrics"
	"github.com/HamedShams/board-nudge/internal/rules"
	"github.com/HamedShams/board-nudge/internal/store"
)

// DefaultConcurrency caps parallel group lookups.
const DefaultConcurrency = 20

// Store is the part of the trigger store the deduplicator needs.
type Store interface {
	Getter
	Insert(ctx context.Context, t domain.Trigger, opts store.InsertOptions) error
}

type Config struct {
	Cooldowns   Cooldowns
	TTL         time.Duration
	Concurrency int
}

type Deduplicator struct {
	st  Store
	cfg Config
	log zerolog.Logger
}

func New(st Store, cfg Config, log zerolog.Logger) *Deduplicator {
	if cfg.Cooldowns.ByType == nil && cfg.Cooldowns.Default == 0 {
		cfg.Cooldowns = DefaultCooldowns()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Deduplicator{st: st, cfg: cfg, log: log}
}

// Decision is the outcome for one trigger.
type Decision string

const (
	NotifyNew      Decision = "new"
	NotifyNever    Decision = "never-fired"
	NotifyElapsed  Decision = "elapsed"
	SuppressSnooze Decision = "snoozed"
	SuppressWindow Decision = "cooldown"
)

func (d Decision) Notify() bool {
	return d == NotifyNew || d == NotifyNever || d == NotifyElapsed
}

// Decide applies the cooldown policy to a persisted record (nil when absent).
func Decide(rec *domain.Trigger, window time.Duration, now time.Time) Decision {
	switch {
	case rec == nil:
		return NotifyNew
	case rec.Snoozed:
		return SuppressSnooze
	case rec.LastTriggeredAt == nil:
		return NotifyNever
	case rules.ElapsedMinutes(*rec.LastTriggeredAt, now) >= int64(window/time.Minute):
		return NotifyElapsed
	}
	return SuppressWindow
}

// group keeps the triggers of one type together, in input order.
type group struct {
	typ   domain.TriggerType
	items []domain.Trigger
	keep  []bool
}

func groupByType(triggers []domain.Trigger) []*group {
	var groups []*group
	idx := map[domain.TriggerType]*group{}
	seen := map[string]bool{}
	for _, t := range triggers {
		// The same identity twice in one batch is notified at most once.
		if seen[t.ID.Key()] {
			continue
		}
		seen[t.ID.Key()] = true
		g, ok := idx[t.Type]
		if !ok {
			g = &group{typ: t.Type}
			idx[t.Type] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, t)
	}
	return groups
}

// Filter returns the triggers that should notify now, grouped by type in
// first-seen order. Groups are looked up concurrently through cache; nothing
// is written.
func (d *Deduplicator) Filter(ctx context.Context, cache *Cache, triggers []domain.Trigger, now time.Time) ([]domain.Trigger, error) {
	if cache == nil {
		cache = NewCache(d.st)
	}
	groups := groupByType(triggers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for _, grp := range groups {
		grp.keep = make([]bool, len(grp.items))
		window := d.cfg.Cooldowns.For(grp.typ)
		g.Go(func() error {
			for i, t := range grp.items {
				rec, err := cache.Get(gctx, t.ID)
				if err != nil {
					return fmt.Errorf("lookup %s: %w", t.ID.Key(), err)
				}
				dec := Decide(rec, window, now)
				grp.keep[i] = dec.Notify()
				outcome := "suppress"
				if dec.Notify() {
					outcome = "notify"
				}
				metrics.Decisions.WithLabelValues(string(grp.typ), outcome).Inc()
				d.log.Debug().Str("trigger", t.ID.Key()).Str("decision", string(dec)).Msg("dedup")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.Trigger
	for _, grp := range groups {
		for i, t := range grp.items {
			if grp.keep[i] {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// Commit stamps every fired trigger with now and persists it. It is called
// only after delivery succeeded. Failures are collected so one bad key does
// not stop the rest. An existing snooze is preserved by the store.
func (d *Deduplicator) Commit(ctx context.Context, fired []domain.Trigger, now time.Time) error {
	var errs []error
	for _, t := range fired {
		stamp := now
		t.LastTriggeredAt = &stamp
		t.Snoozed = false
		if err := d.st.Insert(ctx, t, store.InsertOptions{TTL: d.cfg.TTL}); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", t.ID.Key(), err))
		}
	}
	return errors.Join(errs...)
}
