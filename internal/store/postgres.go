/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/HamedShams/board-nudge/internal/config"
	"github.com/HamedShams/board-nudge/internal/domain"
)

// Postgres is the shared trigger store used when several replicas run.
type Postgres struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger

	mu    sync.Mutex
	locks map[string]*pgxpool.Conn
}

func OpenPostgres(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Postgres, error) {
	pc, err := pgxpool.ParseConfig(cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pc.MinConns = cfg.DBMinConns
	pc.MaxConns = cfg.DBMaxConns
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.MaxConnLifetime = 30 * time.Minute
	pc.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx2); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return &Postgres{Pool: pool, log: log, locks: map[string]*pgxpool.Conn{}}, nil
}

func (p *Postgres) Close() error {
	p.mu.Lock()
	for name, c := range p.locks {
		c.Release()
		delete(p.locks, name)
	}
	p.mu.Unlock()
	p.Pool.Close()
	return nil
}

const live = `(expires_at IS NULL OR expires_at > now())`

func scanTrigger(row pgx.Row) (*domain.Trigger, error) {
	var (
		t    domain.Trigger
		id   []string
		typ  string
		body []byte
	)
	if err := row.Scan(&id, &typ, &body, &t.LastTriggeredAt, &t.Snoozed); err != nil {
		return nil, err
	}
	t.ID, t.Type = domain.ID(id), domain.TriggerType(typ)
	if len(body) > 0 && string(body) != "null" {
		payload, err := domain.DecodePayload(t.Type, body)
		if err != nil {
			return nil, err
		}
		t.Body = payload
	}
	return &t, nil
}

func (p *Postgres) Get(ctx context.Context, id domain.ID) (*domain.Trigger, error) {
	const q = `SELECT id, type, body, last_triggered_at, snoozed FROM triggers WHERE key=$1 AND ` + live
	t, err := scanTrigger(p.Pool.QueryRow(ctx, q, id.Key()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trigger %s: %w", id.Key(), err)
	}
	return t, nil
}

// Insert resets the snooze only when the previous record had already expired.
func (p *Postgres) Insert(ctx context.Context, t domain.Trigger, opts InsertOptions) error {
	const q = `
        INSERT INTO triggers(key, id, type, body, last_triggered_at, expires_at, updated_at)
        VALUES($1, $2, $3, $4, $5, $6, now())
        ON CONFLICT (key) DO UPDATE SET
            id=EXCLUDED.id, type=EXCLUDED.type, body=EXCLUDED.body,
            last_triggered_at=EXCLUDED.last_triggered_at,
            snoozed=CASE WHEN triggers.expires_at <= now() THEN false ELSE triggers.snoozed END,
            expires_at=EXCLUDED.expires_at, updated_at=now()`
	var body []byte
	if t.Body != nil {
		b, err := json.Marshal(t.Body)
		if err != nil {
			return err
		}
		body = b
	}
	var expires *time.Time
	if opts.TTL > 0 {
		e := time.Now().Add(opts.TTL)
		expires = &e
	}
	_, err := p.Pool.Exec(ctx, q, t.ID.Key(), []string(t.ID), string(t.Type), body, t.LastTriggeredAt, expires)
	if err != nil {
		return fmt.Errorf("insert trigger %s: %w", t.ID.Key(), err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context) ([]domain.Trigger, error) {
	const q = `SELECT id, type, body, last_triggered_at, snoozed FROM triggers WHERE ` + live + ` ORDER BY type, key`
	rows, err := p.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Trigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			p.log.Warn().Err(err).Msg("pg: skip unreadable trigger")
			continue
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (p *Postgres) Delete(ctx context.Context, id domain.ID) error {
	_, err := p.Pool.Exec(ctx, `DELETE FROM triggers WHERE key=$1`, id.Key())
	return err
}

// SetSnoozed revives an expired record as non-expiring so the snooze holds.
func (p *Postgres) SetSnoozed(ctx context.Context, id domain.ID, snoozed bool) error {
	const q = `
        INSERT INTO triggers(key, id, type, snoozed, updated_at) VALUES($1, $2, $3, $4, now())
        ON CONFLICT (key) DO UPDATE SET
            snoozed=EXCLUDED.snoozed,
            expires_at=CASE WHEN triggers.expires_at <= now() THEN NULL ELSE triggers.expires_at END,
            updated_at=now()`
	_, err := p.Pool.Exec(ctx, q, id.Key(), []string(id), string(TypeOf(id)), snoozed)
	return err
}

func (p *Postgres) DeleteAll(ctx context.Context) (int, error) {
	tag, err := p.Pool.Exec(ctx, `DELETE FROM triggers`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) RecordRun(ctx context.Context, r Run) error {
	const q = `
        INSERT INTO cycle_runs(id, pipeline, started_at, finished_at, evaluated, fired, success, error)
        VALUES($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO UPDATE SET
            finished_at=EXCLUDED.finished_at, evaluated=EXCLUDED.evaluated, fired=EXCLUDED.fired,
            success=EXCLUDED.success, error=EXCLUDED.error`
	_, err := p.Pool.Exec(ctx, q, r.ID, r.Pipeline, r.StartedAt, r.FinishedAt, r.Evaluated, r.Fired, r.Success, r.Error)
	return err
}

func (p *Postgres) LastRun(ctx context.Context, pipeline string) (*Run, error) {
	const q = `SELECT id::text, pipeline, started_at, finished_at, evaluated, fired, success, error
        FROM cycle_runs WHERE pipeline=$1 ORDER BY started_at DESC LIMIT 1`
	r := &Run{}
	err := p.Pool.QueryRow(ctx, q, pipeline).Scan(&r.ID, &r.Pipeline, &r.StartedAt, &r.FinishedAt, &r.Evaluated, &r.Fired, &r.Success, &r.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// TryLock takes a session-level advisory lock. The connection holding it is
// kept out of the pool until Unlock, since the lock belongs to that session.
func (p *Postgres) TryLock(ctx context.Context, name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, held := p.locks[name]; held {
		return false, nil
	}
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, name).Scan(&ok); err != nil {
		conn.Release()
		return false, err
	}
	if !ok {
		conn.Release()
		return false, nil
	}
	p.locks[name] = conn
	return true, nil
}

func (p *Postgres) Unlock(ctx context.Context, name string) error {
	p.mu.Lock()
	conn, held := p.locks[name]
	delete(p.locks, name)
	p.mu.Unlock()
	if !held {
		return fmt.Errorf("unlock %s: not held", name)
	}
	defer conn.Release()
	var ok bool
	err := conn.QueryRow(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, name).Scan(&ok)
	if !ok && err == nil {
		return errors.New("advisory unlock returned false")
	}
	return err
}
