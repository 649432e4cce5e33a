/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/HamedShams/board-nudge/internal/domain"
)

const (
	triggerPrefix = "trigger/"
	runPrefix     = "run/"
)

type BadgerConfig struct {
	// Path is ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	// GCInterval drives value log GC; zero disables it.
	GCInterval     time.Duration
	GCDiscardRatio float64
}

func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{Path: path, SyncWrites: true, GCInterval: 5 * time.Minute, GCDiscardRatio: 0.5}
}

func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// Badger is the embedded trigger store. Expiry uses Badger's native TTL.
type Badger struct {
	db  *badger.DB
	log zerolog.Logger

	mu    sync.Mutex
	locks map[string]struct{}

	stop chan struct{}
	done chan struct{}
}

type badgerLogger struct{ log zerolog.Logger }

func (l badgerLogger) Errorf(f string, a ...interface{})   { l.log.Error().Msgf(f, a...) }
func (l badgerLogger) Warningf(f string, a ...interface{}) { l.log.Warn().Msgf(f, a...) }
func (l badgerLogger) Infof(f string, a ...interface{})    { l.log.Debug().Msgf(f, a...) }
func (l badgerLogger) Debugf(f string, a ...interface{})   { l.log.Trace().Msgf(f, a...) }

func OpenBadger(cfg BadgerConfig, log zerolog.Logger) (*Badger, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger: path is required for persistent store")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger dir %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{log: log.With().Str("comp", "badger").Logger()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	b := &Badger{db: db, log: log, locks: map[string]struct{}{}}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		b.stop, b.done = make(chan struct{}), make(chan struct{})
		go b.gc(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return b, nil
}

func (b *Badger) gc(every time.Duration, ratio float64) {
	defer close(b.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-t.C:
			if err := b.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				b.log.Warn().Err(err).Msg("badger: value log gc")
			}
		}
	}
}

func badgerKey(id domain.ID) []byte { return []byte(triggerPrefix + id.Key()) }

func readTrigger(item *badger.Item) (*domain.Trigger, error) {
	var t domain.Trigger
	err := item.Value(func(v []byte) error { return json.Unmarshal(v, &t) })
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", item.Key(), err)
	}
	return &t, nil
}

func (b *Badger) Get(_ context.Context, id domain.ID) (*domain.Trigger, error) {
	var out *domain.Trigger
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		out, err = readTrigger(item)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// update runs fn in a read-write transaction and retries on write conflicts.
func (b *Badger) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range 3 {
		err = b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (b *Badger) Insert(_ context.Context, t domain.Trigger, opts InsertOptions) error {
	k := badgerKey(t.ID)
	return b.update(func(txn *badger.Txn) error {
		rec := t
		rec.Snoozed = false
		item, err := txn.Get(k)
		switch {
		case err == nil:
			prev, err := readTrigger(item)
			if err != nil {
				return err
			}
			rec.Snoozed = prev.Snoozed
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		v, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		e := badger.NewEntry(k, v)
		if opts.TTL > 0 {
			e = e.WithTTL(opts.TTL)
		}
		return txn.SetEntry(e)
	})
}

func (b *Badger) List(_ context.Context) ([]domain.Trigger, error) {
	var out []domain.Trigger
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 50, Prefix: []byte(triggerPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			t, err := readTrigger(it.Item())
			if err != nil {
				b.log.Warn().Err(err).Msg("badger: skip unreadable trigger")
				continue
			}
			out = append(out, *t)
		}
		return nil
	})
	return out, err
}

func (b *Badger) Delete(_ context.Context, id domain.ID) error {
	return b.update(func(txn *badger.Txn) error { return txn.Delete(badgerKey(id)) })
}

func (b *Badger) SetSnoozed(_ context.Context, id domain.ID, snoozed bool) error {
	k := badgerKey(id)
	return b.update(func(txn *badger.Txn) error {
		rec := domain.Trigger{ID: id, Type: TypeOf(id)}
		var ttl time.Duration
		item, err := txn.Get(k)
		switch {
		case err == nil:
			prev, err := readTrigger(item)
			if err != nil {
				return err
			}
			rec = *prev
			if exp := item.ExpiresAt(); exp > 0 {
				ttl = time.Until(time.Unix(int64(exp), 0))
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		rec.Snoozed = snoozed
		v, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		e := badger.NewEntry(k, v)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

func (b *Badger) DeleteAll(_ context.Context) (int, error) {
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(triggerPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func runKey(pipeline string) []byte { return []byte(runPrefix + pipeline) }

// RecordRun keeps only the latest run per pipeline.
func (b *Badger) RecordRun(_ context.Context, r Run) error {
	v, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return b.update(func(txn *badger.Txn) error { return txn.Set(runKey(r.Pipeline), v) })
}

func (b *Badger) LastRun(_ context.Context, pipeline string) (*Run, error) {
	var r Run
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(runKey(pipeline))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error { return json.Unmarshal(v, &r) })
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// TryLock is process-local: an embedded database has a single writer process.
func (b *Badger) TryLock(_ context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, held := b.locks[name]; held {
		return false, nil
	}
	b.locks[name] = struct{}{}
	return true, nil
}

func (b *Badger) Unlock(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, held := b.locks[name]; !held {
		return fmt.Errorf("unlock %s: not held", name)
	}
	delete(b.locks, name)
	return nil
}

func (b *Badger) Close() error {
	if b.stop != nil {
		close(b.stop)
		<-b.done
	}
	return b.db.Close()
}
