/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package dedup

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/HamedShams/board-nudge/internal/domain"
	"github.com/HamedShams/board-nudge/internal/store"
)

// Getter is the read side of the trigger store.
type Getter interface {
	Get(ctx context.Context, id domain.ID) (*domain.Trigger, error)
}

// Cache is a read-through view of the trigger store for a single cycle.
// Concurrent reads of one key share a single store call. A Cache must not
// outlive the cycle that created it.
type Cache struct {
	src    Getter
	flight singleflight.Group

	mu      sync.RWMutex
	entries map[string]*domain.Trigger // nil value: known absent
}

func NewCache(src Getter) *Cache {
	return &Cache{src: src, entries: map[string]*domain.Trigger{}}
}

// Get returns the persisted record or nil when there is none.
func (c *Cache) Get(ctx context.Context, id domain.ID) (*domain.Trigger, error) {
	key := id.Key()
	c.mu.RLock()
	t, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		t, err := c.src.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			t, err = nil, nil
		}
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = t
		c.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Trigger), nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
