/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package store

import (
	"context"
	"errors"
	"time"

	"github.com/HamedShams/board-nudge/internal/domain"
)

var ErrNotFound = errors.New("store: not found")

// InsertOptions tunes a single Insert. A zero TTL keeps the record until it is
// deleted or purged.
type InsertOptions struct {
	TTL time.Duration
}

// Run is the audit record of one pipeline execution.
type Run struct {
	ID         string     `json:"id"`
	Pipeline   string     `json:"pipeline"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Evaluated  int        `json:"evaluated"`
	Fired      int        `json:"fired"`
	Success    bool       `json:"success"`
	Error      string     `json:"error,omitempty"`
}

// Store persists trigger records keyed by domain.ID.Key().
//
// Insert is an upsert of type, body and lastTriggeredAt that leaves an existing
// snoozed flag untouched; only SetSnoozed changes it. Get, Insert and
// SetSnoozed are atomic per key.
type Store interface {
	Get(ctx context.Context, id domain.ID) (*domain.Trigger, error)
	Insert(ctx context.Context, t domain.Trigger, opts InsertOptions) error
	List(ctx context.Context) ([]domain.Trigger, error)
	Delete(ctx context.Context, id domain.ID) error
	// SetSnoozed creates a bare record when id is unknown so the snooze holds
	// before the trigger ever fires.
	SetSnoozed(ctx context.Context, id domain.ID, snoozed bool) error
	DeleteAll(ctx context.Context) (int, error)

	// TryLock takes a named, non-blocking runner lock. It returns false when
	// another runner holds it.
	TryLock(ctx context.Context, name string) (bool, error)
	Unlock(ctx context.Context, name string) error

	// RecordRun upserts a pipeline run by ID; LastRun returns the most recently
	// started run of a pipeline or ErrNotFound.
	RecordRun(ctx context.Context, r Run) error
	LastRun(ctx context.Context, pipeline string) (*Run, error)

	Close() error
}

// TypeOf recovers the trigger type from the first id segment, for records
// created by SetSnoozed.
func TypeOf(id domain.ID) domain.TriggerType {
	if len(id) == 0 {
		return ""
	}
	t, err := domain.ParseTriggerType(id[0])
	if err != nil {
		return ""
	}
	return t
}
