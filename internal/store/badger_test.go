/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package store

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HamedShams/board-nudge/internal/domain"
)

func openMem(t *testing.T) *Badger {
	t.Helper()
	b, err := OpenBadger(InMemoryBadgerConfig(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func issueTrigger(key string) domain.Trigger {
	return domain.Trigger{
		ID:   domain.NewID("T1", key),
		Type: domain.T1,
		Body: domain.IssuePayload{Key: key, Link: "https://jira.example.com/browse/" + key, Owner: &domain.User{Name: "Sara", Slack: "U1"}},
	}
}

func TestBadgerGetMissing(t *testing.T) {
	b := openMem(t)
	_, err := b.Get(context.Background(), domain.NewID("T1", "ROW-1"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerInsertAndGet(t *testing.T) {
	ctx := context.Background()
	b := openMem(t)
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	tr := issueTrigger("ROW-1")
	tr.LastTriggeredAt = &now

	require.NoError(t, b.Insert(ctx, tr, InsertOptions{}))

	got, err := b.Get(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.T1, got.Type)
	assert.Equal(t, tr.ID, got.ID)
	require.NotNil(t, got.LastTriggeredAt)
	assert.True(t, now.Equal(*got.LastTriggeredAt))
	body, ok := got.Body.(domain.IssuePayload)
	require.True(t, ok)
	assert.Equal(t, "U1", body.Owner.Slack)
}

func TestBadgerInsertKeepsSnooze(t *testing.T) {
	ctx := context.Background()
	b := openMem(t)
	tr := issueTrigger("ROW-2")

	require.NoError(t, b.Insert(ctx, tr, InsertOptions{}))
	require.NoError(t, b.SetSnoozed(ctx, tr.ID, true))

	now := time.Now()
	tr.LastTriggeredAt = &now
	require.NoError(t, b.Insert(ctx, tr, InsertOptions{}))

	got, err := b.Get(ctx, tr.ID)
	require.NoError(t, err)
	assert.True(t, got.Snoozed)
	assert.NotNil(t, got.LastTriggeredAt)

	require.NoError(t, b.SetSnoozed(ctx, tr.ID, false))
	got, err = b.Get(ctx, tr.ID)
	require.NoError(t, err)
	assert.False(t, got.Snoozed)
}

func TestBadgerSnoozeUnknownCreatesRecord(t *testing.T) {
	ctx := context.Background()
	b := openMem(t)
	id := domain.NewID("T8", "Backend")

	require.NoError(t, b.SetSnoozed(ctx, id, true))

	got, err := b.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Snoozed)
	assert.Equal(t, domain.T8, got.Type)
	assert.Nil(t, got.Body)
	assert.Nil(t, got.LastTriggeredAt)
}

func TestBadgerListDeleteAndPurge(t *testing.T) {
	ctx := context.Background()
	b := openMem(t)
	for _, k := range []string{"ROW-1", "ROW-2", "ROW-3"} {
		require.NoError(t, b.Insert(ctx, issueTrigger(k), InsertOptions{TTL: time.Hour}))
	}
	require.NoError(t, b.RecordRun(ctx, Run{ID: "r1", Pipeline: "triggers", StartedAt: time.Now()}))

	all, err := b.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, b.Delete(ctx, domain.NewID("T1", "ROW-2")))
	_, err = b.Get(ctx, domain.NewID("T1", "ROW-2"))
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := b.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err = b.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	// Run history is not part of the trigger purge.
	run, err := b.LastRun(ctx, "triggers")
	require.NoError(t, err)
	assert.Equal(t, "r1", run.ID)
}

func TestBadgerLastRunMissing(t *testing.T) {
	b := openMem(t)
	_, err := b.LastRun(context.Background(), "board")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerLock(t *testing.T) {
	ctx := context.Background()
	b := openMem(t)

	ok, err := b.TryLock(ctx, "cycle")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryLock(ctx, "cycle")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = b.TryLock(ctx, "board")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, b.Unlock(ctx, "cycle"))
	assert.Error(t, b.Unlock(ctx, "cycle"))

	ok, err = b.TryLock(ctx, "cycle")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, domain.T10, TypeOf(domain.NewID("T10")))
	assert.Equal(t, domain.TriggerType(""), TypeOf(domain.NewID("nope")))
	assert.Equal(t, domain.TriggerType(""), TypeOf(nil))
}
