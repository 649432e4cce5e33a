/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package dedup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HamedShams/board-nudge/internal/domain"
	"github.com/HamedShams/board-nudge/internal/store"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]domain.Trigger
	gets    atomic.Int32
	failGet error
	failIns map[string]error
}

func newMemStore() *memStore {
	return &memStore{records: map[string]domain.Trigger{}, failIns: map[string]error{}}
}

func (m *memStore) Get(_ context.Context, id domain.ID) (*domain.Trigger, error) {
	m.gets.Add(1)
	if m.failGet != nil {
		return nil, m.failGet
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.records[id.Key()]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (m *memStore) Insert(_ context.Context, t domain.Trigger, _ store.InsertOptions) error {
	if err := m.failIns[t.ID.Key()]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.records[t.ID.Key()]; ok {
		t.Snoozed = prev.Snoozed
	}
	m.records[t.ID.Key()] = t
	return nil
}

func (m *memStore) put(t domain.Trigger) { m.records[t.ID.Key()] = t }

func trig(typ domain.TriggerType, key string) domain.Trigger {
	return domain.Trigger{ID: domain.NewID(string(typ), key), Type: typ, Body: domain.IssuePayload{Key: key}}
}

func at(t time.Time) *time.Time { return &t }

var t0 = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

func TestDecide(t *testing.T) {
	window := 30 * time.Minute
	cases := []struct {
		name string
		rec  *domain.Trigger
		now  time.Time
		want Decision
	}{
		{"first occurrence", nil, t0, NotifyNew},
		{"never fired", &domain.Trigger{}, t0, NotifyNever},
		{"inside window", &domain.Trigger{LastTriggeredAt: at(t0)}, t0.Add(29 * time.Minute), SuppressWindow},
		{"inside window by seconds", &domain.Trigger{LastTriggeredAt: at(t0)}, t0.Add(29*time.Minute + 59*time.Second), SuppressWindow},
		{"exactly at window", &domain.Trigger{LastTriggeredAt: at(t0)}, t0.Add(30 * time.Minute), NotifyElapsed},
		{"past window", &domain.Trigger{LastTriggeredAt: at(t0)}, t0.Add(31 * time.Minute), NotifyElapsed},
		{"snoozed long ago", &domain.Trigger{LastTriggeredAt: at(t0), Snoozed: true}, t0.Add(24 * time.Hour), SuppressSnooze},
		{"snoozed never fired", &domain.Trigger{Snoozed: true}, t0, SuppressSnooze},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.rec, window, tc.now))
		})
	}
}

func TestFilterCooldown(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	fired := trig(domain.T7, "ROW-1")
	fired.LastTriggeredAt = at(t0)
	st.put(fired)

	d := New(st, Config{Cooldowns: Cooldowns{Default: 30 * time.Minute}}, zerolog.Nop())

	got, err := d.Filter(ctx, NewCache(st), []domain.Trigger{trig(domain.T7, "ROW-1")}, t0.Add(29*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, got)

	now := t0.Add(31 * time.Minute)
	got, err = d.Filter(ctx, NewCache(st), []domain.Trigger{trig(domain.T7, "ROW-1")}, now)
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.NoError(t, d.Commit(ctx, got, now))
	rec, err := st.Get(ctx, fired.ID)
	require.NoError(t, err)
	assert.True(t, now.Equal(*rec.LastTriggeredAt))
}

func TestFilterPerTypeWindows(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	for _, tr := range []domain.Trigger{trig(domain.T3, "pr-1"), trig(domain.T8, "Backend")} {
		tr.LastTriggeredAt = at(t0)
		st.put(tr)
	}
	d := New(st, Config{}, zerolog.Nop())

	got, err := d.Filter(ctx, nil, []domain.Trigger{trig(domain.T3, "pr-1"), trig(domain.T8, "Backend")}, t0.Add(20*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.T8, got[0].Type)
}

func TestFilterFirstOccurrenceAndSnooze(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	snoozed := trig(domain.T1, "ROW-2")
	snoozed.Snoozed = true
	st.put(snoozed)
	d := New(st, Config{}, zerolog.Nop())

	in := []domain.Trigger{trig(domain.T1, "ROW-1"), trig(domain.T1, "ROW-2")}
	for i := 0; i < 3; i++ {
		now := t0.Add(time.Duration(i) * 48 * time.Hour)
		got, err := d.Filter(ctx, NewCache(st), in, now)
		require.NoError(t, err)
		for _, g := range got {
			assert.NotEqual(t, "T1-ROW-2", g.ID.Key())
		}
		require.NoError(t, d.Commit(ctx, got, now))
	}

	rec, err := st.Get(ctx, domain.NewID("T1", "ROW-2"))
	require.NoError(t, err)
	assert.True(t, rec.Snoozed)
	assert.Nil(t, rec.LastTriggeredAt)
}

func TestFilterGroupsByFirstSeenType(t *testing.T) {
	d := New(newMemStore(), Config{}, zerolog.Nop())
	in := []domain.Trigger{
		trig(domain.T7, "A"),
		trig(domain.T1, "B"),
		trig(domain.T7, "C"),
		trig(domain.T1, "D"),
		trig(domain.T7, "A"),
	}
	got, err := d.Filter(context.Background(), nil, in, t0)
	require.NoError(t, err)

	keys := make([]string, 0, len(got))
	for _, g := range got {
		keys = append(keys, g.ID.Key())
	}
	assert.Equal(t, []string{"T7-A", "T7-C", "T1-B", "T1-D"}, keys)
}

func TestFilterLookupError(t *testing.T) {
	st := newMemStore()
	st.failGet = errors.New("connection reset")
	d := New(st, Config{}, zerolog.Nop())

	_, err := d.Filter(context.Background(), nil, []domain.Trigger{trig(domain.T1, "A")}, t0)
	assert.ErrorContains(t, err, "connection reset")
}

func TestCommitContinuesPastFailures(t *testing.T) {
	st := newMemStore()
	st.failIns["T1-A"] = errors.New("boom")
	d := New(st, Config{}, zerolog.Nop())

	err := d.Commit(context.Background(), []domain.Trigger{trig(domain.T1, "A"), trig(domain.T1, "B")}, t0)
	assert.ErrorContains(t, err, "commit T1-A")

	_, err = st.Get(context.Background(), domain.NewID("T1", "B"))
	assert.NoError(t, err)
}

func TestCacheCollapsesReads(t *testing.T) {
	st := newMemStore()
	st.put(trig(domain.T1, "A"))
	c := NewCache(st)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := c.Get(context.Background(), domain.NewID("T1", "A"))
			assert.NoError(t, err)
			assert.NotNil(t, rec)
		}()
	}
	wg.Wait()

	missing, err := c.Get(context.Background(), domain.NewID("T1", "Z"))
	require.NoError(t, err)
	assert.Nil(t, missing)
	_, _ = c.Get(context.Background(), domain.NewID("T1", "Z"))

	assert.LessOrEqual(t, st.gets.Load(), int32(11))
	assert.Equal(t, 2, c.Len())
}

func TestParseCooldowns(t *testing.T) {
	c, err := ParseCooldowns("T3:3m, default:15m,t8:1m", DefaultCooldowns())
	require.NoError(t, err)
	assert.Equal(t, 3*time.Minute, c.For(domain.T3))
	assert.Equal(t, time.Minute, c.For(domain.T8))
	assert.Equal(t, time.Hour, c.For(domain.T1))
	assert.Equal(t, 15*time.Minute, c.Default)

	// base is not mutated
	assert.Equal(t, 45*time.Minute, DefaultCooldowns().For(domain.T3))

	same, err := ParseCooldowns("", DefaultCooldowns())
	require.NoError(t, err)
	assert.Equal(t, DefaultCooldowns(), same)

	for _, bad := range []string{"T3", "T3:soon", "T11:5m", "T3:-1m"} {
		_, err := ParseCooldowns(bad, DefaultCooldowns())
		assert.Error(t, err, bad)
	}
}

func TestCooldownsFallback(t *testing.T) {
	assert.Equal(t, DefaultWindow, Cooldowns{}.For(domain.T1))
	assert.Equal(t, 10*time.Minute, DefaultCooldowns().For(domain.T9))
}
