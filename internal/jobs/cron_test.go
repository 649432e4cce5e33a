/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HamedShams/board-nudge/internal/config"
	"github.com/HamedShams/board-nudge/internal/services"
)

type fakeService struct{ calls []string }

func (f *fakeService) RunCycle(context.Context) error {
	f.calls = append(f.calls, "cycle")
	return nil
}

func (f *fakeService) RunBoardCheck(context.Context) error {
	f.calls = append(f.calls, "board")
	return services.ErrBusy
}

func (f *fakeService) Purge(context.Context) (int, error) {
	f.calls = append(f.calls, "purge")
	return 0, nil
}

func TestInBusinessHours(t *testing.T) {
	manila := time.FixedZone("PHT", 8*3600)
	cases := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2025, 3, 4, 7, 59, 0, 0, manila), false},
		{time.Date(2025, 3, 4, 8, 0, 0, 0, manila), true},
		{time.Date(2025, 3, 4, 18, 59, 0, 0, manila), true},
		{time.Date(2025, 3, 4, 19, 0, 0, 0, manila), false},
		{time.Date(2025, 3, 8, 10, 0, 0, 0, manila), false}, // Saturday
		{time.Date(2025, 3, 9, 10, 0, 0, 0, manila), false}, // Sunday
	}
	for _, c := range cases {
		assert.Equal(t, c.want, InBusinessHours(c.at, 8, 19), c.at.String())
	}
}

func newCron(t *testing.T, svc *fakeService, now time.Time) *Cron {
	t.Helper()
	manila := time.FixedZone("PHT", 8*3600)
	cfg := config.Config{
		CycleCron:     "*/2 * * * *",
		BoardCron:     "*/10 * * * 1-5",
		PurgeCron:     "0 0 * * *",
		WorkStartHour: 8,
		WorkEndHour:   19,
	}.WithLocation(manila)
	cr, err := NewCron(cfg, zerolog.Nop(), svc)
	require.NoError(t, err)
	cr.now = func() time.Time { return now }
	return cr
}

func TestJobsAreGatedByWorkingHours(t *testing.T) {
	// 02:00 UTC is 10:00 in Manila.
	svc := &fakeService{}
	cr := newCron(t, svc, time.Date(2025, 3, 4, 2, 0, 0, 0, time.UTC))
	cr.cycle()
	cr.board()
	assert.Equal(t, []string{"cycle", "board"}, svc.calls)

	// 12:00 UTC is 20:00 in Manila; purge is never gated.
	svc = &fakeService{}
	cr = newCron(t, svc, time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC))
	cr.cycle()
	cr.board()
	cr.purge()
	assert.Equal(t, []string{"purge"}, svc.calls)
}

func TestNewCronRejectsBadSpec(t *testing.T) {
	_, err := NewCron(config.Config{CycleCron: "every minute"}, zerolog.Nop(), &fakeService{})
	assert.Error(t, err)

	// Six fields need a seconds parser, which is not enabled.
	_, err = NewCron(config.Config{CycleCron: "0 */2 * * * *"}, zerolog.Nop(), &fakeService{})
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	cr := newCron(t, &fakeService{}, time.Now())
	cr.Start()
	cr.Stop()
	assert.Len(t, cr.c.Entries(), 3)
}
