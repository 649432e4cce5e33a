/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package rules

import (
	"math"
	"time"

	"github.com/HamedShams/board-nudge/internal/domain"
)

// PullPolicy holds the pull-request thresholds. StaleAfter is compared against
// whole elapsed minutes and a PR is stale when strictly greater. At or after
// EndOfDayHour:EndOfDayMinute in Location, every open PR raises T4.
type PullPolicy struct {
	StaleAfter     time.Duration
	EndOfDayHour   int
	EndOfDayMinute int
	Location       *time.Location
}

func DefaultPullPolicy() PullPolicy {
	return PullPolicy{StaleAfter: 5 * time.Minute, EndOfDayHour: 17, EndOfDayMinute: 30, Location: time.Local}
}

func (p PullPolicy) withDefaults() PullPolicy {
	d := DefaultPullPolicy()
	if p.StaleAfter <= 0 {
		p.StaleAfter = d.StaleAfter
	}
	if p.EndOfDayHour == 0 && p.EndOfDayMinute == 0 {
		p.EndOfDayHour, p.EndOfDayMinute = d.EndOfDayHour, d.EndOfDayMinute
	}
	if p.Location == nil {
		p.Location = d.Location
	}
	return p
}

// ElapsedMinutes is floor(|now - then|) in whole minutes.
func ElapsedMinutes(then, now time.Time) int64 {
	return int64(math.Floor(math.Abs(now.Sub(then).Minutes())))
}

// AfterEndOfDay reports whether now, in the policy's timezone, is at or after the end-of-day mark.
func (p PullPolicy) AfterEndOfDay(now time.Time) bool {
	p = p.withDefaults()
	local := now.In(p.Location)
	if local.Hour() != p.EndOfDayHour {
		return local.Hour() > p.EndOfDayHour
	}
	return local.Minute() >= p.EndOfDayMinute
}

// PullRequests raises T3 for stale unmerged PRs and, after end of day, T4 for every unmerged PR.
func (e Evaluator) PullRequests(prs []domain.PullRequest, now time.Time) []domain.Trigger {
	p := e.Pulls.withDefaults()
	eod := p.AfterEndOfDay(now)
	staleMinutes := int64(p.StaleAfter / time.Minute)

	var out []domain.Trigger
	for _, pr := range prs {
		if pr.Merged {
			continue
		}
		body := domain.PullRequestPayload{
			Branch:    pr.Branch,
			Link:      pr.Permalink,
			Author:    pr.Author,
			UpdatedAt: pr.UpdatedAt,
		}
		if e.Users != nil && pr.Author != "" {
			body.Owner = e.Users.ByGitHub(pr.Author)
		}
		if ElapsedMinutes(pr.UpdatedAt, now) > staleMinutes {
			out = append(out, domain.Trigger{ID: domain.NewID(string(domain.T3), pr.Permalink), Type: domain.T3, Body: body})
		}
		if eod {
			out = append(out, domain.Trigger{ID: domain.NewID(string(domain.T4), pr.Permalink), Type: domain.T4, Body: body})
		}
	}
	return out
}
