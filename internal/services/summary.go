/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HamedShams/board-nudge/internal/domain"
	"github.com/HamedShams/board-nudge/internal/render"
	"github.com/HamedShams/board-nudge/internal/rules"
)

var ErrUnknownUser = errors.New("user is not in the roster")

// PersonalSummary answers the slash command: the caller's open cards with
// their progress, the reminders that apply to them right now (cooldowns
// ignored) and an optional coaching note.
func (s *Service) PersonalSummary(ctx context.Context, slackUserID, responseURL string) error {
	if s.deps.Responder == nil {
		return errors.New("personal summary: no responder configured")
	}
	var u *domain.User
	if s.deps.Users != nil {
		u = s.deps.Users.BySlack(slackUserID)
	}
	if u == nil || u.Jira == "" {
		msg := "I couldn't find your Jira account in the team roster."
		if err := s.deps.Responder.Respond(ctx, responseURL, msg, []render.Block{render.Section(msg)}); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrUnknownUser, slackUserID)
	}

	now := s.now()
	var (
		lines    []string
		triggers []domain.Trigger
	)
	for page, err := range s.deps.Issues.Issues(ctx, fmt.Sprintf(s.cfg.JiraPersonalJQL, u.Jira)) {
		if err != nil {
			return fmt.Errorf("fetch personal issues: %w", err)
		}
		for _, is := range page {
			lines = append(lines, SummaryLine(is, now))
			triggers = append(triggers, s.eval.Issue(is)...)
		}
	}

	blocks := []render.Block{render.Section(fmt.Sprintf("*Open cards for %s*", u.Name))}
	if len(lines) == 0 {
		blocks = append(blocks, render.Section("_Nothing open right now._"))
	} else {
		blocks = append(blocks, render.Section(">```"+strings.Join(lines, "\n")+"```"))
	}

	res, err := render.Render(triggers)
	if err != nil {
		s.log.Warn().Err(err).Msg("personal summary: some groups were dropped")
	}
	if len(res.Blocks) > 0 {
		blocks = append(blocks, render.Divider())
		blocks = append(blocks, res.Blocks...)
	}

	if s.deps.Coach != nil && s.deps.Coach.Enabled() && len(lines) > 0 {
		note, err := s.deps.Coach.Coach(ctx, u.Name, lines)
		if err != nil {
			s.log.Warn().Err(err).Str("user", u.Name).Msg("coach note skipped")
		} else if note != "" {
			blocks = append(blocks, render.Divider(), render.Context(note))
		}
	}

	fallback := fmt.Sprintf("%d open cards, %d reminders", len(lines), len(res.Triggers))
	return s.deps.Responder.Respond(ctx, responseURL, fallback, blocks)
}

// SummaryLine renders one issue as
// "ROW-1 [In Progress] dev 2/3 done, AT Backlog, 3h in status".
func SummaryLine(is domain.Issue, now time.Time) string {
	b := rules.Breakdown(is)
	parts := []string{fmt.Sprintf("%s [%s]", is.Key, is.Status)}
	if len(b.DevCards) > 0 {
		done := 0
		for _, c := range b.DevCards {
			if c.Status.Closed() {
				done++
			}
		}
		parts = append(parts, fmt.Sprintf("dev %d/%d done", done, len(b.DevCards)))
	}
	if len(b.ATCards) > 0 {
		st := make([]string, 0, len(b.ATStatuses))
		for _, x := range b.ATStatuses {
			st = append(st, string(x))
		}
		parts = append(parts, "AT "+strings.Join(st, "/"))
	}
	if is.StatusChangedAt != nil {
		parts = append(parts, age(now.Sub(*is.StatusChangedAt))+" in status")
	}
	line := parts[0]
	if len(parts) > 1 {
		line += " " + strings.Join(parts[1:], ", ")
	}
	return line
}

func age(d time.Duration) string {
	switch {
	case d < 0:
		return "0m"
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return fmt.Sprintf("%dm", int(d/time.Minute))
}
