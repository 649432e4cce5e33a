/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package render

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/HamedShams/board-nudge/internal/domain"
)

var ErrUnknownTriggerType = errors.New("unknown trigger type")

var titles = map[domain.TriggerType]string{
	domain.T1:  "Tasks are ready to be tested by our QAs",
	domain.T2:  "All subtasks are done, kindly update the status",
	domain.T3:  "Pull request is in stale for more than 5 minutes",
	domain.T4:  "Kindly close before the day ends",
	domain.T5:  "These cards should be in In Progress status",
	domain.T6:  "Are we sure these tasks are ready for testing?",
	domain.T7:  "Can we check if these cards needs acceptance testing?",
	domain.T8:  "No ready tasks in the board for backend/frontend",
	domain.T9:  "No currently task assigned in these BE devs",
	domain.T10: "Let's keep this moving. See if there are backlogs that can be move to ready",
}

func Title(t domain.TriggerType) (string, bool) {
	s, ok := titles[t]
	return s, ok
}

type Kind string

const (
	KindSection Kind = "section"
	KindDivider Kind = "divider"
	KindContext Kind = "context"
)

// Action ids carried by the overflow menu of each group.
const (
	ActionSnooze   = "snooze"
	ActionUnsnooze = "unsnooze"
)

type Option struct {
	Text  string `json:"text"`
	Value string `json:"value"`
}

// Accessory is an overflow menu attached to a section.
type Accessory struct {
	ActionID string   `json:"action_id"`
	Options  []Option `json:"options"`
}

// Block is a chat-agnostic display block. Text is mrkdwn.
type Block struct {
	Kind      Kind       `json:"kind"`
	Text      string     `json:"text,omitempty"`
	Accessory *Accessory `json:"accessory,omitempty"`
}

func Section(text string) Block { return Block{Kind: KindSection, Text: text} }
func Divider() Block            { return Block{Kind: KindDivider} }
func Context(text string) Block { return Block{Kind: KindContext, Text: text} }

// Result is what Render produced: the blocks and the triggers that made it
// into them, flattened in display order.
type Result struct {
	Blocks   []Block
	Triggers []domain.Trigger
}

// Mention formats a roster user as "emoji <@slack>"; users without a Slack id
// produce "".
func Mention(u *domain.User) string {
	if u == nil || strings.TrimSpace(u.Slack) == "" {
		return ""
	}
	m := "<@" + strings.TrimSpace(u.Slack) + ">"
	if u.Emoji != "" {
		m = u.Emoji + " " + m
	}
	return m
}

// Render builds one section per trigger type, in first-seen order, separated
// by dividers. Groups of an unknown type are left out and reported through an
// error wrapping ErrUnknownTriggerType; the other groups still render.
func Render(triggers []domain.Trigger) (Result, error) {
	var (
		order  []domain.TriggerType
		groups = map[domain.TriggerType][]domain.Trigger{}
	)
	for _, t := range triggers {
		if _, ok := groups[t.Type]; !ok {
			order = append(order, t.Type)
		}
		groups[t.Type] = append(groups[t.Type], t)
	}

	var (
		res  Result
		errs []error
	)
	for _, typ := range order {
		block, ok, err := section(typ, groups[typ])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		if len(res.Blocks) > 0 {
			res.Blocks = append(res.Blocks, Divider())
		}
		res.Blocks = append(res.Blocks, block)
		res.Triggers = append(res.Triggers, groups[typ]...)
	}
	return res, errors.Join(errs...)
}

func section(typ domain.TriggerType, group []domain.Trigger) (Block, bool, error) {
	title, ok := Title(typ)
	if !ok {
		return Block{}, false, fmt.Errorf("%w %q (%d triggers dropped)", ErrUnknownTriggerType, typ, len(group))
	}
	var (
		links   []string
		mention []string
		opts    []Option
	)
	for _, t := range group {
		if t.Body == nil {
			continue
		}
		line := t.Body.Href()
		r := t.Body.Recipient()
		if r != nil && r.Name != "" && r.Name != line {
			line += " - " + r.Name
		}
		links = append(links, line)
		if m := Mention(r); m != "" && !slices.Contains(mention, m) {
			mention = append(mention, m)
		}
		opts = append(opts, Option{Text: clip("Snooze "+optionLabel(t), maxOptionText), Value: t.ID.Key()})
	}
	if len(links) == 0 {
		return Block{}, false, nil
	}

	text := []string{"*" + title + "*", ">```" + strings.Join(links, "\n") + "```"}
	if len(mention) > 0 {
		text = append(text, ">cc: "+strings.Join(mention, ", "))
	}
	b := Section(strings.Join(text, "\n"))
	b.Accessory = &Accessory{ActionID: ActionSnooze, Options: capOptions(opts)}
	return b, true, nil
}

// optionLabel is the short name of a trigger in the snooze menu. Pull
// requests show as repo#number rather than their permalink.
func optionLabel(t domain.Trigger) string {
	switch b := t.Body.(type) {
	case domain.IssuePayload:
		if b.Key != "" {
			return b.Key
		}
	case domain.PullRequestPayload:
		if l := pullLabel(b.Link); l != "" {
			return l
		}
		if b.Branch != "" {
			return b.Branch
		}
	case domain.DeveloperPayload:
		if b.Developer.Name != "" {
			return b.Developer.Name
		}
	case domain.BoardPayload:
		if b.Category != "" {
			return string(b.Category)
		}
	}
	if len(t.ID) > 1 {
		return strings.Join(t.ID[1:], domain.IDSeparator)
	}
	return t.ID.Key()
}

// pullLabel turns https://github.com/org/repo/pull/12 into repo#12.
func pullLabel(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	n := len(parts)
	if n < 3 || parts[n-2] != "pull" || parts[n-1] == "" {
		return ""
	}
	return parts[n-3] + "#" + parts[n-1]
}

// Slack rejects option text longer than this.
const maxOptionText = 75

func clip(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

// Slack rejects overflow menus with more than five options.
const maxOptions = 5

func capOptions(opts []Option) []Option {
	if len(opts) <= maxOptions {
		return opts
	}
	return opts[:maxOptions]
}
