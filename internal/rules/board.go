/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package rules

import (
	"github.com/HamedShams/board-nudge/internal/domain"
)

// BoardSummary counts task-board cards by category and by assignee. It is
// filled page by page while the board source is being read.
type BoardSummary struct {
	ready      map[domain.JobCategory]int
	inProgress map[string]int
	total      int
}

func NewBoardSummary() *BoardSummary {
	return &BoardSummary{
		ready:      make(map[domain.JobCategory]int, len(domain.Categories)),
		inProgress: make(map[string]int),
	}
}

// Add folds tasks into the summary. Tasks without a category still count toward
// their assignee's in-progress load.
func (s *BoardSummary) Add(tasks ...domain.BoardTask) {
	for _, t := range tasks {
		s.total++
		switch t.Status {
		case domain.StatusReady:
			if t.Category != "" {
				s.ready[t.Category]++
			}
		case domain.StatusInProgress:
			if t.AssigneeID != "" {
				s.inProgress[t.AssigneeID]++
			}
		}
	}
}

func (s *BoardSummary) Ready(c domain.JobCategory) int { return s.ready[c] }

func (s *BoardSummary) InProgress(accountID string) int { return s.inProgress[accountID] }

func (s *BoardSummary) Total() int { return s.total }

// EmptyCategories returns the categories with no Ready task, in domain.Categories order.
func (s *BoardSummary) EmptyCategories() []domain.JobCategory {
	var out []domain.JobCategory
	for _, c := range domain.Categories {
		if s.ready[c] == 0 {
			out = append(out, c)
		}
	}
	return out
}

// Board raises T8 per empty category, T9 per idle backend engineer and a single
// T10 when any category is empty. Engineers without a Jira id are skipped.
func (e Evaluator) Board(s *BoardSummary, backend []domain.User) []domain.Trigger {
	if s == nil {
		s = NewBoardSummary()
	}
	var out []domain.Trigger
	empty := s.EmptyCategories()
	for _, c := range empty {
		out = append(out, domain.Trigger{
			ID:   domain.NewID(string(domain.T8), string(c)),
			Type: domain.T8,
			Body: domain.BoardPayload{Category: c, Link: e.BoardLink},
		})
	}
	for _, u := range backend {
		if u.Jira == "" || s.InProgress(u.Jira) > 0 {
			continue
		}
		out = append(out, domain.Trigger{
			ID:   domain.NewID(string(domain.T9), u.Jira),
			Type: domain.T9,
			Body: domain.DeveloperPayload{Link: e.BoardLink, Developer: u},
		})
	}
	if len(empty) > 0 {
		out = append(out, BoardImbalance(e.BoardLink))
	}
	return out
}

// BoardImbalance builds the T10 trigger. Its id is fixed so the record can be
// cleared once the board is healthy again.
func BoardImbalance(link string) domain.Trigger {
	return domain.Trigger{
		ID:   BoardImbalanceID(),
		Type: domain.T10,
		Body: domain.BoardPayload{Link: link},
	}
}

func BoardImbalanceID() domain.ID { return domain.NewID(string(domain.T10)) }
