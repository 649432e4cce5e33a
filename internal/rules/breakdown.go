/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package rules

import (
	"slices"
	"strings"

	"github.com/HamedShams/board-nudge/internal/domain"
)

// AcceptanceTestingMarker identifies acceptance-test subtasks by summary text.
const AcceptanceTestingMarker = "acceptance testing"

// SubtaskBreakdown splits an issue's subtasks into dev cards and acceptance-test cards.
type SubtaskBreakdown struct {
	DevCards []domain.Subtask
	ATCards  []domain.Subtask

	// Unique statuses in first-seen order.
	CardStatuses []domain.Status
	DevStatuses  []domain.Status
	ATStatuses   []domain.Status

	AllDevCardsDone bool
	AllATCardsDone  bool
}

// IsAcceptanceTest matches the marker anywhere in the summary, case-insensitively.
func IsAcceptanceTest(s domain.Subtask) bool {
	return strings.Contains(strings.ToLower(s.Summary), AcceptanceTestingMarker)
}

// Breakdown classifies the subtasks of issue. It never fails: an issue without
// subtasks yields empty lists and both flags false.
func Breakdown(issue domain.Issue) SubtaskBreakdown {
	var b SubtaskBreakdown
	for _, st := range issue.Subtasks {
		if IsAcceptanceTest(st) {
			b.ATCards = append(b.ATCards, st)
			b.ATStatuses = appendUnique(b.ATStatuses, st.Status)
		} else {
			b.DevCards = append(b.DevCards, st)
			b.DevStatuses = appendUnique(b.DevStatuses, st.Status)
		}
		b.CardStatuses = appendUnique(b.CardStatuses, st.Status)
	}
	b.AllDevCardsDone = len(b.DevCards) > 0 && allClosed(b.DevStatuses)
	b.AllATCardsDone = len(b.ATCards) > 0 && allClosed(b.ATStatuses)
	return b
}

// HasAT reports whether any acceptance-test card is in one of the given statuses.
func (b SubtaskBreakdown) HasAT(statuses ...domain.Status) bool {
	return containsAny(b.ATStatuses, statuses)
}

// HasCard reports whether any subtask is in one of the given statuses.
func (b SubtaskBreakdown) HasCard(statuses ...domain.Status) bool {
	return containsAny(b.CardStatuses, statuses)
}

func allClosed(statuses []domain.Status) bool {
	for _, s := range statuses {
		if !s.Closed() {
			return false
		}
	}
	return true
}

func appendUnique(list []domain.Status, s domain.Status) []domain.Status {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}

func containsAny(have, want []domain.Status) bool {
	for _, w := range want {
		if slices.Contains(have, w) {
			return true
		}
	}
	return false
}
