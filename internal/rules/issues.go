/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package rules

import (
	"github.com/HamedShams/board-nudge/internal/domain"
)

// Resolver maps external account ids to roster users. Lookups that miss return nil.
type Resolver interface {
	ByJira(accountID string) *domain.User
	ByGitHub(login string) *domain.User
}

// Evaluator turns source records into triggers. The zero value is usable:
// recipients stay empty and pull-request thresholds use DefaultPullPolicy.
type Evaluator struct {
	Users     Resolver
	Pulls     PullPolicy
	BoardLink string
}

func (e Evaluator) jiraUser(id string) *domain.User {
	if e.Users == nil || id == "" {
		return nil
	}
	return e.Users.ByJira(id)
}

// Issue evaluates the subtask rules for one issue, in order:
//
//	T5  parent Ready/Backlog while a subtask is In Progress or Ready; stops evaluation
//	T7  parent In Progress, dev cards but no acceptance testing
//	T1  dev cards done, an acceptance-test card still in Backlog
//	T2  dev cards done, acceptance testing absent or closed, parent In Progress
//	T6  dev cards open while acceptance testing is Ready or In Progress
//
// T1, T2 and T6 are mutually exclusive; T7 can fire alongside one of them.
func (e Evaluator) Issue(issue domain.Issue) []domain.Trigger {
	if len(issue.Subtasks) == 0 {
		return nil
	}
	b := Breakdown(issue)
	body := domain.IssuePayload{
		Key:     issue.Key,
		Link:    issue.Link,
		Summary: issue.Summary,
		Status:  issue.Status,
		Owner:   e.jiraUser(issue.AssigneeID()),
	}
	fire := func(t domain.TriggerType) domain.Trigger {
		return domain.Trigger{ID: domain.NewID(string(t), issue.Key), Type: t, Body: body}
	}

	if issue.Status == domain.StatusReady || issue.Status == domain.StatusBacklog {
		if b.HasCard(domain.StatusInProgress, domain.StatusReady) {
			return []domain.Trigger{fire(domain.T5)}
		}
	}

	var out []domain.Trigger
	if issue.Status == domain.StatusInProgress && len(b.ATCards) == 0 && len(b.DevCards) > 0 {
		out = append(out, fire(domain.T7))
	}

	switch {
	case b.AllDevCardsDone && len(b.ATCards) > 0 && b.HasAT(domain.StatusBacklog):
		out = append(out, fire(domain.T1))
	case b.AllDevCardsDone && (len(b.ATCards) == 0 || b.AllATCardsDone) && issue.Status == domain.StatusInProgress:
		out = append(out, fire(domain.T2))
	case len(b.DevCards) > 0 && !b.AllDevCardsDone && b.HasAT(domain.StatusInProgress, domain.StatusReady):
		out = append(out, fire(domain.T6))
	}
	return out
}

// Issues evaluates every issue and concatenates the results in input order.
func (e Evaluator) Issues(issues []domain.Issue) []domain.Trigger {
	var out []domain.Trigger
	for _, is := range issues {
		out = append(out, e.Issue(is)...)
	}
	return out
}
