/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import (
	"strings"
	"time"
)

// Status is a Jira workflow status name.
type Status string

const (
	StatusBacklog             Status = "Backlog"
	StatusReady               Status = "Ready"
	StatusInProgress          Status = "In Progress"
	StatusDone                Status = "Done"
	StatusCanceled            Status = "Canceled"
	StatusUATStaging          Status = "UAT (Staging)"
	StatusUATProduction       Status = "UAT (Production)"
	StatusUATFailedStaging    Status = "UAT Failed (Staging)"
	StatusUATFailedProduction Status = "UAT Failed (Production)"
	StatusReadyForRelease     Status = "Ready for Release"
)

// Closed reports whether the status counts as finished work (Done or Canceled).
func (s Status) Closed() bool { return s == StatusDone || s == StatusCanceled }

type IssueType string

const (
	IssueTypeEpic      IssueType = "EPIC"
	IssueTypeStory     IssueType = "STORY"
	IssueTypeTask      IssueType = "TASK"
	IssueTypeSubtask   IssueType = "SUBTASK"
	IssueTypeBug       IssueType = "BUG"
	IssueTypeDefect    IssueType = "DEFECT"
	IssueTypeHotfix    IssueType = "HOTFIX"
	IssueTypeBasicTask IssueType = "BASIC_TASK"
)

// ParseIssueType maps a Jira issue type name ("Sub-task", "Story", "Basic Task") to an IssueType.
// Unknown names are kept upper-cased.
func ParseIssueType(name string) IssueType {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = strings.NewReplacer("-", "", " ", "_").Replace(n)
	switch n {
	case "SUBTASK", "SUB_TASK":
		return IssueTypeSubtask
	case "BASIC_TASK", "BASICTASK":
		return IssueTypeBasicTask
	}
	return IssueType(n)
}

// JobCategory is the Frontend/Backend tag carried by task-board subtasks.
type JobCategory string

const (
	JobFrontend JobCategory = "Frontend"
	JobBackend  JobCategory = "Backend"
)

// Categories lists the board categories in the order board checks report them.
var Categories = []JobCategory{JobFrontend, JobBackend}

// UserRef is the assignee reference as returned by the ticket source.
type UserRef struct {
	AccountID   string
	DisplayName string
}

type ParentRef struct {
	Key    string
	Type   IssueType
	Status Status
}

type Subtask struct {
	Key     string
	Type    IssueType
	Status  Status
	Summary string
}

type Issue struct {
	Key             string
	Summary         string
	Status          Status
	Type            IssueType
	Assignee        *UserRef
	Parent          *ParentRef
	Subtasks        []Subtask
	JobCategory     JobCategory
	StatusChangedAt *time.Time
	Link            string
}

// AssigneeID returns the assignee account id, or "" when unassigned.
func (i Issue) AssigneeID() string {
	if i.Assignee == nil {
		return ""
	}
	return i.Assignee.AccountID
}

type PullRequest struct {
	Title     string
	Number    int
	Merged    bool
	State     string
	CreatedAt time.Time
	UpdatedAt time.Time
	MergedAt  *time.Time
	Branch    string
	Author    string
	Body      string
	Permalink string
}

// BoardTask is a task-board card reduced to what board-health checks need.
type BoardTask struct {
	Key        string
	Status     Status
	Category   JobCategory
	AssigneeID string
}

// User is a roster entry: who a person is in each connected system.
type User struct {
	Name       string `json:"name" yaml:"name"`
	Department string `json:"department,omitempty" yaml:"department"`
	Jira       string `json:"jira,omitempty" yaml:"jira"`
	GitHub     string `json:"github,omitempty" yaml:"github"`
	Slack      string `json:"slack,omitempty" yaml:"slack"`
	Emoji      string `json:"emoji,omitempty" yaml:"emoji"`
}
