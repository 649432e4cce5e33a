/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	gojira "github.com/andygrunwald/go-jira"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/HamedShams/board-nudge/internal/config"
	"github.com/HamedShams/board-nudge/internal/domain"
	"github.com/HamedShams/board-nudge/internal/metrics"
)

const fieldStatusChanged = "statuscategorychangedate"

type Client struct {
	api      *gojira.Client
	baseURL  string
	jobField string
	pageSize int
	limiter  *rate.Limiter
	log      zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) (*Client, error) {
	if cfg.JiraBaseURL == "" {
		return nil, errors.New("jira: empty baseURL")
	}
	var hc *http.Client
	if cfg.JiraPAT != "" {
		tp := gojira.PATAuthTransport{Token: cfg.JiraPAT}
		hc = tp.Client()
	} else {
		tp := gojira.BasicAuthTransport{Username: cfg.JiraUsername, Password: cfg.JiraAPIToken}
		hc = tp.Client()
	}
	hc.Timeout = cfg.HTTPTimeout

	api, err := gojira.NewClient(hc, cfg.JiraBaseURL)
	if err != nil {
		return nil, fmt.Errorf("jira client: %w", err)
	}
	rps := rate.Limit(cfg.JiraRPS)
	if cfg.JiraRPS <= 0 {
		rps = rate.Inf
	}
	size := cfg.JiraPageSize
	if size <= 0 {
		size = 50
	}
	return &Client{
		api:      api,
		baseURL:  strings.TrimRight(cfg.JiraBaseURL, "/"),
		jobField: cfg.JiraJobCategoryField,
		pageSize: size,
		limiter:  rate.NewLimiter(rps, 1),
		log:      log,
	}, nil
}

func (c *Client) fields() []string {
	f := []string{"parent", "issuetype", "assignee", "status", "subtasks", "summary", fieldStatusChanged}
	if c.jobField != "" {
		f = append(f, c.jobField)
	}
	return f
}

// search fetches one page, retrying 429/5xx and transport errors with backoff.
func (c *Client) search(ctx context.Context, jql string, startAt int) ([]gojira.Issue, *gojira.Response, error) {
	opts := &gojira.SearchOptions{StartAt: startAt, MaxResults: c.pageSize, Fields: c.fields()}
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
		issues, resp, err := c.api.Issue.SearchWithContext(ctx, jql, opts)
		if err == nil {
			metrics.SourceRequests.WithLabelValues("jira", "ok").Inc()
			return issues, resp, nil
		}
		lastErr = err
		if resp != nil && resp.Response != nil && resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			break
		}
		metrics.SourceRequests.WithLabelValues("jira", "retry").Inc()
		c.log.Warn().Err(err).Int("attempt", attempt).Int("startAt", startAt).Msg("jira: search retry")
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
		}
	}
	metrics.SourceRequests.WithLabelValues("jira", "error").Inc()
	return nil, nil, fmt.Errorf("jira search startAt=%d: %w", startAt, lastErr)
}

// pages walks a JQL result one page at a time. Each page is requested only
// after the consumer has taken the previous one; breaking out stops paging.
func (c *Client) pages(ctx context.Context, jql string) iter.Seq2[[]gojira.Issue, error] {
	return func(yield func([]gojira.Issue, error) bool) {
		startAt := 0
		for {
			issues, resp, err := c.search(ctx, jql, startAt)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(issues) == 0 {
				return
			}
			if !yield(issues, nil) {
				return
			}
			startAt += len(issues)
			if resp != nil && resp.Total > 0 && startAt >= resp.Total {
				return
			}
		}
	}
}

// Issues yields mapped issues page by page.
func (c *Client) Issues(ctx context.Context, jql string) iter.Seq2[[]domain.Issue, error] {
	return func(yield func([]domain.Issue, error) bool) {
		for page, err := range c.pages(ctx, jql) {
			if err != nil {
				yield(nil, err)
				return
			}
			out := make([]domain.Issue, 0, len(page))
			for _, is := range page {
				out = append(out, c.toIssue(is))
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}

// BoardTasks yields task-board subtasks reduced to category, status and assignee.
func (c *Client) BoardTasks(ctx context.Context, jql string) iter.Seq2[[]domain.BoardTask, error] {
	return func(yield func([]domain.BoardTask, error) bool) {
		for page, err := range c.Issues(ctx, jql) {
			if err != nil {
				yield(nil, err)
				return
			}
			out := make([]domain.BoardTask, 0, len(page))
			for _, is := range page {
				out = append(out, domain.BoardTask{Key: is.Key, Status: is.Status, Category: is.JobCategory, AssigneeID: is.AssigneeID()})
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}

func (c *Client) BrowseURL(key string) string { return c.baseURL + "/browse/" + key }

// toIssue tolerates missing fields: absent parent, assignee or subtasks map to
// their zero values.
func (c *Client) toIssue(is gojira.Issue) domain.Issue {
	out := domain.Issue{Key: is.Key, Link: c.BrowseURL(is.Key)}
	f := is.Fields
	if f == nil {
		return out
	}
	out.Summary = f.Summary
	out.Type = domain.ParseIssueType(f.Type.Name)
	if f.Status != nil {
		out.Status = domain.Status(f.Status.Name)
	}
	if f.Assignee != nil && (f.Assignee.AccountID != "" || f.Assignee.Name != "") {
		id := f.Assignee.AccountID
		if id == "" {
			id = f.Assignee.Name
		}
		out.Assignee = &domain.UserRef{AccountID: id, DisplayName: f.Assignee.DisplayName}
	}
	if f.Parent != nil && f.Parent.Key != "" {
		out.Parent = &domain.ParentRef{Key: f.Parent.Key}
	}
	for _, st := range f.Subtasks {
		if st == nil {
			continue
		}
		sub := domain.Subtask{Key: st.Key, Summary: st.Fields.Summary, Type: domain.ParseIssueType(st.Fields.Type.Name)}
		if st.Fields.Status != nil {
			sub.Status = domain.Status(st.Fields.Status.Name)
		}
		out.Subtasks = append(out.Subtasks, sub)
	}
	if c.jobField != "" {
		out.JobCategory = jobCategory(f.Unknowns[c.jobField])
	}
	if s, ok := f.Unknowns[fieldStatusChanged].(string); ok {
		if t, err := parseJiraTime(s); err == nil {
			out.StatusChangedAt = &t
		}
	}
	return out
}

// jobCategory reads a select-list custom field ({"value": "Frontend"}), a
// plain string, or the first entry of a multi-select.
func jobCategory(v interface{}) domain.JobCategory {
	switch x := v.(type) {
	case string:
		return normalizeCategory(x)
	case map[string]interface{}:
		if s, ok := x["value"].(string); ok {
			return normalizeCategory(s)
		}
	case []interface{}:
		if len(x) > 0 {
			return jobCategory(x[0])
		}
	}
	return ""
}

func normalizeCategory(s string) domain.JobCategory {
	for _, c := range domain.Categories {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c
		}
	}
	return ""
}

func parseJiraTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04:05.000-0700", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("jira: bad time %q", s)
}
