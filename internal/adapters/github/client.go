/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package github

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/HamedShams/board-nudge/internal/config"
	"github.com/HamedShams/board-nudge/internal/domain"
	"github.com/HamedShams/board-nudge/internal/metrics"
)

type Client struct {
	api      *githubv4.Client
	pageSize int
	limiter  *rate.Limiter
	log      zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) (*Client, error) {
	if cfg.GitHubToken == "" {
		return nil, errors.New("github: empty token")
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHubToken})
	hc := oauth2.NewClient(context.Background(), src)
	hc.Timeout = cfg.HTTPTimeout
	return newClient(githubv4.NewClient(hc), cfg, log), nil
}

// NewEnterpriseClient targets a GitHub Enterprise (or test) GraphQL endpoint.
func NewEnterpriseClient(endpoint string, hc *http.Client, cfg config.Config, log zerolog.Logger) *Client {
	return newClient(githubv4.NewEnterpriseClient(endpoint, hc), cfg, log)
}

func newClient(api *githubv4.Client, cfg config.Config, log zerolog.Logger) *Client {
	rps := rate.Limit(cfg.GitHubRPS)
	if cfg.GitHubRPS <= 0 {
		rps = rate.Inf
	}
	size := cfg.GitHubPageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	return &Client{api: api, pageSize: size, limiter: rate.NewLimiter(rps, 1), log: log}
}

type pullRequestNode struct {
	Title       string
	Number      int
	Merged      bool
	State       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	MergedAt    *time.Time
	HeadRefName string
	Body        string
	Permalink   string
	Author      *struct {
		Login string
	}
}

type pullRequestsQuery struct {
	Repository struct {
		PullRequests struct {
			Nodes    []pullRequestNode
			PageInfo struct {
				HasNextPage bool
				EndCursor   githubv4.String
			}
		} `graphql:"pullRequests(first: $first, after: $after, states: [OPEN], orderBy: {field: UPDATED_AT, direction: DESC})"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// SplitRepo parses "owner/name".
func SplitRepo(full string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(full), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("github: repo %q is not owner/name", full)
	}
	return owner, name, nil
}

// PullRequests yields the open pull requests of repo ("owner/name") page by
// page, following the end cursor until the last page.
func (c *Client) PullRequests(ctx context.Context, repo string) iter.Seq2[[]domain.PullRequest, error] {
	return func(yield func([]domain.PullRequest, error) bool) {
		owner, name, err := SplitRepo(repo)
		if err != nil {
			yield(nil, err)
			return
		}
		vars := map[string]interface{}{
			"owner": githubv4.String(owner),
			"name":  githubv4.String(name),
			"first": githubv4.Int(c.pageSize),
			"after": (*githubv4.String)(nil),
		}
		for {
			if err := c.limiter.Wait(ctx); err != nil {
				yield(nil, err)
				return
			}
			var q pullRequestsQuery
			if err := c.api.Query(ctx, &q, vars); err != nil {
				metrics.SourceRequests.WithLabelValues("github", "error").Inc()
				yield(nil, fmt.Errorf("github pulls %s: %w", repo, err))
				return
			}
			metrics.SourceRequests.WithLabelValues("github", "ok").Inc()

			conn := q.Repository.PullRequests
			page := make([]domain.PullRequest, 0, len(conn.Nodes))
			for _, n := range conn.Nodes {
				page = append(page, toPullRequest(n))
			}
			if len(page) > 0 && !yield(page, nil) {
				return
			}
			if !conn.PageInfo.HasNextPage || conn.PageInfo.EndCursor == "" {
				return
			}
			cursor := conn.PageInfo.EndCursor
			vars["after"] = githubv4.NewString(cursor)
		}
	}
}

func toPullRequest(n pullRequestNode) domain.PullRequest {
	pr := domain.PullRequest{
		Title:     n.Title,
		Number:    n.Number,
		Merged:    n.Merged,
		State:     n.State,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		MergedAt:  n.MergedAt,
		Branch:    n.HeadRefName,
		Body:      n.Body,
		Permalink: n.Permalink,
	}
	if n.Author != nil {
		pr.Author = n.Author.Login
	}
	return pr
}
