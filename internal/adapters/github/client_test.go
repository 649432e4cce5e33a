/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HamedShams/board-nudge/internal/config"
	"github.com/HamedShams/board-nudge/internal/domain"
)

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func node(n int, branch, login string) map[string]any {
	var author any
	if login != "" {
		author = map[string]any{"login": login}
	}
	return map[string]any{
		"title":       "PR",
		"number":      n,
		"merged":      false,
		"state":       "OPEN",
		"createdAt":   "2025-03-04T01:00:00Z",
		"updatedAt":   "2025-03-04T02:00:00Z",
		"mergedAt":    nil,
		"headRefName": branch,
		"body":        "",
		"permalink":   "https://github.com/acme/web/pull/1",
		"author":      author,
	}
}

func TestPullRequestsFollowsCursor(t *testing.T) {
	var afters []any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Query, "pullRequests(first: $first, after: $after, states: [OPEN]")
		assert.Equal(t, "acme", req.Variables["owner"])
		afters = append(afters, req.Variables["after"])

		conn := map[string]any{
			"nodes":    []any{node(1, "feature/x", "sara")},
			"pageInfo": map[string]any{"hasNextPage": true, "endCursor": "c1"},
		}
		if req.Variables["after"] == "c1" {
			conn = map[string]any{
				"nodes":    []any{node(2, "feature/y", "")},
				"pageInfo": map[string]any{"hasNextPage": false, "endCursor": "c2"},
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"repository": map[string]any{"pullRequests": conn}}})
	}))
	defer srv.Close()

	c := NewEnterpriseClient(srv.URL, srv.Client(), config.Config{GitHubPageSize: 1}, zerolog.Nop())
	var got []domain.PullRequest
	for page, err := range c.PullRequests(context.Background(), "acme/web") {
		require.NoError(t, err)
		got = append(got, page...)
	}

	require.Len(t, got, 2)
	assert.Equal(t, []any{nil, "c1"}, afters)
	assert.Equal(t, "feature/x", got[0].Branch)
	assert.Equal(t, "sara", got[0].Author)
	assert.Equal(t, 2, got[0].UpdatedAt.Hour())
	assert.Nil(t, got[0].MergedAt)
	assert.Equal(t, "", got[1].Author)
}

func TestPullRequestsReportsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"errors": []any{map[string]any{"message": "Could not resolve to a Repository"}}})
	}))
	defer srv.Close()

	c := NewEnterpriseClient(srv.URL, srv.Client(), config.Config{}, zerolog.Nop())
	var gotErr error
	for _, err := range c.PullRequests(context.Background(), "acme/missing") {
		gotErr = err
	}
	assert.ErrorContains(t, gotErr, "Could not resolve")
}

func TestSplitRepo(t *testing.T) {
	owner, name, err := SplitRepo(" acme/web ")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "web", name)

	for _, bad := range []string{"acme", "/web", "acme/", "a/b/c"} {
		_, _, err := SplitRepo(bad)
		assert.Error(t, err, bad)
	}

	c := NewEnterpriseClient("http://unused", http.DefaultClient, config.Config{}, zerolog.Nop())
	for _, err := range c.PullRequests(context.Background(), "bad") {
		assert.Error(t, err)
	}
}
