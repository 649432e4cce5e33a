/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HamedShams/board-nudge/internal/config"
	"github.com/HamedShams/board-nudge/internal/render"
)

func sample() []render.Block {
	s := render.Section("*Title*\n>```https://jira/browse/ROW-1```")
	s.Accessory = &render.Accessory{ActionID: render.ActionSnooze, Options: []render.Option{{Text: "Snooze ROW-1", Value: "T1-ROW-1"}}}
	return []render.Block{render.Section("header"), render.Divider(), s, render.Context("note")}
}

func TestBlocksConversion(t *testing.T) {
	out := Blocks(sample())
	require.Len(t, out, 4)
	assert.Equal(t, slack.MBTSection, out[0].BlockType())
	assert.Equal(t, slack.MBTDivider, out[1].BlockType())
	assert.Equal(t, slack.MBTContext, out[3].BlockType())

	sec, ok := out[2].(*slack.SectionBlock)
	require.True(t, ok)
	assert.Equal(t, slack.MarkdownType, sec.Text.Type)
	require.NotNil(t, sec.Accessory)
	require.NotNil(t, sec.Accessory.OverflowElement)
	assert.Equal(t, "snooze", sec.Accessory.OverflowElement.ActionID)
	require.Len(t, sec.Accessory.OverflowElement.Options, 1)
	assert.Equal(t, "T1-ROW-1", sec.Accessory.OverflowElement.Options[0].Value)

	plain, ok := out[0].(*slack.SectionBlock)
	require.True(t, ok)
	assert.Nil(t, plain.Accessory)
}

func TestPostSendsBlocks(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": "C1", "ts": "1700000000.0001"})
	}))
	defer srv.Close()

	c, err := NewClient(config.Config{SlackBotToken: "xoxb-test", HTTPTimeout: 5 * time.Second}, zerolog.Nop(), WithAPIURL(srv.URL+"/"))
	require.NoError(t, err)

	ts, err := c.Post(context.Background(), "C1", "Quick Check: 1 item needs attention", sample())
	require.NoError(t, err)
	assert.Equal(t, "1700000000.0001", ts)
	assert.Equal(t, "C1", form["channel"][0])
	assert.Equal(t, "Quick Check: 1 item needs attention", form["text"][0])
	assert.Contains(t, form["blocks"][0], `"action_id":"snooze"`)
}

func TestPostReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
	}))
	defer srv.Close()

	c, err := NewClient(config.Config{SlackBotToken: "xoxb-test"}, zerolog.Nop(), WithAPIURL(srv.URL+"/"))
	require.NoError(t, err)
	_, err = c.Post(context.Background(), "C404", "x", sample())
	assert.ErrorContains(t, err, "channel_not_found")

	_, err = c.Post(context.Background(), "", "x", sample())
	assert.Error(t, err)
}

func TestRespondIsEphemeral(t *testing.T) {
	var got slack.WebhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(config.Config{SlackBotToken: "xoxb-test"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, c.Respond(context.Background(), srv.URL, "summary", sample()))
	assert.Equal(t, "summary", got.Text)
	assert.Equal(t, slack.ResponseTypeEphemeral, got.ResponseType)
	require.NotNil(t, got.Blocks)
	assert.Len(t, got.Blocks.BlockSet, 4)
}

func TestNewClientNeedsToken(t *testing.T) {
	_, err := NewClient(config.Config{}, zerolog.Nop())
	assert.Error(t, err)
}
