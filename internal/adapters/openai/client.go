/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rs/zerolog"

	"github.com/HamedShams/board-nudge/internal/config"
)

const coachPrompt = "You are a friendly scrum master. Given a developer's open cards and the board reminders that apply to them, " +
	"write at most three short bullet points in Slack mrkdwn suggesting what to move or close next. Do not repeat the card list."

var ErrDisabled = errors.New("openai: missing key")

// Client writes the optional coaching note appended to a personal summary.
type Client struct {
	key   string
	model string
	cli   openai.Client
	log   zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger, opts ...option.RequestOption) *Client {
	model := cfg.OpenAIModel
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	base := []option.RequestOption{option.WithAPIKey(cfg.OpenAIKey), option.WithMaxRetries(1)}
	if cfg.OpenAITimeout > 0 {
		base = append(base, option.WithRequestTimeout(cfg.OpenAITimeout))
	}
	return &Client{key: cfg.OpenAIKey, model: model, cli: openai.NewClient(append(base, opts...)...), log: log}
}

// Enabled reports whether a key is configured.
func (c *Client) Enabled() bool { return c != nil && strings.TrimSpace(c.key) != "" }

// Coach returns a short note for name based on the summary lines.
func (c *Client) Coach(ctx context.Context, name string, lines []string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	c.log.Debug().Str("model", c.model).Int("lines", len(lines)).Msg("openai coach call")
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(coachPrompt),
			openai.UserMessage(fmt.Sprintf("Developer: %s\n%s", name, strings.Join(lines, "\n"))),
		},
	}
	resp, err := c.cli.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai coach: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
