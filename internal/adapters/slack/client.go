/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/HamedShams/board-nudge/internal/config"
	"github.com/HamedShams/board-nudge/internal/metrics"
	"github.com/HamedShams/board-nudge/internal/render"
)

const maxAttempts = 3

type Client struct {
	api *slack.Client
	log zerolog.Logger
}

type Option = slack.Option

// WithAPIURL points the client at another Slack API root (tests).
func WithAPIURL(u string) Option { return slack.OptionAPIURL(u) }

func NewClient(cfg config.Config, log zerolog.Logger, opts ...Option) (*Client, error) {
	if cfg.SlackBotToken == "" {
		return nil, errors.New("slack: missing bot token")
	}
	hc := &http.Client{Timeout: cfg.HTTPTimeout}
	opts = append([]Option{slack.OptionHTTPClient(hc)}, opts...)
	return &Client{api: slack.New(cfg.SlackBotToken, opts...), log: log}, nil
}

// Post sends blocks to channel and returns the message timestamp. Rate-limited
// calls are retried after the delay Slack asks for.
func (c *Client) Post(ctx context.Context, channel, fallback string, blocks []render.Block) (string, error) {
	if channel == "" {
		return "", errors.New("slack: missing channel")
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		_, ts, err := c.api.PostMessageContext(ctx, channel,
			slack.MsgOptionText(fallback, false),
			slack.MsgOptionBlocks(Blocks(blocks)...),
		)
		if err == nil {
			metrics.MessagesPosted.WithLabelValues(channel, "ok").Inc()
			return ts, nil
		}
		lastErr = err
		var rl *slack.RateLimitedError
		if !errors.As(err, &rl) {
			break
		}
		c.log.Warn().Dur("retry_after", rl.RetryAfter).Str("channel", channel).Msg("slack: rate limited")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(rl.RetryAfter):
		}
	}
	metrics.MessagesPosted.WithLabelValues(channel, "error").Inc()
	return "", fmt.Errorf("slack post %s: %w", channel, lastErr)
}

// Respond answers a slash command or interaction through its response URL.
// The reply is only visible to the user who asked.
func (c *Client) Respond(ctx context.Context, responseURL, fallback string, blocks []render.Block) error {
	msg := &slack.WebhookMessage{
		Text:         fallback,
		ResponseType: slack.ResponseTypeEphemeral,
		Blocks:       &slack.Blocks{BlockSet: Blocks(blocks)},
	}
	if err := slack.PostWebhookContext(ctx, responseURL, msg); err != nil {
		return fmt.Errorf("slack respond: %w", err)
	}
	return nil
}

// Blocks converts rendered blocks into Slack Block Kit blocks.
func Blocks(in []render.Block) []slack.Block {
	out := make([]slack.Block, 0, len(in))
	for _, b := range in {
		switch b.Kind {
		case render.KindDivider:
			out = append(out, slack.NewDividerBlock())
		case render.KindContext:
			out = append(out, slack.NewContextBlock("", mrkdwn(b.Text)))
		default:
			out = append(out, slack.NewSectionBlock(mrkdwn(b.Text), nil, accessory(b.Accessory)))
		}
	}
	return out
}

func mrkdwn(s string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, s, false, false)
}

func accessory(a *render.Accessory) *slack.Accessory {
	if a == nil || len(a.Options) == 0 {
		return nil
	}
	opts := make([]*slack.OptionBlockObject, 0, len(a.Options))
	for _, o := range a.Options {
		text := slack.NewTextBlockObject(slack.PlainTextType, o.Text, false, false)
		opts = append(opts, slack.NewOptionBlockObject(o.Value, text, nil))
	}
	return slack.NewAccessory(slack.NewOverflowBlockElement(a.ActionID, opts...))
}
