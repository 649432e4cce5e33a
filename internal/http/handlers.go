/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/HamedShams/board-nudge/internal/config"
	"github.com/HamedShams/board-nudge/internal/domain"
	"github.com/HamedShams/board-nudge/internal/render"
	"github.com/HamedShams/board-nudge/internal/services"
	"github.com/HamedShams/board-nudge/internal/store"
)

type Service interface {
	RunCycle(ctx context.Context) error
	RunBoardCheck(ctx context.Context) error
	Purge(ctx context.Context) (int, error)
	Snooze(ctx context.Context, key string) error
	Unsnooze(ctx context.Context, key string) error
	PersonalSummary(ctx context.Context, slackUserID, responseURL string) error
	LastRun(ctx context.Context, pipeline string) (*services.Snapshot, error)
	Triggers(ctx context.Context) ([]domain.Trigger, error)
}

type Handlers struct {
	cfg config.Config
	log zerolog.Logger
	svc Service
	// background runs detached work; tests replace it to run inline.
	background func(name string, fn func(ctx context.Context) error)
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc Service) *Handlers {
	h := &Handlers{cfg: cfg, log: log, svc: svc}
	h.background = func(name string, fn func(ctx context.Context) error) {
		// Detached from the request so the run outlives the response.
		go func() {
			if err := fn(context.Background()); err != nil && !errors.Is(err, services.ErrBusy) {
				h.log.Error().Err(err).Str("job", name).Msg("background run failed")
			}
		}()
	}
	return h
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// RequireAdmin checks the bearer token. Admin routes are closed when no token
// is configured.
func (h *Handlers) RequireAdmin(c *gin.Context) {
	if h.cfg.AdminToken == "" {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
		return
	}
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.AdminToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (h *Handlers) LastRun(c *gin.Context) {
	pipeline := c.DefaultQuery("pipeline", services.PipelineCycle)
	lr, err := h.svc.LastRun(c.Request.Context(), pipeline)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run recorded for " + pipeline})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, lr)
}

func (h *Handlers) Triggers(c *gin.Context) {
	list, err := h.svc.Triggers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(list), "triggers": list})
}

func (h *Handlers) RunNow(c *gin.Context) {
	h.background(services.PipelineCycle, h.svc.RunCycle)
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *Handlers) RunBoard(c *gin.Context) {
	h.background(services.PipelineBoard, h.svc.RunBoardCheck)
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *Handlers) Purge(c *gin.Context) {
	n, err := h.svc.Purge(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h *Handlers) validToken(token string) bool {
	return h.cfg.SlackVerificationToken != "" &&
		subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.SlackVerificationToken)) == 1
}

// SlackActions handles the snooze overflow menu of a posted message.
func (h *Handlers) SlackActions(c *gin.Context) {
	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(c.PostForm("payload")), &cb); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if !h.validToken(cb.Token) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	for _, a := range cb.ActionCallback.BlockActions {
		if a == nil || a.SelectedOption.Value == "" {
			continue
		}
		var err error
		switch a.ActionID {
		case render.ActionSnooze:
			err = h.svc.Snooze(c.Request.Context(), a.SelectedOption.Value)
		case render.ActionUnsnooze:
			err = h.svc.Unsnooze(c.Request.Context(), a.SelectedOption.Value)
		default:
			continue
		}
		if err != nil {
			h.log.Error().Err(err).Str("action", a.ActionID).Str("trigger", a.SelectedOption.Value).Msg("slack action failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		h.log.Info().Str("action", a.ActionID).Str("trigger", a.SelectedOption.Value).Str("user", cb.User.ID).Msg("slack action")
	}
	c.Status(http.StatusOK)
}

// SlackCommand acknowledges the slash command at once and sends the personal
// summary to its response URL when ready.
func (h *Handlers) SlackCommand(c *gin.Context) {
	cmd, err := slack.SlashCommandParse(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid command"})
		return
	}
	if !h.validToken(cmd.Token) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	userID, responseURL := cmd.UserID, cmd.ResponseURL
	h.background("summary", func(ctx context.Context) error {
		return h.svc.PersonalSummary(ctx, userID, responseURL)
	})
	c.JSON(http.StatusOK, gin.H{"response_type": slack.ResponseTypeEphemeral, "text": "Checking your cards..."})
}
