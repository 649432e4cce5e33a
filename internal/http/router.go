/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/HamedShams/board-nudge/internal/config"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc Service) *gin.Engine {
	return route(cfg, log, NewHandlers(cfg, log, svc))
}

func route(cfg config.Config, log zerolog.Logger, h *Handlers) *gin.Engine {
	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Next()
		log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
	})

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/slack/actions", h.SlackActions)
	r.POST("/slack/commands", h.SlackCommand)

	admin := r.Group("/admin", h.RequireAdmin)
	admin.GET("/last-run", h.LastRun)
	admin.GET("/triggers", h.Triggers)
	admin.POST("/run", h.RunNow)
	admin.POST("/board", h.RunBoard)
	admin.POST("/purge", h.Purge)

	return r
}
