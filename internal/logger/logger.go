/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/HamedShams/board-nudge/internal/config"
)

func New(cfg config.Config) zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New with an explicit destination. Timestamps are rendered
// in the business timezone.
func NewWithWriter(cfg config.Config, w io.Writer) zerolog.Logger {
	loc := cfg.Location()
	zerolog.TimestampFunc = func() time.Time { return time.Now().In(loc) }
	if cfg.AppEnv == "dev" {
		output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		logger := zerolog.New(output).With().Timestamp().Logger()
		log.Logger = logger
		return logger
	}
	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(w).With().Timestamp().Str("svc", "board-nudge").Logger()
	log.Logger = logger
	return logger
}
