/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("APP_TZ", "UTC")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "badger", cfg.StoreDriver)
	assert.False(t, cfg.UsePostgres())
	assert.Equal(t, "*/2 * * * *", cfg.CycleCron)
	assert.Equal(t, 24*time.Hour, cfg.TriggerTTL)
	assert.Equal(t, 5*time.Minute, cfg.PRStaleAfter)
	assert.Equal(t, 20, cfg.DedupConcurrency)
	assert.Equal(t, "UTC", cfg.Location().String())

	h, m, err := cfg.EndOfDayClock()
	require.NoError(t, err)
	assert.Equal(t, 17, h)
	assert.Equal(t, 30, m)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tz: UTC
store_driver: postgres
slack_channel: C-file
github_repos: [acme/web, acme/api]
cooldowns: "T3:45m"
`), 0o600))
	t.Setenv("SLACK_CHANNEL", "C-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.UsePostgres())
	assert.Equal(t, "C-env", cfg.SlackChannel)
	assert.Equal(t, []string{"acme/web", "acme/api"}, cfg.GitHubRepos)
	assert.Equal(t, "T3:45m", cfg.Cooldowns)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("APP_TZ", "UTC")
	t.Setenv("END_OF_DAY", "5pm")
	_, err := Load("")
	assert.ErrorContains(t, err, "END_OF_DAY")

	t.Setenv("END_OF_DAY", "17:30")
	t.Setenv("WORK_START_HOUR", "19")
	t.Setenv("WORK_END_HOUR", "8")
	_, err = Load("")
	assert.ErrorContains(t, err, "working hours")

	t.Setenv("WORK_START_HOUR", "8")
	t.Setenv("WORK_END_HOUR", "19")
	t.Setenv("APP_TZ", "Nowhere/Atlantis")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLocationFallback(t *testing.T) {
	var cfg Config
	assert.Equal(t, time.Local, cfg.Location())
	zone := time.FixedZone("PHT", 8*3600)
	assert.Equal(t, zone, cfg.WithLocation(zone).Location())
}

func TestPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, "config/config.yaml", Path())
	t.Setenv("CONFIG_PATH", "/etc/nudge.yaml")
	assert.Equal(t, "/etc/nudge.yaml", Path())
}
