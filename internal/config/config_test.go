package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))
	return dir
}

func TestLoadConfig(t *testing.T) {
	uploads := filepath.Join(t.TempDir(), "uploads")
	dir := writeConfig(t, `
server:
  port: "9090"
  mode: debug
database:
  driver: sqlite
storage:
  type: local
  local_path: `+uploads+`
pipeline:
  review_threshold: 0.7
  extraction_timeout: 30s
  dispatch: local
  workers: 4
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.InDelta(t, 0.7, cfg.Pipeline.ReviewThreshold, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.ExtractionTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Pipeline.StuckAfter)
	assert.Equal(t, "local", cfg.Pipeline.Dispatch)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, "gemini", cfg.AI.Provider)

	_, err = os.Stat(uploads)
	assert.NoError(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"threshold above one":          "pipeline:\n  review_threshold: 1.5\n",
		"unknown dispatch":             "pipeline:\n  dispatch: kafka\n",
		"short release secret":         "server:\n  mode: release\njwt:\n  secret: short\n",
		"zero reap interval":           "pipeline:\n  reap_interval: 0s\n",
		"negative reap interval":       "pipeline:\n  reap_interval: -1m\n",
		"zero stuck after":             "pipeline:\n  stuck_after: 0s\n",
		"stuck after below timeout":    "pipeline:\n  extraction_timeout: 2m\n  stuck_after: 1m\n",
		"stuck after equal to timeout": "pipeline:\n  extraction_timeout: 90s\n  stuck_after: 90s\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			dir := writeConfig(t, body+"storage:\n  local_path: "+filepath.Join(t.TempDir(), "u")+"\n")
			_, err := LoadConfig(dir)
			assert.Error(t, err)
		})
	}
}
