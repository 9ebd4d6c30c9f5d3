package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 4, cfg.Scraper.Concurrency)
	require.Equal(t, 64, cfg.Scraper.QueueDepth)
	require.True(t, cfg.Scraper.RespectRobots)
	require.False(t, cfg.Scraper.RequireProxy)
	require.Equal(t, "chromedp", cfg.Render.Backend)
	require.Equal(t, "memory", cfg.Storage.Backend)
	require.Equal(t, "scrape_summaries", cfg.DB.Table)
	require.Equal(t, 30*time.Second, cfg.NavTimeout())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
scraper:
  concurrency: 8
  respect_robots: false
render:
  backend: static
storage:
  backend: local
  local_dir: /tmp/snapshots
proxy:
  endpoints:
    - server: http://p1:8080
      username: user
      password: pass
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 8, cfg.Scraper.Concurrency)
	require.False(t, cfg.Scraper.RespectRobots)
	require.Equal(t, "static", cfg.Render.Backend)
	require.Equal(t, "local", cfg.Storage.Backend)
	require.Len(t, cfg.Proxy.Endpoints, 1)
	require.Equal(t, "http://p1:8080", cfg.Proxy.Endpoints[0].Server)
	require.Equal(t, "user", cfg.Proxy.Endpoints[0].Username)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Scraper.Concurrency = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Render.Backend = "phantomjs"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Storage.Backend = "gcs"
	require.Error(t, cfg.Validate(), "gcs storage requires a bucket")

	cfg = base()
	cfg.Scraper.RequireProxy = true
	require.Error(t, cfg.Validate(), "require_proxy needs endpoints")

	cfg = base()
	cfg.Auth.Enabled = true
	require.Error(t, cfg.Validate(), "auth needs an api key")
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
