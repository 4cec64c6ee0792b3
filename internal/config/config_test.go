package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taskdash/internal/config"
)

// clearEnv unsets every variable the config reads so the host environment
// does not leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TASKDASH_API_URL", "TASKDASH_GRAPHQL_URL", "TASKDASH_WS_URL",
		"TASKDASH_TIMEOUT", "TASKDASH_DEFAULT_TEAM",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestNew_Defaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := config.New(dir)
	require.NoError(t, err)

	require.Equal(t, dir, cfg.Dir)
	require.Equal(t, "http://localhost:3000", cfg.API.URL)
	require.Equal(t, "http://localhost:3000/graphql", cfg.API.GraphQLURL)
	require.Equal(t, "ws://localhost:3000/graphql", cfg.API.WSURL)
	require.Equal(t, 10*time.Second, cfg.API.Timeout)
	require.Equal(t, "team-A", cfg.API.DefaultTeam)
	require.Equal(t, filepath.Join(dir, "session.json"), cfg.SessionPath())
}

func TestNew_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("TASKDASH_API_URL", "https://tasks.example.com/")
	t.Setenv("TASKDASH_TIMEOUT", "3s")
	t.Setenv("TASKDASH_DEFAULT_TEAM", "team-Z")

	cfg, err := config.New(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "https://tasks.example.com", cfg.API.URL)
	require.Equal(t, "https://tasks.example.com/graphql", cfg.API.GraphQLURL)
	require.Equal(t, "wss://tasks.example.com/graphql", cfg.API.WSURL)
	require.Equal(t, 3*time.Second, cfg.API.Timeout)
	require.Equal(t, "team-Z", cfg.API.DefaultTeam)
}

func TestNew_ConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	yml := "api_url: http://gateway:4000\nws_url: ws://push:4001/subscriptions\ndefault_team: team-Q\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFile), []byte(yml), 0600))

	cfg, err := config.New(dir)
	require.NoError(t, err)

	require.Equal(t, "http://gateway:4000", cfg.API.URL)
	require.Equal(t, "http://gateway:4000/graphql", cfg.API.GraphQLURL)
	require.Equal(t, "ws://push:4001/subscriptions", cfg.API.WSURL)
	require.Equal(t, "team-Q", cfg.API.DefaultTeam)
}

func TestNew_InvalidURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("TASKDASH_API_URL", "not a url")

	_, err := config.New(t.TempDir())
	require.ErrorContains(t, err, "invalid api url")
}

func TestOverrideAPIURL(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	yml := "ws_url: ws://push:4001/subscriptions\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFile), []byte(yml), 0600))

	cfg, err := config.New(dir)
	require.NoError(t, err)
	require.NoError(t, cfg.OverrideAPIURL("https://other.example.com"))

	require.Equal(t, "https://other.example.com", cfg.API.URL)
	require.Equal(t, "https://other.example.com/graphql", cfg.API.GraphQLURL)
	require.Equal(t, "ws://push:4001/subscriptions", cfg.API.WSURL, "explicit endpoint kept")
}

func TestDefaultConfigDir(t *testing.T) {
	t.Run("XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
		require.Equal(t, filepath.Join("/tmp/xdg", "taskdash"), config.DefaultConfigDir())
	})

	t.Run("HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/tmp/home")
		require.Equal(t, filepath.Join("/tmp/home", ".config", "taskdash"), config.DefaultConfigDir())
	})
}

func TestEnsureDir(t *testing.T) {
	cfg := &config.Config{Dir: filepath.Join(t.TempDir(), "nested", "taskdash")}
	require.NoError(t, cfg.EnsureDir())

	info, err := os.Stat(cfg.Dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
	require.Equal(t, os.FileMode(0700), info.Mode().Perm())
}
