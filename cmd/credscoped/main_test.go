package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credscope/credscope/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cfg := config.DefaultConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.URL = filepath.Join(t.TempDir(), "credscoped.db")
	cfg.Indexer.URL = ""
	cfg.Archive.Backend = "local"
	cfg.Archive.Path = t.TempDir()
	return cfg
}

func startDaemon(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d, err := setup(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	srv := httptest.NewServer(d.handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestSetupServesAPI(t *testing.T) {
	srv := startDaemon(t, testConfig(t))

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/tree")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Limit"))

	resp, err = http.Post(srv.URL+"/v1/score", "application/json", strings.NewReader(`{"target":"profileId:42"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSetupRequiresAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.APIKey = "secret"
	cfg.Server.RateLimit = 0
	srv := startDaemon(t, cfg)

	resp, err := http.Get(srv.URL + "/v1/tree")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("X-RateLimit-Limit"))

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/tree", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSetupRejectsBadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.RescoreSchedule = "whenever"
	_, err := setup(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "rescore schedule")
}

func TestSetupRejectsUnknownArchive(t *testing.T) {
	cfg := testConfig(t)
	cfg.Archive.Backend = "ftp"
	_, err := setup(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "unknown archive backend")
}
