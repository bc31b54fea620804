package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credscope/credscope/internal/platform"
	"github.com/credscope/credscope/pkg/config"
	"github.com/credscope/credscope/pkg/scoring"
	"github.com/credscope/credscope/pkg/signals"
)

func TestDriverFor(t *testing.T) {
	assert.Equal(t, platform.DriverPostgres, DriverFor("postgres://u@localhost/credscope"))
	assert.Equal(t, platform.DriverPostgres, DriverFor("postgresql://localhost/credscope"))
	assert.Equal(t, platform.DriverSQLite, DriverFor("/tmp/credscope.db"))
	assert.Equal(t, platform.DriverSQLite, DriverFor(""))
}

func TestOpenStoreAndLookups(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.URL = filepath.Join(t.TempDir(), "nested", "credscope.db")
	cfg.Indexer.URL = ""

	st, err := OpenStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { st.DB().Close() })

	ctx := context.Background()
	_, err = st.Import(ctx, strings.NewReader(`
profiles:
  - id: 1
    accounts:
      - {service: x.com, id: "1001", username: alice, joined: 2019-04-01T00:00:00Z}
`))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lookups := Lookups(ctx, cfg, st, nil, logger)

	joined, found, err := lookups.Social.JoinDate(ctx, "x.com", "1001")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC), joined)

	_, found, err = lookups.Indexer.FirstSeen(ctx, "0x8ba1f109551bd432803012645ac136ddd64dba72")
	require.NoError(t, err)
	assert.False(t, found)

	engine, err := scoring.NewEngine(cfg.Tree(), lookups.Registry(signals.Provisional{}))
	require.NoError(t, err)
	result, err := engine.ComputeScore(ctx, scoring.ProfileTarget(1))
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Greater(t, result.Signals[scoring.SignalSocialAge].Raw, 2000.0)
}
