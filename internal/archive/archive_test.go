package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credscope/credscope/pkg/config"
	"github.com/credscope/credscope/pkg/scoring"
	"github.com/credscope/credscope/pkg/surface"
)

func sample() *surface.Explained {
	result := &scoring.ScoreResult{
		Target: scoring.ServiceUsernameTarget("x.com", "alice"),
		Score:  1015,
		Signals: map[scoring.SignalName]scoring.SignalResult{
			scoring.SignalReviewImpact: {Name: scoring.SignalReviewImpact, Raw: 15.09, Weighted: 15.09},
		},
	}
	e := surface.Explain(scoring.DefaultTree(), result)
	e.ID = "3f1c2d9e-0000-4000-8000-000000000001"
	e.ComputedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return e
}

func TestKey(t *testing.T) {
	assert.Equal(t, "results/profileId_42/abc.json", Key("profileId:42", "abc"))
	assert.Equal(t, "results/service_x.com_username_alice/abc.json",
		Key("service:x.com:username:alice", "abc"))
}

func TestLocalArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := New(NewLocalStorage(dir))
	ctx := context.Background()

	e := sample()
	key, err := a.Save(ctx, e)
	require.NoError(t, err)

	// Verify file path layout
	_, err = os.Stat(filepath.Join(dir, "results", "service_x.com_username_alice", e.ID+".json"))
	require.NoError(t, err, key)

	got, err := a.Load(ctx, e.Target, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Score, got.Score)
	assert.Equal(t, e.Breakdown, got.Breakdown)
	assert.True(t, e.ComputedAt.Equal(got.ComputedAt))
}

func TestLocalArchiveNotFound(t *testing.T) {
	a := New(NewLocalStorage(t.TempDir()))
	_, err := a.Load(context.Background(), "profileId:1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRequiresID(t *testing.T) {
	a := New(NewLocalStorage(t.TempDir()))
	e := sample()
	e.ID = ""
	_, err := a.Save(context.Background(), e)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	a, err := Open(ctx, config.ArchiveConfig{})
	require.NoError(t, err)
	assert.Nil(t, a)

	a, err = Open(ctx, config.ArchiveConfig{Backend: "local", Path: t.TempDir()})
	require.NoError(t, err)
	assert.NotNil(t, a)

	_, err = Open(ctx, config.ArchiveConfig{Backend: "s3"})
	assert.Error(t, err)

	_, err = Open(ctx, config.ArchiveConfig{Backend: "ftp"})
	assert.Error(t, err)
}
