// Package bootstrap assembles the store, signal lookups and scoring pipeline
// from configuration. The CLI and the daemon share it.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/credscope/credscope/internal/indexer"
	"github.com/credscope/credscope/internal/platform"
	"github.com/credscope/credscope/internal/socialcache"
	"github.com/credscope/credscope/internal/store"
	"github.com/credscope/credscope/pkg/config"
	"github.com/credscope/credscope/pkg/signals"
)

// DriverFor infers the SQL driver from a database URL. Anything that is not
// a postgres URL is treated as a sqlite file path.
func DriverFor(url string) string {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return platform.DriverPostgres
	}
	return platform.DriverSQLite
}

// OpenStore opens and migrates the configured database. A sqlite database
// without a path lives in the local cache directory.
func OpenStore(cfg *config.Config) (*store.Store, error) {
	driver, url := cfg.Database.Driver, cfg.Database.URL
	if driver == "" {
		driver = DriverFor(url)
	}
	if driver == platform.DriverSQLite && url == "" {
		url = config.LocalDatabasePath()
	}
	if driver == platform.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(url), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := platform.Open(driver, url)
	if err != nil {
		return nil, err
	}
	if err := pingAndMigrate(db, driver); err != nil {
		db.Close()
		return nil, err
	}
	return store.New(db, driver, store.WithMaxScoreAge(cfg.MaxScoreAge())), nil
}

func pingAndMigrate(db *sql.DB, driver string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if err := platform.AutoMigrate(db, driver); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// offlineIndexer knows no address history; every address scores zero age.
type offlineIndexer struct{}

func (offlineIndexer) FirstSeen(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

// Social builds the join date cache for the configured service. GitHub
// accounts are read from the GitHub API; other services from the store.
func Social(ctx context.Context, cfg *config.Config, st *store.Store, rdb *redis.Client, logger *slog.Logger) *socialcache.Cache {
	service := cfg.Social.Service
	var loader socialcache.Loader = st.JoinLoader(service)
	if service == socialcache.GitHubService {
		loader = socialcache.NewGitHubLoader(ctx, cfg.Social.GitHubToken)
	}
	return socialcache.New(
		socialcache.WithRedis(rdb),
		socialcache.WithLoader(service, loader),
		socialcache.WithTTL(time.Duration(cfg.Social.TTL)*time.Hour),
		socialcache.WithLogger(logger),
	)
}

// Lookups wires every signal collaborator. An empty indexer URL runs
// without chain history.
func Lookups(ctx context.Context, cfg *config.Config, st *store.Store, rdb *redis.Client, logger *slog.Logger) *signals.Lookups {
	var chain signals.ChainIndexer = offlineIndexer{}
	if cfg.Indexer.URL != "" {
		chain = indexer.New(cfg.Indexer.URL, cfg.Indexer.APIKey, cfg.Indexer.RequestsPerSecond,
			indexer.WithLogger(logger))
	} else {
		logger.WarnContext(ctx, "chain indexer not configured, address age will be zero")
	}
	return &signals.Lookups{
		Directory: st,
		Store:     st,
		Indexer:   chain,
		Social:    Social(ctx, cfg, st, rdb, logger),
		Scores:    st,
		Service:   cfg.Social.Service,
	}
}
