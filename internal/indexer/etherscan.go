// Package indexer looks up address history from an Etherscan-compatible API.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/credscope/credscope/internal/cache"
	"github.com/credscope/credscope/pkg/signals"
)

const noTransactions = "No transactions found"

// Client implements signals.ChainIndexer against the account/txlist endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	// first-seen timestamps never change once known
	seen *cache.LRU[time.Time]
}

var _ signals.ChainIndexer = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client. rps <= 0 disables client-side rate limiting.
func New(baseURL, apiKey string, rps float64, opts ...Option) *Client {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(limit, burst),
		logger:  slog.Default(),
		seen:    cache.NewLRU[time.Time](10000, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type txListResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type tx struct {
	TimeStamp string `json:"timeStamp"`
}

// FirstSeen returns the timestamp of the address's earliest transaction.
func (c *Client) FirstSeen(ctx context.Context, address string) (time.Time, bool, error) {
	key := strings.ToLower(address)
	if t, ok := c.seen.Get(key); ok {
		return t, true, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return time.Time{}, false, fmt.Errorf("rate limit wait: %w", err)
	}

	q := url.Values{}
	q.Set("module", "account")
	q.Set("action", "txlist")
	q.Set("address", address)
	q.Set("startblock", "0")
	q.Set("sort", "asc")
	q.Set("page", "1")
	q.Set("offset", "1")
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query indexer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, false, fmt.Errorf("indexer returned HTTP %d", resp.StatusCode)
	}

	var body txListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return time.Time{}, false, fmt.Errorf("decode indexer response: %w", err)
	}

	if body.Status != "1" {
		if strings.HasPrefix(body.Message, noTransactions) {
			return time.Time{}, false, nil
		}
		var detail string
		_ = json.Unmarshal(body.Result, &detail)
		return time.Time{}, false, fmt.Errorf("indexer error: %s %s", body.Message, detail)
	}

	var txs []tx
	if err := json.Unmarshal(body.Result, &txs); err != nil {
		return time.Time{}, false, fmt.Errorf("decode transactions: %w", err)
	}
	if len(txs) == 0 {
		return time.Time{}, false, nil
	}

	secs, err := strconv.ParseInt(txs[0].TimeStamp, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse timestamp %q: %w", txs[0].TimeStamp, err)
	}
	first := time.Unix(secs, 0).UTC()
	c.seen.Put(key, first)

	c.logger.DebugContext(ctx, "indexer first seen", "address", address, "first_seen", first)
	return first, true, nil
}
