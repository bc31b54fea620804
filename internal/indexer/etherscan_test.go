package indexer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addr = "0x00000000000000000000000000000000000000a1"

func newServer(t *testing.T, status int, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "account", q.Get("module"))
		assert.Equal(t, "txlist", q.Get("action"))
		assert.Equal(t, "asc", q.Get("sort"))
		assert.Equal(t, "1", q.Get("offset"))
		assert.Equal(t, addr, q.Get("address"))
		assert.Equal(t, "secret", q.Get("apikey"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFirstSeen(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, http.StatusOK,
		`{"status":"1","message":"OK","result":[{"blockNumber":"54092","timeStamp":"1438269988","hash":"0x9c81"}]}`,
		&hits)

	c := New(srv.URL, "secret", 0)
	first, found, err := c.FirstSeen(context.Background(), addr)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, time.Unix(1438269988, 0).UTC(), first)

	// cached
	_, _, err = c.FirstSeen(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFirstSeenNoTransactions(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, http.StatusOK,
		`{"status":"0","message":"No transactions found","result":[]}`, &hits)

	_, found, err := New(srv.URL, "secret", 0).FirstSeen(context.Background(), addr)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFirstSeenErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"api error", http.StatusOK, `{"status":"0","message":"NOTOK","result":"Invalid API Key"}`, "Invalid API Key"},
		{"http error", http.StatusBadGateway, `bad gateway`, "HTTP 502"},
		{"malformed", http.StatusOK, `{"status":`, "decode"},
		{"bad timestamp", http.StatusOK, `{"status":"1","message":"OK","result":[{"timeStamp":"soon"}]}`, "parse timestamp"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := newServer(t, tc.status, tc.body, &hits)
			_, found, err := New(srv.URL, "secret", 0).FirstSeen(context.Background(), addr)
			require.Error(t, err)
			assert.False(t, found)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestFirstSeenHonoursContext(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, http.StatusOK, `{"status":"1","message":"OK","result":[]}`, &hits)

	// one token per minute; the second call must wait and give up on cancel
	c := New(srv.URL, "secret", 1.0/60)
	_, _, err := c.FirstSeen(context.Background(), addr)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = c.FirstSeen(ctx, addr)
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}
