package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, cacheTTL time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Options{URL: srv.URL + "/", ApplicationKey: "ptla_app", ClientKey: "ptlc_user", CacheTTL: cacheTTL})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestListServers_Paginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/application/servers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ptla_app", r.Header.Get("Authorization"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))

		page := r.URL.Query().Get("page")
		fmt.Fprintf(w, `{"data":[{"attributes":{"identifier":"srv%s","name":"Server %s","description":"mc survival","suspended":false,"limits":{"memory":1024,"disk":2048}}}],
			"meta":{"pagination":{"current_page":%s,"total_pages":2}}}`, page, page, page)
	})
	c := newTestClient(t, mux, 0)

	servers, err := c.ListServers(context.Background())
	require.NoError(t, err)

	require.Len(t, servers, 2)
	assert.Equal(t, models.UpstreamServer{
		ExternalID:  "srv1",
		Name:        "Server 1",
		Description: "mc survival",
		MemoryLimit: 1024 * 1024 * 1024,
		DiskLimit:   2048 * 1024 * 1024,
	}, servers[0])
	assert.Equal(t, "srv2", servers[1].ExternalID)
}

func TestGetResources_MapsAndCaches(t *testing.T) {
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/client/servers/abc123/resources", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "Bearer ptlc_user", r.Header.Get("Authorization"))
		w.Write([]byte(`{"object":"stats","attributes":{"current_state":"running","is_suspended":false,
			"resources":{"memory_bytes":536870912,"cpu_absolute":12.5,"disk_bytes":1000,"network_rx_bytes":10,"network_tx_bytes":20,"uptime":60000}}}`))
	})
	mux.HandleFunc("/api/client/servers/abc123/power", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, mux, time.Minute)

	snap, err := c.GetResources(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, snap.Status())
	assert.Equal(t, 12.5, snap.CPU)
	assert.Equal(t, int64(536870912), snap.MemoryBytes)
	assert.Equal(t, int64(60000), snap.UptimeMs)

	_, err = c.GetResources(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	require.NoError(t, c.SendPowerSignal(context.Background(), "abc123", models.SignalStop))
	_, err = c.GetResources(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestSendPowerSignal_Body(t *testing.T) {
	var got map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/client/servers/abc123/power", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, mux, 0)

	require.NoError(t, c.SendPowerSignal(context.Background(), "abc123", models.SignalRestart))
	assert.Equal(t, map[string]string{"signal": "restart"}, got)
}

func TestAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/client/servers/abc123/power", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"code":"ConflictHttpException"}]}`, http.StatusConflict)
	})
	c := newTestClient(t, mux, 0)

	err := c.SendPowerSignal(context.Background(), "abc123", models.SignalStart)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "Client", apiErr.API)
	assert.Contains(t, err.Error(), "Pterodactyl Client API error: 409")
}

func TestNotConfigured(t *testing.T) {
	c, err := New(Options{URL: "https://panel.example.com"})
	require.NoError(t, err)

	assert.False(t, c.Configured())
	_, err = c.ListServers(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.GetResources(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, c.SendPowerSignal(context.Background(), "x", models.SignalStop), ErrNotConfigured)
}

func TestSendPowerSignal_HonoursContext(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/api/client/servers/slow/power", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	c := newTestClient(t, mux, 0)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.SendPowerSignal(ctx, "slow", models.SignalStop)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
