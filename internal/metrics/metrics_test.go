package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFavorite(t *testing.T) {
	beforeOK := testutil.ToFloat64(FavoriteOps.WithLabelValues("add", "success"))
	beforeFail := testutil.ToFloat64(FavoriteOps.WithLabelValues("add", "failure"))

	RecordFavorite("add", nil)
	RecordFavorite("add", errors.New("disk full"))

	assert.Equal(t, beforeOK+1, testutil.ToFloat64(FavoriteOps.WithLabelValues("add", "success")))
	assert.Equal(t, beforeFail+1, testutil.ToFloat64(FavoriteOps.WithLabelValues("add", "failure")))
}

func TestRecordRefresh(t *testing.T) {
	at := time.Unix(1700000000, 0)
	before := testutil.ToFloat64(RefreshTotal.WithLabelValues("success"))

	RecordRefresh("success", at)

	assert.Equal(t, before+1, testutil.ToFloat64(RefreshTotal.WithLabelValues("success")))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(RefreshLastSuccess))

	RecordRefresh("failure", at.Add(time.Hour))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(RefreshLastSuccess))
}

func TestSetOnline(t *testing.T) {
	SetOnline(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(ConnectivityOnline))
	SetOnline(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(ConnectivityOnline))
}

func TestServer_ServesMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	RecordCatalogRequest("popular", "success", 10*time.Millisecond)

	srv := NewServer(ln.Addr().String(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.serve(ctx, ln) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	assert.True(t, strings.Contains(body, "reel_catalog_requests_total"))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, "metrics-server", srv.String())
}
