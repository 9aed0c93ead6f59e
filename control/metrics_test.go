package control

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.RoundTrips.Add(3)
	m.Echoes.Inc()
	m.LatencyMax.Set(12.5)

	require.Equal(t, 3.0, testutil.ToFloat64(m.RoundTrips))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Echoes))
	require.Equal(t, 12.5, testutil.ToFloat64(m.LatencyMax))

	require.NoError(t, m.RegisterGaugeFunc("rtt_test_gauge", "test gauge", func() float64 { return 42 }))
	require.Error(t, m.RegisterGaugeFunc("rtt_test_gauge", "test gauge", func() float64 { return 0 }))
}

func TestMetricsServe(t *testing.T) {
	m := NewMetrics()
	m.Terminations.Inc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addr, err := m.Serve(ctx, "127.0.0.1:0", zaptest.NewLogger(t))
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "rtt_terminations_total 1"))
}
