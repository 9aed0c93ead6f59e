package roundtrip

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/momentics/hioload-rtt/api"
	"github.com/momentics/hioload-rtt/control"
	"github.com/momentics/hioload-rtt/transport/inproc"
)

func testConfig(t *testing.T, mode api.DeliveryMode, samples uint64) *control.RunConfig {
	t.Helper()
	cfg := &control.RunConfig{
		Mode:        mode,
		PayloadSize: 16,
		Samples:     samples,
		OutputPath:  filepath.Join(t.TempDir(), "raw_latency.csv"),
		Tunables:    control.DefaultTunables(),
	}
	cfg.WaitTimeout = 100 * time.Millisecond
	cfg.WarmUp = 2 * time.Second
	return cfg
}

func newTestHarness(t *testing.T, cfg *control.RunConfig) (*Harness, *control.Metrics) {
	t.Helper()
	dom := inproc.NewDomain()
	t.Cleanup(func() { _ = dom.Close() })
	m := control.NewMetrics()
	return NewHarness(cfg, dom, zaptest.NewLogger(t), m), m
}

func readTable(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestRunSampleBudget(t *testing.T) {
	for _, mode := range []api.DeliveryMode{api.DeliveryPoll, api.DeliveryPush} {
		t.Run(mode.String(), func(t *testing.T) {
			cfg := testConfig(t, mode, 1000)
			h, m := newTestHarness(t, cfg)

			require.NoError(t, h.Run(context.Background()))

			records := readTable(t, cfg.OutputPath)
			require.Len(t, records, 1001)
			require.Equal(t, []string{"Sample", "Payload [Bytes]", "Latency [us]"}, records[0])
			for i, rec := range records[1:] {
				require.Equal(t, strconv.Itoa(i+1), rec[0])
				require.Equal(t, "16", rec[1])
				lat, err := strconv.ParseFloat(rec[2], 64)
				require.NoError(t, err)
				require.GreaterOrEqual(t, lat, 0.0)
			}
			require.Equal(t, 1000.0, testutil.ToFloat64(m.RoundTrips))
			require.Equal(t, 1.0, testutil.ToFloat64(m.WarmUpReplies))
			require.Equal(t, StateStopped, h.responderState)
		})
	}
}

func TestRunStopAfterTenSamples(t *testing.T) {
	for _, mode := range []api.DeliveryMode{api.DeliveryPoll, api.DeliveryPush} {
		t.Run(mode.String(), func(t *testing.T) {
			cfg := testConfig(t, mode, 0)
			h, _ := newTestHarness(t, cfg)

			var stoppedAt atomic.Int64
			h.OnRecord = func(n int) {
				if n == 10 {
					stoppedAt.Store(time.Now().UnixNano())
					h.Stop()
				}
			}

			require.NoError(t, h.Run(context.Background()))
			require.Less(t, time.Since(time.Unix(0, stoppedAt.Load())), 2*time.Second)

			records := readTable(t, cfg.OutputPath)
			require.Len(t, records, 11)
			require.Equal(t, "10", records[10][0])
			require.Equal(t, StateStopped, h.responderState)
		})
	}
}

func TestRunZeroPayload(t *testing.T) {
	cfg := testConfig(t, api.DeliveryPoll, 50)
	cfg.PayloadSize = 0
	h, _ := newTestHarness(t, cfg)
	require.NoError(t, h.Run(context.Background()))

	records := readTable(t, cfg.OutputPath)
	require.Len(t, records, 51)
	require.Equal(t, "0", records[1][1])
}

func TestRunTimeBudget(t *testing.T) {
	cfg := testConfig(t, api.DeliveryPoll, 0)
	cfg.Timeout = 300 * time.Millisecond
	h, _ := newTestHarness(t, cfg)

	start := time.Now()
	require.NoError(t, h.Run(context.Background()))
	require.Less(t, time.Since(start), 5*time.Second)
	require.Greater(t, len(readTable(t, cfg.OutputPath)), 1)
}

func TestRunContextCancel(t *testing.T) {
	cfg := testConfig(t, api.DeliveryPush, 0)
	h, _ := newTestHarness(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, h.Run(ctx))
	require.Greater(t, len(readTable(t, cfg.OutputPath)), 1)
	require.Equal(t, StateStopped, h.responderState)
}

func TestRunRejectsOversizedPayload(t *testing.T) {
	cfg := testConfig(t, api.DeliveryPoll, 10)
	cfg.PayloadSize = api.MaxPayloadSize + 1
	tr := &countingTransport{}
	h := NewHarness(cfg, tr, zaptest.NewLogger(t), control.NewMetrics())

	err := h.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, api.ErrCodeConfiguration, api.CodeOf(err))
	require.Zero(t, tr.calls.Load())
	_, statErr := os.Stat(cfg.OutputPath)
	require.True(t, os.IsNotExist(statErr))
}

// A warm-up echo that arrives after the warm-up deadline must not be timed
// against the first measurement request.
func TestRunDiscardsLateWarmUpEcho(t *testing.T) {
	for _, mode := range []api.DeliveryMode{api.DeliveryPoll, api.DeliveryPush} {
		t.Run(mode.String(), func(t *testing.T) {
			cfg := testConfig(t, mode, 0)
			cfg.WarmUp = 100 * time.Millisecond
			cfg.Timeout = 700 * time.Millisecond
			dom := inproc.NewDomain()
			defer dom.Close()
			tr := &delayedTransport{Domain: dom, channel: cfg.ResponseChannel, delay: 300 * time.Millisecond}
			m := control.NewMetrics()
			h := NewHarness(cfg, tr, zaptest.NewLogger(t), m)

			require.NoError(t, h.Run(context.Background()))

			records := readTable(t, cfg.OutputPath)
			require.Greater(t, len(records), 1)
			for _, rec := range records[1:] {
				lat, err := strconv.ParseFloat(rec[2], 64)
				require.NoError(t, err)
				require.Less(t, lat, 100000.0, "sample %s timed a stale echo", rec[0])
			}
			require.Equal(t, 1.0, testutil.ToFloat64(m.WarmUpReplies))
		})
	}
}

func TestRunSummaryAndRequirements(t *testing.T) {
	cfg := testConfig(t, api.DeliveryPoll, 200)
	dir := t.TempDir()
	cfg.SummaryPath = filepath.Join(dir, "summary.csv")
	cfg.ChecksPath = filepath.Join(dir, "checks.csv")
	cfg.Requirements.Max = 1e-9
	h, _ := newTestHarness(t, cfg)

	err := h.Run(context.Background())
	require.ErrorIs(t, err, api.ErrRequirementsFailed)

	require.NotNil(t, h.Summary())
	require.Equal(t, 200, h.Summary().Samples)
	require.Len(t, readTable(t, cfg.SummaryPath), 2)
	checks := readTable(t, cfg.ChecksPath)
	require.Len(t, checks, 2)
	require.Equal(t, "failed", checks[1][6])
	require.Len(t, readTable(t, cfg.OutputPath), 201)
}

func TestQuit(t *testing.T) {
	cfg := testConfig(t, api.DeliveryPoll, 0)
	cfg.Quit = true
	h, m := newTestHarness(t, cfg)

	done := make(chan error, 1)
	go func() { done <- h.Quit(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("quit did not complete")
	}
	require.Equal(t, StateStopped, h.responderState)
	require.Equal(t, 1.0, testutil.ToFloat64(m.Terminations))
}

func TestRunTransportFailure(t *testing.T) {
	cfg := testConfig(t, api.DeliveryPoll, 10)
	dom := inproc.NewDomain()
	defer dom.Close()
	tr := &failingTransport{Domain: dom, channel: cfg.RequestChannel}
	h := NewHarness(cfg, tr, zaptest.NewLogger(t), control.NewMetrics())

	err := h.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, api.ErrCodeTransport, api.CodeOf(err))
	require.True(t, errors.Is(err, errPublish))
}

type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) CreateWriter(string, api.QoS) (api.Writer, error) {
	c.calls.Add(1)
	return nil, api.ErrNotSupported
}

func (c *countingTransport) CreateReader(string, api.QoS) (api.Reader, error) {
	c.calls.Add(1)
	return nil, api.ErrNotSupported
}

func (c *countingTransport) Close() error { return nil }

var errPublish = errors.New("publish refused")

// failingTransport refuses every publish on one channel.
type failingTransport struct {
	*inproc.Domain
	channel string
}

func (f *failingTransport) CreateWriter(name string, qos api.QoS) (api.Writer, error) {
	w, err := f.Domain.CreateWriter(name, qos)
	if err != nil || name != f.channel {
		return w, err
	}
	return failingWriter{w}, nil
}

type failingWriter struct{ api.Writer }

func (failingWriter) Publish(*api.Sample, int64) error { return errPublish }

// delayedTransport holds back the first publish on one channel.
type delayedTransport struct {
	*inproc.Domain
	channel string
	delay   time.Duration
}

func (d *delayedTransport) CreateWriter(name string, qos api.QoS) (api.Writer, error) {
	w, err := d.Domain.CreateWriter(name, qos)
	if err != nil || name != d.channel {
		return w, err
	}
	return &delayedWriter{Writer: w, delay: d.delay}, nil
}

type delayedWriter struct {
	api.Writer
	delay time.Duration
	once  sync.Once
}

func (w *delayedWriter) Publish(s *api.Sample, ts int64) error {
	held := false
	w.once.Do(func() {
		held = true
		late := &api.Sample{Payload: append([]byte(nil), s.Payload...)}
		time.AfterFunc(w.delay, func() { _ = w.Writer.Publish(late, ts) })
	})
	if held {
		return nil
	}
	return w.Writer.Publish(s, ts)
}
