package inproc

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-rtt/api"
	"github.com/momentics/hioload-rtt/internal/concurrency"
	"github.com/momentics/hioload-rtt/pool"
)

func open(t *testing.T, qos api.QoS) (*Domain, api.Writer, api.Reader) {
	t.Helper()
	d := NewDomain()
	t.Cleanup(func() { _ = d.Close() })
	r, err := d.CreateReader("ping", qos)
	require.NoError(t, err)
	w, err := d.CreateWriter("ping", qos)
	require.NoError(t, err)
	return d, w, r
}

func TestPublishOrderAndDisposeLast(t *testing.T) {
	_, w, r := open(t, api.DefaultQoS())

	s := &api.Sample{Payload: make([]byte, 4)}
	for i := 0; i < 10; i++ {
		s.Payload[0] = byte(i)
		require.NoError(t, w.Publish(s, int64(1000+i)))
	}
	require.NoError(t, w.Dispose())
	require.Equal(t, 11, r.Pending())
	require.True(t, r.Triggered())

	b := pool.NewSampleBatch(100, 4)
	n, err := r.Take(b.Samples(), b.Infos())
	require.NoError(t, err)
	require.Equal(t, 11, n)
	for i := 0; i < 10; i++ {
		smp, info := b.Get(i)
		require.Equal(t, byte(i), smp.Payload[0])
		require.Equal(t, int64(1000+i), info.SourceTimestamp)
		require.True(t, info.ValidData)
		require.Equal(t, api.InstanceAlive, info.State)
	}
	_, last := b.Get(10)
	require.False(t, last.ValidData)
	require.Equal(t, api.InstanceDisposed, last.State)
	require.False(t, r.Triggered())
}

func TestTakeRespectsBatchSize(t *testing.T) {
	_, w, r := open(t, api.DefaultQoS())
	for i := 0; i < 250; i++ {
		require.NoError(t, w.Publish(&api.Sample{}, int64(i)))
	}
	b := pool.NewSampleBatch(100, 0)
	var got []int
	for r.Pending() > 0 {
		n, err := r.Take(b.Samples(), b.Infos())
		require.NoError(t, err)
		got = append(got, n)
	}
	require.Equal(t, []int{100, 100, 50}, got)
}

func TestZeroSizePayload(t *testing.T) {
	_, w, r := open(t, api.DefaultQoS())
	require.NoError(t, w.Publish(&api.Sample{Payload: []byte{}}, 7))

	b := pool.NewSampleBatch(1, 8)
	n, err := r.Take(b.Samples(), b.Infos())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	smp, info := b.Get(0)
	require.Empty(t, smp.Payload)
	require.Equal(t, int64(7), info.SourceTimestamp)
}

func TestPublishCopiesPayload(t *testing.T) {
	_, w, r := open(t, api.DefaultQoS())
	s := &api.Sample{Payload: []byte("abcd")}
	require.NoError(t, w.Publish(s, 1))
	copy(s.Payload, "zzzz")

	b := pool.NewSampleBatch(1, 4)
	_, err := r.Take(b.Samples(), b.Infos())
	require.NoError(t, err)
	smp, _ := b.Get(0)
	require.Equal(t, "abcd", string(smp.Payload))
}

func TestReliableTimesOutWhenFull(t *testing.T) {
	qos := api.QoS{Reliability: api.Reliable, MaxBlocking: 50 * time.Millisecond, Depth: 2}
	_, w, r := open(t, qos)

	require.NoError(t, w.Publish(&api.Sample{}, 1))
	require.NoError(t, w.Publish(&api.Sample{}, 2))

	start := time.Now()
	err := w.Publish(&api.Sample{}, 3)
	require.ErrorIs(t, err, api.ErrOperationTimeout)
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	require.Equal(t, 2, r.Pending())
}

func TestReliableUnblocksOnTake(t *testing.T) {
	qos := api.QoS{Reliability: api.Reliable, MaxBlocking: 5 * time.Second, Depth: 1}
	_, w, r := open(t, qos)
	require.NoError(t, w.Publish(&api.Sample{}, 1))

	go func() {
		time.Sleep(20 * time.Millisecond)
		b := pool.NewSampleBatch(1, 0)
		_, _ = r.Take(b.Samples(), b.Infos())
	}()
	require.NoError(t, w.Publish(&api.Sample{}, 2))
	require.Equal(t, 1, r.Pending())
}

func TestBestEffortDrops(t *testing.T) {
	qos := api.QoS{Reliability: api.BestEffort, Depth: 1}
	_, w, r := open(t, qos)
	require.NoError(t, w.Publish(&api.Sample{}, 1))

	start := time.Now()
	require.NoError(t, w.Publish(&api.Sample{}, 2))
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, 1, r.Pending())
}

func TestReaderWakesWaitset(t *testing.T) {
	_, w, r := open(t, api.DefaultQoS())
	ws := concurrency.NewWaitset()
	defer ws.Close()
	require.NoError(t, ws.Attach(r))

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = w.Publish(&api.Sample{}, 1)
	}()
	start := time.Now()
	n, err := ws.Wait(10 * time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Less(t, time.Since(start), time.Second)
}

func TestListenerDelivery(t *testing.T) {
	_, w, r := open(t, api.DefaultQoS())

	var taken atomic.Int32
	done := make(chan struct{})
	b := pool.NewSampleBatch(100, 0)
	require.NoError(t, r.SetListener(func(rd api.Reader) {
		n, _ := rd.Take(b.Samples(), b.Infos())
		if taken.Add(int32(n)) == 300 {
			close(done)
		}
	}))
	for i := 0; i < 300; i++ {
		require.NoError(t, w.Publish(&api.Sample{}, int64(i)))
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("listener took %d of 300", taken.Load())
	}
	require.NoError(t, r.SetListener(nil))
}

func TestClosedEndpoints(t *testing.T) {
	d, w, r := open(t, api.DefaultQoS())
	require.NoError(t, r.Close())
	require.NoError(t, w.Publish(&api.Sample{}, 1))

	b := pool.NewSampleBatch(1, 0)
	_, err := r.Take(b.Samples(), b.Infos())
	require.ErrorIs(t, err, api.ErrTransportClosed)

	require.NoError(t, d.Close())
	require.True(t, errors.Is(w.Publish(&api.Sample{}, 2), api.ErrTransportClosed))
	_, err = d.CreateReader("pong", api.DefaultQoS())
	require.ErrorIs(t, err, api.ErrTransportClosed)
}

func TestEmptyChannelName(t *testing.T) {
	d := NewDomain()
	defer d.Close()
	_, err := d.CreateWriter("", api.DefaultQoS())
	require.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestBuffersReused(t *testing.T) {
	d, w, r := open(t, api.DefaultQoS())
	s := &api.Sample{Payload: make([]byte, 64)}
	b := pool.NewSampleBatch(1, 64)
	for i := 0; i < 100; i++ {
		require.NoError(t, w.Publish(s, int64(i)))
		_, err := r.Take(b.Samples(), b.Infos())
		require.NoError(t, err)
	}
	st := d.BufferStats()
	require.Greater(t, st.TotalReuse, int64(0))
	require.Less(t, st.TotalAlloc, int64(100))
	env := d.EnvelopeStats()
	require.Equal(t, int64(100), env.Recycled)
	require.GreaterOrEqual(t, env.Created, int64(1))
}

func TestRecycledEnvelopeCarriesNoPayload(t *testing.T) {
	d, w, r := open(t, api.DefaultQoS())
	b := pool.NewSampleBatch(1, 8)
	require.NoError(t, w.Publish(&api.Sample{Payload: []byte("abcd")}, 1))
	_, err := r.Take(b.Samples(), b.Infos())
	require.NoError(t, err)

	// a zero-length publish must not surface the previous payload
	require.NoError(t, w.Publish(&api.Sample{}, 2))
	n, err := r.Take(b.Samples(), b.Infos())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Empty(t, b.Samples()[0].Payload)
	require.Equal(t, int64(2), b.Infos()[0].SourceTimestamp)
	require.Equal(t, int64(1), d.BufferStats().TotalFree)
}
