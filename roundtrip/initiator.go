// File: roundtrip/initiator.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Initiator publishes timed requests and records the round trip of each
// echo. Only the first response of a take is timed; the rest are drained to
// keep the backlog bounded. A new request goes out immediately after every
// recorded response, so exactly one request is in flight. A response is
// only timed if it answers that request; anything older, such as a warm-up
// echo that outlived the warm-up deadline, is discarded.

package roundtrip

import (
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/hioload-rtt/api"
	"github.com/momentics/hioload-rtt/control"
	"github.com/momentics/hioload-rtt/internal/clock"
	"github.com/momentics/hioload-rtt/internal/concurrency"
	"github.com/momentics/hioload-rtt/pool"
	"github.com/momentics/hioload-rtt/report"
	"github.com/momentics/hioload-rtt/stats"
)

// InitiatorConfig parameterizes an Initiator.
type InitiatorConfig struct {
	Payload    int
	Samples    uint64        // 0 = unbounded
	Timeout    time.Duration // 0 = unbounded
	Mode       api.DeliveryMode
	OutputPath string // "" skips the export
	CPU        int    // pinned CPU, -1 = not pinned
	Tunables   control.Tunables

	// OnRecord, if set, is called with the running count after every
	// recorded round trip, on the goroutine running the handler.
	OnRecord func(count int)
}

// Initiator is the timing side of a run.
type Initiator struct {
	cfg     InitiatorConfig
	tr      api.Transport
	log     *zap.Logger
	metrics *control.Metrics

	stop     *concurrency.Flag
	warmed   *concurrency.Guard // warm-up reply seen, attached during warm-up only
	progress *concurrency.Guard // budget reached
	ws       *concurrency.Waitset
	delivery delivery

	writer api.Writer
	reader api.Reader
	batch  *pool.SampleBatch
	sample *api.Sample
	stats  *stats.TimeStats

	warmingUp atomic.Bool
	finished  atomic.Bool
	inFlight  atomic.Int64 // source timestamp of the request awaiting its echo
}

// NewInitiator creates an Initiator; stop is its cancellation flag.
func NewInitiator(cfg InitiatorConfig, tr api.Transport, stop *concurrency.Flag,
	log *zap.Logger, metrics *control.Metrics) *Initiator {
	return &Initiator{
		cfg:      cfg,
		tr:       tr,
		log:      log.Named("initiator"),
		metrics:  metrics,
		stop:     stop,
		warmed:   concurrency.NewGuard(),
		progress: concurrency.NewGuard(),
		ws:       concurrency.NewWaitset(),
		delivery: newDelivery(cfg.Mode),
	}
}

// Open creates the endpoints and allocates every buffer used by the loop.
func (in *Initiator) Open() error {
	if in.cfg.Payload < 0 || in.cfg.Payload > api.MaxPayloadSize {
		return api.NewError(api.ErrCodeConfiguration, "payload size out of range").
			WithContext("payload", in.cfg.Payload)
	}
	t := in.cfg.Tunables
	var err error
	if in.writer, err = in.tr.CreateWriter(t.RequestChannel, t.QoS()); err != nil {
		return transportError("create writer", t.RequestChannel, err)
	}
	if in.reader, err = in.tr.CreateReader(t.ResponseChannel, t.QoS()); err != nil {
		return transportError("create reader", t.ResponseChannel, err)
	}
	in.batch = pool.NewSampleBatch(t.BatchSize, slotCapacity(in.cfg.Payload, t.BatchSize))
	in.sample = pool.NewFilledSample(in.cfg.Payload, 'a')
	in.stats = stats.New(t.StatsIncrement, t.StatsLimit)

	if err := in.ws.Attach(in.stop); err != nil {
		return err
	}
	return in.ws.Attach(in.progress)
}

// Run performs the warm-up, the measurement loop and the export. Transport
// and allocation failures end the run with an error.
func (in *Initiator) Run() (err error) {
	if in.cfg.CPU >= 0 {
		if perr := concurrency.PinCurrentThread(in.cfg.CPU); perr != nil {
			in.log.Warn("cpu pinning failed", zap.Int("cpu", in.cfg.CPU), zap.Error(perr))
		} else {
			defer func() { _ = concurrency.UnpinCurrentThread() }()
		}
	}

	if err = in.delivery.arm(in.reader, in.ws, in.onData); err != nil {
		return transportError("arm delivery", in.cfg.Tunables.ResponseChannel, err)
	}
	disarmed := false
	defer func() {
		if !disarmed {
			_ = in.delivery.disarm()
		}
	}()

	if err = in.warmUp(); err != nil {
		return err
	}
	if err = in.measure(); err != nil {
		return err
	}

	_ = in.delivery.disarm()
	disarmed = true
	return in.export()
}

func (in *Initiator) warmUp() error {
	in.log.Info("waiting for startup jitter to stabilise")
	in.warmingUp.Store(true)
	if err := in.ws.Attach(in.warmed); err != nil {
		return err
	}
	if err := in.publish(); err != nil {
		return err
	}

	deadline := clock.Now() + int64(in.cfg.Tunables.WarmUp)
	for !in.stop.Triggered() && !in.warmed.Triggered() {
		remaining := time.Duration(deadline - clock.Now())
		if remaining <= 0 {
			break
		}
		if err := in.waitAndDeliver(min(in.cfg.Tunables.WaitTimeout, remaining)); err != nil {
			return err
		}
	}

	if !in.warmed.Triggered() {
		in.log.Warn("warm up deadline passed without a reply",
			zap.Duration("warmup", in.cfg.Tunables.WarmUp))
	}
	_ = in.ws.Detach(in.warmed)

	// stats are reset and the warm-up request retired before the handler
	// may record anything
	in.stats.Reset()
	in.inFlight.Store(math.MaxInt64)
	in.warmingUp.Store(false)
	in.log.Info("warm up complete")
	return nil
}

func (in *Initiator) measure() error {
	if in.stop.Triggered() {
		return nil
	}
	var deadline int64
	if in.cfg.Timeout > 0 {
		deadline = clock.Now() + int64(in.cfg.Timeout)
	}
	if err := in.publish(); err != nil {
		return err
	}

	for !in.stop.Triggered() && !in.finished.Load() {
		wait := in.cfg.Tunables.WaitTimeout
		if deadline != 0 {
			remaining := time.Duration(deadline - clock.Now())
			if remaining <= 0 {
				in.log.Debug("time budget elapsed")
				break
			}
			wait = min(wait, remaining)
		}
		if err := in.waitAndDeliver(wait); err != nil {
			return err
		}
	}
	return nil
}

func (in *Initiator) waitAndDeliver(timeout time.Duration) error {
	n, err := in.ws.Wait(timeout)
	if err != nil {
		return transportError("wait", in.cfg.Tunables.ResponseChannel, err)
	}
	if n == 0 {
		return nil
	}
	return in.delivery.wake()
}

// onData is the shared take/record/republish handler.
func (in *Initiator) onData() error {
	samples, infos := in.batch.Samples(), in.batch.Infos()
	n, err := in.reader.Take(samples, infos)
	if err != nil {
		return transportError("take", in.cfg.Tunables.ResponseChannel, err)
	}
	if n == 0 {
		return nil
	}
	// warmingUp before inFlight: once warm-up is over the sentinel is visible
	warming := in.warmingUp.Load()
	request := in.inFlight.Load()
	if warming {
		for i := 0; i < n; i++ {
			if !infos[i].ValidData {
				continue
			}
			in.metrics.WarmUpReplies.Inc()
			if infos[i].SourceTimestamp == request {
				in.warmed.Raise()
			}
		}
		return nil
	}

	first := -1
	for i := 0; i < n; i++ {
		if !infos[i].ValidData {
			continue
		}
		if infos[i].SourceTimestamp < request {
			in.metrics.WarmUpReplies.Inc()
			continue
		}
		if first < 0 {
			first = i
		}
	}
	if first < 0 || in.finished.Load() || in.stop.Triggered() {
		return nil
	}

	if err := in.stats.Record(int64(clock.Since(infos[first].SourceTimestamp))); err != nil {
		return err
	}
	in.metrics.RoundTrips.Inc()
	count := in.stats.Count()
	if in.cfg.OnRecord != nil {
		in.cfg.OnRecord(count)
	}
	if in.cfg.Samples > 0 && uint64(count) >= in.cfg.Samples {
		in.finished.Store(true)
		in.progress.Raise()
		return nil
	}
	if in.stop.Triggered() {
		return nil
	}
	return in.publish()
}

func (in *Initiator) publish() error {
	ts := clock.Now()
	in.inFlight.Store(ts)
	if err := in.writer.Publish(in.sample, ts); err != nil {
		return transportError("publish", in.cfg.Tunables.RequestChannel, err)
	}
	return nil
}

func (in *Initiator) export() error {
	if in.stats.Count() > 0 {
		in.metrics.LatencyMin.Set(stats.OneWayMicros(in.stats.Min()))
		in.metrics.LatencyMax.Set(stats.OneWayMicros(in.stats.Max()))
		in.metrics.LatencyAverage.Set(in.stats.Average() / 1000 / 2)
	}
	if in.cfg.OutputPath == "" {
		return nil
	}
	if err := report.AppendRows(in.cfg.OutputPath, in.stats.Export(in.cfg.Payload)); err != nil {
		return err
	}
	in.log.Info("log generated", zap.String("path", in.cfg.OutputPath),
		zap.Int("samples", in.stats.Count()))
	return nil
}

// Stats returns the recorded history. Valid after Run returns and until
// Close.
func (in *Initiator) Stats() *stats.TimeStats {
	return in.stats
}

// Stop requests the loop to end. Safe from any goroutine.
func (in *Initiator) Stop() {
	in.stop.Set()
}

// Close releases the endpoints and buffers.
func (in *Initiator) Close() error {
	_ = in.ws.Close()
	if in.reader != nil {
		_ = in.reader.Close()
	}
	if in.writer != nil {
		_ = in.writer.Close()
	}
	if in.batch != nil {
		in.batch.Release()
	}
	if in.stats != nil {
		in.stats.Teardown()
	}
	in.sample = nil
	return nil
}
