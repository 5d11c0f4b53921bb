package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"hostpilot/internal/alerts"
	"hostpilot/internal/collector"
	"hostpilot/internal/models"
	"hostpilot/internal/telemetry"
)

const DefaultInterval = 5 * time.Second

// Sink receives every tick's snapshot together with the events it raised.
type Sink interface {
	Name() string
	Publish(ctx context.Context, snap models.MetricsSnapshot, events []models.AlertEvent) error
}

type Options struct {
	Interval      time.Duration
	AlertsEnabled bool
	// SinkTimeout bounds one Publish call; zero means the tick interval.
	SinkTimeout time.Duration
}

type tickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Monitor samples the host on a timer, evaluates alerts and keeps the
// bounded alert window. Ticks are queued to a single worker so two tick
// bodies never run at once.
type Monitor struct {
	probe   collector.Probe
	alerts  *alerts.Log
	sinks   []*sinkRunner
	metrics *telemetry.Metrics
	log     *slog.Logger
	opts    Options

	now       func() time.Time
	newTicker tickerFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
	last   models.MetricsSnapshot
}

func New(probe collector.Probe, metrics *telemetry.Metrics, logger *slog.Logger, opts Options, sinks ...Sink) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = opts.Interval
	}
	runners := make([]*sinkRunner, 0, len(sinks))
	for _, s := range sinks {
		runners = append(runners, &sinkRunner{sink: s})
	}
	return &Monitor{
		probe:     probe,
		alerts:    alerts.NewLog(alerts.DefaultCapacity),
		sinks:     runners,
		metrics:   metrics,
		log:       logger,
		opts:      opts,
		now:       time.Now,
		newTicker: realTicker,
	}
}

func (m *Monitor) Interval() time.Duration { return m.opts.Interval }

// Start begins the recurring timer. Calling it while running does nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.gen++
	gen := m.gen

	ticks, stopTicker := m.newTicker(m.opts.Interval)
	queue := make(chan uint64, 1)
	go m.schedule(runCtx, ticks, stopTicker, queue, gen)
	go m.work(runCtx, queue)
	m.log.Info("monitor started", "interval", m.opts.Interval, "alerts_enabled", m.opts.AlertsEnabled)
}

// Stop cancels the timer. A tick already probing finishes but its result is
// dropped.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.cancel = nil
	m.gen++
	m.log.Info("monitor stopped")
}

func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Monitor) schedule(ctx context.Context, ticks <-chan time.Time, stopTicker func(), queue chan<- uint64, gen uint64) {
	defer stopTicker()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			select {
			case queue <- gen:
			default:
				m.log.Debug("tick coalesced, previous tick still queued")
			}
		}
	}
}

func (m *Monitor) work(ctx context.Context, queue <-chan uint64) {
	for {
		select {
		case <-ctx.Done():
			return
		case gen := <-queue:
			// in-flight probes are not aborted by Stop
			m.runTick(context.WithoutCancel(ctx), gen)
		}
	}
}

func (m *Monitor) runTick(ctx context.Context, gen uint64) {
	m.process(ctx, m.Snapshot(ctx), &gen)
}

// Tick runs one sample-evaluate-append cycle now and returns the events it
// raised.
func (m *Monitor) Tick(ctx context.Context) []models.AlertEvent {
	return m.process(ctx, m.Snapshot(ctx), nil)
}

// process commits snap and its alerts, then hands both to the sinks. With a
// non-nil gen the commit happens only while that timer generation is still
// current; the check and the commit share one critical section so Stop
// cannot land between them.
func (m *Monitor) process(ctx context.Context, snap models.MetricsSnapshot, gen *uint64) (events []models.AlertEvent) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("tick failed", "err", fmt.Errorf("panic: %v", r))
		}
	}()
	if !m.commit(snap, gen, &events) {
		m.log.Debug("monitor stopped during tick, result discarded")
		return nil
	}
	m.metrics.RecordTick(ctx, snap.Degraded)
	m.metrics.RecordAlerts(ctx, events)
	for _, e := range events {
		m.log.Warn("alert", "kind", e.Kind, "severity", e.Severity, "value", e.ObservedValue, "threshold", e.ThresholdValue)
	}
	for _, s := range m.sinks {
		m.publish(ctx, s, snap, events)
	}
	return events
}

func (m *Monitor) commit(snap models.MetricsSnapshot, gen *uint64, events *[]models.AlertEvent) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != nil && (m.cancel == nil || m.gen != *gen) {
		return false
	}
	m.last = snap
	if m.opts.AlertsEnabled {
		*events = alerts.Evaluate(snap)
		m.alerts.Append(*events...)
	}
	return true
}

// sinkRunner tracks whether a sink still has a Publish call outstanding.
type sinkRunner struct {
	sink Sink
	busy atomic.Bool
}

func (r *sinkRunner) call(ctx context.Context, snap models.MetricsSnapshot, events []models.AlertEvent) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.sink.Publish(ctx, snap, events)
}

// publish gives the sink at most SinkTimeout. A sink that ignores its
// context keeps running in the background and is skipped until it returns,
// so the tick worker is never held by a sink.
func (m *Monitor) publish(ctx context.Context, r *sinkRunner, snap models.MetricsSnapshot, events []models.AlertEvent) {
	name := r.sink.Name()
	if !r.busy.CompareAndSwap(false, true) {
		m.log.Warn("sink still busy with an earlier tick, skipped", "sink", name)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, m.opts.SinkTimeout)
	done := make(chan error, 1)
	go func() {
		err := r.call(ctx, snap, events)
		r.busy.Store(false)
		done <- err
	}()
	select {
	case err := <-done:
		cancel()
		if err != nil {
			m.log.Warn("sink publish failed", "sink", name, "err", err)
		}
	case <-ctx.Done():
		m.log.Warn("sink publish timed out", "sink", name, "timeout", m.opts.SinkTimeout)
		// release the context once the sink gives up
		go func() {
			<-done
			cancel()
		}()
	}
}

// Snapshot probes the host on demand. A probe failure is logged and the
// zeroed fallback snapshot is returned instead.
func (m *Monitor) Snapshot(ctx context.Context) models.MetricsSnapshot {
	snap, err := m.probe.Probe(ctx)
	if err != nil {
		m.log.Warn("metrics probe failed, using fallback snapshot", "err", err)
		return models.FallbackSnapshot(m.now())
	}
	return snap
}

// LastSnapshot is the snapshot of the most recent tick, if any.
func (m *Monitor) LastSnapshot() (models.MetricsSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, !m.last.Timestamp.IsZero()
}

func (m *Monitor) Alerts() []models.AlertEvent { return m.alerts.All() }

func (m *Monitor) ClearAlerts() { m.alerts.Clear() }
