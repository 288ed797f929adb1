package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/surge-downloader/ytdlp-remote/internal/events"
	"github.com/surge-downloader/ytdlp-remote/internal/types"
)

// DefaultInterval is the polling cadence.
const DefaultInterval = 30 * time.Second

// QueueFetcher is the transport operation the poller depends on.
type QueueFetcher interface {
	FetchQueue(ctx context.Context) (types.QueueSnapshot, error)
}

// Stats describes poll outcomes for observability.
type Stats struct {
	Successes           int
	Failures            int
	ConsecutiveFailures int
	LastAttempt         time.Time
	LastSuccess         time.Time
	LastError           error
}

// Poller keeps the last good queue snapshot and the readings derived from it.
type Poller struct {
	fetcher  QueueFetcher
	interval time.Duration
	logger   *zap.Logger
	bus      *events.Bus
	now      func() time.Time

	// pollMu serializes ticks so two fetches never race on the snapshot.
	pollMu sync.Mutex

	mu          sync.RWMutex
	snapshot    types.QueueSnapshot
	hasSnapshot bool
	readings    map[string]types.Reading
	stats       Stats

	changes chan struct{}
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger failures are reported to.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithBus publishes ReadingsUpdatedMsg and PollFailedMsg on bus.
func WithBus(bus *events.Bus) Option {
	return func(p *Poller) {
		p.bus = bus
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a poller. Readings start Uninitialized until the first success.
func New(fetcher QueueFetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  fetcher,
		interval: DefaultInterval,
		logger:   zap.NewNop(),
		now:      time.Now,
		readings: make(map[string]types.Reading, len(ReadingNames)),
		changes:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, name := range ReadingNames {
		p.readings[name] = types.Reading{
			Name:   name,
			Detail: emptyDetail(name),
			State:  types.ReadingUninitialized,
		}
	}
	return p
}

// Interval returns the polling cadence.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Run polls immediately and then once per interval until ctx is done.
// Failures are reported and never stop the loop.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("queue poller started", zap.Duration("interval", p.interval))
	defer p.logger.Info("queue poller stopped")

	_ = p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.Poll(ctx)
		}
	}
}

// Poll performs one tick. On success the snapshot and readings are replaced
// together; on failure they are left untouched and marked stale. The error is
// returned for callers that want it, and has already been logged.
func (p *Poller) Poll(ctx context.Context) error {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	snap, err := p.fetcher.FetchQueue(ctx)
	at := p.now()

	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return err
		}
		p.fail(err, at)
		return err
	}
	p.succeed(snap.Normalize(), at)
	return nil
}

func (p *Poller) succeed(snap types.QueueSnapshot, at time.Time) {
	readings := DeriveReadings(snap, at)

	p.mu.Lock()
	p.snapshot = snap.Clone()
	p.hasSnapshot = true
	for _, r := range readings {
		p.readings[r.Name] = r
	}
	p.stats.Successes++
	p.stats.ConsecutiveFailures = 0
	p.stats.LastAttempt = at
	p.stats.LastSuccess = at
	p.stats.LastError = nil
	p.mu.Unlock()

	p.logger.Debug("queue polled",
		zap.Bool("active", len(snap.Active) > 0),
		zap.Int("pending", len(snap.Pending)),
		zap.Int("completed", len(snap.Completed)))

	p.signal()
	p.bus.Publish(events.ReadingsUpdatedMsg{Readings: p.Readings(), At: at})
}

func (p *Poller) fail(err error, at time.Time) {
	p.mu.Lock()
	for name, r := range p.readings {
		if r.State == types.ReadingFresh {
			r.State = types.ReadingStale
			p.readings[name] = r
		}
	}
	p.stats.Failures++
	p.stats.ConsecutiveFailures++
	p.stats.LastAttempt = at
	p.stats.LastError = err
	consecutive := p.stats.ConsecutiveFailures
	p.mu.Unlock()

	p.logger.Error("queue poll failed",
		zap.Error(err),
		zap.Int("consecutive_failures", consecutive))

	p.signal()
	p.bus.Publish(events.PollFailedMsg{Err: err, At: at, Failures: consecutive})
}

func (p *Poller) signal() {
	select {
	case p.changes <- struct{}{}:
	default:
	}
}

// Changes returns a channel that receives a signal after every poll outcome.
// Signals coalesce if the receiver falls behind.
func (p *Poller) Changes() <-chan struct{} {
	return p.changes
}

// Readings returns copies of all readings in a stable order.
func (p *Poller) Readings() []types.Reading {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]types.Reading, 0, len(ReadingNames))
	for _, name := range ReadingNames {
		out = append(out, p.readings[name].Clone())
	}
	return out
}

// Reading returns a copy of the named reading.
func (p *Poller) Reading(name string) (types.Reading, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.readings[name]
	if !ok {
		return types.Reading{}, false
	}
	return r.Clone(), true
}

// Snapshot returns a copy of the last good snapshot, when it was taken, and
// whether any poll has succeeded yet.
func (p *Poller) Snapshot() (types.QueueSnapshot, time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.hasSnapshot {
		return types.QueueSnapshot{}.Normalize(), time.Time{}, false
	}
	return p.snapshot.Clone(), p.stats.LastSuccess, true
}

// Stats returns poll counters.
func (p *Poller) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}
