package siem

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"

	"custodia-hq/custodia/pkg/evidence"
)

// ForwarderConfig configures a Forwarder.
type ForwarderConfig struct {
	// Backends receive every event. At least one is required.
	Backends []Backend

	// BufferSize bounds the intake channel. Default 1024.
	BufferSize int

	// BatchSize is the maximum events per SendBatch. Default 50.
	BatchSize int

	// FlushInterval triggers a flush even when the batch is not
	// full. Default 5s.
	FlushInterval time.Duration

	// FlushTimeout bounds one delivery cycle per backend. Default 30s.
	FlushTimeout time.Duration

	// RetryAttempts is the per-flush delivery attempt count against
	// one backend before dead-lettering. Default 3.
	RetryAttempts uint

	// DeadLetter receives undeliverable events. Defaults to a fresh
	// in-memory queue.
	DeadLetter *DeadLetter
}

func (c *ForwarderConfig) applyDefaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = 1024
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = 30 * time.Second
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.DeadLetter == nil {
		c.DeadLetter = NewDeadLetter()
	}
}

// Forwarder delivers audit events to the configured SIEM backends with
// at-least-once semantics. Events are buffered, flushed in batches on
// a timer or when a batch fills, and retried per backend behind a
// circuit breaker. Events that exhaust retries move to the dead-letter
// queue; they are never dropped. Intake is bounded by BufferSize, and
// events arriving while the buffer is full also go to the dead-letter
// queue, marked as overflow rather than as a delivery failure.
//
// Ordering is sequential within one backend; distinct backends flush
// in parallel.
type Forwarder struct {
	cfg      ForwarderConfig
	buffer   chan *Event
	breakers map[string]*gobreaker.CircuitBreaker
	dead     *DeadLetter
	logger   *slog.Logger

	// stopMu guards intake against a concurrent Stop closing the
	// buffer channel.
	stopMu  sync.RWMutex
	stopped atomic.Bool
	done    chan struct{}
}

// NewForwarder creates a forwarder and starts its flush loop.
func NewForwarder(cfg ForwarderConfig) (*Forwarder, error) {
	if len(cfg.Backends) == 0 {
		return nil, evidence.NewValidationError("backends", "at least one SIEM backend is required")
	}
	cfg.applyDefaults()

	f := &Forwarder{
		cfg:      cfg,
		buffer:   make(chan *Event, cfg.BufferSize),
		breakers: make(map[string]*gobreaker.CircuitBreaker, len(cfg.Backends)),
		dead:     cfg.DeadLetter,
		logger:   slog.Default().With("component", "siem.forwarder"),
		done:     make(chan struct{}),
	}
	for _, b := range cfg.Backends {
		f.breakers[b.Name()] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        b.Name(),
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		})
	}

	go f.run()
	return f, nil
}

// Send buffers an event for delivery and returns immediately. Intake
// is bounded: when the buffer is full or the forwarder is stopped the
// event spills to the dead-letter queue with a reason marking that no
// delivery was attempted, so it stays retrievable rather than dropped.
func (f *Forwarder) Send(event *Event) {
	f.stopMu.RLock()
	defer f.stopMu.RUnlock()
	if f.stopped.Load() {
		f.deadLetterEvent(event, "forwarder", DeadLetterStopped, 0, errStopped)
		return
	}
	select {
	case f.buffer <- event:
		bufferDepth.Inc()
	default:
		f.deadLetterEvent(event, "forwarder", DeadLetterOverflow, 0, errBufferFull)
	}
}

// SendImmediate delivers one event synchronously to every backend,
// bypassing the buffer. It reports whether all backends accepted the
// event; failed backends dead-letter it.
func (f *Forwarder) SendImmediate(ctx context.Context, event *Event) bool {
	ok := true
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, b := range f.cfg.Backends {
		wg.Add(1)
		go func(b Backend) {
			defer wg.Done()
			if err := f.deliver(ctx, b, []*Event{event}); err != nil {
				mu.Lock()
				ok = false
				mu.Unlock()
			}
		}(b)
	}
	wg.Wait()
	return ok
}

// DeadLetterEvents returns the undeliverable events accumulated so far.
func (f *Forwarder) DeadLetterEvents() []DeadLetteredEvent {
	return f.dead.Events()
}

// HealthCheck checks every backend and returns the first failure.
func (f *Forwarder) HealthCheck(ctx context.Context) error {
	for _, b := range f.cfg.Backends {
		if err := b.HealthCheck(ctx); err != nil {
			return evidence.NewDeliveryError(b.Name(), "", 0, err)
		}
	}
	return nil
}

// Stop closes intake and drains buffered events, bounded by ctx. After
// Stop, Send dead-letters new events.
func (f *Forwarder) Stop(ctx context.Context) error {
	f.stopMu.Lock()
	if f.stopped.Swap(true) {
		f.stopMu.Unlock()
		return nil
	}
	close(f.buffer)
	f.stopMu.Unlock()
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Forwarder) run() {
	ticker := time.NewTicker(f.cfg.FlushInterval)
	defer ticker.Stop()

	var pending []*Event
	for {
		select {
		case event, ok := <-f.buffer:
			if !ok {
				f.flush(pending)
				close(f.done)
				return
			}
			bufferDepth.Dec()
			pending = append(pending, event)
			if len(pending) >= f.cfg.BatchSize {
				f.flush(pending)
				pending = nil
			}
		case <-ticker.C:
			if len(pending) > 0 {
				f.flush(pending)
				pending = nil
			}
		}
	}
}

// flush delivers one batch to all backends in parallel.
func (f *Forwarder) flush(batch []*Event) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.FlushTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, b := range f.cfg.Backends {
		wg.Add(1)
		go func(b Backend) {
			defer wg.Done()
			f.deliver(ctx, b, batch)
		}(b)
	}
	wg.Wait()
}

// deliver sends a batch to one backend through its circuit breaker,
// retrying with exponential backoff. Exhausted batches dead-letter
// every event.
func (f *Forwarder) deliver(ctx context.Context, backend Backend, batch []*Event) error {
	breaker := f.breakers[backend.Name()]
	_, err := breaker.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(f.cfg.RetryAttempts),
		)
		return nil, r.Do(func() error {
			return backend.SendBatch(ctx, batch)
		})
	})
	if err != nil {
		eventsFailed.WithLabelValues(backend.Name()).Add(float64(len(batch)))
		for _, e := range batch {
			f.deadLetterEvent(e, backend.Name(), DeadLetterDeliveryFailed, int(f.cfg.RetryAttempts), err)
		}
		return evidence.NewDeliveryError(backend.Name(), batchFirstID(batch), int(f.cfg.RetryAttempts), err)
	}
	eventsSent.WithLabelValues(backend.Name()).Add(float64(len(batch)))
	return nil
}

func (f *Forwarder) deadLetterEvent(event *Event, backend, reason string, attempts int, cause error) {
	eventsDeadLettered.Inc()
	f.dead.Add(DeadLetteredEvent{
		Event:     event,
		Backend:   backend,
		Reason:    reason,
		Attempts:  attempts,
		LastError: cause.Error(),
		FailedAt:  time.Now().UTC(),
	})
}

func batchFirstID(batch []*Event) string {
	if len(batch) == 0 {
		return ""
	}
	return batch[0].ID
}

var (
	errBufferFull = &bufferError{"event buffer full"}
	errStopped    = &bufferError{"forwarder stopped"}
)

type bufferError struct{ msg string }

func (e *bufferError) Error() string { return e.msg }
