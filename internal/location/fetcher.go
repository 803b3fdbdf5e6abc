package location

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultFetchTimeout bounds how long PositionFetcher waits for backends.
const DefaultFetchTimeout = 5 * time.Second

// Merge picks the better of two optional readings: the later one by
// timestamp, or whichever is present. On a tie a wins.
func Merge(a, b *Reading) *Reading {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Timestamp.After(a.Timestamp):
		return b
	default:
		return a
	}
}

// PositionFetcher subscribes to every enabled backend and resolves with the
// merged reading once all of them reported or the timeout fired.
type PositionFetcher struct {
	backends []Backend
	timeout  time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewPositionFetcher creates a PositionFetcher. Backend order sets tie-break
// priority. A nil clock uses real time.
func NewPositionFetcher(timeout time.Duration, clock clockwork.Clock, logger *slog.Logger, backends ...Backend) *PositionFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PositionFetcher{
		backends: backends,
		timeout:  timeout,
		clock:    clock,
		logger:   logger,
	}
}

// Fetch calls done once with the merged reading, or nil when no backend
// reported in time. done is not called if ctx ends first.
func (f *PositionFetcher) Fetch(ctx context.Context, done func(*Reading)) {
	var enabled []Backend
	for _, b := range f.backends {
		if b.Enabled(ctx) {
			enabled = append(enabled, b)
		}
	}

	var (
		mu       sync.Mutex
		readings = make(map[BackendID]*Reading, len(enabled))
		pending  = len(enabled)
		finished bool
		unsubs   []func()
		stop     = make(chan struct{})
	)

	timer := f.clock.NewTimer(f.timeout)

	finish := func(deliver bool) {
		mu.Lock()
		if finished {
			mu.Unlock()
			return
		}
		finished = true
		subs := unsubs
		unsubs = nil
		var result *Reading
		for _, b := range enabled {
			result = Merge(result, readings[b.ID()])
		}
		mu.Unlock()

		timer.Stop()
		close(stop)
		for _, unsubscribe := range subs {
			unsubscribe()
		}
		if deliver {
			done(result)
		}
	}

	if len(enabled) == 0 {
		finish(true)
		return
	}

	for _, b := range enabled {
		id := b.ID()
		unsubscribe, err := b.Subscribe(ctx, func(r Reading) {
			mu.Lock()
			if finished || readings[id] != nil {
				mu.Unlock()
				return
			}
			if r.Source == "" {
				r.Source = id
			}
			readings[id] = &r
			pending--
			complete := pending == 0
			mu.Unlock()

			if complete {
				finish(true)
			}
		})
		if err != nil {
			f.logger.Warn("positioning backend subscribe failed", "backend", id, "error", err)
			mu.Lock()
			pending--
			complete := pending == 0
			mu.Unlock()
			if complete {
				finish(true)
			}
			continue
		}

		mu.Lock()
		if finished {
			mu.Unlock()
			unsubscribe()
			continue
		}
		unsubs = append(unsubs, unsubscribe)
		mu.Unlock()
	}

	go func() {
		select {
		case <-timer.Chan():
			f.logger.Debug("position fetch timed out", "timeout", f.timeout)
			finish(true)
		case <-ctx.Done():
			finish(false)
		case <-stop:
		}
	}()
}
