// Package screen hosts the location flow and turns its outcome into an
// air-quality view.
package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/i474232898/airquality/internal/airquality"
	"github.com/i474232898/airquality/internal/geocode"
	"github.com/i474232898/airquality/internal/location"
	"github.com/i474232898/airquality/internal/observability"
)

// ErrClosed is returned by every operation once the screen is torn down.
var ErrClosed = errors.New("screen closed")

// Notifier shows a transient message to the user.
type Notifier interface {
	Notify(message string)
}

// AirQuality fetches and records air quality for a location.
type AirQuality interface {
	FetchAndStore(ctx context.Context, loc airquality.Location) (airquality.Snapshot, error)
}

// Runner runs one location flow to completion.
type Runner interface {
	Run(ctx context.Context) (location.Outcome, error)
}

// FlowFactory builds a fresh flow for every invocation.
type FlowFactory func(onOutcome func(location.Outcome)) Runner

// NewFlowFactory returns a factory producing location flows over deps.
func NewFlowFactory(deps location.Deps) FlowFactory {
	return func(onOutcome func(location.Outcome)) Runner {
		return location.NewFlow(deps, onOutcome)
	}
}

// View is what the screen currently shows.
type View struct {
	Position  location.Position    `json:"position"`
	Picked    bool                 `json:"picked"`
	Address   *geocode.Address     `json:"address,omitempty"`
	Snapshot  *airquality.Snapshot `json:"snapshot,omitempty"`
	Severity  airquality.Severity  `json:"severity"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// Deps are the collaborators of a MainScreen. Geocoder and Metrics may be nil.
type Deps struct {
	NewFlow    FlowFactory
	AirQuality AirQuality
	Geocoder   geocode.Geocoder
	Notifier   Notifier
	Metrics    *observability.Metrics
	Logger     *slog.Logger
}

// MainScreen is the single screen of the agent.
type MainScreen struct {
	deps   Deps
	logger *slog.Logger

	// run serializes flows and updates the way a UI thread would.
	run sync.Mutex

	mu     sync.Mutex
	view   View
	ready  bool
	picked *location.Position
	closed bool

	lifetime  context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func NewMainScreen(deps Deps) *MainScreen {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lifetime, cancel := context.WithCancel(context.Background())
	return &MainScreen{
		deps:     deps,
		logger:   logger.With("component", "main_screen"),
		lifetime: lifetime,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Enter runs a fresh location flow and applies its outcome.
func (s *MainScreen) Enter(ctx context.Context) error {
	s.run.Lock()
	defer s.run.Unlock()

	ctx, release, err := s.bind(ctx)
	if err != nil {
		return err
	}
	defer release()

	return s.runFlow(ctx)
}

// Refresh updates the picked location if there is one, otherwise it runs a
// fresh location flow.
func (s *MainScreen) Refresh(ctx context.Context) error {
	s.run.Lock()
	defer s.run.Unlock()

	ctx, release, err := s.bind(ctx)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	picked := s.picked
	s.mu.Unlock()

	if picked != nil {
		return s.update(ctx, *picked, true)
	}
	return s.runFlow(ctx)
}

// PickLocation overrides the device position with a user-chosen one.
func (s *MainScreen) PickLocation(ctx context.Context, lat, lon float64) error {
	s.run.Lock()
	defer s.run.Unlock()

	ctx, release, err := s.bind(ctx)
	if err != nil {
		return err
	}
	defer release()

	pos := location.Position{Latitude: lat, Longitude: lon}
	s.mu.Lock()
	s.picked = &pos
	s.mu.Unlock()

	return s.update(ctx, pos, true)
}

// Close tears the screen down. Running flows are abandoned and later
// results are dropped. Close is idempotent.
func (s *MainScreen) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		close(s.done)
		s.logger.Info("screen closed")
	})
}

// Done is closed once the screen has been torn down.
func (s *MainScreen) Done() <-chan struct{} {
	return s.done
}

// Closed reports whether Close has been called.
func (s *MainScreen) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// View returns the current view. ok is false until the first successful
// update.
func (s *MainScreen) View() (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view, s.ready
}

// bind derives a context that also ends when the screen closes.
func (s *MainScreen) bind(ctx context.Context) (context.Context, func(), error) {
	if s.Closed() {
		return nil, nil, ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.lifetime, cancel)
	return ctx, func() {
		stop()
		cancel()
	}, nil
}

func (s *MainScreen) runFlow(ctx context.Context) error {
	var result error
	flow := s.deps.NewFlow(func(o location.Outcome) {
		result = s.applyOutcome(ctx, o)
	})

	if _, err := flow.Run(ctx); err != nil {
		if s.Closed() {
			return ErrClosed
		}
		return err
	}
	return result
}

func (s *MainScreen) applyOutcome(ctx context.Context, o location.Outcome) error {
	if s.deps.Metrics != nil {
		s.deps.Metrics.FlowOutcomes.WithLabelValues(o.Kind.String()).Inc()
	}
	if s.Closed() {
		return ErrClosed
	}

	switch o.Kind {
	case location.OutcomePositionAvailable:
		return s.update(ctx, *o.Position, false)
	case location.OutcomePositionUnavailable:
		s.notify("Current position is unknown")
	case location.OutcomePermissionDenied:
		s.notify("Location permission denied")
	case location.OutcomeServiceUnavailable:
		s.notify("Location services are disabled")
	case location.OutcomeUserCancelled:
		s.notify("Location request cancelled")
	}

	if o.Fatal() {
		s.Close()
	}
	return o.Err()
}

// update geocodes pos and fetches its air quality. A geocoding failure is
// reported and skipped; an air-quality failure ends the update.
func (s *MainScreen) update(ctx context.Context, pos location.Position, picked bool) error {
	var addr *geocode.Address
	if s.deps.Geocoder != nil {
		a, err := s.deps.Geocoder.ReverseGeocode(ctx, pos.Latitude, pos.Longitude)
		if err != nil {
			s.logger.Warn("reverse geocoding failed", "error", err)
			s.notify("Could not resolve the address")
		} else {
			addr = &a
		}
	}

	snapshot, err := s.deps.AirQuality.FetchAndStore(ctx, airquality.Location{Lat: pos.Latitude, Lon: pos.Longitude})
	if err != nil {
		if s.Closed() {
			return ErrClosed
		}
		s.logger.Warn("air quality update failed", "error", err)
		s.notify("Air quality data is unavailable")
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.view = View{
		Position:  pos,
		Picked:    picked,
		Address:   addr,
		Snapshot:  &snapshot,
		Severity:  snapshot.Severity,
		UpdatedAt: time.Now().UTC(),
	}
	s.ready = true
	s.mu.Unlock()

	s.notify(fmt.Sprintf("Air quality updated: AQI %d (%s)", snapshot.AQI, snapshot.Severity))
	return nil
}

func (s *MainScreen) notify(message string) {
	if s.Closed() {
		return
	}
	s.deps.Notifier.Notify(message)
}
