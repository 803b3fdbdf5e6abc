package location

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrFlowReused is returned when Run is called on a flow that already ran.
var ErrFlowReused = errors.New("location flow already run")

// State is a node of the acquisition state machine.
type State int

const (
	CheckingService State = iota
	AwaitingSettings
	CheckingPermission
	AwaitingPermission
	FetchingPosition
	Done
)

func (s State) String() string {
	switch s {
	case CheckingService:
		return "checking_service"
	case AwaitingSettings:
		return "awaiting_settings"
	case CheckingPermission:
		return "checking_permission"
	case AwaitingPermission:
		return "awaiting_permission"
	case FetchingPosition:
		return "fetching_position"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Event drives a state transition.
type Event interface {
	isEvent()
}

// ServiceChecked carries the result of the availability check.
type ServiceChecked struct{ Available bool }

// SettingsReturned carries the result of the settings round trip.
type SettingsReturned struct{ Outcome SettingsOutcome }

// PermissionChecked carries the grants observed without prompting.
type PermissionChecked struct{ State PermissionState }

// PermissionAnswered carries the user's answer to the permission request.
type PermissionAnswered struct{ State PermissionState }

// PositionResolved carries the fetcher result; Reading is nil when unknown.
type PositionResolved struct{ Reading *Reading }

func (ServiceChecked) isEvent()     {}
func (SettingsReturned) isEvent()   {}
func (PermissionChecked) isEvent()  {}
func (PermissionAnswered) isEvent() {}
func (PositionResolved) isEvent()   {}

// Step is the transition function of the flow. It returns the next state and,
// when that state is Done, the terminal outcome. Events that do not belong to
// the current state leave it unchanged.
func Step(s State, ev Event) (State, *Outcome) {
	switch s {
	case CheckingService:
		if e, ok := ev.(ServiceChecked); ok {
			if e.Available {
				return CheckingPermission, nil
			}
			return AwaitingSettings, nil
		}
	case AwaitingSettings:
		if e, ok := ev.(SettingsReturned); ok {
			switch e.Outcome {
			case SettingsEnabled:
				return CheckingPermission, nil
			case SettingsStillDisabled:
				return Done, &Outcome{Kind: OutcomeServiceUnavailable}
			default:
				return Done, &Outcome{Kind: OutcomeUserCancelled}
			}
		}
	case CheckingPermission:
		if e, ok := ev.(PermissionChecked); ok {
			if e.State.Granted() {
				return FetchingPosition, nil
			}
			return AwaitingPermission, nil
		}
	case AwaitingPermission:
		if e, ok := ev.(PermissionAnswered); ok {
			if e.State.Granted() {
				return FetchingPosition, nil
			}
			return Done, &Outcome{Kind: OutcomePermissionDenied}
		}
	case FetchingPosition:
		if e, ok := ev.(PositionResolved); ok {
			if e.Reading == nil {
				return Done, &Outcome{Kind: OutcomePositionUnavailable}
			}
			return Done, positionAvailable(*e.Reading)
		}
	}
	return s, nil
}

// Deps are the collaborators a flow drives.
type Deps struct {
	Gate     *PermissionGate
	Service  *ServiceCheck
	Settings *SettingsRoundTrip
	Fetcher  *PositionFetcher
	Logger   *slog.Logger
}

// Flow is one run of the location-and-permission acquisition sequence.
// A Flow is single use.
type Flow struct {
	id        string
	deps      Deps
	logger    *slog.Logger
	onOutcome func(Outcome)

	state   State
	events  chan Event
	started atomic.Bool

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

// NewFlow creates a flow. onOutcome is the caller's continuation; it may be
// nil when the caller only uses the value returned by Run.
func NewFlow(deps Deps, onOutcome func(Outcome)) *Flow {
	id := uuid.NewString()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		id:        id,
		deps:      deps,
		logger:    logger.With("flow_id", id),
		onOutcome: onOutcome,
		state:     CheckingService,
		events:    make(chan Event, 4),
	}
}

// ID returns the flow invocation ID used in logs.
func (f *Flow) ID() string {
	return f.id
}

// State returns the current state. Only meaningful from the Run goroutine or
// after Run returned.
func (f *Flow) State() State {
	return f.state
}

// Run drives the flow to its terminal outcome. Every event is handled on the
// calling goroutine. If ctx ends first, no outcome is delivered, late
// callbacks are dropped, and ctx.Err() is returned. Only the first call runs
// the flow; later calls return ErrFlowReused.
func (f *Flow) Run(ctx context.Context) (Outcome, error) {
	if !f.started.CompareAndSwap(false, true) {
		return Outcome{}, ErrFlowReused
	}
	defer f.close()

	f.logger.Debug("location flow started")
	next := f.enter(ctx, f.state)
	for {
		for next != nil {
			state, outcome := Step(f.state, next)
			if state != f.state {
				f.logger.Debug("location flow transition", "from", f.state, "to", state)
			}
			f.state = state
			if outcome != nil {
				f.deliver(*outcome)
				return *outcome, nil
			}
			next = f.enter(ctx, state)
		}

		select {
		case ev := <-f.events:
			next = ev
		case <-ctx.Done():
			f.logger.Info("location flow abandoned", "state", f.state, "reason", ctx.Err())
			return Outcome{}, ctx.Err()
		}
	}
}

// enter triggers the side effect of a state. Synchronous checks return their
// event directly; asynchronous ones post it later.
func (f *Flow) enter(ctx context.Context, s State) Event {
	switch s {
	case CheckingService:
		return ServiceChecked{Available: f.deps.Service.IsAvailable(ctx)}
	case AwaitingSettings:
		f.deps.Settings.PromptAndWait(ctx, func(o SettingsOutcome) {
			f.post(SettingsReturned{Outcome: o})
		})
	case CheckingPermission:
		return PermissionChecked{State: f.deps.Gate.Check()}
	case AwaitingPermission:
		f.deps.Gate.Request(func(ps PermissionState) {
			f.post(PermissionAnswered{State: ps})
		})
	case FetchingPosition:
		f.deps.Fetcher.Fetch(ctx, func(r *Reading) {
			f.post(PositionResolved{Reading: r})
		})
	}
	return nil
}

// post queues a callback event. It is a no-op once the flow is over.
func (f *Flow) post(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		f.logger.Debug("dropping late callback", "event", ev)
		return
	}
	select {
	case f.events <- ev:
	default:
		f.logger.Warn("location flow event queue full; dropping event", "event", ev)
	}
}

func (f *Flow) close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *Flow) deliver(o Outcome) {
	f.once.Do(func() {
		f.logger.Info("location flow finished", "outcome", o.Kind)
		if f.onOutcome != nil {
			f.onOutcome(o)
		}
	})
}
