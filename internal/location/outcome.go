package location

import "errors"

var (
	// ErrPermissionDenied is returned when either location permission is refused.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrServiceUnavailable is returned when no positioning backend is enabled
	// after the settings round trip.
	ErrServiceUnavailable = errors.New("location services unavailable")
	// ErrUserCancelled is returned when the user declines to open settings.
	ErrUserCancelled = errors.New("location settings prompt cancelled")
	// ErrPositionUnavailable is returned when no backend reported in time.
	ErrPositionUnavailable = errors.New("position unavailable")
)

// OutcomeKind is the terminal state of a flow.
type OutcomeKind int

const (
	OutcomePositionAvailable OutcomeKind = iota
	OutcomePositionUnavailable
	OutcomePermissionDenied
	OutcomeServiceUnavailable
	OutcomeUserCancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePositionAvailable:
		return "position_available"
	case OutcomePositionUnavailable:
		return "position_unavailable"
	case OutcomePermissionDenied:
		return "permission_denied"
	case OutcomeServiceUnavailable:
		return "service_unavailable"
	case OutcomeUserCancelled:
		return "user_cancelled"
	default:
		return "unknown"
	}
}

// Outcome is delivered exactly once per flow invocation.
type Outcome struct {
	Kind     OutcomeKind
	Position *Position
	Reading  *Reading
}

// Err maps the outcome onto the error taxonomy. It is nil for an available
// position.
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomePositionAvailable:
		return nil
	case OutcomePositionUnavailable:
		return ErrPositionUnavailable
	case OutcomePermissionDenied:
		return ErrPermissionDenied
	case OutcomeServiceUnavailable:
		return ErrServiceUnavailable
	case OutcomeUserCancelled:
		return ErrUserCancelled
	default:
		return errors.New("unknown flow outcome")
	}
}

// Fatal reports whether the hosting screen must close.
func (o Outcome) Fatal() bool {
	switch o.Kind {
	case OutcomePermissionDenied, OutcomeServiceUnavailable, OutcomeUserCancelled:
		return true
	default:
		return false
	}
}

func positionAvailable(r Reading) *Outcome {
	return &Outcome{
		Kind:     OutcomePositionAvailable,
		Position: &Position{Latitude: r.Latitude, Longitude: r.Longitude},
		Reading:  &r,
	}
}
