package location

import "context"

// SettingsOutcome is the result of a settings round trip.
type SettingsOutcome int

const (
	SettingsEnabled SettingsOutcome = iota
	SettingsStillDisabled
	SettingsCancelled
)

func (o SettingsOutcome) String() string {
	switch o {
	case SettingsEnabled:
		return "enabled"
	case SettingsStillDisabled:
		return "still_disabled"
	case SettingsCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// SettingsRoundTrip prompts the user to enable location, opens the settings
// screen and re-checks availability once the user comes back.
type SettingsRoundTrip struct {
	screen SettingsScreen
	check  *ServiceCheck
}

// NewSettingsRoundTrip creates a SettingsRoundTrip.
func NewSettingsRoundTrip(screen SettingsScreen, check *ServiceCheck) *SettingsRoundTrip {
	return &SettingsRoundTrip{screen: screen, check: check}
}

// PromptAndWait runs the round trip and calls done once with the result.
func (s *SettingsRoundTrip) PromptAndWait(ctx context.Context, done func(SettingsOutcome)) {
	s.screen.Confirm(func(accepted bool) {
		if !accepted {
			done(SettingsCancelled)
			return
		}
		s.screen.Launch(func() {
			if s.check.IsAvailable(ctx) {
				done(SettingsEnabled)
				return
			}
			done(SettingsStillDisabled)
		})
	})
}
