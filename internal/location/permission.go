package location

// PermissionGate checks and requests the location permission pair.
type PermissionGate struct {
	subsystem PermissionSubsystem
}

// NewPermissionGate creates a PermissionGate over the given subsystem.
func NewPermissionGate(subsystem PermissionSubsystem) *PermissionGate {
	return &PermissionGate{subsystem: subsystem}
}

// Check returns the current grants without prompting.
func (g *PermissionGate) Check() PermissionState {
	state := make(PermissionState, len(RequiredPermissions))
	for _, p := range RequiredPermissions {
		state[p] = g.subsystem.CheckPermission(p)
	}
	return state
}

// Request asks for both permissions as a single batch. Answers for
// permissions outside the pair are ignored and missing answers stay denied.
func (g *PermissionGate) Request(done func(PermissionState)) {
	g.subsystem.RequestPermissions(RequiredPermissions, func(answers map[Permission]Grant) {
		state := make(PermissionState, len(RequiredPermissions))
		for _, p := range RequiredPermissions {
			state[p] = answers[p]
		}
		done(state)
	})
}
