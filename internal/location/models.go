package location

import (
	"context"
	"time"
)

// Permission identifies a runtime location permission.
type Permission string

const (
	FineLocation   Permission = "fine_location"
	CoarseLocation Permission = "coarse_location"
)

// RequiredPermissions are always checked and requested together.
var RequiredPermissions = []Permission{FineLocation, CoarseLocation}

// Grant is the answer for a single permission.
type Grant bool

const (
	Denied  Grant = false
	Granted Grant = true
)

// PermissionState holds per-permission grants. A permission absent from the
// map counts as denied.
type PermissionState map[Permission]Grant

// Granted reports whether every required permission is granted.
func (s PermissionState) Granted() bool {
	for _, p := range RequiredPermissions {
		if !s[p] {
			return false
		}
	}
	return true
}

// BackendID names a positioning backend.
type BackendID string

const (
	BackendGPS     BackendID = "gps"
	BackendNetwork BackendID = "network"
)

// Reading is a single position report from a backend.
type Reading struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Source    BackendID `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Position is a resolved coordinate pair.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Backend is an OS-level positioning source.
type Backend interface {
	ID() BackendID
	// Enabled is queried live on every call.
	Enabled(ctx context.Context) bool
	// Subscribe registers onReading for position reports until unsubscribe is
	// called or ctx ends. onReading may be invoked from any goroutine.
	Subscribe(ctx context.Context, onReading func(Reading)) (unsubscribe func(), err error)
}

// PermissionSubsystem checks and requests runtime permissions.
type PermissionSubsystem interface {
	CheckPermission(p Permission) Grant
	// RequestPermissions asks for all ids as one batch and calls done once with
	// the per-id answers.
	RequestPermissions(ids []Permission, done func(map[Permission]Grant))
}

// SettingsScreen is the system location-settings screen.
type SettingsScreen interface {
	// Confirm shows the modal "enable location?" prompt.
	Confirm(done func(accepted bool))
	// Launch opens the settings screen; done fires when the user returns,
	// whatever they changed there.
	Launch(done func())
}
