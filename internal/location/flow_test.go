package location

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStep(t *testing.T) {
	granted := PermissionState{FineLocation: Granted, CoarseLocation: Granted}
	partial := PermissionState{FineLocation: Granted, CoarseLocation: Denied}
	reading := &Reading{Latitude: 1, Longitude: 2, Source: BackendGPS, Timestamp: at(1)}

	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		outcome *OutcomeKind
	}{
		{"service available", CheckingService, ServiceChecked{Available: true}, CheckingPermission, nil},
		{"service unavailable", CheckingService, ServiceChecked{Available: false}, AwaitingSettings, nil},
		{"settings enabled", AwaitingSettings, SettingsReturned{Outcome: SettingsEnabled}, CheckingPermission, nil},
		{"settings still disabled", AwaitingSettings, SettingsReturned{Outcome: SettingsStillDisabled}, Done, kind(OutcomeServiceUnavailable)},
		{"settings cancelled", AwaitingSettings, SettingsReturned{Outcome: SettingsCancelled}, Done, kind(OutcomeUserCancelled)},
		{"permissions already granted", CheckingPermission, PermissionChecked{State: granted}, FetchingPosition, nil},
		{"permissions missing", CheckingPermission, PermissionChecked{State: partial}, AwaitingPermission, nil},
		{"permissions answered granted", AwaitingPermission, PermissionAnswered{State: granted}, FetchingPosition, nil},
		{"permissions answered partially", AwaitingPermission, PermissionAnswered{State: partial}, Done, kind(OutcomePermissionDenied)},
		{"position resolved", FetchingPosition, PositionResolved{Reading: reading}, Done, kind(OutcomePositionAvailable)},
		{"position unknown", FetchingPosition, PositionResolved{}, Done, kind(OutcomePositionUnavailable)},
		{"stale event ignored", FetchingPosition, PermissionAnswered{State: granted}, FetchingPosition, nil},
		{"event after done ignored", Done, PositionResolved{Reading: reading}, Done, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, outcome := Step(tt.state, tt.event)
			assert.Equal(t, tt.want, got)
			if tt.outcome == nil {
				assert.Nil(t, outcome)
				return
			}
			require.NotNil(t, outcome)
			assert.Equal(t, *tt.outcome, outcome.Kind)
		})
	}
}

func kind(k OutcomeKind) *OutcomeKind { return &k }

func TestPermissionState_GrantedOnlyWhenBothGranted(t *testing.T) {
	for _, fine := range []Grant{Granted, Denied} {
		for _, coarse := range []Grant{Granted, Denied} {
			s := PermissionState{FineLocation: fine, CoarseLocation: coarse}
			assert.Equal(t, bool(fine) && bool(coarse), s.Granted(), "fine=%v coarse=%v", fine, coarse)
		}
	}
	assert.False(t, PermissionState{FineLocation: Granted}.Granted(), "missing answer counts as denied")
	assert.False(t, PermissionState{}.Granted())
}

func TestServiceCheck_IsLogicalOr(t *testing.T) {
	for _, gpsOn := range []bool{true, false} {
		for _, netOn := range []bool{true, false} {
			check := NewServiceCheck(newFakeBackend(BackendGPS, gpsOn), newFakeBackend(BackendNetwork, netOn))
			assert.Equal(t, gpsOn || netOn, check.IsAvailable(context.Background()), "gps=%v network=%v", gpsOn, netOn)
		}
	}
}

func TestPermissionGate_RequestsBothAsOneBatch(t *testing.T) {
	perms := &fakePermissions{answers: map[Permission]Grant{FineLocation: Granted}}
	gate := NewPermissionGate(perms)

	var got PermissionState
	gate.Request(func(s PermissionState) { got = s })

	require.Len(t, perms.requests, 1)
	assert.ElementsMatch(t, []Permission{FineLocation, CoarseLocation}, perms.requests[0])
	assert.Equal(t, Granted, got[FineLocation])
	assert.Equal(t, Denied, got[CoarseLocation])
	assert.False(t, got.Granted())
}

func TestSettingsRoundTrip_RechecksOnReturn(t *testing.T) {
	gps := newFakeBackend(BackendGPS, false)
	check := NewServiceCheck(gps)

	var enabledBeforeReturn int
	settings := &fakeSettings{accept: true, onLaunch: func() {
		enabledBeforeReturn, _, _ = gps.counts()
	}}
	rt := NewSettingsRoundTrip(settings, check)

	var got SettingsOutcome
	rt.PromptAndWait(context.Background(), func(o SettingsOutcome) { got = o })

	after, _, _ := gps.counts()
	assert.Equal(t, SettingsStillDisabled, got)
	assert.Equal(t, enabledBeforeReturn+1, after, "availability must be re-checked once the settings screen returns")
}

func TestSettingsRoundTrip_Declined(t *testing.T) {
	settings := &fakeSettings{accept: false}
	rt := NewSettingsRoundTrip(settings, NewServiceCheck(newFakeBackend(BackendGPS, false)))

	var got SettingsOutcome
	rt.PromptAndWait(context.Background(), func(o SettingsOutcome) { got = o })

	_, launches := settings.counts()
	assert.Equal(t, SettingsCancelled, got)
	assert.Zero(t, launches)
}

type flowFixture struct {
	gps      *fakeBackend
	network  *fakeBackend
	perms    *fakePermissions
	settings *fakeSettings
	clock    *clockwork.FakeClock
	outcomes atomic.Int32
	last     atomic.Value
}

func newFlowFixture() *flowFixture {
	return &flowFixture{
		gps:      newFakeBackend(BackendGPS, true),
		network:  newFakeBackend(BackendNetwork, true),
		perms:    &fakePermissions{current: allGranted()},
		settings: &fakeSettings{accept: true},
		clock:    clockwork.NewFakeClock(),
	}
}

func (fx *flowFixture) flow() *Flow {
	check := NewServiceCheck(fx.gps, fx.network)
	return NewFlow(Deps{
		Gate:     NewPermissionGate(fx.perms),
		Service:  check,
		Settings: NewSettingsRoundTrip(fx.settings, check),
		Fetcher:  NewPositionFetcher(time.Second, fx.clock, discardLogger(), fx.gps, fx.network),
		Logger:   discardLogger(),
	}, func(o Outcome) {
		fx.outcomes.Add(1)
		fx.last.Store(o)
	})
}

func runFlow(t *testing.T, f *Flow) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	o, err := f.Run(ctx)
	require.NoError(t, err)
	return o
}

func TestFlow_HappyPath_DeliversLaterReadingOnce(t *testing.T) {
	fx := newFlowFixture()
	fx.gps.reading = &Reading{Latitude: 37.56, Longitude: 126.97, Timestamp: at(10)}
	fx.network.reading = &Reading{Latitude: 37.57, Longitude: 126.98, Timestamp: at(20)}

	f := fx.flow()
	o := runFlow(t, f)

	assert.Equal(t, OutcomePositionAvailable, o.Kind)
	require.NotNil(t, o.Position)
	assert.Equal(t, 37.57, o.Position.Latitude)
	assert.Equal(t, 126.98, o.Position.Longitude)
	assert.NoError(t, o.Err())
	assert.Equal(t, Done, f.State())
	assert.EqualValues(t, 1, fx.outcomes.Load())
	assert.Zero(t, fx.perms.requestCount(), "no prompt when permissions are already granted")
}

func TestFlow_SecondRunReturnsImmediately(t *testing.T) {
	fx := newFlowFixture()
	fx.gps.reading = &Reading{Latitude: 1, Longitude: 2, Timestamp: at(1)}
	fx.network.reading = &Reading{Latitude: 3, Longitude: 4, Timestamp: at(1)}

	f := fx.flow()
	runFlow(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := f.Run(ctx)
	assert.ErrorIs(t, err, ErrFlowReused)
	assert.NoError(t, ctx.Err(), "second run must not wait for its context")
	assert.EqualValues(t, 1, fx.outcomes.Load())
	assert.Equal(t, Done, f.State())
}

func TestFlow_PermissionDenied_NeverFetches(t *testing.T) {
	fx := newFlowFixture()
	fx.perms.current = map[Permission]Grant{}
	fx.perms.answers = map[Permission]Grant{FineLocation: Denied, CoarseLocation: Granted}

	o := runFlow(t, fx.flow())

	assert.Equal(t, OutcomePermissionDenied, o.Kind)
	assert.ErrorIs(t, o.Err(), ErrPermissionDenied)
	assert.True(t, o.Fatal())
	_, gpsSubs, _ := fx.gps.counts()
	_, netSubs, _ := fx.network.counts()
	assert.Zero(t, gpsSubs)
	assert.Zero(t, netSubs)
	assert.EqualValues(t, 1, fx.outcomes.Load())
}

func TestFlow_AllPermissionCombinations(t *testing.T) {
	for _, fine := range []Grant{Granted, Denied} {
		for _, coarse := range []Grant{Granted, Denied} {
			fx := newFlowFixture()
			fx.perms.current = map[Permission]Grant{}
			fx.perms.answers = map[Permission]Grant{FineLocation: fine, CoarseLocation: coarse}
			fx.gps.reading = &Reading{Latitude: 1, Longitude: 1, Timestamp: at(1)}
			fx.network.reading = &Reading{Latitude: 2, Longitude: 2, Timestamp: at(2)}

			o := runFlow(t, fx.flow())
			if fine && coarse {
				assert.Equal(t, OutcomePositionAvailable, o.Kind)
			} else {
				assert.Equal(t, OutcomePermissionDenied, o.Kind, "fine=%v coarse=%v", fine, coarse)
			}
		}
	}
}

func TestFlow_ServiceReenabledInSettings_ProceedsWithoutReprompt(t *testing.T) {
	fx := newFlowFixture()
	fx.gps.enabled.Store(false)
	fx.network.enabled.Store(false)
	fx.network.reading = &Reading{Latitude: 48.85, Longitude: 2.35, Timestamp: at(3)}
	fx.settings.onLaunch = func() { fx.network.enabled.Store(true) }

	o := runFlow(t, fx.flow())

	assert.Equal(t, OutcomePositionAvailable, o.Kind)
	assert.Equal(t, 48.85, o.Position.Latitude)
	confirms, launches := fx.settings.counts()
	assert.Equal(t, 1, confirms)
	assert.Equal(t, 1, launches)
}

func TestFlow_ServiceStillDisabled(t *testing.T) {
	fx := newFlowFixture()
	fx.gps.enabled.Store(false)
	fx.network.enabled.Store(false)

	o := runFlow(t, fx.flow())

	assert.Equal(t, OutcomeServiceUnavailable, o.Kind)
	assert.ErrorIs(t, o.Err(), ErrServiceUnavailable)
	assert.True(t, o.Fatal())
	assert.Zero(t, fx.perms.requestCount())
}

func TestFlow_SettingsDeclined(t *testing.T) {
	fx := newFlowFixture()
	fx.gps.enabled.Store(false)
	fx.network.enabled.Store(false)
	fx.settings.accept = false

	o := runFlow(t, fx.flow())

	assert.Equal(t, OutcomeUserCancelled, o.Kind)
	assert.ErrorIs(t, o.Err(), ErrUserCancelled)
}

func TestFlow_PositionUnknown_IsRecoverable(t *testing.T) {
	fx := newFlowFixture()
	f := fx.flow()

	done := make(chan Outcome, 1)
	go func() {
		o, _ := f.Run(context.Background())
		done <- o
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, fx.clock.BlockUntilContext(ctx, 1))
	fx.clock.Advance(time.Second)

	select {
	case o := <-done:
		assert.Equal(t, OutcomePositionUnavailable, o.Kind)
		assert.Nil(t, o.Position)
		assert.ErrorIs(t, o.Err(), ErrPositionUnavailable)
		assert.False(t, o.Fatal())
	case <-time.After(2 * time.Second):
		t.Fatal("flow did not finish")
	}
}

func TestFlow_TornDownBeforeCallback_IsNoop(t *testing.T) {
	fx := newFlowFixture()
	fx.perms.current = map[Permission]Grant{}
	fx.perms.async = true

	f := fx.flow()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := f.Run(ctx)
		errCh <- err
	}()

	require.Eventually(t, func() bool { return fx.perms.requestCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("flow did not stop after teardown")
	}

	assert.NotPanics(t, func() { fx.perms.answerPending(allGranted()) })
	assert.Zero(t, fx.outcomes.Load(), "no outcome is delivered after teardown")
	_, gpsSubs, _ := fx.gps.counts()
	assert.Zero(t, gpsSubs)
}
