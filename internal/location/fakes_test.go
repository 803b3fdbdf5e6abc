package location

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- fake backend ---

type fakeBackend struct {
	id      BackendID
	enabled atomic.Bool

	// reading, when set, is delivered synchronously on Subscribe.
	reading *Reading
	err     error

	mu           sync.Mutex
	onReading    func(Reading)
	enabledCalls int
	subscribes   int
	unsubscribes int
}

func newFakeBackend(id BackendID, enabled bool) *fakeBackend {
	b := &fakeBackend{id: id}
	b.enabled.Store(enabled)
	return b
}

func (b *fakeBackend) ID() BackendID { return b.id }

func (b *fakeBackend) Enabled(_ context.Context) bool {
	b.mu.Lock()
	b.enabledCalls++
	b.mu.Unlock()
	return b.enabled.Load()
}

func (b *fakeBackend) Subscribe(_ context.Context, onReading func(Reading)) (func(), error) {
	b.mu.Lock()
	b.subscribes++
	b.onReading = onReading
	reading := b.reading
	err := b.err
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if reading != nil {
		onReading(*reading)
	}
	return func() {
		b.mu.Lock()
		b.unsubscribes++
		b.mu.Unlock()
	}, nil
}

func (b *fakeBackend) emit(r Reading) {
	b.mu.Lock()
	cb := b.onReading
	b.mu.Unlock()
	if cb != nil {
		cb(r)
	}
}

func (b *fakeBackend) counts() (enabled, subscribes, unsubscribes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabledCalls, b.subscribes, b.unsubscribes
}

// --- fake permission subsystem ---

type fakePermissions struct {
	mu       sync.Mutex
	current  map[Permission]Grant
	answers  map[Permission]Grant
	async    bool
	pending  func(map[Permission]Grant)
	requests [][]Permission
}

func (p *fakePermissions) CheckPermission(id Permission) Grant {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current[id]
}

func (p *fakePermissions) RequestPermissions(ids []Permission, done func(map[Permission]Grant)) {
	p.mu.Lock()
	p.requests = append(p.requests, append([]Permission(nil), ids...))
	if p.async {
		p.pending = done
		p.mu.Unlock()
		return
	}
	answers := p.answers
	p.mu.Unlock()
	done(answers)
}

func (p *fakePermissions) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *fakePermissions) answerPending(answers map[Permission]Grant) {
	p.mu.Lock()
	done := p.pending
	p.mu.Unlock()
	if done != nil {
		done(answers)
	}
}

// --- fake settings screen ---

type fakeSettings struct {
	accept   bool
	onLaunch func()

	mu       sync.Mutex
	confirms int
	launches int
}

func (s *fakeSettings) Confirm(done func(bool)) {
	s.mu.Lock()
	s.confirms++
	s.mu.Unlock()
	done(s.accept)
}

func (s *fakeSettings) Launch(done func()) {
	s.mu.Lock()
	s.launches++
	s.mu.Unlock()
	if s.onLaunch != nil {
		s.onLaunch()
	}
	done()
}

func (s *fakeSettings) counts() (confirms, launches int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirms, s.launches
}

func at(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func allGranted() map[Permission]Grant {
	return map[Permission]Grant{FineLocation: Granted, CoarseLocation: Granted}
}
