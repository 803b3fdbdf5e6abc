package airquality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/i474232898/airquality/internal/observability"
)

var (
	// ErrNetworkFailure is returned when no provider produced a reading.
	ErrNetworkFailure = errors.New("air quality data unavailable")

	errNoProviders = errors.New("no air quality providers configured")
)

// Service orchestrates fetching from multiple providers and persisting snapshots.
type Service struct {
	store     Store
	providers []Provider
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewService creates a new Service. metrics may be nil.
func NewService(store Store, providers []Provider, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		providers: providers,
		metrics:   metrics,
		logger:    logger,
	}
}

// FetchAndStore fetches from all providers concurrently, aggregates the
// successful readings, stores the snapshot and returns it.
func (s *Service) FetchAndStore(ctx context.Context, loc Location) (Snapshot, error) {
	if len(s.providers) == 0 {
		return Snapshot{}, errNoProviders
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		readings []ProviderReading
		errs     []error
	)

	for _, p := range s.providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()

			start := time.Now()
			r, err := p.Fetch(ctx, loc)
			s.observe(p.Name(), err, time.Since(start))
			if err != nil {
				// Partial success is still useful.
				s.logger.Warn("provider fetch failed", "provider", p.Name(), "location", loc.Key(), "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
				mu.Unlock()
				return
			}

			mu.Lock()
			readings = append(readings, r)
			mu.Unlock()
		}(p)
	}

	wg.Wait()

	if len(readings) == 0 {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrNetworkFailure, errors.Join(errs...))
	}

	snapshot := AggregateReadings(loc, readings)
	if err := s.store.SaveSnapshot(ctx, loc, snapshot); err != nil {
		// The caller still gets fresh data; only history is affected.
		s.logger.Error("failed to save snapshot", "location", loc.Key(), "error", err)
	}
	if s.metrics != nil {
		s.metrics.LatestAQI.Set(float64(snapshot.AQI))
	}

	s.logger.Debug("air quality updated",
		"location", loc.Key(),
		"aqi", snapshot.AQI,
		"severity", snapshot.Severity,
		"providers", len(readings),
	)
	return snapshot, nil
}

func (s *Service) observe(provider string, err error, d time.Duration) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	s.metrics.ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(ctx context.Context, loc Location) (Snapshot, error) {
	return s.store.GetLatest(ctx, loc)
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(ctx context.Context, loc Location, from, to time.Time) ([]Snapshot, error) {
	return s.store.GetRange(ctx, loc, from, to)
}
