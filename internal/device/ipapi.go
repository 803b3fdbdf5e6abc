package device

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/airquality/internal/httpclient"
	"github.com/i474232898/airquality/internal/location"
)

// NetworkBackend estimates the position from the public IP address using
// ip-api.com.
type NetworkBackend struct {
	// The free tier of ip-api.com is HTTP only.
	baseURL string
	enabled func() bool
	httpCfg httpclient.Config
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
	logger  *slog.Logger
}

func NewNetworkBackend(client *http.Client, enabled func() bool, logger *slog.Logger) *NetworkBackend {
	return &NetworkBackend{
		baseURL: "http://ip-api.com/json/",
		enabled: enabled,
		httpCfg: httpclient.Config{
			Client:  client,
			Backoff: httpclient.DefaultBackoff,
		},
		circuit: httpclient.NewBreaker("ip-api"),
		now:     time.Now,
		logger:  logger,
	}
}

func (b *NetworkBackend) ID() location.BackendID { return location.BackendNetwork }

func (b *NetworkBackend) Enabled(_ context.Context) bool {
	return b.enabled()
}

// Subscribe performs a single lookup in the background and reports it unless
// the subscription has ended by then.
func (b *NetworkBackend) Subscribe(ctx context.Context, onReading func(location.Reading)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer cancel()

		reading, err := b.lookup(subCtx)
		if err != nil {
			if subCtx.Err() == nil {
				b.logger.Warn("ip geolocation failed", "error", err)
			}
			return
		}
		if subCtx.Err() != nil {
			return
		}
		onReading(reading)
	}()

	return cancel, nil
}

func (b *NetworkBackend) lookup(ctx context.Context) (location.Reading, error) {
	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, b.baseURL, nil)
	}

	resp, err := httpclient.Do(ctx, b.httpCfg, b.circuit, buildRequest)
	if err != nil {
		return location.Reading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Status  string  `json:"status"`
		Message string  `json:"message"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return location.Reading{}, fmt.Errorf("decode ip-api response: %w", err)
	}
	if payload.Status != "success" {
		return location.Reading{}, fmt.Errorf("ip-api status %q: %s", payload.Status, payload.Message)
	}

	return location.Reading{
		Latitude:  payload.Lat,
		Longitude: payload.Lon,
		Source:    location.BackendNetwork,
		Timestamp: b.now().UTC(),
	}, nil
}
