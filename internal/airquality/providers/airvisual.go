package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/airquality/internal/airquality"
	"github.com/i474232898/airquality/internal/httpclient"
)

// AirVisualProvider implements the airquality.Provider interface for IQAir AirVisual.
type AirVisualProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg httpclient.Config
	circuit *gobreaker.CircuitBreaker
}

func NewAirVisualProvider(client *http.Client, apiKey string) *AirVisualProvider {
	return &AirVisualProvider{
		name:    "airvisual",
		apiKey:  apiKey,
		baseURL: "https://api.airvisual.com/v2/nearest_city",
		httpCfg: httpclient.Config{
			Client:  client,
			Backoff: httpclient.DefaultBackoff,
		},
		circuit: httpclient.NewBreaker("airvisual"),
	}
}

func (p *AirVisualProvider) Name() string {
	return p.name
}

func (p *AirVisualProvider) Fetch(ctx context.Context, loc airquality.Location) (airquality.ProviderReading, error) {
	if p.apiKey == "" {
		return airquality.ProviderReading{}, fmt.Errorf("airvisual api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
		values.Set("key", p.apiKey)

		return http.NewRequest(http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := httpclient.Do(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return airquality.ProviderReading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Status string `json:"status"`
		Data   struct {
			Message string `json:"message"`
			Current struct {
				Pollution struct {
					TS     string `json:"ts"`
					AQIUS  int    `json:"aqius"`
					MainUS string `json:"mainus"`
				} `json:"pollution"`
			} `json:"current"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return airquality.ProviderReading{}, fmt.Errorf("decode airvisual response: %w", err)
	}
	if payload.Status != "success" {
		return airquality.ProviderReading{}, fmt.Errorf("airvisual status %q: %s", payload.Status, payload.Data.Message)
	}

	pollution := payload.Data.Current.Pollution
	ts, err := time.Parse(time.RFC3339, pollution.TS)
	if err != nil {
		ts = time.Now().UTC()
	}

	return airquality.ProviderReading{
		ProviderName:  p.name,
		Timestamp:     ts.UTC(),
		AQI:           pollution.AQIUS,
		MainPollutant: pollution.MainUS,
	}, nil
}
