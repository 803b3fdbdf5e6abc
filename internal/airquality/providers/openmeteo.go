package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/airquality/internal/airquality"
	"github.com/i474232898/airquality/internal/httpclient"
)

// OpenMeteoProvider implements the airquality.Provider interface for the
// Open-Meteo air-quality API. It needs no API key.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg httpclient.Config
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://air-quality-api.open-meteo.com/v1/air-quality",
		httpCfg: httpclient.Config{
			Client:  client,
			Backoff: httpclient.DefaultBackoff,
		},
		circuit: httpclient.NewBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, loc airquality.Location) (airquality.ProviderReading, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
		values.Set("current", "us_aqi,us_aqi_pm2_5,us_aqi_pm10,us_aqi_ozone")
		values.Set("timezone", "GMT")

		return http.NewRequest(http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := httpclient.Do(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return airquality.ProviderReading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Current struct {
			Time  string   `json:"time"`
			USAQI *float64 `json:"us_aqi"`
			PM25  *float64 `json:"us_aqi_pm2_5"`
			PM10  *float64 `json:"us_aqi_pm10"`
			Ozone *float64 `json:"us_aqi_ozone"`
		} `json:"current"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return airquality.ProviderReading{}, fmt.Errorf("decode openmeteo response: %w", err)
	}
	if payload.Current.USAQI == nil {
		return airquality.ProviderReading{}, fmt.Errorf("openmeteo response has no us_aqi")
	}

	// Open-Meteo omits seconds and zone; timezone=GMT makes it UTC.
	ts, err := time.Parse("2006-01-02T15:04", payload.Current.Time)
	if err != nil {
		ts = time.Now().UTC()
	}

	return airquality.ProviderReading{
		ProviderName:  p.name,
		Timestamp:     ts.UTC(),
		AQI:           int(math.Round(*payload.Current.USAQI)),
		MainPollutant: dominantPollutant(payload.Current.PM25, payload.Current.PM10, payload.Current.Ozone),
	}, nil
}

// dominantPollutant names the pollutant with the highest sub-index using
// AirVisual's codes (p2, p1, o3) so aggregation can compare them.
func dominantPollutant(pm25, pm10, ozone *float64) string {
	best, name := -1.0, ""
	for _, c := range []struct {
		code string
		v    *float64
	}{{"p2", pm25}, {"p1", pm10}, {"o3", ozone}} {
		if c.v != nil && *c.v > best {
			best, name = *c.v, c.code
		}
	}
	return name
}
