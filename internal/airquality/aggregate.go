package airquality

import (
	"math"
	"sort"
	"time"
)

// AggregateReadings combines provider readings into a single Snapshot.
// The AQI is the rounded mean; the main pollutant is picked by majority,
// ties broken alphabetically so the result is stable.
func AggregateReadings(loc Location, readings []ProviderReading) Snapshot {
	if len(readings) == 0 {
		return Snapshot{
			Location:  loc,
			Timestamp: time.Now().UTC(),
			AQI:       -1,
			Severity:  SeverityUnknown,
		}
	}

	var sumAQI int
	pollutantCounts := make(map[string]int)
	providers := make([]ProviderContribution, 0, len(readings))
	var newestTS time.Time

	for _, r := range readings {
		sumAQI += r.AQI

		if r.MainPollutant != "" {
			pollutantCounts[r.MainPollutant]++
		}

		if r.Timestamp.After(newestTS) {
			newestTS = r.Timestamp
		}

		providers = append(providers, ProviderContribution{
			ProviderName: r.ProviderName,
			Timestamp:    r.Timestamp,
			AQI:          r.AQI,
		})
	}

	aqi := int(math.Round(float64(sumAQI) / float64(len(readings))))

	pollutants := make([]string, 0, len(pollutantCounts))
	for p := range pollutantCounts {
		pollutants = append(pollutants, p)
	}
	sort.Strings(pollutants)
	var main string
	best := 0
	for _, p := range pollutants {
		if pollutantCounts[p] > best {
			best = pollutantCounts[p]
			main = p
		}
	}

	if newestTS.IsZero() {
		newestTS = time.Now().UTC()
	}

	return Snapshot{
		Location:      loc,
		Timestamp:     newestTS.UTC(),
		AQI:           aqi,
		MainPollutant: main,
		Severity:      SeverityFor(aqi),
		Providers:     providers,
	}
}
