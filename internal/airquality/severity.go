package airquality

// Severity is the human-readable bucket for a US AQI value.
type Severity string

const (
	SeverityUnknown  Severity = "unknown"
	SeverityGood     Severity = "good"
	SeverityModerate Severity = "moderate"
	SeverityBad      Severity = "bad"
	SeverityVeryBad  Severity = "very bad"
)

// SeverityFor maps a pollution index onto its bucket. Each band includes its
// lower bound: 0-50 good, 51-150 moderate, 151-200 bad, 201+ very bad.
func SeverityFor(index int) Severity {
	switch {
	case index < 0:
		return SeverityUnknown
	case index <= 50:
		return SeverityGood
	case index <= 150:
		return SeverityModerate
	case index <= 200:
		return SeverityBad
	default:
		return SeverityVeryBad
	}
}
