package domain

import (
	"fmt"
	"time"
)

// MetricStream is a named category of time-series health data. Each stream
// maps to one provider endpoint and one response shape.
type MetricStream string

const (
	StreamWeight               MetricStream = "weight"
	StreamDailySteps           MetricStream = "steps"
	StreamDailyCalories        MetricStream = "daily-calories"
	StreamRestingHeartRate     MetricStream = "resting-heart-rate"
	StreamHeartRateVariability MetricStream = "daily-rmssd"
	StreamBreathingRate        MetricStream = "breathing-rate"
	StreamSkinTemperature      MetricStream = "nightly-relative"
	StreamActiveZoneMinutes    MetricStream = "active-zone-minutes"
)

// AllStreams returns every tracked metric stream, in a stable order.
func AllStreams() []MetricStream {
	return []MetricStream{
		StreamWeight,
		StreamDailySteps,
		StreamDailyCalories,
		StreamRestingHeartRate,
		StreamHeartRateVariability,
		StreamBreathingRate,
		StreamSkinTemperature,
		StreamActiveZoneMinutes,
	}
}

// ParseStream converts a string into a known MetricStream.
func ParseStream(s string) (MetricStream, error) {
	for _, stream := range AllStreams() {
		if s == string(stream) {
			return stream, nil
		}
	}
	return "", fmt.Errorf("unknown metric stream %q", s)
}

// DefaultLookback is the fetch window used for a client's very first sync of
// the stream. The provider's date-range endpoints accept at most ~31 days per
// request, so the lookback stays within that bound.
func (s MetricStream) DefaultLookback() time.Duration {
	return 30 * 24 * time.Hour
}
