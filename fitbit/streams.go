package fitbit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pilab-dev/fitsync/domain"
)

const dateLayout = "2006-01-02"

// streamSpec describes how one metric stream is fetched and decoded: the
// date-range path template and the extractor for the stream's response shape.
type streamSpec struct {
	path    string
	extract func(body []byte, utcOffset string) ([]domain.MetricPoint, error)
}

// streamTable is the single source of truth for the provider surface. Every
// response carries exactly one array field holding the records.
var streamTable = map[domain.MetricStream]streamSpec{
	domain.StreamWeight: {
		path:    "/1/user/-/body/log/weight/date/%s/%s.json",
		extract: extractWeight,
	},
	domain.StreamDailySteps: {
		path:    "/1/user/-/activities/steps/date/%s/%s.json",
		extract: activitySeries("activities_steps"),
	},
	domain.StreamDailyCalories: {
		path:    "/1/user/-/activities/calories/date/%s/%s.json",
		extract: activitySeries("activities_calories"),
	},
	domain.StreamRestingHeartRate: {
		path:    "/1/user/-/activities/heart/date/%s/%s.json",
		extract: extractHeart,
	},
	domain.StreamHeartRateVariability: {
		path:    "/1/user/-/hrv/date/%s/%s.json",
		extract: extractHrv,
	},
	domain.StreamBreathingRate: {
		path:    "/1/user/-/br/date/%s/%s.json",
		extract: extractBreathingRate,
	},
	domain.StreamSkinTemperature: {
		path:    "/1/user/-/temp/skin/date/%s/%s.json",
		extract: extractSkinTemp,
	},
	domain.StreamActiveZoneMinutes: {
		path:    "/1/user/-/activities/active-zone-minutes/date/%s/%s.json",
		extract: extractActiveZones,
	},
}

type weightDto struct {
	Weight []weightEntryDto `json:"weight"`
}

type weightEntryDto struct {
	LogID  int64   `json:"logId"`
	Weight float64 `json:"weight"`
	Fat    float64 `json:"fat"`
	Date   string  `json:"date"`
	Time   string  `json:"time"`
}

// extractWeight parses weight log entries. Weight logs carry a local
// date+time; the fixed UTC offset turns them into absolute timestamps.
func extractWeight(body []byte, utcOffset string) ([]domain.MetricPoint, error) {
	var dto weightDto
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, fmt.Errorf("decode weight response: %w", err)
	}

	points := make([]domain.MetricPoint, 0, len(dto.Weight))
	for _, entry := range dto.Weight {
		ts, err := time.Parse("2006-01-02T15:04:05-07:00",
			fmt.Sprintf("%sT%s%s", entry.Date, entry.Time, utcOffset))
		if err != nil {
			return nil, fmt.Errorf("parse weight entry %d timestamp: %w", entry.LogID, err)
		}
		var extra map[string]float64
		if entry.Fat != 0 {
			extra = map[string]float64{"fat": entry.Fat}
		}
		points = append(points, domain.MetricPoint{
			RecordID:  entry.LogID,
			Timestamp: ts,
			Value:     entry.Weight,
			Extra:     extra,
		})
	}
	return points, nil
}

type activityEntryDto struct {
	DateTime string      `json:"dateTime"`
	Value    json.Number `json:"value"`
}

// activitySeries decodes the flat daily time series shared by the steps and
// calories endpoints. Values arrive as JSON strings. Date-keyed entries have
// no provider log id, so the UTC-midnight Unix timestamp serves as the
// record id; it is unique per day and numerically ordered.
func activitySeries(field string) func([]byte, string) ([]domain.MetricPoint, error) {
	return func(body []byte, _ string) ([]domain.MetricPoint, error) {
		var payload map[string][]activityEntryDto
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", field, err)
		}
		entries, ok := payload[field]
		if !ok {
			return nil, fmt.Errorf("response missing %q field", field)
		}

		points := make([]domain.MetricPoint, 0, len(entries))
		for _, entry := range entries {
			ts, err := dateKey(entry.DateTime)
			if err != nil {
				return nil, err
			}
			value, err := entry.Value.Float64()
			if err != nil {
				return nil, fmt.Errorf("parse %s value %q: %w", field, entry.Value, err)
			}
			points = append(points, domain.MetricPoint{
				RecordID:  ts.Unix(),
				Timestamp: ts,
				Value:     value,
			})
		}
		return points, nil
	}
}

type heartDto struct {
	ActivitiesHeart []struct {
		DateTime string `json:"dateTime"`
		Value    struct {
			RestingHeartRate float64 `json:"restingHeartRate"`
		} `json:"value"`
	} `json:"activities_heart"`
}

func extractHeart(body []byte, _ string) ([]domain.MetricPoint, error) {
	var dto heartDto
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, fmt.Errorf("decode heart response: %w", err)
	}
	points := make([]domain.MetricPoint, 0, len(dto.ActivitiesHeart))
	for _, entry := range dto.ActivitiesHeart {
		ts, err := dateKey(entry.DateTime)
		if err != nil {
			return nil, err
		}
		points = append(points, domain.MetricPoint{
			RecordID:  ts.Unix(),
			Timestamp: ts,
			Value:     entry.Value.RestingHeartRate,
		})
	}
	return points, nil
}

type hrvDto struct {
	Hrv []struct {
		DateTime string `json:"dateTime"`
		Value    struct {
			DailyRmssd float64 `json:"dailyRmssd"`
			DeepRmssd  float64 `json:"deepRmssd"`
		} `json:"value"`
	} `json:"hrv"`
}

func extractHrv(body []byte, _ string) ([]domain.MetricPoint, error) {
	var dto hrvDto
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, fmt.Errorf("decode hrv response: %w", err)
	}
	points := make([]domain.MetricPoint, 0, len(dto.Hrv))
	for _, entry := range dto.Hrv {
		ts, err := dateKey(entry.DateTime)
		if err != nil {
			return nil, err
		}
		points = append(points, domain.MetricPoint{
			RecordID:  ts.Unix(),
			Timestamp: ts,
			Value:     entry.Value.DailyRmssd,
			Extra:     map[string]float64{"deepRmssd": entry.Value.DeepRmssd},
		})
	}
	return points, nil
}

type breathingRateDto struct {
	Br []struct {
		DateTime string `json:"dateTime"`
		Value    struct {
			BreathingRate float64 `json:"breathingRate"`
		} `json:"value"`
	} `json:"br"`
}

func extractBreathingRate(body []byte, _ string) ([]domain.MetricPoint, error) {
	var dto breathingRateDto
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, fmt.Errorf("decode breathing rate response: %w", err)
	}
	points := make([]domain.MetricPoint, 0, len(dto.Br))
	for _, entry := range dto.Br {
		ts, err := dateKey(entry.DateTime)
		if err != nil {
			return nil, err
		}
		points = append(points, domain.MetricPoint{
			RecordID:  ts.Unix(),
			Timestamp: ts,
			Value:     entry.Value.BreathingRate,
		})
	}
	return points, nil
}

type skinTempDto struct {
	TempSkin []struct {
		DateTime string `json:"dateTime"`
		Value    struct {
			NightlyRelative float64 `json:"nightlyRelative"`
		} `json:"value"`
	} `json:"tempSkin"`
}

func extractSkinTemp(body []byte, _ string) ([]domain.MetricPoint, error) {
	var dto skinTempDto
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, fmt.Errorf("decode skin temperature response: %w", err)
	}
	points := make([]domain.MetricPoint, 0, len(dto.TempSkin))
	for _, entry := range dto.TempSkin {
		ts, err := dateKey(entry.DateTime)
		if err != nil {
			return nil, err
		}
		points = append(points, domain.MetricPoint{
			RecordID:  ts.Unix(),
			Timestamp: ts,
			Value:     entry.Value.NightlyRelative,
		})
	}
	return points, nil
}

type activeZoneDto struct {
	ActivitiesActiveZoneMinutes []struct {
		DateTime string `json:"dateTime"`
		Value    struct {
			ActiveZoneMinutes        float64 `json:"activeZoneMinutes"`
			FatBurnActiveZoneMinutes float64 `json:"fatBurnActiveZoneMinutes"`
			CardioActiveZoneMinutes  float64 `json:"cardioActiveZoneMinutes"`
		} `json:"value"`
	} `json:"activities_active_zone_minutes"`
}

func extractActiveZones(body []byte, _ string) ([]domain.MetricPoint, error) {
	var dto activeZoneDto
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, fmt.Errorf("decode active zone response: %w", err)
	}
	points := make([]domain.MetricPoint, 0, len(dto.ActivitiesActiveZoneMinutes))
	for _, entry := range dto.ActivitiesActiveZoneMinutes {
		ts, err := dateKey(entry.DateTime)
		if err != nil {
			return nil, err
		}
		points = append(points, domain.MetricPoint{
			RecordID:  ts.Unix(),
			Timestamp: ts,
			Value:     entry.Value.ActiveZoneMinutes,
			Extra: map[string]float64{
				"fatBurnActiveZoneMinutes": entry.Value.FatBurnActiveZoneMinutes,
				"cardioActiveZoneMinutes":  entry.Value.CardioActiveZoneMinutes,
			},
		})
	}
	return points, nil
}

// dateKey parses a date-only entry key into its UTC midnight.
func dateKey(dateTime string) (time.Time, error) {
	ts, err := time.Parse(dateLayout, dateTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse entry date %q: %w", dateTime, err)
	}
	return ts, nil
}
