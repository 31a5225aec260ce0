package nea

import "encoding/json"

// Raw payload types for the data.gov.sg environment endpoints. Numeric fields
// use json.Number and nothing is required, so decoding survives schema drift;
// the normalizer decides what is usable.

// RealtimePayload is the shape shared by the air-temperature, humidity,
// wind-speed, wind-direction and rainfall endpoints.
type RealtimePayload struct {
	Metadata struct {
		Stations    []RawStation `json:"stations"`
		ReadingType string       `json:"reading_type"`
		ReadingUnit string       `json:"reading_unit"`
	} `json:"metadata"`
	Items []struct {
		Timestamp string `json:"timestamp"`
		Readings  []struct {
			StationID string      `json:"station_id"`
			Value     json.Number `json:"value"`
		} `json:"readings"`
	} `json:"items"`
}

// RawStation is station metadata as reported by the realtime endpoints.
type RawStation struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Location struct {
		Latitude  json.Number `json:"latitude"`
		Longitude json.Number `json:"longitude"`
	} `json:"location"`
}

// Forecast2HrPayload is the 2-hour-weather-forecast response.
type Forecast2HrPayload struct {
	AreaMetadata []struct {
		Name          string `json:"name"`
		LabelLocation struct {
			Latitude  json.Number `json:"latitude"`
			Longitude json.Number `json:"longitude"`
		} `json:"label_location"`
	} `json:"area_metadata"`
	Items []struct {
		Timestamp   string `json:"timestamp"`
		ValidPeriod struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"valid_period"`
		Forecasts []struct {
			Area     string `json:"area"`
			Forecast string `json:"forecast"`
		} `json:"forecasts"`
	} `json:"items"`
}

// Forecast24HrPayload is the 24-hour-weather-forecast response.
type Forecast24HrPayload struct {
	Items []struct {
		Timestamp string `json:"timestamp"`
		General   struct {
			Forecast         string `json:"forecast"`
			RelativeHumidity struct {
				Low  json.Number `json:"low"`
				High json.Number `json:"high"`
			} `json:"relative_humidity"`
			Temperature struct {
				Low  json.Number `json:"low"`
				High json.Number `json:"high"`
			} `json:"temperature"`
		} `json:"general"`
		Periods []struct {
			Time struct {
				Start string `json:"start"`
				End   string `json:"end"`
			} `json:"time"`
			Regions map[string]string `json:"regions"`
		} `json:"periods"`
	} `json:"items"`
}

// Forecast4DayPayload is the 4-day-weather-forecast response.
type Forecast4DayPayload struct {
	Items []struct {
		Timestamp string `json:"timestamp"`
		Forecasts []struct {
			Date             string `json:"date"`
			Timestamp        string `json:"timestamp"`
			Forecast         string `json:"forecast"`
			RelativeHumidity struct {
				Low  json.Number `json:"low"`
				High json.Number `json:"high"`
			} `json:"relative_humidity"`
			Temperature struct {
				Low  json.Number `json:"low"`
				High json.Number `json:"high"`
			} `json:"temperature"`
			Wind struct {
				Speed struct {
					Low  json.Number `json:"low"`
					High json.Number `json:"high"`
				} `json:"speed"`
				Direction string `json:"direction"`
			} `json:"wind"`
		} `json:"forecasts"`
	} `json:"items"`
}

// PM25Payload is the pm25 response: one-hourly readings keyed by region.
type PM25Payload struct {
	Items []struct {
		Timestamp string `json:"timestamp"`
		Readings  struct {
			PM25OneHourly map[string]json.Number `json:"pm25_one_hourly"`
		} `json:"readings"`
	} `json:"items"`
}

// UVPayload is the uv-index response. Index entries are most recent first.
type UVPayload struct {
	Items []struct {
		Timestamp string `json:"timestamp"`
		Index     []struct {
			Value     json.Number `json:"value"`
			Timestamp string      `json:"timestamp"`
		} `json:"index"`
	} `json:"items"`
}
