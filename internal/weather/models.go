package weather

import "strings"

// Units holds the unit labels Open-Meteo reports for each requested field.
type Units struct {
	Time                string `json:"time"`
	Temperature2m       string `json:"temperature_2m"`
	RelativeHumidity2m  string `json:"relative_humidity_2m"`
	ApparentTemperature string `json:"apparent_temperature"`
	WindSpeed10m        string `json:"wind_speed_10m"`
}

// Current is a single snapshot of the current conditions.
type Current struct {
	Time                string  `json:"time"`
	Temperature2m       float64 `json:"temperature_2m"`
	RelativeHumidity2m  float64 `json:"relative_humidity_2m"`
	ApparentTemperature float64 `json:"apparent_temperature"`
	WindSpeed10m        float64 `json:"wind_speed_10m"`
}

// Hourly holds parallel arrays indexed by hour.
type Hourly struct {
	Time                []string  `json:"time"`
	Temperature2m       []float64 `json:"temperature_2m"`
	RelativeHumidity2m  []float64 `json:"relative_humidity_2m"`
	ApparentTemperature []float64 `json:"apparent_temperature"`
	WindSpeed10m        []float64 `json:"wind_speed_10m"`
}

// Forecast is the weather provider response as served to the dashboard.
// It is also the payload persisted in the cache.
type Forecast struct {
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
	GenerationTimeMs     float64 `json:"generationtime_ms"`
	UTCOffsetSeconds     int     `json:"utc_offset_seconds"`
	Timezone             string  `json:"timezone"`
	TimezoneAbbreviation string  `json:"timezone_abbreviation"`
	Elevation            float64 `json:"elevation"`
	CurrentUnits         Units   `json:"current_units"`
	Current              Current `json:"current"`
	HourlyUnits          Units   `json:"hourly_units"`
	Hourly               Hourly  `json:"hourly"`
}

// City is a selectable dashboard location.
type City struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Catalog is the list of cities offered by the dashboard selector.
type Catalog []City

// Find looks a city up by ID or name, case-insensitively.
func (c Catalog) Find(idOrName string) (City, bool) {
	q := strings.TrimSpace(idOrName)
	for _, city := range c {
		if strings.EqualFold(city.ID, q) || strings.EqualFold(city.Name, q) {
			return city, true
		}
	}
	return City{}, false
}
