package airquality

import (
	"time"
)

// SourceOpenMeteo tags every record normalized from Open-Meteo series.
const SourceOpenMeteo = "open-meteo"

// Canonical pollutant keys.
const (
	FieldPM25 = "pm2_5"
	FieldPM10 = "pm10"
	FieldNO2  = "no2"
	FieldSO2  = "so2"
	FieldCO   = "co"
	FieldO3   = "o3"
	FieldAQI  = "aqi"
)

// Canonical weather keys.
const (
	FieldTemperature   = "temperature"
	FieldHumidity      = "humidity"
	FieldWindSpeed     = "windSpeed"
	FieldPrecipitation = "precipitation"
)

// WeatherFields lists the fixed keys of a populated Weather mapping.
var WeatherFields = []string{FieldTemperature, FieldHumidity, FieldWindSpeed, FieldPrecipitation}

// Location identifies the place a record was fetched for.
type Location struct {
	City      string  `json:"city" bson:"city"`
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
	Timezone  string  `json:"timezone,omitempty" bson:"timezone"`
}

// Pollutants holds pollutant concentrations at one instant. A nil field
// means the provider had no value at that position.
type Pollutants struct {
	PM25 *float64 `json:"pm2_5" bson:"pm2_5"`
	PM10 *float64 `json:"pm10" bson:"pm10"`
	NO2  *float64 `json:"no2" bson:"no2"`
	SO2  *float64 `json:"so2" bson:"so2"`
	CO   *float64 `json:"co" bson:"co"`
	O3   *float64 `json:"o3" bson:"o3"`
}

// Weather maps the keys in WeatherFields to optional readings.
//
// An empty mapping means no weather series was available at all; a mapping
// holding every key with nil values means the series existed but had no
// value at that position.
type Weather map[string]*float64

// Available reports whether the mapping came from a weather series.
func (w Weather) Available() bool {
	return len(w) > 0
}

// Record is the canonical air-quality record for one location and instant.
// Category is always derived from AQI.
type Record struct {
	ID         string     `json:"id,omitempty"`
	Location   Location   `json:"location"`
	Timestamp  time.Time  `json:"timestamp"` // always UTC
	AQI        *float64   `json:"aqi"`
	Category   Category   `json:"aqiCategory"`
	Pollutants Pollutants `json:"pollutants"`
	Weather    Weather    `json:"weather"`
	Source     string     `json:"source"`
	CreatedAt  time.Time  `json:"createdAt,omitempty"`
}

// ForecastPoint is the per-hour shape returned by the forecast endpoint.
type ForecastPoint struct {
	Timestamp  time.Time  `json:"timestamp"`
	AQI        *float64   `json:"aqi"`
	Category   Category   `json:"category"`
	Pollutants Pollutants `json:"pollutants"`
	Weather    Weather    `json:"weather"`
}

// CurrentConditions is the record closest to now plus its health advisory.
type CurrentConditions struct {
	AQI            *float64   `json:"aqi"`
	Category       Category   `json:"category"`
	HealthAdvisory string     `json:"healthAdvisory"`
	Pollutants     Pollutants `json:"pollutants"`
	Weather        Weather    `json:"weather"`
	Timestamp      time.Time  `json:"timestamp"`
}

// CurrentReport is the response of a current AQI lookup.
type CurrentReport struct {
	Location Location          `json:"location"`
	Current  CurrentConditions `json:"current"`
}

// ForecastReport is the response of a forecast lookup.
type ForecastReport struct {
	Location Location        `json:"location"`
	Forecast []ForecastPoint `json:"forecast"`
}

// LocationQuery carries the optional location parameters of a request.
// Unset fields fall back to the configured default location.
type LocationQuery struct {
	City      string
	Latitude  *float64
	Longitude *float64
}

// StoreBatch is a client-supplied batch of records for one location.
type StoreBatch struct {
	City      string        `json:"city" validate:"required"`
	Latitude  *float64      `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64      `json:"longitude" validate:"required,gte=-180,lte=180"`
	Timezone  string        `json:"timezone"`
	Records   []StoreRecord `json:"records" validate:"required"`
}

// StoreRecord is a single record inside a StoreBatch.
type StoreRecord struct {
	Timestamp  *time.Time  `json:"timestamp"`
	AQI        *float64    `json:"aqi"`
	Pollutants *Pollutants `json:"pollutants"`
	Weather    Weather     `json:"weather"`
	Source     string      `json:"source"`
}

func (r Record) forecastPoint() ForecastPoint {
	return ForecastPoint{
		Timestamp:  r.Timestamp,
		AQI:        r.AQI,
		Category:   r.Category,
		Pollutants: r.Pollutants,
		Weather:    r.Weather,
	}
}
