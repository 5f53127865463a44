package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/sony/gobreaker"

	"github.com/i474232898/air-quality-service/internal/airquality"
)

const (
	DefaultAirQualityURL = "https://air-quality-api.open-meteo.com/v1/air-quality"
	DefaultWeatherURL    = "https://api.open-meteo.com/v1/forecast"

	// openMeteoTimeLayout is the local wall-clock format of hourly.time.
	openMeteoTimeLayout = "2006-01-02T15:04"
)

// Provider variable names mapped to canonical field keys.
var (
	airQualityFields = map[string]string{
		"pm10":             airquality.FieldPM10,
		"pm2_5":            airquality.FieldPM25,
		"carbon_monoxide":  airquality.FieldCO,
		"nitrogen_dioxide": airquality.FieldNO2,
		"sulphur_dioxide":  airquality.FieldSO2,
		"ozone":            airquality.FieldO3,
		"us_aqi":           airquality.FieldAQI,
	}
	weatherFields = map[string]string{
		"temperature_2m":       airquality.FieldTemperature,
		"relative_humidity_2m": airquality.FieldHumidity,
		"wind_speed_10m":       airquality.FieldWindSpeed,
		"precipitation":        airquality.FieldPrecipitation,
	}

	// hourly variables are requested in a fixed order so request URLs are stable.
	airQualityHourly = []string{"pm10", "pm2_5", "carbon_monoxide", "nitrogen_dioxide", "sulphur_dioxide", "ozone", "us_aqi"}
	weatherHourly    = []string{"temperature_2m", "relative_humidity_2m", "wind_speed_10m", "precipitation"}
)

// OpenMeteoConfig overrides the default endpoints and resilience settings.
type OpenMeteoConfig struct {
	AirQualityURL string
	WeatherURL    string
	Backoff       BackoffConfig
}

// OpenMeteoProvider fetches hourly air-quality and weather series from the
// Open-Meteo APIs. It implements airquality.SeriesProvider.
type OpenMeteoProvider struct {
	endpoints map[airquality.SeriesKind]string
	httpCfg   HTTPClientConfig
	circuits  map[airquality.SeriesKind]*gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, cfg OpenMeteoConfig) *OpenMeteoProvider {
	if cfg.AirQualityURL == "" {
		cfg.AirQualityURL = DefaultAirQualityURL
	}
	if cfg.WeatherURL == "" {
		cfg.WeatherURL = DefaultWeatherURL
	}
	if cfg.Backoff == (BackoffConfig{}) {
		cfg.Backoff = BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		}
	}

	return &OpenMeteoProvider{
		endpoints: map[airquality.SeriesKind]string{
			airquality.KindAirQuality: cfg.AirQualityURL,
			airquality.KindWeather:    cfg.WeatherURL,
		},
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: cfg.Backoff,
		},
		// Separate breakers so a failing weather API does not block air quality.
		circuits: map[airquality.SeriesKind]*gobreaker.CircuitBreaker{
			airquality.KindAirQuality: newCircuitBreaker("openmeteo-air-quality"),
			airquality.KindWeather:    newCircuitBreaker("openmeteo-weather"),
		},
	}
}

type hourlyPayload struct {
	Timezone         string                     `json:"timezone"`
	UTCOffsetSeconds int                        `json:"utc_offset_seconds"`
	Hourly           map[string]json.RawMessage `json:"hourly"`
}

// FetchSeries requests one hourly series for loc over window.
func (p *OpenMeteoProvider) FetchSeries(ctx context.Context, kind airquality.SeriesKind, loc airquality.Location, window airquality.FetchWindow) (*airquality.Series, error) {
	endpoint, ok := p.endpoints[kind]
	if !ok {
		return nil, &airquality.UpstreamError{Kind: kind, Err: fmt.Errorf("unsupported series kind %q", kind)}
	}

	variables, mapping := airQualityHourly, airQualityFields
	if kind == airquality.KindWeather {
		variables, mapping = weatherHourly, weatherFields
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
		values.Set("hourly", strings.Join(variables, ","))
		values.Set("timezone", "auto")
		if window.ForecastDays > 0 {
			values.Set("forecast_days", strconv.Itoa(window.ForecastDays))
		}
		if window.PastDays > 0 {
			values.Set("past_days", strconv.Itoa(window.PastDays))
		}

		u := fmt.Sprintf("%s?%s", endpoint, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuits[kind], buildRequest)
	if err != nil {
		return nil, &airquality.UpstreamError{Kind: kind, Status: statusOf(err), Err: err}
	}
	defer resp.Body.Close()

	var payload hourlyPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &airquality.UpstreamError{Kind: kind, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	series, err := payload.toSeries(kind, mapping)
	if err != nil {
		return nil, &airquality.UpstreamError{Kind: kind, Status: resp.StatusCode, Err: err}
	}
	return series, nil
}

func (p hourlyPayload) toSeries(kind airquality.SeriesKind, mapping map[string]string) (*airquality.Series, error) {
	rawTimes, ok := p.Hourly["time"]
	if !ok {
		return nil, fmt.Errorf("response has no hourly.time")
	}

	var timeStrings []string
	if err := json.Unmarshal(rawTimes, &timeStrings); err != nil {
		return nil, fmt.Errorf("decode hourly.time: %w", err)
	}

	zone := p.location()
	times := make([]time.Time, len(timeStrings))
	for i, s := range timeStrings {
		// Unparseable entries stay zero; normalization substitutes the
		// current time for them.
		if ts, err := time.ParseInLocation(openMeteoTimeLayout, s, zone); err == nil {
			times[i] = ts.UTC()
		}
	}

	values := make(map[string][]*float64, len(mapping))
	for providerKey, field := range mapping {
		raw, ok := p.Hourly[providerKey]
		if !ok {
			continue
		}
		var seq []*float64
		if err := json.Unmarshal(raw, &seq); err != nil {
			// A malformed variable is treated as absent rather than failing
			// the whole series.
			continue
		}
		values[field] = seq
	}

	return &airquality.Series{
		Kind:     kind,
		Timezone: p.Timezone,
		Times:    times,
		Values:   values,
	}, nil
}

// location returns the named zone so hours on either side of a DST change
// get their own offset. utc_offset_seconds only holds the current offset and
// is used when the name cannot be loaded.
func (p hourlyPayload) location() *time.Location {
	if p.Timezone != "" {
		if loc, err := time.LoadLocation(p.Timezone); err == nil {
			return loc
		}
	}
	return time.FixedZone(p.Timezone, p.UTCOffsetSeconds)
}
