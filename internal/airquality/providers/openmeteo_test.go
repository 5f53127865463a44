package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/air-quality-service/internal/airquality"
)

const airQualityBody = `{
	"latitude": 22.3,
	"longitude": 73.2,
	"timezone": "Asia/Kolkata",
	"utc_offset_seconds": 19800,
	"hourly": {
		"time": ["2026-01-10T05:30", "2026-01-10T06:30", "garbage"],
		"pm10": [40.1, 42.0, null],
		"pm2_5": [20.5, null, 18.0],
		"carbon_monoxide": [300, 310, 320],
		"nitrogen_dioxide": [12, 13, 14],
		"sulphur_dioxide": [5, 6, 7],
		"ozone": [60, 61, 62],
		"us_aqi": [45, 175, null]
	}
}`

func testBackoff() BackoffConfig {
	return BackoffConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func TestFetchAirQualitySeries(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		fmt.Fprint(w, airQualityBody)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), OpenMeteoConfig{AirQualityURL: srv.URL, WeatherURL: srv.URL, Backoff: testBackoff()})

	loc := airquality.Location{City: "Vadodara", Latitude: 22.3072, Longitude: 73.1812}
	series, err := p.FetchSeries(context.Background(), airquality.KindAirQuality, loc, airquality.FetchWindow{ForecastDays: 5, PastDays: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"latitude=22.3072", "forecast_days=5", "past_days=2", "timezone=auto", "us_aqi"} {
		if !strings.Contains(query, want) {
			t.Errorf("expected query to contain %q, got %q", want, query)
		}
	}

	if series.Timezone != "Asia/Kolkata" {
		t.Errorf("expected timezone Asia/Kolkata, got %q", series.Timezone)
	}
	if series.Len() != 3 {
		t.Fatalf("expected 3 positions, got %d", series.Len())
	}

	first, ok := series.TimeAt(0)
	if !ok || !first.Equal(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected 05:30 IST to be 00:00 UTC, got %v", first)
	}
	if _, ok := series.TimeAt(2); ok {
		t.Error("expected unparseable time to be reported as missing")
	}

	if v := series.Value(airquality.FieldAQI, 1); v == nil || *v != 175 {
		t.Errorf("expected aqi 175, got %v", v)
	}
	if v := series.Value(airquality.FieldPM25, 1); v != nil {
		t.Errorf("expected null pm2_5, got %v", *v)
	}
	if v := series.Value(airquality.FieldCO, 0); v == nil || *v != 300 {
		t.Errorf("expected co 300, got %v", v)
	}
}

func TestFetchSeriesAcrossDSTChange(t *testing.T) {
	// Berlin leaves summer time on 2026-10-25; the response offset is the
	// winter one.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"timezone":"Europe/Berlin","utc_offset_seconds":3600,"hourly":{
			"time":["2026-10-24T12:00","2026-10-26T12:00"],
			"us_aqi":[30,40]}}`)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), OpenMeteoConfig{AirQualityURL: srv.URL, WeatherURL: srv.URL, Backoff: testBackoff()})

	series, err := p.FetchSeries(context.Background(), airquality.KindAirQuality, airquality.Location{}, airquality.FetchWindow{ForecastDays: 5, PastDays: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []time.Time{
		time.Date(2026, 10, 24, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 26, 11, 0, 0, 0, time.UTC),
	}
	for i, w := range want {
		got, ok := series.TimeAt(i)
		if !ok || !got.Equal(w) {
			t.Errorf("position %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestFetchSeriesUnknownZoneUsesOffset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"timezone":"Nowhere/Unknown","utc_offset_seconds":7200,"hourly":{"time":["2026-01-10T12:00"],"us_aqi":[30]}}`)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), OpenMeteoConfig{AirQualityURL: srv.URL, WeatherURL: srv.URL, Backoff: testBackoff()})

	series, err := p.FetchSeries(context.Background(), airquality.KindAirQuality, airquality.Location{}, airquality.FetchWindow{ForecastDays: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := series.TimeAt(0); !ok || !got.Equal(time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("expected 10:00 UTC, got %v", got)
	}
}

func TestFetchOmitsPastDaysWhenZero(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		fmt.Fprint(w, `{"timezone":"GMT","utc_offset_seconds":0,"hourly":{"time":["2026-01-10T00:00"],"temperature_2m":[21.5]}}`)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), OpenMeteoConfig{AirQualityURL: srv.URL, WeatherURL: srv.URL, Backoff: testBackoff()})

	series, err := p.FetchSeries(context.Background(), airquality.KindWeather, airquality.Location{}, airquality.FetchWindow{ForecastDays: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(query, "past_days") {
		t.Errorf("expected no past_days, got %q", query)
	}
	if v := series.Value(airquality.FieldTemperature, 0); v == nil || *v != 21.5 {
		t.Errorf("expected temperature 21.5, got %v", v)
	}
	if v := series.Value(airquality.FieldHumidity, 0); v != nil {
		t.Errorf("expected absent humidity, got %v", *v)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, airQualityBody)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), OpenMeteoConfig{AirQualityURL: srv.URL, WeatherURL: srv.URL, Backoff: testBackoff()})

	if _, err := p.FetchSeries(context.Background(), airquality.KindAirQuality, airquality.Location{}, airquality.FetchWindow{ForecastDays: 1}); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestFetchClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":true,"reason":"Latitude must be in range of -90 to 90°."}`)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), OpenMeteoConfig{AirQualityURL: srv.URL, WeatherURL: srv.URL, Backoff: testBackoff()})

	_, err := p.FetchSeries(context.Background(), airquality.KindWeather, airquality.Location{Latitude: 120}, airquality.FetchWindow{ForecastDays: 1})

	var upstream *airquality.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if upstream.Status != http.StatusBadRequest || upstream.Kind != airquality.KindWeather {
		t.Fatalf("expected weather 400, got %s %d", upstream.Kind, upstream.Status)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single call, got %d", got)
	}
}

func TestFetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"hourly": {}}`)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), OpenMeteoConfig{AirQualityURL: srv.URL, WeatherURL: srv.URL, Backoff: testBackoff()})

	_, err := p.FetchSeries(context.Background(), airquality.KindAirQuality, airquality.Location{}, airquality.FetchWindow{ForecastDays: 1})
	var upstream *airquality.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
