package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

const (
	// DefaultURL is where the prediction service listens unless configured.
	DefaultURL = "http://localhost:5001"

	// FallbackHint accompanies every oracle failure returned to clients.
	FallbackHint = "Ensure ML service is running (python ml-service/app.py)"

	// Disclaimer is attached to every scenario response, successful or not.
	Disclaimer = "Scenario-Based Prediction (Educational). Not official atmospheric modeling."

	defaultConfidenceNote = "Scenario-based prediction for educational purposes."

	DefaultHorizon = 24
	MaxHorizon     = 120
)

// UnavailableError is returned when the oracle cannot be reached or answers
// with a non-2xx status.
type UnavailableError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *UnavailableError) Error() string {
	switch {
	case e.Body != "":
		return e.Body
	case e.Status != 0:
		return fmt.Sprintf("ML service error: %d", e.Status)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Op + " service unavailable"
	}
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Prediction is one forecast hour produced by the oracle.
type Prediction struct {
	Timestamp string   `json:"timestamp"`
	AQI       *float64 `json:"aqi"`
	Category  string   `json:"category"`
}

// Forecast is the oracle's answer to a prediction request.
type Forecast struct {
	Predictions    []Prediction
	ConfidenceNote string
}

// ScenarioRequest is the client-facing what-if request.
type ScenarioRequest struct {
	City                             string              `json:"city"`
	Latitude                         *float64            `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude                        *float64            `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	BaseAQI                          *float64            `json:"baseAQI"`
	BasePollutants                   map[string]*float64 `json:"basePollutants"`
	TrafficChangePercent             float64             `json:"trafficChangePercent"`
	IndustrialEmissionsChangePercent float64             `json:"industrialEmissionsChangePercent"`
	Rainfall                         bool                `json:"rainfall"`
	WindSpeedChange                  float64             `json:"windSpeedChange"`
	TemperatureChange                float64             `json:"temperatureChange"`
}

// scenarioPayload is the wire body the oracle expects.
type scenarioPayload struct {
	Lat                     float64             `json:"lat"`
	Lon                     float64             `json:"lon"`
	BaseAQI                 *float64            `json:"base_aqi"`
	BasePollutants          map[string]*float64 `json:"base_pollutants"`
	TrafficChangePercent    float64             `json:"traffic_change_percent"`
	IndustrialChangePercent float64             `json:"industrial_change_percent"`
	Rainfall                bool                `json:"rainfall"`
	WindSpeedChange         float64             `json:"wind_speed_change"`
	TemperatureChange       float64             `json:"temperature_change"`
}

// ScenarioResult is the simulated outcome as computed by the oracle.
type ScenarioResult struct {
	BaseAQI                 *float64           `json:"base_aqi"`
	BaseCategory            string             `json:"base_category"`
	SimulatedAQI            *float64           `json:"simulated_aqi"`
	SimulatedCategory       string             `json:"simulated_category"`
	SimulatedPollutants     map[string]float64 `json:"simulated_pollutants"`
	HealthAdvisoryOriginal  string             `json:"health_advisory_original"`
	HealthAdvisorySimulated string             `json:"health_advisory_simulated"`
}

// ScenarioReport is a ScenarioResult with the educational disclaimer.
type ScenarioReport struct {
	Disclaimer string `json:"disclaimer"`
	ScenarioResult
}

// Client talks to the external prediction and scenario service.
type Client struct {
	baseURL string
	http    *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "oracle",
			MaxRequests: 1,
			Interval:    1 * time.Minute,
			Timeout:     30 * time.Second,
		}),
	}
}

// ClampHorizon applies the oracle's horizon rules: zero means the default,
// and the result lies in 1..MaxHorizon.
func ClampHorizon(h int) int {
	if h == 0 {
		return DefaultHorizon
	}
	return min(max(h, 1), MaxHorizon)
}

// Predict requests hourly AQI predictions for a coordinate pair.
func (c *Client) Predict(ctx context.Context, latitude, longitude float64, horizon int) (*Forecast, error) {
	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(latitude, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(longitude, 'f', -1, 64))
	values.Set("horizon", strconv.Itoa(ClampHorizon(horizon)))

	body, err := c.do(ctx, "Prediction", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predict?"+values.Encode(), nil)
	})
	if err != nil {
		return nil, err
	}

	forecast, err := decodeForecast(body)
	if err != nil {
		return nil, &UnavailableError{Op: "Prediction", Err: err}
	}
	return forecast, nil
}

// WhatIf runs a scenario simulation. Missing coordinates fall back to the
// given defaults.
func (c *Client) WhatIf(ctx context.Context, req ScenarioRequest, defaultLat, defaultLon float64) (*ScenarioReport, error) {
	payload := scenarioPayload{
		Lat:                     defaultLat,
		Lon:                     defaultLon,
		BaseAQI:                 req.BaseAQI,
		BasePollutants:          req.BasePollutants,
		TrafficChangePercent:    req.TrafficChangePercent,
		IndustrialChangePercent: req.IndustrialEmissionsChangePercent,
		Rainfall:                req.Rainfall,
		WindSpeedChange:         req.WindSpeedChange,
		TemperatureChange:       req.TemperatureChange,
	}
	if req.Latitude != nil {
		payload.Lat = *req.Latitude
	}
	if req.Longitude != nil {
		payload.Lon = *req.Longitude
	}
	if payload.BasePollutants == nil {
		payload.BasePollutants = map[string]*float64{}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, "What-if", func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/what-if", bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	})
	if err != nil {
		return nil, err
	}

	var decoded struct {
		ScenarioResult
		Disclaimer string `json:"disclaimer"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &UnavailableError{Op: "What-if", Err: fmt.Errorf("decode response: %w", err)}
	}

	report := &ScenarioReport{Disclaimer: decoded.Disclaimer, ScenarioResult: decoded.ScenarioResult}
	if report.Disclaimer == "" {
		report.Disclaimer = Disclaimer
	}
	return report, nil
}

func (c *Client) do(ctx context.Context, op string, build func(context.Context) (*http.Request, error)) ([]byte, error) {
	result, err := c.circuit.Execute(func() (interface{}, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, &UnavailableError{Op: op, Err: err}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, &UnavailableError{Op: op, Status: resp.StatusCode, Err: err}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &UnavailableError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		return body, nil
	})
	if err != nil {
		var unavailable *UnavailableError
		if errors.As(err, &unavailable) {
			return nil, err
		}
		return nil, &UnavailableError{Op: op, Err: err}
	}
	return result.([]byte), nil
}

// decodeForecast accepts either {"predictions": [...], "confidence_note": ...}
// or a bare prediction array.
func decodeForecast(body []byte) (*Forecast, error) {
	var envelope struct {
		Predictions    []Prediction `json:"predictions"`
		ConfidenceNote string       `json:"confidence_note"`
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &envelope.Predictions); err != nil {
			return nil, fmt.Errorf("decode predictions: %w", err)
		}
	} else if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode predictions: %w", err)
	}

	forecast := &Forecast{
		Predictions:    envelope.Predictions,
		ConfidenceNote: envelope.ConfidenceNote,
	}
	if forecast.Predictions == nil {
		forecast.Predictions = []Prediction{}
	}
	if forecast.ConfidenceNote == "" {
		forecast.ConfidenceNote = defaultConfidenceNote
	}
	return forecast, nil
}
