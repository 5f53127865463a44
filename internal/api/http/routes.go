package httpapi

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/air-quality-service/internal/airquality"
	"github.com/i474232898/air-quality-service/internal/common"
	"github.com/i474232898/air-quality-service/internal/oracle"
)

var validate = validator.New()

// Oracle is the prediction and scenario backend used by the HTTP surface.
type Oracle interface {
	Predict(ctx context.Context, latitude, longitude float64, horizon int) (*oracle.Forecast, error)
	WhatIf(ctx context.Context, req oracle.ScenarioRequest, defaultLat, defaultLon float64) (*oracle.ScenarioReport, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *airquality.Service, predictor Oracle) {
	aqi := app.Group("/api/aqi")

	aqi.Get("/current", func(c *fiber.Ctx) error {
		q, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report, err := service.Current(c.UserContext(), q)
		if err != nil {
			return toFiberError(err, "Failed to fetch current AQI")
		}
		return c.JSON(report)
	})

	aqi.Get("/forecast", func(c *fiber.Ctx) error {
		q, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		hours := common.IntOrDefault(c.Query("hours"), airquality.DefaultForecastHours)

		report, err := service.Forecast(c.UserContext(), q, hours)
		if err != nil {
			return toFiberError(err, "Failed to fetch forecast")
		}
		return c.JSON(report)
	})

	aqi.Get("/historical", func(c *fiber.Ctx) error {
		records, err := service.Historical(c.UserContext(), c.Query("city"), c.Query("start"), c.Query("end"))
		if err != nil {
			return toFiberError(err, "Failed to fetch historical data")
		}
		return c.JSON(fiber.Map{"records": records})
	})

	aqi.Get("/sync", func(c *fiber.Ctx) error {
		q, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		count, err := service.Sync(c.UserContext(), q)
		if err != nil {
			return toFiberError(err, "Sync failed")
		}
		return c.JSON(fiber.Map{"message": "Synced", "count": count})
	})

	aqi.Post("/store", func(c *fiber.Ctx) error {
		var batch airquality.StoreBatch
		if err := c.BodyParser(&batch); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		ids, err := service.Store(c.UserContext(), batch)
		if err != nil {
			return toFiberError(err, "Failed to store records")
		}
		return c.JSON(fiber.Map{"count": len(ids), "ids": ids})
	})

	app.Get("/api/predict", func(c *fiber.Ctx) error {
		q, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		loc := service.ResolveLocation(q)
		horizon := common.IntOrDefault(c.Query("horizon"), oracle.DefaultHorizon)

		forecast, err := predictor.Predict(c.UserContext(), loc.Latitude, loc.Longitude, horizon)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":    err.Error(),
				"fallback": oracle.FallbackHint,
			})
		}

		return c.JSON(fiber.Map{
			"location":       loc,
			"predictions":    forecast.Predictions,
			"confidenceNote": forecast.ConfidenceNote,
		})
	})

	app.Post("/api/scenario/what-if", func(c *fiber.Ctx) error {
		var req oracle.ScenarioRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		def := service.ResolveLocation(airquality.LocationQuery{})
		report, err := predictor.WhatIf(c.UserContext(), req, def.Latitude, def.Longitude)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":      err.Error(),
				"fallback":   oracle.FallbackHint,
				"disclaimer": oracle.Disclaimer,
			})
		}
		return c.JSON(report)
	})
}

// locationQuery holds the optional location query parameters.
type locationQuery struct {
	City      string
	Latitude  *float64 `validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `validate:"omitempty,gte=-180,lte=180"`
}

func parseLocationQuery(c *fiber.Ctx) (airquality.LocationQuery, error) {
	var q locationQuery
	var err error

	q.City = c.Query("city")
	if q.Latitude, err = common.OptionalFloat(c.Query("lat")); err != nil {
		return airquality.LocationQuery{}, errors.New("lat: " + err.Error())
	}
	if q.Longitude, err = common.OptionalFloat(c.Query("lon")); err != nil {
		return airquality.LocationQuery{}, errors.New("lon: " + err.Error())
	}

	if err := validate.Struct(q); err != nil {
		return airquality.LocationQuery{}, err
	}

	return airquality.LocationQuery{
		City:      q.City,
		Latitude:  q.Latitude,
		Longitude: q.Longitude,
	}, nil
}

// toFiberError maps service errors to HTTP statuses. Validation failures are
// client errors; everything else is reported as a server error carrying the
// underlying message.
func toFiberError(err error, fallback string) error {
	if errors.Is(err, airquality.ErrValidation) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	msg := err.Error()
	if msg == "" {
		msg = fallback
	}
	return fiber.NewError(fiber.StatusInternalServerError, msg)
}
