package airquality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

var validate = validator.New()

// Options configures a Service. Zero values fall back to the defaults noted
// on each field.
type Options struct {
	// DefaultLocation fills in any of city, latitude or longitude a request
	// leaves out. Its Timezone is used when neither the provider nor the
	// resolver yields one.
	DefaultLocation Location

	// ForecastDays is the provider window for forecast reads (default 5).
	ForecastDays int
	// SyncPastDays is how much history a sync pulls (default 2). A negative
	// value disables history.
	SyncPastDays int
	// FetchTimeout bounds the joined provider fetch (default 20s).
	FetchTimeout time.Duration

	// TimezoneResolver is consulted when the provider omits a timezone.
	TimezoneResolver TimezoneResolver
}

// Service orchestrates provider fetches, normalization and persistence.
type Service struct {
	provider SeriesProvider
	store    Store
	opts     Options
	logger   *slog.Logger
}

// NewService creates a new Service.
func NewService(provider SeriesProvider, store Store, opts Options, logger *slog.Logger) *Service {
	if opts.ForecastDays <= 0 {
		opts.ForecastDays = 5
	}
	switch {
	case opts.SyncPastDays == 0:
		opts.SyncPastDays = 2
	case opts.SyncPastDays < 0:
		opts.SyncPastDays = 0
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		provider: provider,
		store:    store,
		opts:     opts,
		logger:   logger.With("component", "aqi-service"),
	}
}

// ResolveLocation fills the unset parts of q from the default location.
func (s *Service) ResolveLocation(q LocationQuery) Location {
	loc := Location{
		City:      q.City,
		Latitude:  s.opts.DefaultLocation.Latitude,
		Longitude: s.opts.DefaultLocation.Longitude,
	}
	if loc.City == "" {
		loc.City = s.opts.DefaultLocation.City
	}
	if q.Latitude != nil {
		loc.Latitude = *q.Latitude
	}
	if q.Longitude != nil {
		loc.Longitude = *q.Longitude
	}
	return loc
}

// Current returns the reading for the latest hour that is not in the future.
func (s *Service) Current(ctx context.Context, q LocationQuery) (*CurrentReport, error) {
	loc := s.ResolveLocation(q)

	aq, wx, err := s.fetchPair(ctx, loc, FetchWindow{ForecastDays: 1})
	if err != nil {
		return nil, err
	}
	loc.Timezone = s.timezoneFor(loc, aq)

	wx, _ = Align(aq, wx)
	record := ToRecord(aq, wx, currentIndex(aq, now()), loc)

	return &CurrentReport{
		Location: loc,
		Current: CurrentConditions{
			AQI:            record.AQI,
			Category:       record.Category,
			HealthAdvisory: AdvisoryFor(record.Category),
			Pollutants:     record.Pollutants,
			Weather:        record.Weather,
			Timestamp:      record.Timestamp,
		},
	}, nil
}

// Forecast returns up to hours normalized positions, earliest first.
func (s *Service) Forecast(ctx context.Context, q LocationQuery, hours int) (*ForecastReport, error) {
	loc := s.ResolveLocation(q)

	aq, wx, err := s.fetchPair(ctx, loc, FetchWindow{ForecastDays: s.opts.ForecastDays})
	if err != nil {
		return nil, err
	}
	loc.Timezone = s.timezoneFor(loc, aq)

	records := Forecast(aq, wx, loc, hours)
	points := make([]ForecastPoint, 0, len(records))
	for _, r := range records {
		points = append(points, r.forecastPoint())
	}

	s.logger.Debug("forecast assembled",
		"city", loc.City,
		"requested_hours", hours,
		"points", len(points),
	)

	return &ForecastReport{Location: loc, Forecast: points}, nil
}

// Sync fetches the forecast window plus recent history and persists every
// position. It returns the number of rows written.
func (s *Service) Sync(ctx context.Context, q LocationQuery) (int, error) {
	loc := s.ResolveLocation(q)

	window := FetchWindow{ForecastDays: s.opts.ForecastDays, PastDays: s.opts.SyncPastDays}
	aq, wx, err := s.fetchPair(ctx, loc, window)
	if err != nil {
		return 0, err
	}
	loc.Timezone = s.timezoneFor(loc, aq)

	records := Batch(aq, wx, loc)
	ids, err := s.persist(ctx, records)
	if err != nil {
		return 0, err
	}

	s.logger.Info("sync completed", "city", loc.City, "count", len(ids))
	return len(ids), nil
}

// Store persists a client-supplied batch. Categories are recomputed from
// each record's AQI.
func (s *Service) Store(ctx context.Context, batch StoreBatch) ([]string, error) {
	if err := validate.Struct(batch); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Tag() != "required" {
			return nil, &ValidationError{Field: strings.ToLower(fieldErrs[0].Field()), Reason: "out of range"}
		}
		return nil, &ValidationError{Reason: "Missing city, latitude, longitude, or records array"}
	}

	loc := Location{
		City:      batch.City,
		Latitude:  *batch.Latitude,
		Longitude: *batch.Longitude,
		Timezone:  batch.Timezone,
	}
	if loc.Timezone == "" {
		loc.Timezone = s.opts.DefaultLocation.Timezone
	}

	records := make([]Record, 0, len(batch.Records))
	for _, in := range batch.Records {
		records = append(records, fromStoreRecord(in, loc))
	}

	return s.persist(ctx, records)
}

// Historical returns stored records matching the query, newest first.
func (s *Service) Historical(ctx context.Context, city, start, end string) ([]Record, error) {
	filter, err := BuildFilter(city, start, end)
	if err != nil {
		return nil, err
	}

	records, err := s.store.Query(ctx, filter)
	if err != nil {
		s.logger.Error("historical query failed", "city", city, "error", err)
		return nil, &PersistenceError{Op: "query", Err: err}
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func (s *Service) persist(ctx context.Context, records []Record) ([]string, error) {
	if len(records) == 0 {
		return []string{}, nil
	}

	ids, err := s.store.Persist(ctx, records)
	if err != nil {
		s.logger.Error("persist failed", "count", len(records), "error", err)
		return nil, &PersistenceError{Op: "persist", Err: err}
	}
	return ids, nil
}

// fetchPair fetches both series concurrently. If either half fails, or the
// caller goes away, the other half is cancelled.
func (s *Service) fetchPair(ctx context.Context, loc Location, window FetchWindow) (*Series, *Series, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	var aq, wx *Series
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		aq, err = s.provider.FetchSeries(gctx, KindAirQuality, loc, window)
		return err
	})
	g.Go(func() error {
		var err error
		wx, err = s.provider.FetchSeries(gctx, KindWeather, loc, window)
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("provider fetch failed",
			"city", loc.City,
			"latitude", loc.Latitude,
			"longitude", loc.Longitude,
			"error", err,
		)
		return nil, nil, fmt.Errorf("fetch series for %s: %w", loc.City, err)
	}

	return aq, wx, nil
}

func (s *Service) timezoneFor(loc Location, aq *Series) string {
	if aq != nil && aq.Timezone != "" {
		return aq.Timezone
	}
	if s.opts.TimezoneResolver != nil {
		tz, err := s.opts.TimezoneResolver.GetTimezone(loc.Latitude, loc.Longitude)
		if err == nil && tz != "" {
			return tz
		}
		s.logger.Debug("timezone lookup failed, using default",
			"latitude", loc.Latitude,
			"longitude", loc.Longitude,
			"error", err,
		)
	}
	return s.opts.DefaultLocation.Timezone
}

// currentIndex returns the latest position whose instant is not after t, or
// zero when every position lies in the future.
func currentIndex(aq *Series, t time.Time) int {
	idx := 0
	for i := 0; i < aq.Len(); i++ {
		ts, ok := aq.TimeAt(i)
		if !ok {
			continue
		}
		if ts.After(t) {
			break
		}
		idx = i
	}
	return idx
}

func fromStoreRecord(in StoreRecord, loc Location) Record {
	ts := now().UTC()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		ts = in.Timestamp.UTC()
	}

	var pollutants Pollutants
	if in.Pollutants != nil {
		pollutants = *in.Pollutants
	}

	weather := in.Weather
	if weather == nil {
		weather = Weather{}
	}

	source := in.Source
	if source == "" {
		source = SourceOpenMeteo
	}

	return Record{
		Location:   loc,
		Timestamp:  ts,
		AQI:        in.AQI,
		Category:   CategoryOf(in.AQI),
		Pollutants: pollutants,
		Weather:    weather,
		Source:     source,
	}
}
