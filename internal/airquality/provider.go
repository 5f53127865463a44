package airquality

import (
	"context"
	"time"
)

// SeriesKind selects which provider dataset a fetch targets.
type SeriesKind string

const (
	KindAirQuality SeriesKind = "air_quality"
	KindWeather    SeriesKind = "weather"
)

// FetchWindow bounds a provider fetch in whole days around today.
type FetchWindow struct {
	ForecastDays int
	PastDays     int
}

// Series is a provider response: one shared time index plus named value
// sequences. Position i in every sequence denotes Times[i].
type Series struct {
	Kind     SeriesKind
	Timezone string
	Times    []time.Time
	Values   map[string][]*float64
}

// Len returns the number of positions in the time index.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Times)
}

// TimeAt returns the instant at position i, or false if i is out of range or
// the provider's time string could not be parsed.
func (s *Series) TimeAt(i int) (time.Time, bool) {
	if s == nil || i < 0 || i >= len(s.Times) || s.Times[i].IsZero() {
		return time.Time{}, false
	}
	return s.Times[i], true
}

// Value returns a copy of field at position i, or nil when the field is
// missing, the sequence is too short or the provider sent null.
func (s *Series) Value(field string, i int) *float64 {
	if s == nil || i < 0 {
		return nil
	}
	seq, ok := s.Values[field]
	if !ok || i >= len(seq) || seq[i] == nil {
		return nil
	}
	v := *seq[i]
	return &v
}

// SeriesProvider fetches one kind of series for a location.
type SeriesProvider interface {
	FetchSeries(ctx context.Context, kind SeriesKind, loc Location, window FetchWindow) (*Series, error)
}

// Store persists records as immutable rows and answers filtered queries.
type Store interface {
	Persist(ctx context.Context, records []Record) ([]string, error)
	Query(ctx context.Context, filter Filter) ([]Record, error)
}

// TimezoneResolver looks up the IANA zone for a coordinate pair.
type TimezoneResolver interface {
	GetTimezone(latitude, longitude float64) (string, error)
}
