package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/air-quality-service/internal/airquality"
)

// MemoryStore is a concurrency-safe in-memory implementation of
// airquality.Store. Rows are kept in insertion order.
type MemoryStore struct {
	mu sync.RWMutex

	records []airquality.Record
}

// NewMemoryStore creates a new MemoryStore. Rows are never evicted.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Persist appends records and returns their generated ids in input order.
func (s *MemoryStore) Persist(ctx context.Context, records []airquality.Record) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	createdAt := time.Now().UTC()
	ids := make([]string, 0, len(records))

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		r = cloneRecord(r)
		r.ID = uuid.NewString()
		r.CreatedAt = createdAt
		s.records = append(s.records, r)
		ids = append(ids, r.ID)
	}

	return ids, nil
}

// Query returns matching rows, newest timestamp first, capped at the
// filter's limit.
func (s *MemoryStore) Query(ctx context.Context, filter airquality.Filter) ([]airquality.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	result := make([]airquality.Record, 0)
	for _, r := range s.records {
		if filter.Matches(r) {
			result = append(result, cloneRecord(r))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if limit := filter.EffectiveLimit(); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Len returns the number of stored rows.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cloneRecord(r airquality.Record) airquality.Record {
	r.AQI = cloneFloat(r.AQI)
	r.Pollutants = airquality.Pollutants{
		PM25: cloneFloat(r.Pollutants.PM25),
		PM10: cloneFloat(r.Pollutants.PM10),
		NO2:  cloneFloat(r.Pollutants.NO2),
		SO2:  cloneFloat(r.Pollutants.SO2),
		CO:   cloneFloat(r.Pollutants.CO),
		O3:   cloneFloat(r.Pollutants.O3),
	}
	weather := make(airquality.Weather, len(r.Weather))
	for k, v := range r.Weather {
		weather[k] = cloneFloat(v)
	}
	r.Weather = weather
	return r
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
