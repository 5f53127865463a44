package store

import (
	"context"
	"testing"
	"time"

	"github.com/i474232898/air-quality-service/internal/airquality"
)

func ptr(v float64) *float64 { return &v }

func sampleRecords(city string, start time.Time, n int) []airquality.Record {
	records := make([]airquality.Record, 0, n)
	for i := 0; i < n; i++ {
		aqi := ptr(float64(40 + i))
		records = append(records, airquality.Record{
			Location:   airquality.Location{City: city, Latitude: 22.3072, Longitude: 73.1812, Timezone: "Asia/Kolkata"},
			Timestamp:  start.Add(time.Duration(i) * time.Hour),
			AQI:        aqi,
			Category:   airquality.CategoryOf(aqi),
			Pollutants: airquality.Pollutants{PM25: ptr(12), O3: ptr(55)},
			Weather: airquality.Weather{
				airquality.FieldTemperature:   ptr(30),
				airquality.FieldHumidity:      nil,
				airquality.FieldWindSpeed:     ptr(4),
				airquality.FieldPrecipitation: ptr(0),
			},
			Source: airquality.SourceOpenMeteo,
		})
	}
	return records
}

func TestMemoryStorePersistAndQuery(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	start := time.Date(2026, 1, 31, 20, 0, 0, 0, time.UTC)

	ids, err := s.Persist(ctx, sampleRecords("Vadodara East", start, 6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 6 || ids[0] == ids[1] {
		t.Fatalf("expected 6 distinct ids, got %v", ids)
	}
	if _, err := s.Persist(ctx, sampleRecords("Surat", start, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	filter, err := airquality.BuildFilter("vadodara", "", "2026-01-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.Query(ctx, filter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 records on 2026-01-31, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(start.Add(3 * time.Hour)) {
		t.Fatalf("expected newest first, got %v", got[0].Timestamp)
	}
	if got[0].ID == "" || got[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and createdAt to be set, got %+v", got[0])
	}
	if v, ok := got[0].Weather[airquality.FieldHumidity]; !ok || v != nil {
		t.Fatalf("expected humidity key kept with nil value")
	}
}

func TestMemoryStoreKeepsDuplicates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		if _, err := s.Persist(ctx, sampleRecords("Vadodara", start, 3)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if s.Len() != 6 {
		t.Fatalf("expected repeated syncs to append, got %d rows", s.Len())
	}
}

func TestMemoryStoreLimitKeepsRows(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := s.Persist(ctx, sampleRecords("Vadodara", start, 2000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 2000 {
		t.Fatalf("expected all 2000 rows kept, got %d", s.Len())
	}

	got, err := s.Query(ctx, airquality.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != airquality.MaxHistoricalRows {
		t.Fatalf("expected %d rows, got %d", airquality.MaxHistoricalRows, len(got))
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	records := sampleRecords("Vadodara", time.Now().UTC(), 1)
	if _, err := s.Persist(ctx, records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	*records[0].AQI = 999

	got, _ := s.Query(ctx, airquality.Filter{})
	if *got[0].AQI == 999 {
		t.Fatal("expected stored record to be isolated from caller mutation")
	}
}

func TestMemoryStoreEmptyQuery(t *testing.T) {
	got, err := NewMemoryStore().Query(context.Background(), airquality.Filter{CityContains: "nowhere"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}
