//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/air-quality-service/internal/airquality"
)

// Run with: MONGO_URI=mongodb://localhost:27017 go test -tags integration ./internal/store/...
func TestMongoStoreIntegration(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	ctx := context.Background()
	s, err := NewMongoStore(ctx, MongoConfig{
		URI:        uri,
		Database:   "aqi_test",
		Collection: "records_" + uuid.NewString()[:8],
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = s.collection.Drop(context.Background())
		_ = s.Close(context.Background())
	})

	start := time.Date(2026, 1, 31, 20, 0, 0, 0, time.UTC)
	ids, err := s.Persist(ctx, sampleRecords("Vadodara East", start, 6))
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if len(ids) != 6 {
		t.Fatalf("expected 6 ids, got %d", len(ids))
	}

	filter, _ := airquality.BuildFilter("vadodara", "", "2026-01-31")
	got, err := s.Query(ctx, filter)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 records, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(start.Add(3 * time.Hour)) {
		t.Fatalf("expected newest first, got %v", got[0].Timestamp)
	}
}
