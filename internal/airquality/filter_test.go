package airquality

import (
	"errors"
	"testing"
	"time"
)

func TestBuildFilterEndCoversWholeDay(t *testing.T) {
	f, err := BuildFilter("vadodara", "2026-01-01", "2026-01-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := func(city string, ts time.Time) Record {
		return Record{Location: Location{City: city}, Timestamp: ts}
	}

	if !f.Matches(rec("Vadodara East", time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC))) {
		t.Error("expected last-day record to match")
	}
	if !f.Matches(rec("VADODARA", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))) {
		t.Error("expected start bound to be inclusive")
	}
	if f.Matches(rec("Vadodara", time.Date(2026, 2, 1, 0, 0, 1, 0, time.UTC))) {
		t.Error("expected record after end day to be excluded")
	}
	if f.Matches(rec("Surat", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))) {
		t.Error("expected other city to be excluded")
	}
}

func TestBuildFilterOpenBounds(t *testing.T) {
	f, err := BuildFilter("", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.From != nil || f.To != nil {
		t.Fatalf("expected open bounds, got %v %v", f.From, f.To)
	}
	if f.EffectiveLimit() != MaxHistoricalRows {
		t.Fatalf("expected limit %d, got %d", MaxHistoricalRows, f.EffectiveLimit())
	}
	if !f.Matches(Record{Location: Location{City: "Anywhere"}, Timestamp: time.Unix(0, 0)}) {
		t.Fatal("expected empty filter to match everything")
	}
}

func TestBuildFilterRejectsBadDates(t *testing.T) {
	_, err := BuildFilter("", "01/02/2026", "")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "start" {
		t.Fatalf("expected start field error, got %v", err)
	}

	if _, err := BuildFilter("", "", "tomorrow"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for end, got %v", err)
	}
}

func TestFilterRegexCharactersAreLiteral(t *testing.T) {
	f, err := BuildFilter("a.b", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Matches(Record{Location: Location{City: "axb"}}) {
		t.Fatal("expected dot to match literally")
	}
	if !f.Matches(Record{Location: Location{City: "A.B town"}}) {
		t.Fatal("expected literal substring match")
	}
}
