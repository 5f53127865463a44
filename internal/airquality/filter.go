package airquality

import (
	"strings"
	"time"
)

// MaxHistoricalRows caps every historical query.
const MaxHistoricalRows = 1000

const dateLayout = "2006-01-02"

// Filter is a store-agnostic historical query. Results are always sorted by
// timestamp descending and capped at Limit rows.
type Filter struct {
	// CityContains matches stored city names case-insensitively as a
	// literal substring. Empty matches every city.
	CityContains string
	// From and To are inclusive bounds; nil leaves the bound open.
	From  *time.Time
	To    *time.Time
	Limit int
}

// BuildFilter translates historical query parameters into a Filter. start
// and end are YYYY-MM-DD dates in UTC; end covers its whole day.
func BuildFilter(city, start, end string) (Filter, error) {
	f := Filter{
		CityContains: strings.TrimSpace(city),
		Limit:        MaxHistoricalRows,
	}

	if start != "" {
		from, err := time.Parse(dateLayout, start)
		if err != nil {
			return Filter{}, &ValidationError{Field: "start", Reason: "must be a YYYY-MM-DD date"}
		}
		f.From = &from
	}

	if end != "" {
		day, err := time.Parse(dateLayout, end)
		if err != nil {
			return Filter{}, &ValidationError{Field: "end", Reason: "must be a YYYY-MM-DD date"}
		}
		to := day.Add(24*time.Hour - time.Millisecond)
		f.To = &to
	}

	return f, nil
}

// Matches reports whether r satisfies the filter's predicates. Limit and
// ordering are the caller's concern.
func (f Filter) Matches(r Record) bool {
	if f.CityContains != "" &&
		!strings.Contains(strings.ToLower(r.Location.City), strings.ToLower(f.CityContains)) {
		return false
	}
	if f.From != nil && r.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && r.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// EffectiveLimit returns Limit bounded to MaxHistoricalRows.
func (f Filter) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > MaxHistoricalRows {
		return MaxHistoricalRows
	}
	return f.Limit
}
