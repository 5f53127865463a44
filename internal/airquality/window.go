package airquality

const (
	// DefaultForecastHours applies when the caller asks for no horizon.
	DefaultForecastHours = 24
	// MaxForecastHours is the protocol ceiling on forecast length.
	MaxForecastHours = 120
)

// EffectiveHorizon clamps a requested forecast length to the protocol
// ceiling and to the number of positions actually available. Zero selects
// the default; a negative request yields no positions.
func EffectiveHorizon(requested, available int) int {
	h := requested
	if h == 0 {
		h = DefaultForecastHours
	}
	h = min(h, MaxForecastHours, available)
	return max(h, 0)
}

// Align returns the weather series to fuse with aq and the number of
// positions both share. A weather series that starts at a different instant
// than aq is dropped.
func Align(aq, wx *Series) (*Series, int) {
	n := aq.Len()
	if wx == nil {
		return nil, n
	}

	aqStart, aqOK := aq.TimeAt(0)
	wxStart, wxOK := wx.TimeAt(0)
	if aqOK && wxOK && !aqStart.Equal(wxStart) {
		return nil, n
	}

	return wx, min(n, wx.Len())
}

// Forecast normalizes the first hours positions of the aligned series,
// earliest first.
func Forecast(aq, wx *Series, loc Location, hours int) []Record {
	wx, n := Align(aq, wx)
	return normalizeRange(aq, wx, loc, EffectiveHorizon(hours, n))
}

// Batch normalizes every aligned position for persistence.
func Batch(aq, wx *Series, loc Location) []Record {
	wx, n := Align(aq, wx)
	return normalizeRange(aq, wx, loc, n)
}

func normalizeRange(aq, wx *Series, loc Location, n int) []Record {
	records := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, ToRecord(aq, wx, i, loc))
	}
	return records
}
