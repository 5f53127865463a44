package airquality

import "time"

// now is swapped out in tests.
var now = time.Now

// ToRecord assembles the canonical record at position i of the aligned
// series. wx may be nil, in which case the weather mapping is empty.
func ToRecord(aq, wx *Series, i int, loc Location) Record {
	ts, ok := aq.TimeAt(i)
	if !ok {
		ts = now()
	}

	aqi := aq.Value(FieldAQI, i)

	return Record{
		Location:  loc,
		Timestamp: ts.UTC(),
		AQI:       aqi,
		Category:  CategoryOf(aqi),
		Pollutants: Pollutants{
			PM25: aq.Value(FieldPM25, i),
			PM10: aq.Value(FieldPM10, i),
			NO2:  aq.Value(FieldNO2, i),
			SO2:  aq.Value(FieldSO2, i),
			CO:   aq.Value(FieldCO, i),
			O3:   aq.Value(FieldO3, i),
		},
		Weather: weatherAt(wx, i),
		Source:  SourceOpenMeteo,
	}
}

func weatherAt(wx *Series, i int) Weather {
	if wx == nil {
		return Weather{}
	}
	w := make(Weather, len(WeatherFields))
	for _, field := range WeatherFields {
		w[field] = wx.Value(field, i)
	}
	return w
}
